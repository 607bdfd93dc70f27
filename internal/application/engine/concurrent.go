package engine

// concurrent.go — worker pool para el cómputo paralelo de wallets.
//
// El cómputo por wallet es independiente (sin estado mutable compartido),
// así que un pool acotado es correcto sin locking cruzado. El I/O se
// amortiza cargando la actividad del batch en una pasada y prefetcheando
// conditions/mark prices por la unión de condition ids del batch, en vez
// de un round trip por wallet.

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

// ComputeBatch computa los resultados de todos los wallets dados. Un wallet
// que falla produce resultado neutro con diagnóstico; el batch continúa.
// La cancelación se respeta en fronteras de wallet: un ledger a medio
// replay no significa nada.
func (e *Engine) ComputeBatch(ctx context.Context, wallets []string) []domain.WalletResult {
	if len(wallets) == 0 {
		return nil
	}

	batch, err := e.prefetch(ctx, wallets)
	if err != nil {
		slog.Warn("batch prefetch failed, falling back to per-wallet fetches", "err", err)
		batch = nil
	}

	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	if workers > len(wallets) {
		workers = len(wallets)
	}

	workCh := make(chan string, len(wallets))
	resultCh := make(chan domain.WalletResult, len(wallets))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for wallet := range workCh {
				// Checkpoint de cancelación en frontera de wallet.
				if ctx.Err() != nil {
					return
				}
				resultCh <- e.computeOne(ctx, wallet, batch)
			}
		}()
	}

	for _, w := range wallets {
		workCh <- w
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	byWallet := make(map[string]domain.WalletResult, len(wallets))
	for res := range resultCh {
		byWallet[res.Wallet] = res
	}

	// Devolver en el orden de entrada; los wallets no computados por
	// cancelación quedan fuera.
	results := make([]domain.WalletResult, 0, len(byWallet))
	for _, w := range wallets {
		if res, ok := byWallet[w]; ok {
			results = append(results, res)
		}
	}

	slog.Info("batch complete",
		"wallets", len(wallets),
		"computed", len(results),
		"workers", workers,
	)
	return results
}

// batchData es el resultado del prefetch compartido de un batch. Solo
// lectura durante el cómputo: los workers no lo mutan.
type batchData struct {
	activity   map[string]domain.WalletActivity
	tokens     map[string]domain.OutcomeToken
	conditions map[string]domain.Condition
	marks      map[domain.PositionKey]float64
}

// prefetch carga en bloque la actividad del batch y, sobre la unión de
// tokens encontrados, las conditions y mark prices.
func (e *Engine) prefetch(ctx context.Context, wallets []string) (*batchData, error) {
	activity, err := e.activity.FetchActivityBatch(ctx, wallets)
	if err != nil {
		return nil, fmt.Errorf("engine.prefetch: activity batch: %w", err)
	}

	seen := make(map[string]bool)
	var tokenIDs []string
	for _, act := range activity {
		for _, id := range act.TokenIDs() {
			if !seen[id] {
				seen[id] = true
				tokenIDs = append(tokenIDs, id)
			}
		}
	}

	tokens, err := e.conditions.ResolveTokens(ctx, tokenIDs)
	if err != nil {
		return nil, fmt.Errorf("engine.prefetch: resolve tokens: %w", err)
	}

	conditions, err := e.conditions.FetchConditions(ctx, conditionIDsOf(tokens))
	if err != nil {
		return nil, fmt.Errorf("engine.prefetch: fetch conditions: %w", err)
	}

	marks, err := e.prices.FetchMarkPrices(ctx, keysOf(tokens))
	if err != nil {
		slog.Warn("batch mark price fetch failed, open positions valued at zero", "err", err)
		marks = nil
	}

	slog.Debug("batch prefetch complete",
		"wallets", len(activity),
		"tokens", len(tokens),
		"conditions", len(conditions),
		"marks", len(marks),
	)
	return &batchData{
		activity:   activity,
		tokens:     tokens,
		conditions: conditions,
		marks:      marks,
	}, nil
}

// computeOne computa un wallet usando los datos prefetcheados, o cayendo a
// fetches individuales si el prefetch del batch falló.
func (e *Engine) computeOne(ctx context.Context, wallet string, batch *batchData) domain.WalletResult {
	if batch == nil {
		res, err := e.ComputeWallet(ctx, wallet)
		if err != nil {
			slog.Warn("wallet computation failed", "wallet", wallet, "err", err)
		}
		return res
	}

	act, ok := batch.activity[wallet]
	if !ok {
		act = domain.WalletActivity{Wallet: wallet}
	}
	return e.compute(wallet, act, batch.tokens, batch.conditions, batch.marks)
}
