package engine

// engine.go — orquestación del pipeline por wallet:
//
//	normalizer → detector de splits → ledger → resolver
//
// Cada etapa es secuencial dentro de un wallet (el resolver necesita las
// cantidades finales del ledger); entre wallets el cómputo es independiente
// y se paraleliza en concurrent.go.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polyledger/internal/domain"
	"github.com/alejandrodnm/polyledger/internal/ports"
)

// Config es la configuración explícita de la engine. Se pasa entera en la
// construcción; la engine no lee estado ambiente.
type Config struct {
	// SplitPolicy decide la atribución del offset de splits (first | proportional).
	SplitPolicy SplitPolicy
	// LargeOpenThreshold es el cost basis (USDC) a partir del cual una
	// posición abierta cuenta como grande para la taxonomía.
	LargeOpenThreshold float64
	// Workers limita el paralelismo del batch (0 = NumCPU×2).
	Workers int
}

// DefaultConfig devuelve la configuración canónica de la engine.
func DefaultConfig() Config {
	return Config{
		SplitPolicy:        SplitFirstBuy,
		LargeOpenThreshold: 100,
		Workers:            0,
	}
}

// Engine computa posiciones y P&L por wallet a partir de los feeds externos.
type Engine struct {
	cfg        Config
	activity   ports.ActivityProvider
	conditions ports.ConditionProvider
	prices     ports.PriceProvider
}

// New crea una Engine con todas las dependencias inyectadas.
func New(cfg Config, activity ports.ActivityProvider, conditions ports.ConditionProvider, prices ports.PriceProvider) *Engine {
	if !cfg.SplitPolicy.Valid() {
		cfg.SplitPolicy = SplitFirstBuy
	}
	if cfg.LargeOpenThreshold <= 0 {
		cfg.LargeOpenThreshold = 100
	}
	return &Engine{cfg: cfg, activity: activity, conditions: conditions, prices: prices}
}

// ComputeWallet computa el resultado de un único wallet, haciendo sus
// propios fetches. Para batches usar ComputeBatch, que amortiza el I/O.
func (e *Engine) ComputeWallet(ctx context.Context, wallet string) (domain.WalletResult, error) {
	start := time.Now()

	activity, err := e.activity.FetchActivity(ctx, wallet)
	if err != nil {
		return domain.Neutral(wallet, domain.Diagnostic{
			Kind:   domain.DiagFetchFailed,
			Detail: fmt.Sprintf("activity fetch: %v", err),
		}), fmt.Errorf("engine.ComputeWallet: fetch activity for %s: %w", wallet, err)
	}

	tokens, err := e.conditions.ResolveTokens(ctx, activity.TokenIDs())
	if err != nil {
		return domain.Neutral(wallet, domain.Diagnostic{
			Kind:   domain.DiagFetchFailed,
			Detail: fmt.Sprintf("token resolution: %v", err),
		}), fmt.Errorf("engine.ComputeWallet: resolve tokens for %s: %w", wallet, err)
	}

	conditionIDs := conditionIDsOf(tokens)
	conditions, err := e.conditions.FetchConditions(ctx, conditionIDs)
	if err != nil {
		return domain.Neutral(wallet, domain.Diagnostic{
			Kind:   domain.DiagFetchFailed,
			Detail: fmt.Sprintf("conditions fetch: %v", err),
		}), fmt.Errorf("engine.ComputeWallet: fetch conditions for %s: %w", wallet, err)
	}

	marks, err := e.prices.FetchMarkPrices(ctx, keysOf(tokens))
	if err != nil {
		// Sin mark prices las posiciones abiertas se valoran a cero; el
		// cómputo sigue siendo útil, así que no se escala a fallo.
		slog.Warn("mark price fetch failed, open positions valued at zero",
			"wallet", wallet, "err", err)
		marks = nil
	}

	result := e.compute(wallet, activity, tokens, conditions, marks)

	slog.Debug("wallet computed",
		"wallet", wallet,
		"total_pnl", result.TotalPnl,
		"open", result.OpenPositionCount,
		"closed", result.ClosedPositionCount,
		"elapsed", time.Since(start),
	)
	return result, nil
}

// compute es el pipeline puro, sin I/O: todo el input llega ya cargado.
func (e *Engine) compute(
	wallet string,
	activity domain.WalletActivity,
	tokens map[string]domain.OutcomeToken,
	conditions map[string]domain.Condition,
	marks map[domain.PositionKey]float64,
) domain.WalletResult {
	events, diags := Normalize(wallet, activity, tokens)
	if len(events) == 0 {
		return domain.Neutral(wallet, diags...)
	}

	events = DetectSplits(events, e.cfg.SplitPolicy)

	ledger := NewLedger(wallet)
	ledger.Replay(events)
	diags = append(diags, ledger.Diagnostics()...)

	positions := ledger.Positions()
	val := resolvePositions(wallet, positions, conditions, marks, e.cfg.LargeOpenThreshold)

	redemptions, trades := countEventKinds(events)

	return domain.WalletResult{
		Wallet:              wallet,
		RealizedPnl:         domain.Round2(val.realized),
		UnrealizedPnl:       domain.Round2(val.unrealized),
		TotalPnl:            domain.Round2(val.realized + val.unrealized),
		OpenPositionCount:   val.openCount,
		ClosedPositionCount: val.closedCount,
		Diagnostics:         diags,
		RedemptionEvents:    redemptions,
		TradeEvents:         trades,
		SellOverflowQty:     ledger.OverflowQuantity(),
		LargeOpenCount:      val.largeOpen,
	}
}

func countEventKinds(events []domain.TradeEvent) (redemptions, trades int) {
	for _, ev := range events {
		switch ev.Kind {
		case domain.KindRedemption:
			redemptions++
		case domain.KindBuy, domain.KindSell:
			trades++
		}
	}
	return
}

func conditionIDsOf(tokens map[string]domain.OutcomeToken) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, t := range tokens {
		if !seen[t.ConditionID] {
			seen[t.ConditionID] = true
			ids = append(ids, t.ConditionID)
		}
	}
	return ids
}

func keysOf(tokens map[string]domain.OutcomeToken) []domain.PositionKey {
	seen := make(map[domain.PositionKey]bool)
	var keys []domain.PositionKey
	for _, t := range tokens {
		key := domain.PositionKey{ConditionID: t.ConditionID, OutcomeIndex: t.OutcomeIndex}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}
