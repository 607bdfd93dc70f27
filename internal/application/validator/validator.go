package validator

// validator.go — compara el P&L computado contra el valor autoritativo del
// benchmark por wallet y clasifica pass/fail con umbrales dependientes de
// magnitud. A los records fallidos les asigna una categoría de outlier para
// triage manual; la clasificación es diagnóstica y nunca corrige el P&L.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polyledger/internal/domain"
	"github.com/alejandrodnm/polyledger/internal/ports"
)

// Validator evalúa resultados contra el benchmark bajo una policy fija.
type Validator struct {
	policy    domain.ThresholdPolicy
	benchmark ports.BenchmarkProvider
}

// New crea un Validator con la policy y el feed de benchmark dados.
func New(policy domain.ThresholdPolicy, benchmark ports.BenchmarkProvider) *Validator {
	return &Validator{policy: policy, benchmark: benchmark}
}

// ValidateBatch reconcilia cada resultado contra su benchmark. Un fetch de
// benchmark fallido salta ese wallet con warning; el resto continúa.
func (v *Validator) ValidateBatch(ctx context.Context, results []domain.WalletResult) ([]domain.ReconciliationRecord, error) {
	records := make([]domain.ReconciliationRecord, 0, len(results))

	for _, res := range results {
		if ctx.Err() != nil {
			return records, fmt.Errorf("validator.ValidateBatch: %w", ctx.Err())
		}

		bench, err := v.benchmark.FetchBenchmark(ctx, res.Wallet)
		if err != nil {
			slog.Warn("benchmark fetch failed, skipping wallet",
				"wallet", res.Wallet, "err", err)
			continue
		}

		records = append(records, v.Validate(res, bench))
	}

	passed := 0
	for _, r := range records {
		if r.Passed {
			passed++
		}
	}
	slog.Info("reconciliation complete",
		"wallets", len(records),
		"passed", passed,
		"failed", len(records)-passed,
	)
	return records, nil
}

// Validate evalúa un resultado contra su benchmark y, si falla, lo
// clasifica en la taxonomía de outliers.
func (v *Validator) Validate(result domain.WalletResult, benchmark float64) domain.ReconciliationRecord {
	rec := v.policy.Evaluate(result.Wallet, benchmark, result.TotalPnl)
	if !rec.Passed {
		rec.Category = Classify(result)
		slog.Debug("reconciliation failed",
			"wallet", result.Wallet,
			"benchmark", rec.BenchmarkValue,
			"computed", rec.ComputedValue,
			"reason", string(rec.FailureReason),
			"category", string(rec.Category),
		)
	}
	return rec
}

// Umbral de dominancia de redemptions sobre trades para sospechar
// atribución proxy: los trades pasaron por otra dirección del cluster y
// este wallet solo ve los cobros.
const proxyRedemptionRatio = 0.5

// Classify asigna una categoría de outlier a un resultado fallido usando
// las señales auxiliares del cómputo. Las heurísticas se evalúan en orden
// de especificidad; si ninguna matchea, unknown.
func Classify(result domain.WalletResult) domain.OutlierCategory {
	// Más ventas que compras registradas: al feed le faltan trades.
	if result.SellOverflowQty > 0 {
		return domain.OutlierMissingTradeData
	}

	// Actividad dominada por redemptions: sospecha de proxy wallet.
	if result.RedemptionEvents > 0 {
		if result.TradeEvents == 0 ||
			float64(result.RedemptionEvents)/float64(result.TradeEvents) >= proxyRedemptionRatio {
			return domain.OutlierProxyAttribution
		}
	}

	// Posiciones abiertas grandes: el desvío vive en el mark-to-market,
	// que se mueve entre el snapshot del benchmark y el nuestro.
	if result.LargeOpenCount > 0 {
		return domain.OutlierOpenPositionDrift
	}

	// Posiciones abiertas pequeñas: borde de valoración (mark price
	// ausente, vector parcial, default conservador a cero).
	if result.OpenPositionCount > 0 {
		return domain.OutlierValuationEdge
	}

	return domain.OutlierUnknown
}
