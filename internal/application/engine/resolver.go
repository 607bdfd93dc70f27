package engine

// resolver.go — valoración terminal de posiciones tras agotar el stream.
// Mercado resuelto → el payout del vector de resolución cierra la posición
// como P&L realizado. Mercado abierto → mark price actual como P&L no
// realizado; sin mark price disponible, la posición se valora a cero
// (todo el coste es pérdida no realizada — default conservador, no una
// estimación del valor real).

import (
	"log/slog"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

// valuation es el resultado agregado de valorar las posiciones de un wallet.
type valuation struct {
	realized    float64
	unrealized  float64
	openCount   int
	closedCount int
	largeOpen   int
}

// resolvePositions clasifica y valora cada posición. largeOpenThreshold es
// el cost basis a partir del cual una posición abierta cuenta como "grande"
// (señal para la taxonomía de outliers).
func resolvePositions(
	wallet string,
	positions []*domain.Position,
	conditions map[string]domain.Condition,
	marks map[domain.PositionKey]float64,
	largeOpenThreshold float64,
) valuation {
	var v valuation

	for _, pos := range positions {
		// Todo el P&L realizado por trades cerrados cuenta siempre.
		v.realized += pos.RealizedPnl

		if !pos.Open() {
			v.closedCount++
			continue
		}

		cond, haveCond := conditions[pos.Key.ConditionID]
		if haveCond && cond.Resolved() {
			if payout, ok := cond.PayoutFor(pos.Key.OutcomeIndex); ok {
				// Posición resuelta: el payout la liquida como realizado.
				v.realized += pos.UnrealizedAt(payout)
				v.closedCount++
				continue
			}
			// Vector presente pero corto para este outcome: datos de
			// resolución parciales se tratan como mercado sin resolver.
			slog.Warn("partial resolution vector, treating outcome as unresolved",
				"wallet", wallet,
				"condition", pos.Key.ConditionID,
				"outcome", pos.Key.OutcomeIndex,
				"vector_len", len(cond.ResolutionVector),
			)
		}

		// Posición abierta: mark price si existe y es positivo, cero si no.
		mark, haveMark := marks[pos.Key]
		if !haveMark || mark <= 0 {
			mark = 0
			slog.Debug("no mark price, valuing open position at zero",
				"wallet", wallet,
				"condition", pos.Key.ConditionID,
				"outcome", pos.Key.OutcomeIndex,
				"cost_basis", pos.CostBasis(),
			)
		}
		v.unrealized += pos.UnrealizedAt(mark)
		v.openCount++
		if pos.CostBasis() >= largeOpenThreshold {
			v.largeOpen++
		}
	}

	return v
}
