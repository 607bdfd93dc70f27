package engine

// splits.go — detector de patrones sintéticos de split ("mint + immediate
// dump"): depositar colateral mintea una unidad de cada outcome; vender en
// la misma transacción los outcomes no deseados aparece en el feed como una
// SELL sin posición previa. Sin corrección, el ledger valoraría la pata
// retenida a su precio nominal de compra en vez de al coste neto real.
//
// El detector solo emite eventos SPLIT_ADJUSTMENT sintéticos; nunca muta
// los eventos originales.

import (
	"log/slog"
	"math"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

// SplitPolicy decide cómo repartir el offset cuando varias BUYs de la misma
// transacción califican como pareja del SELL. La atribución correcta no está
// validada contra ground truth, así que se expone como política configurable.
type SplitPolicy string

const (
	// SplitFirstBuy aplica todo el offset a la primera BUY por orden de
	// secuencia (simplificación documentada).
	SplitFirstBuy SplitPolicy = "first"
	// SplitProportional reparte el offset entre las BUYs candidatas en
	// proporción a su nominal.
	SplitProportional SplitPolicy = "proportional"
)

// Valid devuelve true si la policy es una de las conocidas.
func (p SplitPolicy) Valid() bool {
	return p == SplitFirstBuy || p == SplitProportional
}

// DetectSplits inspecciona el stream ya normalizado y devuelve el stream con
// los SPLIT_ADJUSTMENT sintéticos insertados inmediatamente después de su
// BUY emparejada. El input debe venir ordenado por sequence key.
func DetectSplits(events []domain.TradeEvent, policy SplitPolicy) []domain.TradeEvent {
	if !policy.Valid() {
		policy = SplitFirstBuy
	}

	// Estado de inventario corriente por key, replicando el capado del
	// ledger, para saber si una SELL tiene posición previa trackeada.
	running := make(map[domain.PositionKey]float64)

	// offsets[i] acumula el offset asignado al evento i (una BUY).
	offsets := make(map[int]float64)

	txs := groupByTransaction(events)
	for _, tx := range txs {
		detectInTransaction(events, tx, running, offsets, policy)

		// Aplicar los efectos de la transacción al inventario corriente,
		// en orden de secuencia y con ventas capadas.
		for _, i := range tx {
			ev := events[i]
			key := ev.Key()
			switch ev.Kind {
			case domain.KindBuy:
				running[key] += ev.Quantity
			case domain.KindSell, domain.KindRedemption:
				running[key] -= math.Min(ev.Quantity, running[key])
			case domain.KindSplitAdjustment:
				// no afecta cantidades
			}
		}
	}

	if len(offsets) == 0 {
		return events
	}

	// Reconstruir el stream insertando cada adjustment justo después de su
	// BUY emparejada. El orden relativo del resto no cambia.
	out := make([]domain.TradeEvent, 0, len(events)+len(offsets))
	for i, ev := range events {
		out = append(out, ev)
		if offset, ok := offsets[i]; ok && offset > 0 {
			out = append(out, domain.TradeEvent{
				Wallet:        ev.Wallet,
				ConditionID:   ev.ConditionID,
				OutcomeIndex:  ev.OutcomeIndex,
				Kind:          domain.KindSplitAdjustment,
				Offset:        offset,
				TransactionID: ev.TransactionID,
				Sequence:      ev.Sequence,
			})
		}
	}
	return out
}

// detectInTransaction busca el patrón split-and-sell dentro de una
// transacción y acumula offsets sobre las BUYs emparejadas.
//
// Para cada SELL sobre un outcome sin posición disponible al llegar su
// turno en la secuencia, las BUYs candidatas son las del mismo condition
// dentro de la misma transacción (incluye una BUY posterior del mismo
// outcome: mint parcial con recompra). La disponibilidad se evalúa
// replayando el inventario DENTRO de la transacción en orden de secuencia:
// una SELL que sigue a una BUY del mismo outcome en la misma tx cierra
// posición real, porque el ledger la aplicará contra esa compra, y emitir
// además un offset contaría los proceeds dos veces.
func detectInTransaction(
	events []domain.TradeEvent,
	tx []int,
	running map[domain.PositionKey]float64,
	offsets map[int]float64,
	policy SplitPolicy,
) {
	// Inventario disponible durante la tx: arranca del corriente y se
	// actualiza evento a evento con el mismo capado que el ledger.
	avail := make(map[domain.PositionKey]float64)
	availOf := func(key domain.PositionKey) float64 {
		if v, ok := avail[key]; ok {
			return v
		}
		return running[key]
	}

	for _, si := range tx {
		ev := events[si]
		key := ev.Key()

		switch ev.Kind {
		case domain.KindBuy:
			avail[key] = availOf(key) + ev.Quantity
			continue
		case domain.KindRedemption:
			a := availOf(key)
			avail[key] = a - math.Min(ev.Quantity, a)
			continue
		case domain.KindSell:
		default:
			continue
		}

		sell := ev
		if a := availOf(key); a > 0 {
			// Venta contra posición trackeada, previa o comprada antes en
			// esta misma tx: cierre ordinario, no pata de un split.
			avail[key] = a - math.Min(sell.Quantity, a)
			continue
		}

		var candidates []int
		for _, bi := range tx {
			buy := events[bi]
			if buy.Kind != domain.KindBuy || buy.ConditionID != sell.ConditionID {
				continue
			}
			if buy.OutcomeIndex == sell.OutcomeIndex && bi < si {
				// BUY anterior del mismo outcome ya consumida por ventas
				// previas: la SELL no puede ser la pata vendida de su mint.
				continue
			}
			candidates = append(candidates, bi)
		}
		if len(candidates) == 0 {
			continue // SELL huérfana: inflow no trackeado, el ledger la capa
		}

		proceeds := sell.Notional()
		switch policy {
		case SplitProportional:
			var totalNotional float64
			for _, bi := range candidates {
				totalNotional += events[bi].Notional()
			}
			if totalNotional <= 0 {
				offsets[candidates[0]] += proceeds
				break
			}
			for _, bi := range candidates {
				offsets[bi] += proceeds * events[bi].Notional() / totalNotional
			}
		default:
			offsets[candidates[0]] += proceeds
		}

		slog.Debug("split pattern detected",
			"wallet", sell.Wallet,
			"tx", sell.TransactionID,
			"condition", sell.ConditionID,
			"sold_outcome", sell.OutcomeIndex,
			"proceeds", proceeds,
			"paired_buys", len(candidates),
			"policy", string(policy),
		)
	}
}

// groupByTransaction agrupa índices de eventos por transacción, en el orden
// en que cada transacción aparece en el stream. Los índices dentro de cada
// grupo conservan el orden de secuencia del input.
func groupByTransaction(events []domain.TradeEvent) [][]int {
	byTx := make(map[string][]int)
	var order []string
	for i, ev := range events {
		if _, seen := byTx[ev.TransactionID]; !seen {
			order = append(order, ev.TransactionID)
		}
		byTx[ev.TransactionID] = append(byTx[ev.TransactionID], i)
	}

	groups := make([][]int, 0, len(order))
	for _, tx := range order {
		groups = append(groups, byTx[tx])
	}
	return groups
}
