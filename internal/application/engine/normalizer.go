package engine

// normalizer.go — primera etapa del pipeline: dedup de filas crudas,
// resolución de tokens opacos a (condition, outcome) y ordenación total
// del stream de eventos.
//
// El feed duplica fills: un self-fill (el wallet operando contra sí mismo
// vía proxy) aparece como fila maker Y fila taker de la misma transacción.
// La convención es quedarse con la economía del lado taker y descartar el
// duplicado maker — si no, el volumen se cuenta dos veces.

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

// dedupKey identifica un fill lógico dentro de una transacción.
type dedupKey struct {
	txHash       string
	conditionID  string
	outcomeIndex int
	side         string
}

// Normalize convierte la actividad cruda de un wallet en un stream de
// TradeEvents ordenado y deduplicado. Los registros cuyo token no resuelve
// se descartan (con diagnóstico), nunca se fabrican.
func Normalize(
	wallet string,
	activity domain.WalletActivity,
	tokens map[string]domain.OutcomeToken,
) ([]domain.TradeEvent, []domain.Diagnostic) {
	var diags []domain.Diagnostic

	groups := make(map[dedupKey][]domain.RawFill)
	var order []dedupKey
	for _, f := range activity.Fills {
		tok, ok := tokens[f.TokenID]
		if !ok {
			diags = append(diags, domain.Diagnostic{
				Kind:   domain.DiagUnresolvableToken,
				Detail: fmt.Sprintf("fill tx=%s token=%s", f.TransactionHash, f.TokenID),
			})
			slog.Debug("dropping unresolvable fill",
				"wallet", wallet,
				"tx", f.TransactionHash,
				"token", f.TokenID,
			)
			continue
		}

		key := dedupKey{
			txHash:       f.TransactionHash,
			conditionID:  tok.ConditionID,
			outcomeIndex: tok.OutcomeIndex,
			side:         f.Side,
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], f)
	}

	events := make([]domain.TradeEvent, 0, len(order)+len(activity.Redemptions))
	for _, key := range order {
		ev, ok := collapseFills(wallet, key, groups[key])
		if ok {
			events = append(events, ev)
		}
	}

	for _, r := range activity.Redemptions {
		tok, ok := tokens[r.TokenID]
		if !ok {
			diags = append(diags, domain.Diagnostic{
				Kind:   domain.DiagUnresolvableToken,
				Detail: fmt.Sprintf("redemption tx=%s token=%s", r.TransactionHash, r.TokenID),
			})
			continue
		}
		events = append(events, domain.TradeEvent{
			Wallet:        wallet,
			ConditionID:   tok.ConditionID,
			OutcomeIndex:  tok.OutcomeIndex,
			Kind:          domain.KindRedemption,
			Price:         r.PayoutPrice(),
			Quantity:      r.Size,
			TransactionID: r.TransactionHash,
			Sequence:      domain.SequenceKey{Timestamp: r.Timestamp, Ordinal: r.Ordinal},
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Sequence.Before(events[j].Sequence)
	})

	if len(events) == 0 {
		diags = append(diags, domain.Diagnostic{
			Kind:   domain.DiagEmptyEventStream,
			Detail: fmt.Sprintf("wallet %s yielded zero resolvable events", wallet),
		})
	}

	return events, diags
}

// collapseFills colapsa las filas de un mismo fill lógico en un evento.
// Si el grupo contiene filas maker y taker a la vez es un self-fill: se
// conservan solo las filas taker. Las filas restantes se agregan con
// precio medio ponderado (fills parciales de la misma transacción).
func collapseFills(wallet string, key dedupKey, fills []domain.RawFill) (domain.TradeEvent, bool) {
	kept := fills
	if hasRole(fills, domain.RoleTaker) && hasRole(fills, domain.RoleMaker) {
		kept = make([]domain.RawFill, 0, len(fills))
		for _, f := range fills {
			if f.Role == domain.RoleTaker {
				kept = append(kept, f)
			}
		}
		slog.Debug("self-fill collapsed to taker side",
			"wallet", wallet,
			"tx", key.txHash,
			"rows", len(fills),
			"kept", len(kept),
		)
	}

	var qty, notional float64
	seq := kept[0]
	for _, f := range kept {
		qty += f.Size
		notional += f.Price * f.Size
		if f.Timestamp.Before(seq.Timestamp) ||
			(f.Timestamp.Equal(seq.Timestamp) && f.Ordinal < seq.Ordinal) {
			seq = f
		}
	}
	if qty <= 0 {
		return domain.TradeEvent{}, false
	}

	kind := domain.KindBuy
	if key.side == domain.SideSell {
		kind = domain.KindSell
	}

	return domain.TradeEvent{
		Wallet:        wallet,
		ConditionID:   key.conditionID,
		OutcomeIndex:  key.outcomeIndex,
		Kind:          kind,
		Price:         notional / qty,
		Quantity:      qty,
		TransactionID: key.txHash,
		Sequence:      domain.SequenceKey{Timestamp: seq.Timestamp, Ordinal: seq.Ordinal},
	}, true
}

func hasRole(fills []domain.RawFill, role string) bool {
	for _, f := range fills {
		if f.Role == role {
			return true
		}
	}
	return false
}
