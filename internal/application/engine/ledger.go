package engine

// ledger.go — la máquina de estados central. Consume el stream de eventos
// ordenado de un wallet y mantiene por (condition, outcome) la cantidad,
// el coste medio y el P&L realizado, con el algoritmo average-cost +
// capped-sell + split-offset.
//
// Estados por key: FLAT (qty=0) → LONG (qty>0) → FLAT. No se modela short:
// una SELL que excede el holding se capa, nunca abre posición negativa.

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

// Ledger es propietario exclusivo de las posiciones que crea durante el
// cómputo de un wallet; ninguna posición se comparte entre wallets.
type Ledger struct {
	wallet    string
	positions map[domain.PositionKey]*domain.Position
	diags     []domain.Diagnostic

	// overflow acumula cantidad vendida sin posición trackeada a nivel de
	// wallet (incluye sells sobre keys que nunca tuvieron BUY).
	overflow float64
}

// NewLedger crea un ledger vacío para el wallet dado.
func NewLedger(wallet string) *Ledger {
	return &Ledger{
		wallet:    wallet,
		positions: make(map[domain.PositionKey]*domain.Position),
	}
}

// Replay aplica todos los eventos en orden. El stream ya viene ordenado por
// el normalizer; el ledger no reordena.
func (l *Ledger) Replay(events []domain.TradeEvent) {
	for _, ev := range events {
		l.Apply(ev)
	}
}

// Apply aplica un evento a la posición correspondiente. Nunca lanza error
// por eventos malformados individuales: los salta con diagnóstico. Un
// wallet con todos los eventos saltados produce resultado cero, no error.
func (l *Ledger) Apply(ev domain.TradeEvent) {
	switch ev.Kind {
	case domain.KindBuy:
		if ev.Quantity <= 0 || ev.Price <= 0 {
			l.skip(ev, "non-positive quantity or price")
			return
		}
		pos := l.positions[ev.Key()]
		if pos == nil {
			// La posición nace en la primera BUY de la key y nunca se
			// destruye explícitamente: queda inerte en qty=0 para audit.
			pos = &domain.Position{Key: ev.Key()}
			l.positions[ev.Key()] = pos
		}
		pos.ApplyBuy(ev.Quantity, ev.Price)

	case domain.KindSell:
		if ev.Quantity <= 0 || ev.Price <= 0 {
			l.skip(ev, "non-positive quantity or price")
			return
		}
		pos := l.positions[ev.Key()]
		if pos == nil {
			// SELL sin BUY previa: todo el volumen es inflow no trackeado.
			// Contribución cero al P&L, igual que el exceso de una venta
			// capada.
			l.overflowed(ev, ev.Quantity)
			return
		}
		adjusted := pos.ApplySell(ev.Quantity, ev.Price)
		if adjusted < ev.Quantity {
			l.overflowed(ev, ev.Quantity-adjusted)
		}

	case domain.KindRedemption:
		if ev.Quantity <= 0 || ev.Price < 0 {
			l.skip(ev, "non-positive quantity or negative payout")
			return
		}
		pos := l.positions[ev.Key()]
		if pos == nil {
			l.overflowed(ev, ev.Quantity)
			return
		}
		adjusted := pos.ApplyRedemption(ev.Quantity, ev.Price)
		if adjusted < ev.Quantity {
			l.overflowed(ev, ev.Quantity-adjusted)
		}

	case domain.KindSplitAdjustment:
		if ev.Offset <= 0 {
			l.skip(ev, "non-positive split offset")
			return
		}
		pos := l.positions[ev.Key()]
		if pos == nil || !pos.Open() {
			l.skip(ev, "split offset without open position")
			return
		}
		pos.ApplySplitOffset(ev.Offset)

	default:
		l.skip(ev, "unknown event kind")
	}
}

// Positions devuelve todas las posiciones en orden estable (condition,
// outcome), incluidas las inertes con qty=0.
func (l *Ledger) Positions() []*domain.Position {
	out := make([]*domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.ConditionID != out[j].Key.ConditionID {
			return out[i].Key.ConditionID < out[j].Key.ConditionID
		}
		return out[i].Key.OutcomeIndex < out[j].Key.OutcomeIndex
	})
	return out
}

// Diagnostics devuelve los diagnósticos acumulados durante el replay.
func (l *Ledger) Diagnostics() []domain.Diagnostic {
	return l.diags
}

// OverflowQuantity devuelve la cantidad total vendida por encima del
// inventario trackeado (señal de datos faltantes para la taxonomía).
func (l *Ledger) OverflowQuantity() float64 {
	return l.overflow
}

func (l *Ledger) skip(ev domain.TradeEvent, reason string) {
	l.diags = append(l.diags, domain.Diagnostic{
		Kind: domain.DiagSkippedInvalidEvent,
		Detail: fmt.Sprintf("%s tx=%s condition=%s outcome=%d: %s",
			ev.Kind, ev.TransactionID, ev.ConditionID, ev.OutcomeIndex, reason),
	})
	slog.Debug("skipped invalid event",
		"wallet", l.wallet,
		"kind", ev.Kind.String(),
		"tx", ev.TransactionID,
		"reason", reason,
	)
}

func (l *Ledger) overflowed(ev domain.TradeEvent, excess float64) {
	l.overflow += excess
	l.diags = append(l.diags, domain.Diagnostic{
		Kind: domain.DiagSellOverflow,
		Detail: fmt.Sprintf("%s tx=%s condition=%s outcome=%d: %.4f units beyond tracked inventory",
			ev.Kind, ev.TransactionID, ev.ConditionID, ev.OutcomeIndex, excess),
	})
}
