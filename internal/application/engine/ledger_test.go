package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func event(kind domain.EventKind, outcome int, qty, price float64, ordinal int) domain.TradeEvent {
	return domain.TradeEvent{
		Wallet:        "0xwallet",
		ConditionID:   "0xc1",
		OutcomeIndex:  outcome,
		Kind:          kind,
		Price:         price,
		Quantity:      qty,
		TransactionID: "0xtx",
		Sequence:      domain.SequenceKey{Timestamp: t0.Add(time.Duration(ordinal) * time.Minute), Ordinal: ordinal},
	}
}

func TestLedger_BuySellRoundTrip(t *testing.T) {
	l := NewLedger("0xwallet")
	l.Replay([]domain.TradeEvent{
		event(domain.KindBuy, 0, 100, 0.40, 0),
		event(domain.KindSell, 0, 100, 0.70, 1),
	})

	positions := l.Positions()
	require.Len(t, positions, 1)
	assert.InDelta(t, 30.00, positions[0].RealizedPnl, 1e-9)
	assert.InDelta(t, 0, positions[0].Quantity, 1e-9)
	assert.Empty(t, l.Diagnostics())
}

func TestLedger_Idempotence(t *testing.T) {
	// Replay del mismo stream dos veces en ledgers frescos → estado idéntico
	events := []domain.TradeEvent{
		event(domain.KindBuy, 0, 100, 0.40, 0),
		event(domain.KindBuy, 0, 50, 0.60, 1),
		event(domain.KindSell, 0, 80, 0.55, 2),
		event(domain.KindRedemption, 0, 30, 1.0, 3),
	}

	l1 := NewLedger("0xwallet")
	l1.Replay(events)
	l2 := NewLedger("0xwallet")
	l2.Replay(events)

	p1, p2 := l1.Positions()[0], l2.Positions()[0]
	assert.Equal(t, p1.Quantity, p2.Quantity)
	assert.Equal(t, p1.AvgCost, p2.AvgCost)
	assert.Equal(t, p1.RealizedPnl, p2.RealizedPnl)
}

func TestLedger_Conservation(t *testing.T) {
	// El P&L incremental tras cada SELL iguala la fórmula capped-sell
	// aplicada una vez al final sobre los mismos eventos.
	buys := []domain.TradeEvent{
		event(domain.KindBuy, 0, 100, 0.40, 0),
		event(domain.KindBuy, 0, 100, 0.50, 1),
	}
	sells := []domain.TradeEvent{
		event(domain.KindSell, 0, 60, 0.55, 2),
		event(domain.KindSell, 0, 90, 0.60, 3),
	}

	l := NewLedger("0xwallet")
	l.Replay(append(append([]domain.TradeEvent{}, buys...), sells...))
	incremental := l.Positions()[0].RealizedPnl

	// Fórmula cerrada: avgCost 0.45 constante (sin buys intercalados),
	// ventas capadas en secuencia: 60 y 90 sobre inventario 200.
	closed := 60*(0.55-0.45) + 90*(0.60-0.45)
	assert.InDelta(t, closed, incremental, 1e-9)
}

func TestLedger_CapInvariant(t *testing.T) {
	// La cantidad nunca es negativa después de ningún evento
	l := NewLedger("0xwallet")
	events := []domain.TradeEvent{
		event(domain.KindBuy, 0, 50, 0.50, 0),
		event(domain.KindSell, 0, 80, 0.60, 1),
		event(domain.KindSell, 0, 10, 0.70, 2),
		event(domain.KindRedemption, 0, 5, 1.0, 3),
	}
	for _, ev := range events {
		l.Apply(ev)
		for _, p := range l.Positions() {
			assert.GreaterOrEqual(t, p.Quantity, 0.0)
		}
	}

	assert.InDelta(t, 5.00, l.Positions()[0].RealizedPnl, 1e-9)
	assert.InDelta(t, 45, l.OverflowQuantity(), 1e-9) // 30 + 10 + 5
}

func TestLedger_SellWithoutBuyIsOverflow(t *testing.T) {
	l := NewLedger("0xwallet")
	l.Apply(event(domain.KindSell, 0, 40, 0.55, 0))

	assert.Empty(t, l.Positions()) // la posición nace en la primera BUY
	assert.InDelta(t, 40, l.OverflowQuantity(), 1e-9)

	require.Len(t, l.Diagnostics(), 1)
	assert.Equal(t, domain.DiagSellOverflow, l.Diagnostics()[0].Kind)
}

func TestLedger_SkipsInvalidEvents(t *testing.T) {
	l := NewLedger("0xwallet")
	l.Replay([]domain.TradeEvent{
		event(domain.KindBuy, 0, 0, 0.40, 0),    // qty cero
		event(domain.KindBuy, 0, 100, -0.1, 1),  // precio negativo
		event(domain.KindSell, 0, -5, 0.70, 2),  // qty negativa
	})

	// Wallet con todos los eventos saltados → cero posiciones, no error
	assert.Empty(t, l.Positions())
	assert.Len(t, l.Diagnostics(), 3)
	for _, d := range l.Diagnostics() {
		assert.Equal(t, domain.DiagSkippedInvalidEvent, d.Kind)
	}
}

func TestLedger_SplitAdjustmentLowersBasis(t *testing.T) {
	l := NewLedger("0xwallet")
	l.Apply(event(domain.KindBuy, 0, 100, 0.60, 0))

	adj := event(domain.KindSplitAdjustment, 0, 0, 0, 1)
	adj.Offset = 20
	l.Apply(adj)

	assert.InDelta(t, 0.40, l.Positions()[0].AvgCost, 1e-9)
}

func TestLedger_SplitAdjustmentWithoutPositionSkipped(t *testing.T) {
	l := NewLedger("0xwallet")
	adj := event(domain.KindSplitAdjustment, 0, 0, 0, 0)
	adj.Offset = 20
	l.Apply(adj)

	require.Len(t, l.Diagnostics(), 1)
	assert.Equal(t, domain.DiagSkippedInvalidEvent, l.Diagnostics()[0].Kind)
}

func TestLedger_RedemptionAtZeroPayout(t *testing.T) {
	// Redimir el lado perdedor a payout 0 realiza la pérdida completa
	l := NewLedger("0xwallet")
	l.Replay([]domain.TradeEvent{
		event(domain.KindBuy, 1, 10, 0.30, 0),
		event(domain.KindRedemption, 1, 10, 0, 1),
	})

	assert.InDelta(t, -3.00, l.Positions()[0].RealizedPnl, 1e-9)
}

func TestLedger_IndependentKeys(t *testing.T) {
	l := NewLedger("0xwallet")
	l.Replay([]domain.TradeEvent{
		event(domain.KindBuy, 0, 100, 0.40, 0),
		event(domain.KindBuy, 1, 50, 0.60, 1),
		event(domain.KindSell, 0, 100, 0.70, 2),
	})

	positions := l.Positions()
	require.Len(t, positions, 2)
	// Orden estable por (condition, outcome)
	assert.Equal(t, 0, positions[0].Key.OutcomeIndex)
	assert.Equal(t, 1, positions[1].Key.OutcomeIndex)
	assert.InDelta(t, 30.00, positions[0].RealizedPnl, 1e-9)
	assert.InDelta(t, 0, positions[1].RealizedPnl, 1e-9)
	assert.True(t, positions[1].Open())
}
