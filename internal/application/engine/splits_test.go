package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

func txEvent(tx string, kind domain.EventKind, outcome int, qty, price float64, ordinal int) domain.TradeEvent {
	ev := event(kind, outcome, qty, price, ordinal)
	ev.TransactionID = tx
	return ev
}

func TestDetectSplits_MintAndDump(t *testing.T) {
	// Split bundle: BUY outcome 0 + SELL outcome 1 sin posición previa en
	// la misma tx → los proceeds de la SELL offsetean la BUY.
	events := DetectSplits([]domain.TradeEvent{
		txEvent("0xt1", domain.KindBuy, 0, 100, 0.60, 0),
		txEvent("0xt1", domain.KindSell, 1, 100, 0.40, 1),
	}, SplitFirstBuy)

	require.Len(t, events, 3)
	adj := events[1] // insertado justo después de la BUY emparejada
	assert.Equal(t, domain.KindSplitAdjustment, adj.Kind)
	assert.Equal(t, 0, adj.OutcomeIndex)
	assert.InDelta(t, 40.0, adj.Offset, 1e-9) // 100 × 0.40

	// Aplicado al ledger: el cost basis de la pata retenida baja de 0.60
	// al coste neto real 0.20.
	l := NewLedger("0xwallet")
	l.Replay(events)
	positions := l.Positions()
	assert.InDelta(t, 0.20, positions[0].AvgCost, 1e-9)
}

func TestDetectSplits_SellWithPriorPositionNotASplit(t *testing.T) {
	// La SELL tiene posición trackeada de una tx anterior: venta real,
	// no pata de un split.
	events := DetectSplits([]domain.TradeEvent{
		txEvent("0xt1", domain.KindBuy, 1, 100, 0.40, 0),
		txEvent("0xt2", domain.KindBuy, 0, 100, 0.60, 1),
		txEvent("0xt2", domain.KindSell, 1, 50, 0.45, 2),
	}, SplitFirstBuy)

	assert.Len(t, events, 3) // sin adjustments
}

func TestDetectSplits_OrphanSellIgnored(t *testing.T) {
	// SELL sin posición y sin BUY del mismo condition en la tx: inflow no
	// trackeado, lo capa el ledger.
	events := DetectSplits([]domain.TradeEvent{
		txEvent("0xt1", domain.KindSell, 1, 100, 0.40, 0),
	}, SplitFirstBuy)

	assert.Len(t, events, 1)
}

func TestDetectSplits_DifferentConditionNotPaired(t *testing.T) {
	other := txEvent("0xt1", domain.KindBuy, 0, 100, 0.60, 0)
	other.ConditionID = "0xother"

	events := DetectSplits([]domain.TradeEvent{
		other,
		txEvent("0xt1", domain.KindSell, 1, 100, 0.40, 1),
	}, SplitFirstBuy)

	assert.Len(t, events, 2)
}

func TestDetectSplits_FirstBuyPolicy(t *testing.T) {
	// Dos BUYs candidatas: todo el offset va a la primera por secuencia
	events := DetectSplits([]domain.TradeEvent{
		txEvent("0xt1", domain.KindBuy, 0, 50, 0.60, 0),
		txEvent("0xt1", domain.KindBuy, 0, 50, 0.62, 1),
		txEvent("0xt1", domain.KindSell, 1, 100, 0.40, 2),
	}, SplitFirstBuy)

	require.Len(t, events, 4)
	adj := events[1]
	require.Equal(t, domain.KindSplitAdjustment, adj.Kind)
	assert.InDelta(t, 40.0, adj.Offset, 1e-9)
}

func TestDetectSplits_ProportionalPolicy(t *testing.T) {
	// Reparto proporcional al nominal: 30 y 31 USDC → 40 × 30/61 y 40 × 31/61
	events := DetectSplits([]domain.TradeEvent{
		txEvent("0xt1", domain.KindBuy, 0, 50, 0.60, 0),
		txEvent("0xt1", domain.KindBuy, 0, 50, 0.62, 1),
		txEvent("0xt1", domain.KindSell, 1, 100, 0.40, 2),
	}, SplitProportional)

	require.Len(t, events, 5)
	adj1, adj2 := events[1], events[3]
	require.Equal(t, domain.KindSplitAdjustment, adj1.Kind)
	require.Equal(t, domain.KindSplitAdjustment, adj2.Kind)
	assert.InDelta(t, 40.0*30/61, adj1.Offset, 1e-9)
	assert.InDelta(t, 40.0*31/61, adj2.Offset, 1e-9)
	assert.InDelta(t, 40.0, adj1.Offset+adj2.Offset, 1e-9)
}

func TestDetectSplits_SellAfterSameOutcomeBuyIsPartialClose(t *testing.T) {
	// BUY y SELL del mismo outcome en la misma tx, con la SELL después:
	// la venta cierra contra la compra de la propia tx, no es pata de un
	// split. Emitir un offset además contaría los proceeds dos veces.
	events := DetectSplits([]domain.TradeEvent{
		txEvent("0xt1", domain.KindBuy, 0, 100, 0.60, 0),
		txEvent("0xt1", domain.KindSell, 0, 60, 0.60, 1),
	}, SplitFirstBuy)

	require.Len(t, events, 2) // sin adjustments

	l := NewLedger("0xwallet")
	l.Replay(events)
	pos := l.Positions()[0]
	assert.InDelta(t, 0, pos.RealizedPnl, 1e-9) // compra y venta al mismo precio
	assert.InDelta(t, 40, pos.Quantity, 1e-9)
	assert.InDelta(t, 24.00, pos.CostBasis(), 1e-9)
	assert.InDelta(t, 0, l.OverflowQuantity(), 1e-9)
}

func TestDetectSplits_SellBeforeSameOutcomeBuyPairs(t *testing.T) {
	// Mint parcial con recompra: la SELL va primero en la secuencia, sin
	// inventario disponible, y la BUY posterior del mismo outcome es su
	// pareja. El ledger capa la SELL (inflow del mint, no trackeado) y el
	// offset baja el cost basis de la recompra.
	events := DetectSplits([]domain.TradeEvent{
		txEvent("0xt1", domain.KindSell, 0, 60, 0.40, 0),
		txEvent("0xt1", domain.KindBuy, 0, 100, 0.60, 1),
	}, SplitFirstBuy)

	require.Len(t, events, 3)
	adj := events[2] // insertado justo después de la BUY emparejada
	require.Equal(t, domain.KindSplitAdjustment, adj.Kind)
	assert.InDelta(t, 24.0, adj.Offset, 1e-9) // 60 × 0.40

	l := NewLedger("0xwallet")
	l.Replay(events)
	pos := l.Positions()[0]
	assert.InDelta(t, 60, l.OverflowQuantity(), 1e-9)
	assert.InDelta(t, 0.36, pos.AvgCost, 1e-9) // (60 - 24) / 100
	assert.InDelta(t, 0, pos.RealizedPnl, 1e-9)
}

func TestDetectSplits_RunningStateAcrossTransactions(t *testing.T) {
	// La posición comprada y luego vendida por completo: una SELL
	// posterior vuelve a calificar como pata de split.
	events := DetectSplits([]domain.TradeEvent{
		txEvent("0xt1", domain.KindBuy, 1, 100, 0.40, 0),
		txEvent("0xt2", domain.KindSell, 1, 100, 0.50, 1),
		txEvent("0xt3", domain.KindBuy, 0, 100, 0.70, 2),
		txEvent("0xt3", domain.KindSell, 1, 100, 0.30, 3),
	}, SplitFirstBuy)

	require.Len(t, events, 5)
	adj := events[3]
	assert.Equal(t, domain.KindSplitAdjustment, adj.Kind)
	assert.Equal(t, 0, adj.OutcomeIndex)
	assert.InDelta(t, 30.0, adj.Offset, 1e-9)
}

func TestDetectSplits_InvalidPolicyFallsBackToFirst(t *testing.T) {
	events := DetectSplits([]domain.TradeEvent{
		txEvent("0xt1", domain.KindBuy, 0, 100, 0.60, 0),
		txEvent("0xt1", domain.KindSell, 1, 100, 0.40, 1),
	}, SplitPolicy("bogus"))

	require.Len(t, events, 3)
	assert.Equal(t, domain.KindSplitAdjustment, events[1].Kind)
}
