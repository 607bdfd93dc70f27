package domain

import "math"

// Position es el estado acumulado de un (wallet, condition, outcome).
// Invariantes: Quantity >= 0 siempre; AvgCost >= 0 y solo tiene significado
// mientras Quantity > 0. No se modela short: una SELL que excede el holding
// se capa a la cantidad trackeada.
type Position struct {
	Key         PositionKey
	Quantity    float64
	AvgCost     float64
	RealizedPnl float64

	// BuyVolume y SellVolume acumulan el nominal bruto por dirección.
	// Señales auxiliares para la taxonomía de outliers, no entran en el P&L.
	BuyVolume  float64
	SellVolume float64

	// SellOverflow acumula la cantidad vendida por encima del holding
	// trackeado (inflows no observados: proxy wallets, transfers, airdrops).
	SellOverflow float64

	// RedemptionCount y TradeCount cuentan eventos aplicados por tipo.
	RedemptionCount int
	TradeCount      int
}

// ApplyBuy incorpora una compra al promedio ponderado.
func (p *Position) ApplyBuy(quantity, price float64) {
	newQty := p.Quantity + quantity
	if newQty <= 0 {
		return
	}
	p.AvgCost = (p.AvgCost*p.Quantity + price*quantity) / newQty
	p.Quantity = newQty
	p.BuyVolume += price * quantity
	p.TradeCount++
}

// ApplySell realiza P&L con venta capada al holding actual. La cantidad
// vendida por encima del holding se atribuye a inflows no trackeados y
// contribuye cero al P&L (convención del benchmark externo).
// Devuelve la cantidad efectivamente aplicada.
func (p *Position) ApplySell(quantity, price float64) float64 {
	adjusted := math.Min(quantity, p.Quantity)
	if excess := quantity - adjusted; excess > 0 {
		p.SellOverflow += excess
	}
	p.RealizedPnl += adjusted * (price - p.AvgCost)
	p.Quantity -= adjusted
	if p.Quantity <= 0 {
		p.Quantity = 0
	}
	p.SellVolume += price * quantity
	p.TradeCount++
	return adjusted
}

// ApplyRedemption es una venta al precio de payout, siempre capada por
// construcción (no se puede redimir más de lo que se tiene).
func (p *Position) ApplyRedemption(quantity, payoutPrice float64) float64 {
	adjusted := p.ApplySell(quantity, payoutPrice)
	p.TradeCount-- // ApplySell ya contó; la redemption se cuenta aparte
	p.RedemptionCount++
	return adjusted
}

// ApplySplitOffset reduce el cost basis efectivo sin cambiar la cantidad:
// equivale a bajar retroactivamente el AvgCost en offset/quantity. El AvgCost
// queda clampeado en 0 — los proceeds de la pata vendida nunca pueden dejar
// un cost basis negativo.
func (p *Position) ApplySplitOffset(offset float64) {
	if p.Quantity <= 0 {
		return
	}
	totalCost := p.AvgCost*p.Quantity - offset
	if totalCost < 0 {
		totalCost = 0
	}
	p.AvgCost = totalCost / p.Quantity
}

// Open devuelve true si la posición sigue abierta (cantidad > 0).
func (p *Position) Open() bool {
	return p.Quantity > 0
}

// CostBasis devuelve el coste total de la posición abierta.
func (p *Position) CostBasis() float64 {
	return p.Quantity * p.AvgCost
}

// UnrealizedAt valora la posición abierta al precio dado y devuelve el
// P&L no realizado. Para Quantity == 0 devuelve 0 (posición inerte).
func (p *Position) UnrealizedAt(markPrice float64) float64 {
	if p.Quantity <= 0 {
		return 0
	}
	return p.Quantity*markPrice - p.CostBasis()
}

// Round2 redondea un valor monetario a 2 decimales. Solo se aplica en la
// frontera de reporting — los acumuladores internos quedan sin redondear
// para no componer error de redondeo.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
