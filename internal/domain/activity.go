package domain

import "time"

// Roles con los que un wallet puede aparecer en un fill del order book.
// En un self-fill el mismo wallet aparece con ambos roles en la misma
// transacción; la convención es quedarse con la economía del lado taker.
const (
	RoleMaker = "maker"
	RoleTaker = "taker"
)

// Sides de un fill tal y como llegan del feed.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// RawFill es una fila cruda de trade del feed, antes de dedup y resolución
// de tokens. Un fill lógico puede llegar en varias filas (maker/taker).
type RawFill struct {
	TransactionHash string
	TokenID         string
	Side            string // BUY | SELL
	Role            string // maker | taker
	Price           float64
	Size            float64
	Timestamp       time.Time
	Ordinal         int // orden estable dentro de la transacción
}

// RawRedemption es una fila cruda de payout log: el wallet quemó tokens de
// un mercado resuelto a cambio de colateral.
type RawRedemption struct {
	TransactionHash string
	TokenID         string
	Size            float64
	Payout          float64 // USDC recibido por el total
	Timestamp       time.Time
	Ordinal         int
}

// PayoutPrice devuelve el precio unitario implícito de la redemption.
func (r RawRedemption) PayoutPrice() float64 {
	if r.Size <= 0 {
		return 0
	}
	return r.Payout / r.Size
}

// WalletActivity agrupa toda la actividad cruda de un wallet tal y como la
// devuelve el feed, sin normalizar.
type WalletActivity struct {
	Wallet      string
	Fills       []RawFill
	Redemptions []RawRedemption
}

// TokenIDs devuelve el conjunto de token IDs que aparecen en la actividad,
// para resolverlos en batch contra el condition map.
func (a WalletActivity) TokenIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, f := range a.Fills {
		if !seen[f.TokenID] {
			seen[f.TokenID] = true
			ids = append(ids, f.TokenID)
		}
	}
	for _, r := range a.Redemptions {
		if !seen[r.TokenID] {
			seen[r.TokenID] = true
			ids = append(ids, r.TokenID)
		}
	}
	return ids
}
