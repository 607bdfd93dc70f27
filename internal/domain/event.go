package domain

import "time"

// EventKind es el tipo cerrado de eventos que el ledger entiende.
// El ledger hace switch exhaustivo sobre este enum; cualquier valor
// fuera del rango se trata como evento inválido (skip + log).
type EventKind int

const (
	// KindBuy es una compra de outcome tokens a un precio dado.
	KindBuy EventKind = iota
	// KindSell es una venta de outcome tokens a un precio dado.
	KindSell
	// KindSplitAdjustment es un evento sintético emitido por el detector de
	// splits: reduce el cost basis de la BUY emparejada sin cambiar cantidad.
	KindSplitAdjustment
	// KindRedemption es el cobro del payout de un mercado resuelto.
	// Mecánicamente es una SELL al precio de resolución, siempre capada.
	KindRedemption
)

// String devuelve el nombre del kind para logs y diagnósticos.
func (k EventKind) String() string {
	switch k {
	case KindBuy:
		return "BUY"
	case KindSell:
		return "SELL"
	case KindSplitAdjustment:
		return "SPLIT_ADJUSTMENT"
	case KindRedemption:
		return "REDEMPTION"
	default:
		return "UNKNOWN"
	}
}

// SequenceKey ordena totalmente los eventos dentro del stream de un
// (wallet, outcome token). Timestamp primero, Ordinal como tie-break
// estable dentro de la misma transacción/bloque.
type SequenceKey struct {
	Timestamp time.Time
	Ordinal   int
}

// Before devuelve true si s va estrictamente antes que other.
func (s SequenceKey) Before(other SequenceKey) bool {
	if !s.Timestamp.Equal(other.Timestamp) {
		return s.Timestamp.Before(other.Timestamp)
	}
	return s.Ordinal < other.Ordinal
}

// TradeEvent es una acción económica normalizada sobre un outcome token.
// Inmutable una vez emitido por el normalizer; el detector de splits puede
// sintetizar eventos adicionales pero nunca muta los originales.
type TradeEvent struct {
	Wallet        string
	ConditionID   string
	OutcomeIndex  int
	Kind          EventKind
	Price         float64 // precio unitario en USDC; para SPLIT_ADJUSTMENT no aplica
	Quantity      float64 // cantidad de tokens; para SPLIT_ADJUSTMENT no aplica
	Offset        float64 // solo SPLIT_ADJUSTMENT: proceeds a descontar del cost basis
	TransactionID string
	Sequence      SequenceKey
}

// Key identifica la posición (condition, outcome) a la que aplica el evento.
type PositionKey struct {
	ConditionID  string
	OutcomeIndex int
}

// Key devuelve la clave de posición del evento.
func (e TradeEvent) Key() PositionKey {
	return PositionKey{ConditionID: e.ConditionID, OutcomeIndex: e.OutcomeIndex}
}

// Notional devuelve el valor nominal del evento (precio × cantidad).
func (e TradeEvent) Notional() float64 {
	return e.Price * e.Quantity
}
