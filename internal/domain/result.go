package domain

import "fmt"

// DiagnosticKind clasifica los problemas no fatales encontrados al computar
// el P&L de un wallet. Son señal de calidad de datos, nunca errores.
type DiagnosticKind string

const (
	// DiagUnresolvableToken — el token ID no mapea a ningún (condition, outcome).
	// El registro se descarta, no se fabrica.
	DiagUnresolvableToken DiagnosticKind = "UNRESOLVABLE_TOKEN"
	// DiagEmptyEventStream — el wallet no produjo ningún evento resoluble.
	// El caller lo trata como "sin datos de posición", no como error.
	DiagEmptyEventStream DiagnosticKind = "EMPTY_EVENT_STREAM"
	// DiagSkippedInvalidEvent — evento con cantidad o precio no positivo,
	// saltado por el ledger.
	DiagSkippedInvalidEvent DiagnosticKind = "SKIPPED_INVALID_EVENT"
	// DiagSellOverflow — venta por encima del holding trackeado; el exceso
	// se atribuye a inflows no observados y contribuye cero P&L.
	DiagSellOverflow DiagnosticKind = "SELL_OVERFLOW"
	// DiagFetchFailed — el fetch de datos del wallet falló tras agotar los
	// retries. El wallet devuelve resultado neutro y el batch continúa.
	DiagFetchFailed DiagnosticKind = "FETCH_FAILED"
)

// Diagnostic es una observación no fatal registrada durante el cómputo.
type Diagnostic struct {
	Kind   DiagnosticKind
	Detail string
}

// String implementa fmt.Stringer para logs.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Kind, d.Detail)
}

// WalletResult es el output por wallet de la engine. Los campos monetarios
// están redondeados a 2 decimales (frontera de reporting).
type WalletResult struct {
	Wallet              string
	RealizedPnl         float64
	UnrealizedPnl       float64
	TotalPnl            float64
	OpenPositionCount   int
	ClosedPositionCount int
	Diagnostics         []Diagnostic

	// Señales auxiliares que consume la taxonomía de outliers.
	RedemptionEvents int
	TradeEvents      int
	SellOverflowQty  float64
	LargeOpenCount   int // posiciones abiertas con cost basis > umbral
}

// Neutral devuelve un resultado cero para un wallet cuyo cómputo falló o
// que no tiene datos. "Fail open, report clearly": un wallet malo no
// aborta el batch.
func Neutral(wallet string, diags ...Diagnostic) WalletResult {
	return WalletResult{Wallet: wallet, Diagnostics: diags}
}

// HasDiagnostic devuelve true si el resultado contiene el kind dado.
func (r WalletResult) HasDiagnostic(kind DiagnosticKind) bool {
	for _, d := range r.Diagnostics {
		if d.Kind == kind {
			return true
		}
	}
	return false
}
