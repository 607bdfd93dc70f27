package domain

import "math"

// ThresholdPolicy controla cómo se compara el P&L computado contra el valor
// de referencia externo. Umbral dependiente de magnitud: porcentual para
// wallets grandes, absoluto para pequeños.
type ThresholdPolicy struct {
	// LargePnlThreshold separa régimen porcentual de régimen absoluto.
	LargePnlThreshold float64
	// PctThreshold es el error porcentual máximo para wallets grandes (en %).
	PctThreshold float64
	// AbsThreshold es el error absoluto máximo para wallets pequeños (USDC).
	AbsThreshold float64
	// NoiseFloor — magnitudes por debajo de esto cuentan como "cerca de cero".
	NoiseFloor float64
	// SignMustMatch activa el override por discrepancia de signo.
	SignMustMatch bool
}

// DefaultThresholdPolicy devuelve los umbrales validados empíricamente.
func DefaultThresholdPolicy() ThresholdPolicy {
	return ThresholdPolicy{
		LargePnlThreshold: 200,
		PctThreshold:      6,
		AbsThreshold:      10,
		NoiseFloor:        10,
		SignMustMatch:     true,
	}
}

// FailureReason clasifica por qué falló una reconciliación.
type FailureReason string

const (
	FailSignMismatch FailureReason = "sign_mismatch"
	FailPctThreshold FailureReason = "pct_threshold_exceeded"
	FailAbsThreshold FailureReason = "abs_threshold_exceeded"
)

// ReconciliationRecord es el veredicto de comparar el P&L computado de un
// wallet contra el benchmark autoritativo. Se crea una vez por run de
// validación y nunca se muta; es solo reporting.
type ReconciliationRecord struct {
	Wallet         string
	BenchmarkValue float64
	ComputedValue  float64
	AbsoluteError  float64
	PercentError   float64 // en %, 0 si el benchmark está en el noise floor
	ThresholdUsed  float64
	Passed         bool
	FailureReason  FailureReason
	Category       OutlierCategory // solo records fallidos; diagnóstico, no corrección
}

// Evaluate compara benchmark contra computado bajo esta policy.
//
// Reglas, en orden de precedencia:
//  1. Ambos dentro del noise floor de cero → pass incondicional (evita que
//     la división por casi-cero dispare el error porcentual en wallets
//     inmateriales).
//  2. Signos opuestos con ambas magnitudes sobre el noise floor → fail
//     siempre: un sign flip es un bug estructural, nunca redondeo.
//  3. |benchmark| >= LargePnlThreshold → régimen porcentual.
//  4. Resto → régimen absoluto.
func (p ThresholdPolicy) Evaluate(wallet string, benchmark, computed float64) ReconciliationRecord {
	rec := ReconciliationRecord{
		Wallet:         wallet,
		BenchmarkValue: Round2(benchmark),
		ComputedValue:  Round2(computed),
		AbsoluteError:  Round2(math.Abs(benchmark - computed)),
	}
	absErr := math.Abs(benchmark - computed)

	if math.Abs(benchmark) >= p.NoiseFloor {
		rec.PercentError = Round2(absErr / math.Abs(benchmark) * 100)
	}

	// 1. Exención near-zero
	if math.Abs(benchmark) < p.NoiseFloor && math.Abs(computed) < p.NoiseFloor {
		rec.Passed = true
		rec.ThresholdUsed = p.NoiseFloor
		return rec
	}

	// 2. Override por discrepancia de signo
	if p.SignMustMatch &&
		math.Abs(benchmark) >= p.NoiseFloor && math.Abs(computed) >= p.NoiseFloor &&
		oppositeSigns(benchmark, computed) {
		rec.Passed = false
		rec.FailureReason = FailSignMismatch
		rec.ThresholdUsed = p.NoiseFloor
		return rec
	}

	// 3-4. Umbral dependiente de magnitud
	if math.Abs(benchmark) >= p.LargePnlThreshold {
		rec.ThresholdUsed = p.PctThreshold
		pctErr := absErr / math.Abs(benchmark) * 100
		rec.Passed = pctErr <= p.PctThreshold
		if !rec.Passed {
			rec.FailureReason = FailPctThreshold
		}
		return rec
	}

	rec.ThresholdUsed = p.AbsThreshold
	rec.Passed = absErr <= p.AbsThreshold
	if !rec.Passed {
		rec.FailureReason = FailAbsThreshold
	}
	return rec
}

func oppositeSigns(a, b float64) bool {
	return (a > 0 && b < 0) || (a < 0 && b > 0)
}

// OutlierCategory es la taxonomía de triage manual para records fallidos.
// Es output diagnóstico: nunca altera el P&L computado.
type OutlierCategory string

const (
	// OutlierMissingTradeData — más ventas que compras registradas: faltan
	// trades en el feed (historial incompleto, mercados delistados).
	OutlierMissingTradeData OutlierCategory = "missing-trade-data"
	// OutlierProxyAttribution — actividad dominada por redemptions con pocos
	// trades: sospecha de atribución proxy-wallet (los trades pasaron por
	// otra dirección del cluster).
	OutlierProxyAttribution OutlierCategory = "proxy-attribution-suspect"
	// OutlierValuationEdge — posiciones abiertas pequeñas sin señales de
	// datos faltantes: el desvío vive en la valoración terminal (mark
	// ausente, vector parcial, default conservador a cero).
	OutlierValuationEdge OutlierCategory = "valuation-edge"
	// OutlierOpenPositionDrift — posiciones abiertas grandes con mark prices
	// moviéndose entre el snapshot del benchmark y el nuestro.
	OutlierOpenPositionDrift OutlierCategory = "open-position-drift"
	// OutlierUnknown — ninguna heurística matchea.
	OutlierUnknown OutlierCategory = "unknown"
)
