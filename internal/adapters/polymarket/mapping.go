package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

// mapRawTrade convierte una fila de /trades a domain.RawFill.
func mapRawTrade(rt rawTrade) domain.RawFill {
	price, _ := rt.Price.Float64()
	size, _ := rt.Size.Float64()
	ordinal, _ := rt.LogIndex.Int64()

	return domain.RawFill{
		TransactionHash: rt.TransactionHash,
		TokenID:         rt.Asset,
		Side:            strings.ToUpper(rt.Side),
		Role:            mapTraderSide(rt.TraderSide),
		Price:           price,
		Size:            size,
		Timestamp:       parseTimestamp(rt.Timestamp),
		Ordinal:         int(ordinal),
	}
}

// mapRawRedemption convierte una fila REDEEM de /activity a domain.RawRedemption.
func mapRawRedemption(ra rawActivity) domain.RawRedemption {
	size, _ := ra.Size.Float64()
	payout, _ := ra.USDCSize.Float64()
	ordinal, _ := ra.LogIndex.Int64()

	return domain.RawRedemption{
		TransactionHash: ra.TransactionHash,
		TokenID:         ra.Asset,
		Size:            size,
		Payout:          payout,
		Timestamp:       parseTimestamp(ra.Timestamp),
		Ordinal:         int(ordinal),
	}
}

// mapTraderSide normaliza el rol del feed (TAKER/MAKER) a las constantes
// del dominio. Valor desconocido cae a taker: ante la duda, la fila cuenta.
func mapTraderSide(s string) string {
	if strings.EqualFold(s, "MAKER") {
		return domain.RoleMaker
	}
	return domain.RoleTaker
}

// mapClobMarket convierte un mercado del CLOB a domain.Condition. El vector
// de resolución es one-hot sobre los winner flags, y solo existe si el
// mercado está cerrado con algún ganador marcado.
func mapClobMarket(m clobMarket) domain.Condition {
	cond := domain.Condition{
		ConditionID:  m.ConditionID,
		OutcomeCount: len(m.Tokens),
	}

	if !m.Closed {
		return cond
	}

	anyWinner := false
	vector := make([]float64, len(m.Tokens))
	for i, t := range m.Tokens {
		if t.Winner {
			vector[i] = 1
			anyWinner = true
		}
	}
	if anyWinner {
		cond.ResolutionVector = vector
	}
	return cond
}

// parseTimestamp acepta unix seconds, unix millis, floats y los formatos
// ISO que Polymarket devuelve según el endpoint.
func parseTimestamp(n json.Number) time.Time {
	s := n.String()
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		if sec > 1e12 {
			return time.Unix(sec/1000, (sec%1000)*int64(time.Millisecond))
		}
		return time.Unix(sec, 0)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return time.Unix(sec, nsec)
	}
	for _, layout := range []string{
		time.RFC3339Nano, time.RFC3339,
		"2006-01-02T15:04:05.000Z", "2006-01-02T15:04:05Z",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
