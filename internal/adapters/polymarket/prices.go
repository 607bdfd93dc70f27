package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

const midpointBatchMax = 100

// FetchMarkPrices obtiene el midpoint actual del CLOB para cada key pedida,
// en batches vía POST /midpoints. Las keys cuyo token no está en la caché
// (nunca pasaron por ResolveTokens) o sin midpoint disponible no aparecen
// en el resultado: el resolver las valora a cero.
func (c *Client) FetchMarkPrices(ctx context.Context, keys []domain.PositionKey) (map[domain.PositionKey]float64, error) {
	byToken := make(map[string]domain.PositionKey, len(keys))
	var reqs []midpointRequest
	for _, key := range keys {
		tokenID, ok := c.tokenCache.tokenFor(key)
		if !ok {
			slog.Debug("no token cached for key, skipping mark price",
				"condition", key.ConditionID, "outcome", key.OutcomeIndex)
			continue
		}
		byToken[tokenID] = key
		reqs = append(reqs, midpointRequest{TokenID: tokenID})
	}
	if len(reqs) == 0 {
		return nil, nil
	}

	result := make(map[domain.PositionKey]float64, len(reqs))
	for i := 0; i < len(reqs); i += midpointBatchMax {
		end := i + midpointBatchMax
		if end > len(reqs) {
			end = len(reqs)
		}

		mids, err := c.fetchMidpoints(ctx, reqs[i:end])
		if err != nil {
			return nil, fmt.Errorf("clob.FetchMarkPrices: batch %d-%d: %w", i, end, err)
		}

		for tokenID, price := range mids {
			if key, ok := byToken[tokenID]; ok && price > 0 {
				result[key] = price
			}
		}
	}

	slog.Debug("mark prices fetched",
		"requested", len(keys),
		"priced", len(result),
	)
	return result, nil
}

// fetchMidpoints hace el POST /midpoints de un batch. La respuesta es un
// mapa token_id → midpoint como string.
func (c *Client) fetchMidpoints(ctx context.Context, reqs []midpointRequest) (map[string]float64, error) {
	var raw map[string]string
	err := c.doWithRetry(ctx, c.clobLimiter, func() (*http.Response, error) {
		b, err := json.Marshal(reqs)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.clobBase+"/midpoints", bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, &raw)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(raw))
	for tokenID, s := range raw {
		if price, err := strconv.ParseFloat(s, 64); err == nil {
			out[tokenID] = price
		}
	}
	return out, nil
}
