package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

const gammaTokenBatchMax = 20

// tokenCache memoriza token↔(condition, outcome) entre llamadas: el mapeo
// es inmutable, y FetchMarkPrices necesita el camino inverso key→token.
type tokenCache struct {
	mu      sync.Mutex
	byToken map[string]domain.OutcomeToken
	byKey   map[domain.PositionKey]string
}

func newTokenCache() *tokenCache {
	return &tokenCache{
		byToken: make(map[string]domain.OutcomeToken),
		byKey:   make(map[domain.PositionKey]string),
	}
}

func (tc *tokenCache) get(tokenID string) (domain.OutcomeToken, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tok, ok := tc.byToken[tokenID]
	return tok, ok
}

func (tc *tokenCache) put(tok domain.OutcomeToken) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.byToken[tok.TokenID] = tok
	tc.byKey[domain.PositionKey{ConditionID: tok.ConditionID, OutcomeIndex: tok.OutcomeIndex}] = tok.TokenID
}

func (tc *tokenCache) tokenFor(key domain.PositionKey) (string, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	id, ok := tc.byKey[key]
	return id, ok
}

// ResolveTokens mapea token IDs opacos a (condition, outcome) vía Gamma
// /markets?clob_token_ids=... en batches. Los tokens sin mapping no
// aparecen en el resultado — el normalizer los descarta con diagnóstico.
func (c *Client) ResolveTokens(ctx context.Context, tokenIDs []string) (map[string]domain.OutcomeToken, error) {
	result := make(map[string]domain.OutcomeToken, len(tokenIDs))

	var missing []string
	for _, id := range tokenIDs {
		if tok, ok := c.tokenCache.get(id); ok {
			result[id] = tok
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return result, nil
	}

	for i := 0; i < len(missing); i += gammaTokenBatchMax {
		end := i + gammaTokenBatchMax
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[i:end]

		url := fmt.Sprintf("%s/markets?clob_token_ids=%s&limit=%d",
			c.gammaBase, strings.Join(batch, ","), gammaTokenBatchMax)

		var resp []gammaTokenMarket
		if err := c.get(ctx, c.gammaLimiter, url, &resp); err != nil {
			return nil, fmt.Errorf("gamma.ResolveTokens: batch %d-%d: %w", i, end, err)
		}

		for _, gm := range resp {
			for _, tok := range tokensOfGammaMarket(gm) {
				c.tokenCache.put(tok)
				result[tok.TokenID] = tok
			}
		}
	}

	slog.Debug("token resolution complete",
		"requested", len(tokenIDs),
		"resolved", len(result),
	)
	return result, nil
}

// tokensOfGammaMarket expande el clobTokenIds de un mercado Gamma a
// OutcomeTokens; el outcome index es la posición en el array.
func tokensOfGammaMarket(gm gammaTokenMarket) []domain.OutcomeToken {
	var ids []string
	if err := json.Unmarshal([]byte(gm.ClobTokenIDs), &ids); err != nil {
		slog.Debug("malformed clobTokenIds, skipping market",
			"condition", gm.ConditionID, "err", err)
		return nil
	}

	tokens := make([]domain.OutcomeToken, 0, len(ids))
	for i, id := range ids {
		tokens = append(tokens, domain.OutcomeToken{
			TokenID:      id,
			ConditionID:  gm.ConditionID,
			OutcomeIndex: i,
		})
	}
	return tokens
}

// FetchConditions obtiene las definiciones de mercado del CLOB. El vector
// de resolución se deriva de los flags winner cuando el mercado está
// cerrado y algún token ganó; si no, la condition queda sin resolver.
// Una condition que falla al cargar se omite con warning — el resolver la
// tratará como mercado abierto sin mark, el default conservador.
func (c *Client) FetchConditions(ctx context.Context, conditionIDs []string) (map[string]domain.Condition, error) {
	result := make(map[string]domain.Condition, len(conditionIDs))

	for _, id := range conditionIDs {
		if ctx.Err() != nil {
			return result, fmt.Errorf("clob.FetchConditions: %w", ctx.Err())
		}

		url := fmt.Sprintf("%s/markets/%s", c.clobBase, id)
		var resp clobMarket
		if err := c.get(ctx, c.clobLimiter, url, &resp); err != nil {
			slog.Warn("condition fetch failed, skipping",
				"condition", id, "err", err)
			continue
		}

		result[id] = mapClobMarket(resp)
	}

	return result, nil
}
