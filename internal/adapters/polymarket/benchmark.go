package polymarket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

// FetchBenchmark obtiene el P&L autoritativo que muestra la UI para un
// wallet: el último punto de la serie /user-pnl de la Data API. Es el
// valor contra el que se reconcilia el cómputo propio.
func (c *Client) FetchBenchmark(ctx context.Context, wallet string) (float64, error) {
	url := fmt.Sprintf("%s/user-pnl?user_address=%s&interval=all&fidelity=1d",
		c.dataBase, wallet)

	var series []pnlPoint
	if err := c.get(ctx, c.dataLimiter, url, &series); err != nil {
		return 0, fmt.Errorf("data-api.FetchBenchmark: %s: %w", wallet, err)
	}
	if len(series) == 0 {
		return 0, fmt.Errorf("data-api.FetchBenchmark: empty pnl series for %s", wallet)
	}

	last := series[len(series)-1]
	pnl, err := last.Pnl.Float64()
	if err != nil {
		return 0, fmt.Errorf("data-api.FetchBenchmark: malformed pnl point for %s: %w", wallet, err)
	}

	slog.Debug("benchmark fetched",
		"wallet", shortAddr(wallet),
		"pnl", domain.Round2(pnl),
		"points", len(series),
	)
	return pnl, nil
}
