package polymarket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

const (
	activityPerPage  = 500
	activityMaxPages = 40
)

// FetchActivity obtiene toda la actividad cruda de un wallet: fills de
// /trades (ambos roles, para poder deduplicar self-fills) y redemptions
// de /activity?type=REDEEM.
func (c *Client) FetchActivity(ctx context.Context, wallet string) (domain.WalletActivity, error) {
	fills, err := c.fetchFills(ctx, wallet)
	if err != nil {
		return domain.WalletActivity{}, fmt.Errorf("data-api.FetchActivity: fills for %s: %w", wallet, err)
	}

	redemptions, err := c.fetchRedemptions(ctx, wallet)
	if err != nil {
		return domain.WalletActivity{}, fmt.Errorf("data-api.FetchActivity: redemptions for %s: %w", wallet, err)
	}

	slog.Debug("fetched wallet activity",
		"wallet", shortAddr(wallet),
		"fills", len(fills),
		"redemptions", len(redemptions),
	)

	return domain.WalletActivity{
		Wallet:      wallet,
		Fills:       fills,
		Redemptions: redemptions,
	}, nil
}

// FetchActivityBatch carga la actividad de un batch de wallets. La Data API
// no tiene endpoint bulk por wallet, así que el batch se materializa como
// fetches secuenciales bajo el mismo rate limiter; los callers siguen
// beneficiándose del prefetch compartido de conditions y precios.
// Un wallet que falla no aborta el batch: simplemente no aparece en el mapa.
func (c *Client) FetchActivityBatch(ctx context.Context, wallets []string) (map[string]domain.WalletActivity, error) {
	out := make(map[string]domain.WalletActivity, len(wallets))
	for _, w := range wallets {
		if ctx.Err() != nil {
			return out, fmt.Errorf("data-api.FetchActivityBatch: %w", ctx.Err())
		}
		act, err := c.FetchActivity(ctx, w)
		if err != nil {
			slog.Warn("activity fetch failed for wallet in batch",
				"wallet", shortAddr(w), "err", err)
			continue
		}
		out[w] = act
	}
	return out, nil
}

// fetchFills pagina /trades para el wallet dado.
func (c *Client) fetchFills(ctx context.Context, wallet string) ([]domain.RawFill, error) {
	var all []domain.RawFill

	for page := 0; page < activityMaxPages; page++ {
		offset := page * activityPerPage
		url := fmt.Sprintf("%s/trades?user=%s&limit=%d&offset=%d&takerOnly=false",
			c.dataBase, wallet, activityPerPage, offset)

		var resp []rawTrade
		if err := c.get(ctx, c.dataLimiter, url, &resp); err != nil {
			return nil, err
		}
		if len(resp) == 0 {
			break
		}

		for _, rt := range resp {
			all = append(all, mapRawTrade(rt))
		}

		if len(resp) < activityPerPage {
			break
		}
	}

	return all, nil
}

// fetchRedemptions pagina /activity filtrando los payout logs.
func (c *Client) fetchRedemptions(ctx context.Context, wallet string) ([]domain.RawRedemption, error) {
	var all []domain.RawRedemption

	for page := 0; page < activityMaxPages; page++ {
		offset := page * activityPerPage
		url := fmt.Sprintf("%s/activity?user=%s&type=REDEEM&limit=%d&offset=%d",
			c.dataBase, wallet, activityPerPage, offset)

		var resp []rawActivity
		if err := c.get(ctx, c.dataLimiter, url, &resp); err != nil {
			return nil, err
		}
		if len(resp) == 0 {
			break
		}

		for _, ra := range resp {
			if ra.Type != "REDEEM" {
				continue
			}
			all = append(all, mapRawRedemption(ra))
		}

		if len(resp) < activityPerPage {
			break
		}
	}

	return all, nil
}

func shortAddr(addr string) string {
	if len(addr) > 10 {
		return addr[:10] + "..."
	}
	return addr
}
