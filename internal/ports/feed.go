package ports

import (
	"context"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

// ActivityProvider obtiene la actividad cruda (fills + redemptions) de
// wallets desde el feed externo.
type ActivityProvider interface {
	// FetchActivity devuelve toda la actividad de un wallet.
	FetchActivity(ctx context.Context, wallet string) (domain.WalletActivity, error)

	// FetchActivityBatch carga la actividad de un batch de wallets en una
	// pasada, para amortizar round trips en el worker pool.
	FetchActivityBatch(ctx context.Context, wallets []string) (map[string]domain.WalletActivity, error)
}

// ConditionProvider resuelve tokens opacos a (condition, outcome) y
// suministra las definiciones de mercado con sus vectores de resolución.
type ConditionProvider interface {
	// ResolveTokens mapea token IDs a OutcomeToken. Los tokens sin mapping
	// simplemente no aparecen en el resultado.
	ResolveTokens(ctx context.Context, tokenIDs []string) (map[string]domain.OutcomeToken, error)

	// FetchConditions devuelve las conditions pedidas, con ResolutionVector
	// nil para mercados sin resolver.
	FetchConditions(ctx context.Context, conditionIDs []string) (map[string]domain.Condition, error)
}

// PriceProvider obtiene mark prices actuales por (condition, outcome) para
// valorar posiciones abiertas.
type PriceProvider interface {
	// FetchMarkPrices devuelve el precio actual de cada key pedida. Las keys
	// sin precio disponible no aparecen en el mapa.
	FetchMarkPrices(ctx context.Context, keys []domain.PositionKey) (map[domain.PositionKey]float64, error)
}

// BenchmarkProvider suministra el P&L autoritativo de referencia por wallet
// (el valor de la UI / oracle independiente contra el que se reconcilia).
type BenchmarkProvider interface {
	FetchBenchmark(ctx context.Context, wallet string) (float64, error)
}
