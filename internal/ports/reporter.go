package ports

import (
	"context"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

// Reporter presenta los resultados del run al usuario.
type Reporter interface {
	// ReportResults muestra los resultados por wallet.
	// En la implementación de consola, imprime una tabla formateada.
	ReportResults(ctx context.Context, results []domain.WalletResult) error

	// ReportReconciliation muestra el veredicto de la reconciliación con el
	// histograma de la taxonomía de outliers.
	ReportReconciliation(ctx context.Context, records []domain.ReconciliationRecord) error
}
