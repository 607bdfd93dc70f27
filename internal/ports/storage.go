package ports

import (
	"context"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

// Storage persiste los resultados de cada run de la engine.
type Storage interface {
	// SaveRun persiste el resumen del run, los resultados por wallet y los
	// records de reconciliación (vacíos si no se reconcilió).
	SaveRun(ctx context.Context, results []domain.WalletResult, records []domain.ReconciliationRecord) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
