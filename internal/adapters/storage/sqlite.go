package storage

// sqlite.go — persistencia de runs de la engine.
//
// Estrategia:
//   - `runs`: una fila de resumen por ejecución (wallets, pass/fail, P&L total).
//   - `wallet_results`: UNA fila por wallet (UPSERT) con el último resultado
//     computado; el histórico fino no aporta — el run de referencia es el último.
//   - `reconciliations`: una fila por (run, wallet); los records son inmutables
//     por diseño, así que aquí sí se acumula histórico.
//   - Prune automático al arrancar: runs y reconciliations > 30d.

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polyledger/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Resumen por ejecución de la engine
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    started_at  DATETIME NOT NULL,
    wallets     INTEGER  NOT NULL DEFAULT 0,
    passed      INTEGER  NOT NULL DEFAULT 0,
    failed      INTEGER  NOT NULL DEFAULT 0,
    total_pnl   REAL     NOT NULL DEFAULT 0
);

-- Último resultado por wallet, sin duplicados
CREATE TABLE IF NOT EXISTS wallet_results (
    wallet          TEXT PRIMARY KEY,
    run_id          TEXT    NOT NULL,
    realized_pnl    REAL    NOT NULL DEFAULT 0,
    unrealized_pnl  REAL    NOT NULL DEFAULT 0,
    total_pnl       REAL    NOT NULL DEFAULT 0,
    open_positions  INTEGER NOT NULL DEFAULT 0,
    closed_positions INTEGER NOT NULL DEFAULT 0,
    diagnostics     TEXT,
    computed_at     DATETIME NOT NULL
);

-- Histórico de reconciliaciones (records inmutables)
CREATE TABLE IF NOT EXISTS reconciliations (
    run_id          TEXT NOT NULL,
    wallet          TEXT NOT NULL,
    benchmark_value REAL NOT NULL,
    computed_value  REAL NOT NULL,
    absolute_error  REAL NOT NULL,
    percent_error   REAL NOT NULL,
    threshold_used  REAL NOT NULL,
    passed          INTEGER NOT NULL,
    failure_reason  TEXT,
    category        TEXT,
    PRIMARY KEY (run_id, wallet)
);

CREATE INDEX IF NOT EXISTS idx_runs_at      ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_run  ON wallet_results(run_id);
CREATE INDEX IF NOT EXISTS idx_recon_wallet ON reconciliations(wallet);
CREATE INDEX IF NOT EXISTS idx_recon_passed ON reconciliations(passed);
`

const retentionRuns = 30 * 24 * time.Hour

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia runs antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveRun persiste el resumen del run, los resultados por wallet y los
// records de reconciliación en una transacción.
func (s *SQLiteStorage) SaveRun(ctx context.Context, results []domain.WalletResult, records []domain.ReconciliationRecord) error {
	if len(results) == 0 {
		return nil
	}

	runID := uuid.NewString()
	now := time.Now().UTC()

	passed, failed := 0, 0
	for _, r := range records {
		if r.Passed {
			passed++
		} else {
			failed++
		}
	}
	var totalPnl float64
	for _, r := range results {
		totalPnl += r.TotalPnl
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, wallets, passed, failed, total_pnl) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, now, len(results), passed, failed, domain.Round2(totalPnl),
	); err != nil {
		return fmt.Errorf("storage.SaveRun: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO wallet_results
			(wallet, run_id, realized_pnl, unrealized_pnl, total_pnl,
			 open_positions, closed_positions, diagnostics, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet) DO UPDATE SET
			run_id           = excluded.run_id,
			realized_pnl     = excluded.realized_pnl,
			unrealized_pnl   = excluded.unrealized_pnl,
			total_pnl        = excluded.total_pnl,
			open_positions   = excluded.open_positions,
			closed_positions = excluded.closed_positions,
			diagnostics      = excluded.diagnostics,
			computed_at      = excluded.computed_at
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare results: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.ExecContext(ctx,
			r.Wallet, runID,
			r.RealizedPnl, r.UnrealizedPnl, r.TotalPnl,
			r.OpenPositionCount, r.ClosedPositionCount,
			joinDiagnostics(r.Diagnostics),
			now,
		); err != nil {
			return fmt.Errorf("storage.SaveRun: upsert result %s: %w", r.Wallet, err)
		}
	}

	for _, rec := range records {
		passedInt := 0
		if rec.Passed {
			passedInt = 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reconciliations
				(run_id, wallet, benchmark_value, computed_value, absolute_error,
				 percent_error, threshold_used, passed, failure_reason, category)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, rec.Wallet,
			rec.BenchmarkValue, rec.ComputedValue, rec.AbsoluteError,
			rec.PercentError, rec.ThresholdUsed, passedInt,
			string(rec.FailureReason), string(rec.Category),
		); err != nil {
			return fmt.Errorf("storage.SaveRun: insert reconciliation %s: %w", rec.Wallet, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// GetResult devuelve el último resultado persistido de un wallet, o
// sql.ErrNoRows envuelto si nunca se computó.
func (s *SQLiteStorage) GetResult(ctx context.Context, wallet string) (domain.WalletResult, error) {
	var r domain.WalletResult
	var diags string
	err := s.db.QueryRowContext(ctx, `
		SELECT wallet, realized_pnl, unrealized_pnl, total_pnl,
		       open_positions, closed_positions, COALESCE(diagnostics, '')
		FROM wallet_results WHERE wallet = ?`, wallet,
	).Scan(&r.Wallet, &r.RealizedPnl, &r.UnrealizedPnl, &r.TotalPnl,
		&r.OpenPositionCount, &r.ClosedPositionCount, &diags)
	if err != nil {
		return domain.WalletResult{}, fmt.Errorf("storage.GetResult: %s: %w", wallet, err)
	}
	r.Diagnostics = splitDiagnostics(diags)
	return r, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld elimina runs antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionRuns)
	s.db.ExecContext(ctx, `DELETE FROM reconciliations WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
}

// joinDiagnostics serializa los diagnósticos como líneas "KIND: detail".
func joinDiagnostics(diags []domain.Diagnostic) string {
	if len(diags) == 0 {
		return ""
	}
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = d.String()
	}
	return strings.Join(parts, "\n")
}

// splitDiagnostics es la inversa de joinDiagnostics.
func splitDiagnostics(s string) []domain.Diagnostic {
	if s == "" {
		return nil
	}
	var diags []domain.Diagnostic
	for _, line := range strings.Split(s, "\n") {
		kind, detail, found := strings.Cut(line, ": ")
		if !found {
			continue
		}
		diags = append(diags, domain.Diagnostic{
			Kind:   domain.DiagnosticKind(kind),
			Detail: detail,
		})
	}
	return diags
}
