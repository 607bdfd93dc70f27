package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorage_SaveAndGetResult(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	results := []domain.WalletResult{
		{
			Wallet:              "0xw1",
			RealizedPnl:         125.50,
			UnrealizedPnl:       -10.25,
			TotalPnl:            115.25,
			OpenPositionCount:   2,
			ClosedPositionCount: 5,
			Diagnostics: []domain.Diagnostic{
				{Kind: domain.DiagSellOverflow, Detail: "capped 12.50 units"},
			},
		},
		{Wallet: "0xw2", TotalPnl: 0},
	}
	records := []domain.ReconciliationRecord{
		{Wallet: "0xw1", BenchmarkValue: 120.00, ComputedValue: 115.25, AbsoluteError: 4.75, ThresholdUsed: 10, Passed: true},
	}

	require.NoError(t, s.SaveRun(ctx, results, records))

	got, err := s.GetResult(ctx, "0xw1")
	require.NoError(t, err)
	assert.Equal(t, 125.50, got.RealizedPnl)
	assert.Equal(t, -10.25, got.UnrealizedPnl)
	assert.Equal(t, 115.25, got.TotalPnl)
	assert.Equal(t, 2, got.OpenPositionCount)
	assert.Equal(t, 5, got.ClosedPositionCount)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, domain.DiagSellOverflow, got.Diagnostics[0].Kind)
	assert.Equal(t, "capped 12.50 units", got.Diagnostics[0].Detail)
}

func TestSQLiteStorage_GetResult_Missing(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetResult(context.Background(), "0xnobody")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestSQLiteStorage_SaveRun_UpsertsLatestResult(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, []domain.WalletResult{{Wallet: "0xw1", TotalPnl: 10}}, nil))
	require.NoError(t, s.SaveRun(ctx, []domain.WalletResult{{Wallet: "0xw1", TotalPnl: 20}}, nil))

	got, err := s.GetResult(ctx, "0xw1")
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.TotalPnl)

	// Dos runs, una sola fila de resultado
	var runs, rows int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&runs))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM wallet_results`).Scan(&rows))
	assert.Equal(t, 2, runs)
	assert.Equal(t, 1, rows)
}

func TestSQLiteStorage_SaveRun_Empty(t *testing.T) {
	s := newTestStorage(t)
	assert.NoError(t, s.SaveRun(context.Background(), nil, nil))
}

func TestSQLiteStorage_SaveRun_PersistsReconciliations(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	records := []domain.ReconciliationRecord{
		{Wallet: "0xw1", Passed: true},
		{Wallet: "0xw2", Passed: false, FailureReason: domain.FailSignMismatch, Category: domain.OutlierMissingTradeData},
	}
	require.NoError(t, s.SaveRun(ctx, []domain.WalletResult{{Wallet: "0xw1"}, {Wallet: "0xw2"}}, records))

	var passed, failed int
	require.NoError(t, s.db.QueryRow(`SELECT passed, failed FROM runs`).Scan(&passed, &failed))
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, failed)

	var reason, category string
	require.NoError(t, s.db.QueryRow(
		`SELECT failure_reason, category FROM reconciliations WHERE wallet = ?`, "0xw2",
	).Scan(&reason, &category))
	assert.Equal(t, string(domain.FailSignMismatch), reason)
	assert.Equal(t, string(domain.OutlierMissingTradeData), category)
}

func TestJoinSplitDiagnostics(t *testing.T) {
	diags := []domain.Diagnostic{
		{Kind: domain.DiagUnresolvableToken, Detail: "token 123"},
		{Kind: domain.DiagEmptyEventStream, Detail: "no activity"},
	}

	assert.Equal(t, diags, splitDiagnostics(joinDiagnostics(diags)))
	assert.Nil(t, splitDiagnostics(""))
	assert.Empty(t, joinDiagnostics(nil))
}
