package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

func TestConsole_ReportResults_Compact(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, false)

	err := c.ReportResults(context.Background(), []domain.WalletResult{
		{Wallet: "0xw1", RealizedPnl: 100.00, UnrealizedPnl: 5.50, OpenPositionCount: 2},
		{Wallet: "0xw2", RealizedPnl: -30.00, Diagnostics: []domain.Diagnostic{
			{Kind: domain.DiagSellOverflow, Detail: "capped"},
		}},
	})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "2 wallets")
	assert.Contains(t, out, "realized $70.00")
	assert.Contains(t, out, "unrealized $5.50")
	assert.Contains(t, out, "open pos 2")
	assert.Contains(t, out, "w/diags 1")
}

func TestConsole_ReportResults_Table(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, true)

	err := c.ReportResults(context.Background(), []domain.WalletResult{
		{Wallet: "0x1234567890abcdef", TotalPnl: 42.00, ClosedPositionCount: 3},
	})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "1 wallets computed")
	assert.Contains(t, out, "$42.00")
	// Direcciones largas se acortan
	assert.Contains(t, out, "0x123456789...")
	assert.NotContains(t, out, "0x1234567890abcdef")
}

func TestConsole_ReportResults_Empty(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, true)

	require.NoError(t, c.ReportResults(context.Background(), nil))
	assert.Contains(t, buf.String(), "no wallet results")
}

func TestConsole_ReportReconciliation(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, true)

	err := c.ReportReconciliation(context.Background(), []domain.ReconciliationRecord{
		{Wallet: "0xw1", BenchmarkValue: 500.00, ComputedValue: 495.00, Passed: true},
		{Wallet: "0xw2", BenchmarkValue: 100.00, ComputedValue: -50.00,
			FailureReason: domain.FailSignMismatch, Category: domain.OutlierMissingTradeData},
		{Wallet: "0xw3", BenchmarkValue: 80.00, ComputedValue: 40.00,
			FailureReason: domain.FailAbsThreshold, Category: domain.OutlierMissingTradeData},
	})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "pass:1 fail:2")
	assert.Contains(t, out, "FAIL:sign_mismatch")
	assert.Contains(t, out, "outlier taxonomy:")
	assert.Contains(t, out, "missing-trade-data:2")
}

func TestConsole_ReportReconciliation_AllPass(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, false)

	err := c.ReportReconciliation(context.Background(), []domain.ReconciliationRecord{
		{Wallet: "0xw1", Passed: true},
	})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "pass:1 fail:0")
	assert.NotContains(t, out, "outlier taxonomy")
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "short", shorten("short", 14))
	assert.Equal(t, "0x123456789...", shorten("0x1234567890abcdef", 14))
	assert.Len(t, shorten("0x1234567890abcdef", 14), 14)
}
