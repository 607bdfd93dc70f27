package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

// fakeBenchmark sirve valores de benchmark en memoria.
type fakeBenchmark struct {
	values map[string]float64
	fail   map[string]bool
}

func (f *fakeBenchmark) FetchBenchmark(_ context.Context, wallet string) (float64, error) {
	if f.fail[wallet] {
		return 0, errors.New("benchmark unavailable")
	}
	return f.values[wallet], nil
}

func result(wallet string, totalPnl float64) domain.WalletResult {
	return domain.WalletResult{Wallet: wallet, TotalPnl: totalPnl}
}

func TestValidator_Validate_PassWithinThreshold(t *testing.T) {
	v := New(domain.DefaultThresholdPolicy(), nil)

	rec := v.Validate(result("0xw1", 495.00), 500.00)

	assert.True(t, rec.Passed)
	assert.Empty(t, rec.FailureReason)
	assert.Empty(t, rec.Category)
}

func TestValidator_Validate_FailGetsCategory(t *testing.T) {
	v := New(domain.DefaultThresholdPolicy(), nil)

	res := result("0xw1", 100.00)
	res.SellOverflowQty = 25

	rec := v.Validate(res, 150.00)

	require.False(t, rec.Passed)
	assert.Equal(t, domain.FailAbsThreshold, rec.FailureReason)
	assert.Equal(t, domain.OutlierMissingTradeData, rec.Category)
}

func TestValidator_Validate_SignMismatch(t *testing.T) {
	v := New(domain.DefaultThresholdPolicy(), nil)

	rec := v.Validate(result("0xw1", -50.00), 50.00)

	require.False(t, rec.Passed)
	assert.Equal(t, domain.FailSignMismatch, rec.FailureReason)
}

func TestValidator_ValidateBatch(t *testing.T) {
	bench := &fakeBenchmark{values: map[string]float64{
		"0xw1": 500.00,
		"0xw2": 0.00,
	}}
	v := New(domain.DefaultThresholdPolicy(), bench)

	records, err := v.ValidateBatch(context.Background(), []domain.WalletResult{
		result("0xw1", 490.00),
		result("0xw2", 3.00),
	})

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].Passed)
	assert.True(t, records[1].Passed) // near-zero exemption
}

func TestValidator_ValidateBatch_SkipsFailedFetch(t *testing.T) {
	bench := &fakeBenchmark{
		values: map[string]float64{"0xw2": 100.00},
		fail:   map[string]bool{"0xw1": true},
	}
	v := New(domain.DefaultThresholdPolicy(), bench)

	records, err := v.ValidateBatch(context.Background(), []domain.WalletResult{
		result("0xw1", 100.00),
		result("0xw2", 98.00),
	})

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0xw2", records[0].Wallet)
}

func TestValidator_ValidateBatch_CancelledContext(t *testing.T) {
	v := New(domain.DefaultThresholdPolicy(), &fakeBenchmark{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.ValidateBatch(ctx, []domain.WalletResult{result("0xw1", 0)})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		result domain.WalletResult
		want   domain.OutlierCategory
	}{
		{
			name:   "sell overflow wins over everything",
			result: domain.WalletResult{SellOverflowQty: 10, RedemptionEvents: 5, LargeOpenCount: 1},
			want:   domain.OutlierMissingTradeData,
		},
		{
			name:   "redemptions without trades",
			result: domain.WalletResult{RedemptionEvents: 3},
			want:   domain.OutlierProxyAttribution,
		},
		{
			name:   "redemptions dominate trades",
			result: domain.WalletResult{RedemptionEvents: 5, TradeEvents: 8},
			want:   domain.OutlierProxyAttribution,
		},
		{
			name:   "redemptions minority falls through",
			result: domain.WalletResult{RedemptionEvents: 1, TradeEvents: 10, OpenPositionCount: 2},
			want:   domain.OutlierValuationEdge,
		},
		{
			name:   "large open positions",
			result: domain.WalletResult{OpenPositionCount: 3, LargeOpenCount: 1},
			want:   domain.OutlierOpenPositionDrift,
		},
		{
			name:   "small open positions",
			result: domain.WalletResult{OpenPositionCount: 1},
			want:   domain.OutlierValuationEdge,
		},
		{
			name:   "nothing matches",
			result: domain.WalletResult{TradeEvents: 4},
			want:   domain.OutlierUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.result))
		})
	}
}
