package valuation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avm-dex-stream/internal/domain"
)

func priced(decimals uint32, price string) domain.Asset {
	return domain.Asset{
		AssetID:  domain.AssetID{Standard: domain.AssetTypeASA, ID: 1},
		Decimals: decimals,
		USDPrice: decimal.NullDecimal{Decimal: decimal.RequireFromString(price), Valid: true},
	}
}

func unpriced(decimals uint32) domain.Asset {
	return domain.Asset{
		AssetID:  domain.AssetID{Standard: domain.AssetTypeASA, ID: 2},
		Decimals: decimals,
	}
}

func TestToDecimalAmount(t *testing.T) {
	t.Run("scales by declared decimals", func(t *testing.T) {
		got := ToDecimalAmount(1_500_000, 6)
		require.True(t, got.Valid)
		assert.True(t, got.Decimal.Equal(decimal.RequireFromString("1.5")))
	})

	t.Run("zero base units is exact zero at any precision", func(t *testing.T) {
		for _, decimals := range []uint32{0, 6, 28, 29, 200} {
			got := ToDecimalAmount(0, decimals)
			require.True(t, got.Valid, "decimals=%d", decimals)
			assert.True(t, got.Decimal.IsZero())
		}
	})

	t.Run("max supported precision", func(t *testing.T) {
		got := ToDecimalAmount(1, domain.MaxDecimals)
		require.True(t, got.Valid)
		assert.True(t, got.Decimal.Equal(decimal.New(1, -28)))
	})

	t.Run("precision beyond 28 is unavailable, not zero", func(t *testing.T) {
		got := ToDecimalAmount(1, domain.MaxDecimals+1)
		assert.False(t, got.Valid)
	})
}

func TestUSDValue(t *testing.T) {
	t.Run("six decimals at two dollars", func(t *testing.T) {
		// 1_500_000 base units of a 6-decimals asset at $2.00 = $3.00.
		got := USDValue(1_500_000, priced(6, "2"))
		require.True(t, got.Valid)
		assert.True(t, got.Decimal.Equal(decimal.RequireFromString("3")))
	})

	t.Run("exact decimal not float", func(t *testing.T) {
		got := USDValue(3, priced(1, "0.1"))
		require.True(t, got.Valid)
		assert.Equal(t, "0.03", got.Decimal.String())
	})

	t.Run("unpriced asset is unavailable", func(t *testing.T) {
		assert.False(t, USDValue(100, unpriced(6)).Valid)
	})

	t.Run("non positive price is unknown", func(t *testing.T) {
		assert.False(t, USDValue(100, priced(6, "0")).Valid)
		assert.False(t, USDValue(100, priced(6, "-1")).Valid)
	})

	t.Run("zero amount values at zero even when unpriced", func(t *testing.T) {
		got := USDValue(0, unpriced(6))
		require.True(t, got.Valid)
		assert.True(t, got.Decimal.IsZero())
	})

	t.Run("excess precision is unavailable", func(t *testing.T) {
		assert.False(t, USDValue(1, priced(29, "1")).Valid)
	})
}

func TestUSDFee(t *testing.T) {
	t.Run("nil fee is unavailable", func(t *testing.T) {
		assert.False(t, USDFee(nil, priced(6, "1")).Valid)
	})

	t.Run("present zero fee is exact zero", func(t *testing.T) {
		fee := uint64(0)
		got := USDFee(&fee, priced(6, "1"))
		require.True(t, got.Valid)
		assert.True(t, got.Decimal.IsZero())
	})

	t.Run("present fee is valued", func(t *testing.T) {
		fee := uint64(2_000_000)
		got := USDFee(&fee, priced(6, "0.5"))
		require.True(t, got.Valid)
		assert.True(t, got.Decimal.Equal(decimal.RequireFromString("1")))
	})
}

func TestUSDUnitPrice(t *testing.T) {
	value := decimal.NullDecimal{Decimal: decimal.RequireFromString("3"), Valid: true}

	t.Run("derives price from trade value", func(t *testing.T) {
		// $3 bought 1.5 units, so one unit is $2.
		got := USDUnitPrice(value, 1_500_000, priced(6, "999"))
		require.True(t, got.Valid)
		assert.True(t, got.Decimal.Equal(decimal.RequireFromString("2")))
	})

	t.Run("unknown value yields no price", func(t *testing.T) {
		assert.False(t, USDUnitPrice(decimal.NullDecimal{}, 100, priced(6, "1")).Valid)
	})

	t.Run("zero out amount yields no price", func(t *testing.T) {
		assert.False(t, USDUnitPrice(value, 0, priced(6, "1")).Valid)
	})

	t.Run("excess out precision yields no price", func(t *testing.T) {
		assert.False(t, USDUnitPrice(value, 100, priced(29, "1")).Valid)
	})
}
