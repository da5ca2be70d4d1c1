package valuation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avm-dex-stream/internal/domain"
	"avm-dex-stream/internal/registry"
)

var (
	usdcID = domain.AssetID{Standard: domain.AssetTypeASA, ID: 10}
	algoID = domain.AssetID{Standard: domain.AssetTypeASA, ID: 0}
	darkID = domain.AssetID{Standard: domain.AssetTypeARC200, ID: 99}
)

func testRegistry() *registry.Memory {
	reg := registry.NewMemory()
	reg.Upsert(domain.Asset{
		AssetID:  usdcID,
		Decimals: 6,
		USDPrice: decimal.NullDecimal{Decimal: decimal.RequireFromString("1"), Valid: true},
	})
	reg.Upsert(domain.Asset{
		AssetID:  algoID,
		Decimals: 6,
		USDPrice: decimal.NullDecimal{Decimal: decimal.RequireFromString("0.25"), Valid: true},
	})
	// Known asset without a price.
	reg.Upsert(domain.Asset{AssetID: darkID, Decimals: 18})
	return reg
}

func swap(amountIn, amountOut uint64) *domain.Trade {
	return &domain.Trade{
		ID:        domain.EventID{TxID: "TX1", Index: 0},
		Protocol:  domain.ProtocolPact,
		AMM:       domain.AMMTypeOldAMM,
		AssetIn:   usdcID,
		AssetOut:  algoID,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		State:     domain.TxStateConfirmed,
	}
}

func TestEnrichTrade(t *testing.T) {
	e := NewEnricher(testRegistry())

	t.Run("full valuation", func(t *testing.T) {
		// $3 of USDC buys 12 ALGO, so the unit price is $0.25.
		tr := swap(3_000_000, 12_000_000)
		fee := uint64(3_000)
		tr.Fee = &fee
		tr.FeeAsset = &usdcID

		e.EnrichTrade(tr)

		require.True(t, tr.USDValue.Valid)
		assert.True(t, tr.USDValue.Decimal.Equal(decimal.RequireFromString("3")))
		require.True(t, tr.USDPrice.Valid)
		assert.True(t, tr.USDPrice.Decimal.Equal(decimal.RequireFromString("0.25")))
		require.True(t, tr.USDFee.Valid)
		assert.True(t, tr.USDFee.Decimal.Equal(decimal.RequireFromString("0.003")))
	})

	t.Run("absent fee does not veto value and price", func(t *testing.T) {
		tr := swap(1_000_000, 4_000_000)
		e.EnrichTrade(tr)

		assert.True(t, tr.USDValue.Valid)
		assert.True(t, tr.USDPrice.Valid)
		assert.False(t, tr.USDFee.Valid, "no reported fee stays absent")
	})

	t.Run("unpriceable fee vetoes everything", func(t *testing.T) {
		tr := swap(1_000_000, 4_000_000)
		fee := uint64(5)
		tr.Fee = &fee
		tr.FeeAsset = &darkID

		e.EnrichTrade(tr)

		assert.False(t, tr.USDValue.Valid, "USD fields are all-or-nothing")
		assert.False(t, tr.USDPrice.Valid)
		assert.False(t, tr.USDFee.Valid)
	})

	t.Run("unknown in-asset leaves everything absent", func(t *testing.T) {
		tr := swap(1_000_000, 4_000_000)
		tr.AssetIn = domain.AssetID{Standard: domain.AssetTypeASA, ID: 424242}

		e.EnrichTrade(tr)

		assert.False(t, tr.USDValue.Valid)
		assert.False(t, tr.USDPrice.Valid)
		assert.False(t, tr.USDFee.Valid)
	})

	t.Run("re-enrichment clears stale values", func(t *testing.T) {
		tr := swap(1_000_000, 4_000_000)
		tr.USDValue = decimal.NullDecimal{Decimal: decimal.RequireFromString("1234"), Valid: true}
		tr.AssetOut = domain.AssetID{Standard: domain.AssetTypeASA, ID: 404}

		e.EnrichTrade(tr)

		assert.False(t, tr.USDValue.Valid, "stale valuation must not survive")
	})
}

func TestEnrichLiquidity(t *testing.T) {
	e := NewEnricher(testRegistry())

	base := func() *domain.Liquidity {
		return &domain.Liquidity{
			ID:        domain.EventID{TxID: "TX2", Index: 1},
			Protocol:  domain.ProtocolTiny,
			AMM:       domain.AMMTypeOldAMM,
			Direction: domain.DirectionDeposit,
			AssetA:    usdcID,
			AssetB:    algoID,
			AmountA:   2_000_000,
			AmountB:   8_000_000,
			State:     domain.TxStateConfirmed,
		}
	}

	t.Run("sums both legs", func(t *testing.T) {
		l := base()
		e.EnrichLiquidity(l)

		require.True(t, l.USDValue.Valid)
		// $2 USDC + 8 ALGO at $0.25 = $4.
		assert.True(t, l.USDValue.Decimal.Equal(decimal.RequireFromString("4")))
	})

	t.Run("one unpriceable leg makes the whole value absent", func(t *testing.T) {
		l := base()
		l.AssetB = darkID
		l.AmountB = 1

		e.EnrichLiquidity(l)
		assert.False(t, l.USDValue.Valid)
	})

	t.Run("zero amount legs still value", func(t *testing.T) {
		l := base()
		l.AmountA = 0
		l.AmountB = 0

		e.EnrichLiquidity(l)
		require.True(t, l.USDValue.Valid)
		assert.True(t, l.USDValue.Decimal.IsZero())
	})
}
