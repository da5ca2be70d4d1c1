// Package valuation converts base-unit integer amounts into decimal asset
// amounts and USD values. All arithmetic is exact decimal; an unavailable
// valuation is a NullDecimal with Valid=false, which is distinct from a
// computed zero and is never an error.
package valuation

import (
	"github.com/shopspring/decimal"

	"avm-dex-stream/internal/domain"
)

// unavailable is the "no value" result.
var unavailable = decimal.NullDecimal{}

// available wraps a computed value.
func available(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// ToDecimalAmount scales a base-unit amount by 10^-decimals. A zero amount is
// exactly zero regardless of decimals; precision beyond domain.MaxDecimals is
// unsupported and yields unavailable.
func ToDecimalAmount(baseUnits uint64, decimals uint32) decimal.NullDecimal {
	if baseUnits == 0 {
		return available(decimal.Zero)
	}
	if decimals > domain.MaxDecimals {
		return unavailable
	}
	return available(decimal.NewFromUint64(baseUnits).Shift(-int32(decimals)))
}

// USDValue values a base-unit amount of an asset. It requires a supported
// decimal precision and a positive USD price, except that a zero amount
// always values at exactly zero.
func USDValue(baseUnits uint64, asset domain.Asset) decimal.NullDecimal {
	if baseUnits == 0 {
		return available(decimal.Zero)
	}
	if !asset.Priced() {
		return unavailable
	}
	amount := ToDecimalAmount(baseUnits, asset.Decimals)
	if !amount.Valid {
		return unavailable
	}
	return available(amount.Decimal.Mul(asset.USDPrice.Decimal))
}

// USDFee values an optional fee amount. A nil fee means no fee was reported
// at all, which is unavailable; a present zero fee values at zero.
func USDFee(fee *uint64, asset domain.Asset) decimal.NullDecimal {
	if fee == nil {
		return unavailable
	}
	return USDValue(*fee, asset)
}

// USDUnitPrice derives the USD price of one whole unit of the out asset from
// a known trade value. It requires a nonzero decimal-scaled out amount to
// guard the division.
func USDUnitPrice(tradeValue decimal.NullDecimal, amountOut uint64, assetOut domain.Asset) decimal.NullDecimal {
	if !tradeValue.Valid || amountOut == 0 {
		return unavailable
	}
	out := ToDecimalAmount(amountOut, assetOut.Decimals)
	if !out.Valid || out.Decimal.IsZero() {
		return unavailable
	}
	return available(tradeValue.Decimal.Div(out.Decimal))
}
