package domain

import "github.com/shopspring/decimal"

// Trade is the canonical record for one swap, normalized across protocols.
// Amounts are base units (smallest denomination, pre decimal scaling). The
// USD fields are either all set or all absent; a partial valuation is never
// surfaced.
type Trade struct {
	ID       EventID     `json:"id"`
	Protocol DEXProtocol `json:"protocol"`
	AMM      AMMType     `json:"amm"`
	Pool     string      `json:"pool"`

	AssetIn   AssetID `json:"asset_in"`
	AssetOut  AssetID `json:"asset_out"`
	AmountIn  uint64  `json:"amount_in"`
	AmountOut uint64  `json:"amount_out"`

	// Fee is optional: nil means the protocol reported no fee, which is
	// distinct from a zero fee. FeeAsset is set exactly when Fee is.
	Fee      *uint64  `json:"fee,omitempty"`
	FeeAsset *AssetID `json:"fee_asset,omitempty"`

	State     TxState `json:"state"`
	Round     uint64  `json:"round"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds

	USDValue decimal.NullDecimal `json:"usd_value,omitempty"`
	USDFee   decimal.NullDecimal `json:"usd_fee,omitempty"`
	// USDPrice is the USD price of one whole unit of the out asset.
	USDPrice decimal.NullDecimal `json:"usd_price,omitempty"`
}

// Clone returns an independent copy safe to hand to sinks while the tracker
// still owns the in-flight record.
func (t *Trade) Clone() *Trade {
	out := *t
	if t.Fee != nil {
		fee := *t.Fee
		out.Fee = &fee
	}
	if t.FeeAsset != nil {
		feeAsset := *t.FeeAsset
		out.FeeAsset = &feeAsset
	}
	return &out
}

// ClearValuation resets all USD fields to absent.
func (t *Trade) ClearValuation() {
	t.USDValue = decimal.NullDecimal{}
	t.USDFee = decimal.NullDecimal{}
	t.USDPrice = decimal.NullDecimal{}
}
