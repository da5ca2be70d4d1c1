package domain

import "github.com/shopspring/decimal"

// Liquidity is the canonical record for one pool deposit or withdrawal.
// Amounts are base units of the two pooled assets.
type Liquidity struct {
	ID        EventID            `json:"id"`
	Protocol  DEXProtocol        `json:"protocol"`
	AMM       AMMType            `json:"amm"`
	Pool      string             `json:"pool"`
	Direction LiquidityDirection `json:"direction"`

	AssetA  AssetID `json:"asset_a"`
	AssetB  AssetID `json:"asset_b"`
	AmountA uint64  `json:"amount_a"`
	AmountB uint64  `json:"amount_b"`

	State     TxState `json:"state"`
	Round     uint64  `json:"round"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds

	// USDValue is the combined USD value of both legs, absent when either
	// side cannot be valued.
	USDValue decimal.NullDecimal `json:"usd_value,omitempty"`
}

// Clone returns an independent copy safe to hand to sinks.
func (l *Liquidity) Clone() *Liquidity {
	out := *l
	return &out
}
