package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxDecimals is the highest decimal precision exact decimal arithmetic
// supports. Assets declaring more are valued as "unavailable".
const MaxDecimals = 28

// AssetID identifies an asset by standard and on-chain id. For ASA the id is
// the asset index; for ARC200 it is the token contract application id.
type AssetID struct {
	Standard AssetType `json:"standard"`
	ID       uint64    `json:"id"`
}

// String returns the canonical "Standard:id" form, e.g. "ASA:31566704".
func (a AssetID) String() string {
	return fmt.Sprintf("%s:%d", a.Standard, a.ID)
}

// Asset is a registry snapshot: decimal precision plus the current USD price.
// An unset or non-positive price means the price is unknown, never zero.
type Asset struct {
	AssetID
	Name     string              `json:"name,omitempty"`
	UnitName string              `json:"unit_name,omitempty"`
	Decimals uint32              `json:"decimals"`
	USDPrice decimal.NullDecimal `json:"usd_price,omitempty"`
}

// Priced reports whether the asset carries a usable positive USD price.
func (a Asset) Priced() bool {
	return a.USDPrice.Valid && a.USDPrice.Decimal.IsPositive()
}
