package valuation

import (
	"github.com/shopspring/decimal"

	"avm-dex-stream/internal/domain"
	"avm-dex-stream/internal/registry"
)

// Enricher attaches USD fields to canonical records using asset registry
// snapshots. It only reads the registry; enrichment of a record it does not
// own must happen before the record is handed to sinks.
type Enricher struct {
	reg registry.Registry
}

// NewEnricher creates an enricher reading from reg.
func NewEnricher(reg registry.Registry) *Enricher {
	return &Enricher{reg: reg}
}

// EnrichTrade computes the trade's USD fields. The fields are all-or-nothing:
// when any required input is unpriced or of unsupported precision, every USD
// field stays absent. An absent fee does not veto the others, but a present
// fee on an unpriceable fee asset does.
func (e *Enricher) EnrichTrade(t *domain.Trade) {
	t.ClearValuation()

	assetIn, okIn := e.reg.Lookup(t.AssetIn)
	assetOut, okOut := e.reg.Lookup(t.AssetOut)
	if !okIn || !okOut {
		return
	}

	value := USDValue(t.AmountIn, assetIn)
	price := USDUnitPrice(value, t.AmountOut, assetOut)
	if !value.Valid || !price.Valid {
		return
	}

	fee := decimal.NullDecimal{}
	if t.Fee != nil {
		if t.FeeAsset == nil {
			return
		}
		feeAsset, ok := e.reg.Lookup(*t.FeeAsset)
		if !ok {
			return
		}
		fee = USDFee(t.Fee, feeAsset)
		if !fee.Valid {
			return
		}
	}

	t.USDValue = value
	t.USDPrice = price
	t.USDFee = fee
}

// EnrichLiquidity computes the combined USD value of both legs, absent when
// either side cannot be valued.
func (e *Enricher) EnrichLiquidity(l *domain.Liquidity) {
	l.USDValue = decimal.NullDecimal{}

	assetA, okA := e.reg.Lookup(l.AssetA)
	assetB, okB := e.reg.Lookup(l.AssetB)
	if !okA || !okB {
		return
	}

	valueA := USDValue(l.AmountA, assetA)
	valueB := USDValue(l.AmountB, assetB)
	if !valueA.Valid || !valueB.Valid {
		return
	}

	l.USDValue = available(valueA.Decimal.Add(valueB.Decimal))
}
