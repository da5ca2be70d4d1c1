package classify

import (
	"encoding/json"
	"fmt"

	"avm-dex-stream/internal/domain"
)

// Tiny pools report every event as two signed asset deltas from the pool's
// point of view: a swap moves the legs in opposite directions, a liquidity
// event moves both the same way. Assets are always plain ASA ids and the
// swap fee comes out of the paid-in leg.

type tinyPayload struct {
	PoolAddress string  `json:"pool_address"`
	Asset1ID    uint64  `json:"asset_1_id"`
	Asset2ID    uint64  `json:"asset_2_id"`
	Asset1Delta int64   `json:"asset_1_delta"`
	Asset2Delta int64   `json:"asset_2_delta"`
	FeeAmount   *uint64 `json:"fee_amount,omitempty"`
}

// TinyPolicy decodes Tiny constant-product pool events.
type TinyPolicy struct{}

// Classify decodes a Tiny payload into a Trade or Liquidity draft.
func (TinyPolicy) Classify(ev *RawEvent) (*Result, error) {
	var p tinyPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if p.Asset1ID == p.Asset2ID {
		return nil, fmt.Errorf("%w: tiny pool with identical assets", ErrBadPayload)
	}

	asset1 := domain.AssetID{Standard: domain.AssetTypeASA, ID: p.Asset1ID}
	asset2 := domain.AssetID{Standard: domain.AssetTypeASA, ID: p.Asset2ID}

	// Opposite signs mean a swap; the positive leg is what the pool received
	// from the trader.
	if (p.Asset1Delta > 0) != (p.Asset2Delta > 0) && p.Asset1Delta != 0 && p.Asset2Delta != 0 {
		t := tradeEnvelope(ev)
		t.Pool = p.PoolAddress
		if p.Asset1Delta > 0 {
			t.AssetIn, t.AssetOut = asset1, asset2
			t.AmountIn, t.AmountOut = uint64(p.Asset1Delta), uint64(-p.Asset2Delta)
		} else {
			t.AssetIn, t.AssetOut = asset2, asset1
			t.AmountIn, t.AmountOut = uint64(p.Asset2Delta), uint64(-p.Asset1Delta)
		}
		if p.FeeAmount != nil {
			t.Fee = p.FeeAmount
			feeAsset := t.AssetIn
			t.FeeAsset = &feeAsset
		}
		return &Result{Trade: t}, nil
	}

	direction, amountA, amountB, err := directionFromDeltas(p.Asset1Delta, p.Asset2Delta)
	if err != nil {
		return nil, err
	}

	l := liquidityEnvelope(ev)
	l.Pool = p.PoolAddress
	l.Direction = direction
	l.AssetA = asset1
	l.AssetB = asset2
	l.AmountA = amountA
	l.AmountB = amountB
	return &Result{Liquidity: l}, nil
}
