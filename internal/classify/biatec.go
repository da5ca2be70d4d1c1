package classify

import (
	"encoding/json"
	"fmt"

	"avm-dex-stream/internal/domain"
)

// Biatec concentrated-liquidity pools emit one event per inner application
// call. Swaps carry signed amounts from the trader's perspective (positive =
// paid in, negative = received) and may denominate the fee in either asset;
// liquidity changes are tagged with an explicit operation.

type biatecPayload struct {
	Kind     string          `json:"kind"`
	PoolApp  uint64          `json:"pool_app"`
	AssetA   *domain.AssetID `json:"asset_a"`
	AssetB   *domain.AssetID `json:"asset_b"`
	AmountA  int64           `json:"amount_a"`
	AmountB  int64           `json:"amount_b"`
	Fee      *uint64         `json:"fee,omitempty"`
	FeeAsset *domain.AssetID `json:"fee_asset,omitempty"`
	Op       string          `json:"op,omitempty"` // "deposit" | "withdraw" for liquidity events
}

// BiatecCLPolicy decodes Biatec concentrated-liquidity pool events.
type BiatecCLPolicy struct{}

// Classify decodes a Biatec payload into a Trade or Liquidity draft.
func (BiatecCLPolicy) Classify(ev *RawEvent) (*Result, error) {
	var p biatecPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if p.AssetA == nil || p.AssetB == nil {
		return nil, fmt.Errorf("%w: biatec event missing asset pair", ErrBadPayload)
	}
	pool := fmt.Sprintf("app:%d", p.PoolApp)

	switch p.Kind {
	case "swap":
		if p.AmountA == 0 || p.AmountB == 0 || (p.AmountA > 0) == (p.AmountB > 0) {
			return nil, fmt.Errorf("%w: biatec swap amounts must have opposite signs", ErrBadPayload)
		}

		t := tradeEnvelope(ev)
		t.Pool = pool
		if p.AmountA > 0 {
			t.AssetIn, t.AssetOut = *p.AssetA, *p.AssetB
			t.AmountIn, t.AmountOut = uint64(p.AmountA), uint64(-p.AmountB)
		} else {
			t.AssetIn, t.AssetOut = *p.AssetB, *p.AssetA
			t.AmountIn, t.AmountOut = uint64(p.AmountB), uint64(-p.AmountA)
		}
		if p.Fee != nil {
			t.Fee = p.Fee
			feeAsset := t.AssetIn
			t.FeeAsset = &feeAsset
			if p.FeeAsset != nil {
				t.FeeAsset = p.FeeAsset
			}
		}
		return &Result{Trade: t}, nil

	case "liquidity":
		var direction domain.LiquidityDirection
		switch p.Op {
		case "deposit":
			direction = domain.DirectionDeposit
		case "withdraw":
			direction = domain.DirectionWithdraw
		default:
			return nil, fmt.Errorf("%w: unknown biatec liquidity op %q", ErrBadPayload, p.Op)
		}
		if p.AmountA < 0 || p.AmountB < 0 {
			return nil, fmt.Errorf("%w: biatec liquidity amounts must be unsigned", ErrBadPayload)
		}

		l := liquidityEnvelope(ev)
		l.Pool = pool
		l.Direction = direction
		l.AssetA = *p.AssetA
		l.AssetB = *p.AssetB
		l.AmountA = uint64(p.AmountA)
		l.AmountB = uint64(p.AmountB)
		return &Result{Liquidity: l}, nil

	default:
		return nil, fmt.Errorf("%w: unknown biatec event kind %q", ErrBadPayload, p.Kind)
	}
}
