package classify

import (
	"encoding/json"
	"fmt"

	"avm-dex-stream/internal/domain"
)

// Pact constant-product pools report swaps with explicit in/out assets and a
// fee denominated in the in asset. Liquidity events carry signed reserve
// deltas for both legs.

type pactSwapPayload struct {
	Kind     string          `json:"kind"`
	Pool     string          `json:"pool"`
	AssetIn  *domain.AssetID `json:"asset_in"`
	AssetOut *domain.AssetID `json:"asset_out"`
	AmountIn uint64          `json:"amount_in"`
	AmountOut uint64         `json:"amount_out"`
	Fee      *uint64         `json:"fee,omitempty"`
	FeeAsset *domain.AssetID `json:"fee_asset,omitempty"`
}

type pactLiquidityPayload struct {
	Kind   string          `json:"kind"`
	Pool   string          `json:"pool"`
	AssetA *domain.AssetID `json:"asset_a"`
	AssetB *domain.AssetID `json:"asset_b"`
	DeltaA int64           `json:"delta_a"`
	DeltaB int64           `json:"delta_b"`
}

// PactOldAMMPolicy decodes Pact constant-product pool events.
type PactOldAMMPolicy struct{}

// Classify decodes a Pact OldAMM payload into a Trade or Liquidity draft.
func (PactOldAMMPolicy) Classify(ev *RawEvent) (*Result, error) {
	kind, err := payloadKind(ev.Payload)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "swap":
		var p pactSwapPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		if p.AssetIn == nil || p.AssetOut == nil {
			return nil, fmt.Errorf("%w: pact swap missing asset pair", ErrBadPayload)
		}
		if *p.AssetIn == *p.AssetOut {
			return nil, fmt.Errorf("%w: pact swap with identical assets", ErrBadPayload)
		}

		t := tradeEnvelope(ev)
		t.Pool = p.Pool
		t.AssetIn = *p.AssetIn
		t.AssetOut = *p.AssetOut
		t.AmountIn = p.AmountIn
		t.AmountOut = p.AmountOut
		if p.Fee != nil {
			t.Fee = p.Fee
			// Pact charges the fee in the in asset unless stated otherwise.
			t.FeeAsset = p.AssetIn
			if p.FeeAsset != nil {
				t.FeeAsset = p.FeeAsset
			}
		}
		return &Result{Trade: t}, nil

	case "liquidity":
		var p pactLiquidityPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		if p.AssetA == nil || p.AssetB == nil {
			return nil, fmt.Errorf("%w: pact liquidity missing asset pair", ErrBadPayload)
		}

		direction, amountA, amountB, err := directionFromDeltas(p.DeltaA, p.DeltaB)
		if err != nil {
			return nil, err
		}

		l := liquidityEnvelope(ev)
		l.Pool = p.Pool
		l.Direction = direction
		l.AssetA = *p.AssetA
		l.AssetB = *p.AssetB
		l.AmountA = amountA
		l.AmountB = amountB
		return &Result{Liquidity: l}, nil

	default:
		return nil, fmt.Errorf("%w: unknown pact event kind %q", ErrBadPayload, kind)
	}
}

// pactStableSwapPayload reports pool reserve deltas per asset index: the
// positive delta is what the trader paid in, the negative delta what the
// trader took out. Liquidity events move all reserves in the same direction.
type pactStableSwapPayload struct {
	Kind   string           `json:"kind"`
	Pool   string           `json:"pool"`
	Assets []domain.AssetID `json:"assets"`
	Deltas []int64          `json:"deltas"`
	Fee    *uint64          `json:"fee,omitempty"`
}

// PactStableSwapPolicy decodes Pact stable-swap pool events.
type PactStableSwapPolicy struct{}

// Classify decodes a Pact StableSwap payload into a Trade or Liquidity draft.
func (PactStableSwapPolicy) Classify(ev *RawEvent) (*Result, error) {
	var p pactStableSwapPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if len(p.Assets) < 2 || len(p.Assets) != len(p.Deltas) {
		return nil, fmt.Errorf("%w: stable-swap assets/deltas mismatch", ErrBadPayload)
	}

	switch p.Kind {
	case "swap":
		inIdx, outIdx := -1, -1
		for i, d := range p.Deltas {
			switch {
			case d > 0 && inIdx < 0:
				inIdx = i
			case d < 0 && outIdx < 0:
				outIdx = i
			case d != 0:
				return nil, fmt.Errorf("%w: stable-swap with more than two moving assets", ErrBadPayload)
			}
		}
		if inIdx < 0 || outIdx < 0 {
			return nil, fmt.Errorf("%w: stable-swap without an in/out pair", ErrBadPayload)
		}

		t := tradeEnvelope(ev)
		t.Pool = p.Pool
		t.AssetIn = p.Assets[inIdx]
		t.AssetOut = p.Assets[outIdx]
		t.AmountIn = uint64(p.Deltas[inIdx])
		t.AmountOut = uint64(-p.Deltas[outIdx])
		if p.Fee != nil {
			t.Fee = p.Fee
			feeAsset := p.Assets[inIdx]
			t.FeeAsset = &feeAsset
		}
		return &Result{Trade: t}, nil

	case "liquidity":
		// Stable-swap pools may hold more than two assets; the canonical
		// record keeps the first two legs, which covers every deployed pool.
		direction, amountA, amountB, err := directionFromDeltas(p.Deltas[0], p.Deltas[1])
		if err != nil {
			return nil, err
		}

		l := liquidityEnvelope(ev)
		l.Pool = p.Pool
		l.Direction = direction
		l.AssetA = p.Assets[0]
		l.AssetB = p.Assets[1]
		l.AmountA = amountA
		l.AmountB = amountB
		return &Result{Liquidity: l}, nil

	default:
		return nil, fmt.Errorf("%w: unknown stable-swap event kind %q", ErrBadPayload, p.Kind)
	}
}

// payloadKind peeks at the "kind" discriminator without committing to a
// payload shape.
func payloadKind(raw json.RawMessage) (string, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return probe.Kind, nil
}

// directionFromDeltas maps two same-signed reserve deltas onto a liquidity
// direction and unsigned amounts. Opposite signs cannot be a liquidity event.
func directionFromDeltas(deltaA, deltaB int64) (domain.LiquidityDirection, uint64, uint64, error) {
	switch {
	case deltaA >= 0 && deltaB >= 0:
		return domain.DirectionDeposit, uint64(deltaA), uint64(deltaB), nil
	case deltaA <= 0 && deltaB <= 0:
		return domain.DirectionWithdraw, uint64(-deltaA), uint64(-deltaB), nil
	default:
		return "", 0, 0, fmt.Errorf("%w: liquidity deltas with opposite signs", ErrBadPayload)
	}
}
