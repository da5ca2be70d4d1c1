// Package classify maps protocol-specific raw events onto the canonical
// Trade/Liquidity schema. Classification is pure: policies hold no state and
// never perform I/O, so they can run concurrently and be tested directly
// against payload fixtures.
package classify

import (
	"errors"
	"fmt"

	"avm-dex-stream/internal/domain"
)

// Classification errors. Both mean "skip this event", never "stop the stream".
var (
	// ErrNoPolicy is returned for a (protocol, AMM type) pair with no
	// registered decoding policy.
	ErrNoPolicy = errors.New("no classification policy for event")

	// ErrBadPayload is returned when a payload does not decode under the
	// selected policy's rules.
	ErrBadPayload = errors.New("malformed event payload")
)

// Result is a draft record produced by classification: exactly one of Trade
// or Liquidity is set. Valuation fields are left absent; the valuation engine
// fills them after state resolution.
type Result struct {
	Trade     *domain.Trade
	Liquidity *domain.Liquidity
}

// ID returns the event identity of the underlying draft.
func (r *Result) ID() domain.EventID {
	if r.Trade != nil {
		return r.Trade.ID
	}
	return r.Liquidity.ID
}

// State returns the confirmation state tag of the underlying draft.
func (r *Result) State() domain.TxState {
	if r.Trade != nil {
		return r.Trade.State
	}
	return r.Liquidity.State
}

// IsTrade reports whether the draft is a Trade.
func (r *Result) IsTrade() bool { return r.Trade != nil }

// PolicyKey selects the decoding policy for an event.
type PolicyKey struct {
	Protocol domain.DEXProtocol
	AMM      domain.AMMType
}

// Policy decodes one protocol/AMM payload shape into a draft record.
// Implementations must be pure.
type Policy interface {
	Classify(ev *RawEvent) (*Result, error)
}

// Classifier routes raw events to the policy registered for their
// (protocol, AMM type) pair. Adding a protocol means registering one policy.
type Classifier struct {
	policies map[PolicyKey]Policy
}

// NewClassifier creates a classifier with all default policies registered.
func NewClassifier() *Classifier {
	c := &Classifier{policies: make(map[PolicyKey]Policy)}

	c.Register(PolicyKey{domain.ProtocolPact, domain.AMMTypeOldAMM}, PactOldAMMPolicy{})
	c.Register(PolicyKey{domain.ProtocolPact, domain.AMMTypeStableSwap}, PactStableSwapPolicy{})
	c.Register(PolicyKey{domain.ProtocolTiny, domain.AMMTypeOldAMM}, TinyPolicy{})
	c.Register(PolicyKey{domain.ProtocolBiatec, domain.AMMTypeConcentratedLiquidityAMM}, BiatecCLPolicy{})

	return c
}

// Register adds or replaces the policy for a key.
func (c *Classifier) Register(key PolicyKey, p Policy) {
	c.policies[key] = p
}

// Classify decodes a raw event into a draft record. It validates the shared
// envelope, then delegates the payload to the matching policy.
func (c *Classifier) Classify(ev *RawEvent) (*Result, error) {
	if ev == nil {
		return nil, fmt.Errorf("%w: nil event", ErrBadPayload)
	}
	if _, err := domain.ParseDEXProtocol(string(ev.Protocol)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPolicy, err)
	}
	if _, err := domain.ParseAMMType(string(ev.AMM)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPolicy, err)
	}
	if _, err := domain.ParseTxState(string(ev.State)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if ev.ID.TxID == "" {
		return nil, fmt.Errorf("%w: missing transaction id", ErrBadPayload)
	}

	policy, ok := c.policies[PolicyKey{Protocol: ev.Protocol, AMM: ev.AMM}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoPolicy, ev.Protocol, ev.AMM)
	}

	return policy.Classify(ev)
}

// tradeEnvelope copies the shared envelope fields into a Trade draft.
func tradeEnvelope(ev *RawEvent) *domain.Trade {
	return &domain.Trade{
		ID:        ev.ID,
		Protocol:  ev.Protocol,
		AMM:       ev.AMM,
		State:     ev.State,
		Round:     ev.Round,
		Timestamp: ev.Timestamp,
	}
}

// liquidityEnvelope copies the shared envelope fields into a Liquidity draft.
func liquidityEnvelope(ev *RawEvent) *domain.Liquidity {
	return &domain.Liquidity{
		ID:        ev.ID,
		Protocol:  ev.Protocol,
		AMM:       ev.AMM,
		State:     ev.State,
		Round:     ev.Round,
		Timestamp: ev.Timestamp,
	}
}
