// Package dispatch delivers finished records to registered sinks with
// cooperative cancellation and bounded retry for confirmed records.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"avm-dex-stream/internal/domain"
)

// Outcome of one dispatch call.
type Outcome string

const (
	// OutcomeDelivered means the sink accepted the record.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeCancelled means the cancellation signal fired before or during
	// delivery; no partial side effects, distinct from failure.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeFailed means delivery kept failing after all attempts.
	OutcomeFailed Outcome = "failed"
)

// TradeSink receives finished Trade records.
type TradeSink interface {
	Register(ctx context.Context, t *domain.Trade) error
}

// LiquiditySink receives finished Liquidity records.
type LiquiditySink interface {
	Register(ctx context.Context, l *domain.Liquidity) error
}

// Config for the dispatcher.
type Config struct {
	// MaxAttempts bounds delivery attempts for Confirmed records. Pending
	// records always get a single best-effort attempt. Defaults to 5.
	MaxAttempts int
	// RetryBackoff is the initial backoff between attempts, doubled per
	// retry up to MaxBackoff. Defaults to 200ms / 5s.
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
	// MaxInFlight bounds concurrent async dispatches. Defaults to 256.
	MaxInFlight int
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 256
	}
}

// Dispatcher fans finished records out to the trade and liquidity sinks.
// Each record is delivered on its own goroutine so a slow sink never blocks
// unrelated events.
type Dispatcher struct {
	cfg       Config
	trades    TradeSink
	liquidity LiquiditySink
	sem       chan struct{}
	wg        sync.WaitGroup
	log       zerolog.Logger

	// OnOutcome is called after every delivery attempt sequence; used for
	// metrics. May be nil.
	OnOutcome func(record string, outcome Outcome)
	// OnLatency reports the wall time of each async delivery. May be nil.
	OnLatency func(record string, elapsed time.Duration)
}

// New creates a dispatcher for the given sinks.
func New(cfg Config, trades TradeSink, liquidity LiquiditySink, log zerolog.Logger) *Dispatcher {
	cfg.applyDefaults()
	return &Dispatcher{
		cfg:       cfg,
		trades:    trades,
		liquidity: liquidity,
		sem:       make(chan struct{}, cfg.MaxInFlight),
		log:       log.With().Str("component", "dispatcher").Logger(),
	}
}

// DispatchTrade delivers one trade synchronously and reports the outcome.
func (d *Dispatcher) DispatchTrade(ctx context.Context, t *domain.Trade) Outcome {
	return d.deliver(ctx, t.State, func(ctx context.Context) error {
		return d.trades.Register(ctx, t)
	})
}

// DispatchLiquidity delivers one liquidity record synchronously.
func (d *Dispatcher) DispatchLiquidity(ctx context.Context, l *domain.Liquidity) Outcome {
	return d.deliver(ctx, l.State, func(ctx context.Context) error {
		return d.liquidity.Register(ctx, l)
	})
}

// DispatchTradeAsync delivers on a bounded background goroutine. The caller
// keeps processing unrelated events while a slow sink works.
func (d *Dispatcher) DispatchTradeAsync(ctx context.Context, t *domain.Trade) {
	d.async(ctx, t.ID.Key(), "trade", func(ctx context.Context) Outcome {
		return d.DispatchTrade(ctx, t)
	})
}

// DispatchLiquidityAsync delivers on a bounded background goroutine.
func (d *Dispatcher) DispatchLiquidityAsync(ctx context.Context, l *domain.Liquidity) {
	d.async(ctx, l.ID.Key(), "liquidity", func(ctx context.Context) Outcome {
		return d.DispatchLiquidity(ctx, l)
	})
}

// Wait blocks until all async dispatches have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) async(ctx context.Context, key, kind string, fn func(ctx context.Context) Outcome) {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		d.report(kind, OutcomeCancelled)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()

		start := time.Now()
		outcome := fn(ctx)
		if d.OnLatency != nil {
			d.OnLatency(kind, time.Since(start))
		}
		d.report(kind, outcome)
		switch outcome {
		case OutcomeFailed:
			d.log.Error().Str("event", key).Str("record", kind).Msg("dispatch failed after retries")
		case OutcomeCancelled:
			d.log.Debug().Str("event", key).Str("record", kind).Msg("dispatch cancelled")
		}
	}()
}

func (d *Dispatcher) report(record string, outcome Outcome) {
	if d.OnOutcome != nil {
		d.OnOutcome(record, outcome)
	}
}

// deliver runs the attempt loop. Confirmed records are retried with
// exponential backoff because final data must not be silently dropped;
// provisional records are best-effort since the confirmed update supersedes
// them.
func (d *Dispatcher) deliver(ctx context.Context, state domain.TxState, register func(ctx context.Context) error) Outcome {
	if ctx.Err() != nil {
		return OutcomeCancelled
	}

	attempts := 1
	if state == domain.TxStateConfirmed {
		attempts = d.cfg.MaxAttempts
	}

	backoff := d.cfg.RetryBackoff
	for i := 0; i < attempts; i++ {
		err := register(ctx)
		if err == nil {
			return OutcomeDelivered
		}
		if cancelled(ctx, err) {
			return OutcomeCancelled
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return OutcomeCancelled
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > d.cfg.MaxBackoff {
			backoff = d.cfg.MaxBackoff
		}
	}

	return OutcomeFailed
}

func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
