// Package tracker owns the confirmation lifecycle of in-flight events. Each
// event identity moves Pending → Confirmed, or is evicted when it never
// confirms. The tracker is the only component with mutable shared state; all
// transitions for one identity are serialized, identities in different
// shards proceed concurrently.
package tracker

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"avm-dex-stream/internal/classify"
	"avm-dex-stream/internal/dedupe"
	"avm-dex-stream/internal/domain"
)

// Action tells the pipeline what to do with an observation.
type Action string

const (
	// ActionEmitPending dispatches a new provisional record.
	ActionEmitPending Action = "emit_pending"
	// ActionEmitConfirmed dispatches the finalized record.
	ActionEmitConfirmed Action = "emit_confirmed"
	// ActionDuplicate drops a redundant observation; log only.
	ActionDuplicate Action = "duplicate"
	// ActionSuppressed drops a confirmed record that failed data-quality
	// checks; a diagnostic is logged instead of forwarding garbage.
	ActionSuppressed Action = "suppressed"
)

// Resolution is the outcome of one observation. Trade/Liquidity are
// independent copies the caller may enrich and dispatch; the tracker keeps
// ownership of its internal record.
type Resolution struct {
	Action    Action
	Trade     *domain.Trade
	Liquidity *domain.Liquidity
}

type state uint8

const (
	statePending state = iota
	stateConfirmed
)

type record struct {
	state     state
	trade     *domain.Trade
	liquidity *domain.Liquidity
	seenAt    time.Time
	doneAt    time.Time // terminal transition time, drives tombstone expiry
}

type shard struct {
	mu      sync.Mutex
	records map[string]*record
}

// Config for the tracker.
type Config struct {
	// Shards is the number of independent lock domains. Power of two
	// recommended; defaults to 32.
	Shards int
	// Retention is how long an unconfirmed Pending record is kept before
	// eviction. Defaults to 5m.
	Retention time.Duration
	// SweepInterval is the eviction cycle period. Defaults to 30s.
	SweepInterval time.Duration
	// TombstoneTTL is how long a terminal record is kept to reject late
	// duplicates. Defaults to 1h.
	TombstoneTTL time.Duration
	// Deduper optionally guards confirmed identities across restarts and
	// instances. May be nil.
	Deduper dedupe.Deduper
	// OnEvict is called with the number of records removed by each sweep.
	// May be nil.
	OnEvict func(pending, tombstones int)
}

func (c *Config) applyDefaults() {
	if c.Shards <= 0 {
		c.Shards = 32
	}
	if c.Retention <= 0 {
		c.Retention = 5 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
	if c.TombstoneTTL <= 0 {
		c.TombstoneTTL = time.Hour
	}
}

// Tracker is the confirmation state machine over a sharded in-flight table.
type Tracker struct {
	cfg    Config
	shards []*shard
	log    zerolog.Logger
	now    func() time.Time // overridable in tests
}

// New creates a tracker.
func New(cfg Config, log zerolog.Logger) *Tracker {
	cfg.applyDefaults()

	shards := make([]*shard, cfg.Shards)
	for i := range shards {
		shards[i] = &shard{records: make(map[string]*record)}
	}

	return &Tracker{
		cfg:    cfg,
		shards: shards,
		log:    log.With().Str("component", "tracker").Logger(),
		now:    time.Now,
	}
}

func (t *Tracker) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return t.shards[h.Sum32()%uint32(len(t.shards))]
}

// Observe runs one classified draft through the state machine and reports
// what the pipeline should do with it. Observations for the same identity
// are serialized; two racing confirms resolve to exactly one emit.
func (t *Tracker) Observe(ctx context.Context, res *classify.Result) Resolution {
	key := res.ID().Key()

	if res.State() == domain.TxStateConfirmed && t.cfg.Deduper != nil {
		seen, err := t.cfg.Deduper.Seen(ctx, key)
		if err != nil {
			// The table below still rejects duplicates within its own
			// horizon, so degrade rather than stall the stream.
			t.log.Warn().Err(err).Str("event", key).Msg("deduper unavailable")
		} else if seen {
			t.markConfirmedTombstone(key)
			t.log.Info().Str("event", key).Msg("confirmed identity already dispatched, rejecting duplicate")
			return Resolution{Action: ActionDuplicate}
		}
	}

	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch res.State() {
	case domain.TxStateTxPool:
		return t.observePending(s, key, res)
	default:
		return t.observeConfirmed(s, key, res)
	}
}

func (t *Tracker) observePending(s *shard, key string, res *classify.Result) Resolution {
	if rec, ok := s.records[key]; ok {
		switch rec.state {
		case statePending:
			t.log.Debug().Str("event", key).Msg("redundant pending observation")
		default:
			t.log.Info().Str("event", key).Msg("pending observation after terminal state, rejecting")
		}
		return Resolution{Action: ActionDuplicate}
	}

	rec := &record{
		state:     statePending,
		trade:     res.Trade,
		liquidity: res.Liquidity,
		seenAt:    t.now(),
	}
	s.records[key] = rec

	return t.emit(ActionEmitPending, rec)
}

func (t *Tracker) observeConfirmed(s *shard, key string, res *classify.Result) Resolution {
	now := t.now()

	rec, ok := s.records[key]
	if ok && rec.state != statePending {
		t.log.Info().Str("event", key).Msg("observation after terminal state, rejecting duplicate")
		return Resolution{Action: ActionDuplicate}
	}

	if !ok {
		// Fast confirmation: no provisional observation was ever seen (or it
		// was already evicted). Goes directly to Confirmed.
		rec = &record{seenAt: now}
		s.records[key] = rec
	}

	// The confirmed payload is authoritative: amounts and fees may differ
	// from the pending observation, so the record is rebuilt from it while
	// keeping its identity in the table.
	switch {
	case rec.trade != nil && res.Trade != nil:
		*rec.trade = *res.Trade
	case rec.liquidity != nil && res.Liquidity != nil:
		*rec.liquidity = *res.Liquidity
	default:
		rec.trade = res.Trade
		rec.liquidity = res.Liquidity
	}
	rec.state = stateConfirmed
	rec.doneAt = now

	if !dataQualityOK(rec) {
		t.log.Warn().Str("event", key).Msg("confirmed record failed data-quality checks, suppressing dispatch")
		return Resolution{Action: ActionSuppressed}
	}

	return t.emit(ActionEmitConfirmed, rec)
}

// markConfirmedTombstone records a terminal entry for an identity the
// deduper already knows, so in-table pending state cannot fire later.
func (t *Tracker) markConfirmedTombstone(key string) {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := t.now()
	rec, ok := s.records[key]
	if !ok {
		rec = &record{seenAt: now}
		s.records[key] = rec
	}
	rec.state = stateConfirmed
	rec.doneAt = now
}

// emit hands out an independent copy so sinks can never mutate the tracked
// record.
func (t *Tracker) emit(action Action, rec *record) Resolution {
	out := Resolution{Action: action}
	if rec.trade != nil {
		out.Trade = rec.trade.Clone()
	}
	if rec.liquidity != nil {
		out.Liquidity = rec.liquidity.Clone()
	}
	return out
}

// dataQualityOK rejects confirmed records whose amounts are nonsensical.
func dataQualityOK(rec *record) bool {
	if rec.trade != nil {
		return rec.trade.AmountIn > 0 || rec.trade.AmountOut > 0
	}
	if rec.liquidity != nil {
		return rec.liquidity.AmountA > 0 || rec.liquidity.AmountB > 0
	}
	return false
}

// InFlight returns the number of records currently tracked, tombstones
// included.
func (t *Tracker) InFlight() int {
	total := 0
	for _, s := range t.shards {
		s.mu.Lock()
		total += len(s.records)
		s.mu.Unlock()
	}
	return total
}

// Run executes eviction sweeps until the context is cancelled. The sweep
// runs off the ingestion path and never blocks it beyond per-shard locking.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Sweep()
		}
	}
}

// Sweep evicts Pending records older than the retention window and expires
// terminal tombstones past their TTL. Evicted records produce no dispatch.
func (t *Tracker) Sweep() {
	now := t.now()
	evictedPending, expiredTombstones := 0, 0

	for _, s := range t.shards {
		s.mu.Lock()
		for key, rec := range s.records {
			switch rec.state {
			case statePending:
				if now.Sub(rec.seenAt) > t.cfg.Retention {
					delete(s.records, key)
					evictedPending++
					t.log.Debug().Str("event", key).Msg("evicted unconfirmed pending record")
				}
			default:
				if now.Sub(rec.doneAt) > t.cfg.TombstoneTTL {
					delete(s.records, key)
					expiredTombstones++
				}
			}
		}
		s.mu.Unlock()
	}

	if t.cfg.OnEvict != nil && (evictedPending > 0 || expiredTombstones > 0) {
		t.cfg.OnEvict(evictedPending, expiredTombstones)
	}
}
