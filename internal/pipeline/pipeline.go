// Package pipeline runs the classify, track, value and dispatch stages over
// the raw event stream.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"avm-dex-stream/internal/classify"
	"avm-dex-stream/internal/dispatch"
	"avm-dex-stream/internal/observability"
	"avm-dex-stream/internal/tracker"
	"avm-dex-stream/internal/valuation"
)

// Config configures the pipeline.
type Config struct {
	// Workers is the number of goroutines consuming the raw stream.
	Workers int
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
}

// Pipeline wires the stages together. One malformed event is logged and
// counted, never fatal; only a cancelled context stops the workers.
type Pipeline struct {
	cfg        Config
	classifier *classify.Classifier
	tracker    *tracker.Tracker
	enricher   *valuation.Enricher
	dispatcher *dispatch.Dispatcher
	metrics    *observability.Metrics
	log        zerolog.Logger
}

// New creates a Pipeline. metrics may be nil.
func New(cfg Config, cl *classify.Classifier, tr *tracker.Tracker, en *valuation.Enricher, d *dispatch.Dispatcher, m *observability.Metrics, log zerolog.Logger) *Pipeline {
	cfg.applyDefaults()
	return &Pipeline{
		cfg:        cfg,
		classifier: cl,
		tracker:    tr,
		enricher:   en,
		dispatcher: d,
		metrics:    m,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// Run consumes events until the channel closes or ctx is cancelled. It
// returns after all workers have drained and in-flight dispatches finished.
func (p *Pipeline) Run(ctx context.Context, events <-chan classify.RawEvent) error {
	// Workers stop on the group context, but dispatches run on the caller's
	// context: the group context dies with g.Wait, and confirmed records
	// still in flight at drain must not see that as a cancellation.
	g, workerCtx := errgroup.WithContext(ctx)

	for i := 0; i < p.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-workerCtx.Done():
					return workerCtx.Err()
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					p.Process(ctx, &ev)
				}
			}
		})
	}

	err := g.Wait()
	p.dispatcher.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Process runs one event through every stage.
func (p *Pipeline) Process(ctx context.Context, ev *classify.RawEvent) {
	start := time.Now()

	if p.metrics != nil {
		p.metrics.FeedEventsReceived.WithLabelValues(string(ev.Protocol), string(ev.State)).Inc()
		p.metrics.FeedLastEventAt.SetToCurrentTime()
	}

	res, err := p.classifier.Classify(ev)
	if err != nil {
		p.countClassifyError(err)
		p.log.Warn().Err(err).
			Str("event", ev.ID.Key()).
			Str("protocol", string(ev.Protocol)).
			Str("amm", string(ev.AMM)).
			Msg("drop unclassifiable event")
		return
	}
	if p.metrics != nil {
		p.metrics.EventsClassified.WithLabelValues(string(ev.Protocol), string(ev.AMM), kindOf(res)).Inc()
		p.metrics.StageLatency.WithLabelValues("classify").Observe(time.Since(start).Seconds())
	}

	resolution := p.tracker.Observe(ctx, res)
	p.countResolution(resolution.Action)

	switch resolution.Action {
	case tracker.ActionEmitPending, tracker.ActionEmitConfirmed:
	default:
		return
	}

	p.enrich(resolution)

	if resolution.Trade != nil {
		p.dispatcher.DispatchTradeAsync(ctx, resolution.Trade)
	}
	if resolution.Liquidity != nil {
		p.dispatcher.DispatchLiquidityAsync(ctx, resolution.Liquidity)
	}

	if p.metrics != nil {
		p.metrics.StageLatency.WithLabelValues("total").Observe(time.Since(start).Seconds())
		p.metrics.TrackerInFlight.Set(float64(p.tracker.InFlight()))
	}
}

func (p *Pipeline) enrich(res tracker.Resolution) {
	start := time.Now()

	switch {
	case res.Trade != nil:
		p.enricher.EnrichTrade(res.Trade)
		p.countValuation("trade", res.Trade.USDValue.Valid)
	case res.Liquidity != nil:
		p.enricher.EnrichLiquidity(res.Liquidity)
		p.countValuation("liquidity", res.Liquidity.USDValue.Valid)
	}

	if p.metrics != nil {
		p.metrics.StageLatency.WithLabelValues("valuation").Observe(time.Since(start).Seconds())
	}
}

func (p *Pipeline) countClassifyError(err error) {
	if p.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, classify.ErrNoPolicy):
		p.metrics.EventsWithoutPolicy.Inc()
		p.metrics.ClassificationErrors.WithLabelValues("no_policy").Inc()
	case errors.Is(err, classify.ErrBadPayload):
		p.metrics.ClassificationErrors.WithLabelValues("bad_payload").Inc()
	default:
		p.metrics.ClassificationErrors.WithLabelValues("other").Inc()
	}
}

func (p *Pipeline) countResolution(action tracker.Action) {
	if p.metrics == nil {
		return
	}
	switch action {
	case tracker.ActionEmitPending, tracker.ActionEmitConfirmed:
		p.metrics.TrackerResolutions.Inc()
	case tracker.ActionDuplicate:
		p.metrics.TrackerDuplicates.Inc()
	case tracker.ActionSuppressed:
		p.metrics.TrackerSuppressed.Inc()
	}
}

func (p *Pipeline) countValuation(kind string, valued bool) {
	if p.metrics == nil {
		return
	}
	if valued {
		p.metrics.ValuationsComputed.WithLabelValues(kind).Inc()
	} else {
		p.metrics.ValuationsUnavailable.WithLabelValues(kind).Inc()
	}
}

func kindOf(res *classify.Result) string {
	if res.IsTrade() {
		return "trade"
	}
	return "liquidity"
}
