// Package clickhouse persists canonical records into ClickHouse with
// batched, retried inserts. Both sink capabilities share one writer so a
// single batching loop serves the whole stream.
package clickhouse

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog"

	"avm-dex-stream/internal/dispatch"
	"avm-dex-stream/internal/domain"
)

// Conn is the slice of the ClickHouse connection the writer needs. The
// storage wrapper satisfies it.
type Conn interface {
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
	Ping(ctx context.Context) error
}

// Config for the batching writer.
type Config struct {
	DSN              string        `yaml:"dsn"`
	BatchMaxRows     int           `yaml:"batch_max_rows"`
	BatchMaxInterval time.Duration `yaml:"batch_max_interval"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`

	// OnFlush is called with the row count of every attempted flush. May be nil.
	OnFlush func(rows int) `yaml:"-"`
	// OnDropped is called when a batch is abandoned after retries. May be nil.
	OnDropped func() `yaml:"-"`
}

type row struct {
	trade     *domain.Trade
	liquidity *domain.Liquidity
}

// Writer buffers records and flushes them as ClickHouse batches on row-count
// or interval boundaries.
type Writer struct {
	conn Conn
	cfg  Config
	log  zerolog.Logger

	inCh      chan row
	closedCh  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWriter creates the writer and starts its flush loop.
func NewWriter(conn Conn, cfg Config, log zerolog.Logger) *Writer {
	if cfg.BatchMaxRows <= 0 {
		cfg.BatchMaxRows = 1000
	}
	if cfg.BatchMaxInterval <= 0 {
		cfg.BatchMaxInterval = 200 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}

	w := &Writer{
		conn:     conn,
		cfg:      cfg,
		log:      log.With().Str("component", "clickhouse-sink").Logger(),
		inCh:     make(chan row, 8192),
		closedCh: make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()

	return w
}

// Trades returns the trade sink view of the writer.
func (w *Writer) Trades() dispatch.TradeSink { return tradeSink{w} }

// Liquidity returns the liquidity sink view of the writer.
func (w *Writer) Liquidity() dispatch.LiquiditySink { return liquiditySink{w} }

func (w *Writer) enqueue(ctx context.Context, r row) error {
	select {
	case <-w.closedCh:
		return errors.New("clickhouse writer closed")
	case <-ctx.Done():
		return ctx.Err()
	case w.inCh <- r:
		return nil
	}
}

// Close flushes pending rows and stops the loop. inCh stays open so a
// Register racing Close fails softly instead of panicking on a closed send.
func (w *Writer) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		close(w.closedCh)
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health verifies the ClickHouse connection.
func (w *Writer) Health(ctx context.Context) error {
	return w.conn.Ping(ctx)
}

func (w *Writer) loop() {
	defer w.wg.Done()

	batch := make([]row, 0, w.cfg.BatchMaxRows)
	ticker := time.NewTicker(w.cfg.BatchMaxInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if w.cfg.OnFlush != nil {
			w.cfg.OnFlush(len(batch))
		}
		if err := w.insertWithRetry(context.Background(), batch); err != nil {
			w.log.Error().Err(err).Int("rows", len(batch)).Msg("dropping batch after retries")
			if w.cfg.OnDropped != nil {
				w.cfg.OnDropped()
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case r := <-w.inCh:
			batch = append(batch, r)
			if len(batch) >= w.cfg.BatchMaxRows {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.closedCh:
			// Drain rows that won the enqueue race before the close.
			for {
				select {
				case r := <-w.inCh:
					batch = append(batch, r)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (w *Writer) insertWithRetry(ctx context.Context, rows []row) error {
	backoff := w.cfg.RetryBackoff

	var err error
	for attempt := 0; attempt <= w.cfg.MaxRetries; attempt++ {
		if err = w.insert(ctx, rows); err == nil {
			return nil
		}
		w.log.Warn().Err(err).Int("attempt", attempt+1).Msg("clickhouse insert failed")
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

func (w *Writer) insert(ctx context.Context, rows []row) error {
	var trades, liquidity []row
	for _, r := range rows {
		if r.trade != nil {
			trades = append(trades, r)
		} else {
			liquidity = append(liquidity, r)
		}
	}

	if err := w.insertTrades(ctx, trades); err != nil {
		return err
	}
	return w.insertLiquidity(ctx, liquidity)
}

type tradeSink struct{ w *Writer }

func (s tradeSink) Register(ctx context.Context, t *domain.Trade) error {
	return s.w.enqueue(ctx, row{trade: t})
}

type liquiditySink struct{ w *Writer }

func (s liquiditySink) Register(ctx context.Context, l *domain.Liquidity) error {
	return s.w.enqueue(ctx, row{liquidity: l})
}

// Compile-time interface checks.
var (
	_ dispatch.TradeSink     = tradeSink{}
	_ dispatch.LiquiditySink = liquiditySink{}
)
