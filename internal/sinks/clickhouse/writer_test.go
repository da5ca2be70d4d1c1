package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/column"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avm-dex-stream/internal/domain"
)

// fakeConn stands in for the ClickHouse connection and counts the rows that
// reach a successful Send.
type fakeConn struct {
	mu        sync.Mutex
	committed int
	sends     int
	failSends int // Send errors to return before succeeding
}

func (c *fakeConn) PrepareBatch(_ context.Context, _ string, _ ...driver.PrepareBatchOption) (driver.Batch, error) {
	return &fakeBatch{conn: c}, nil
}

func (c *fakeConn) Ping(context.Context) error { return nil }

func (c *fakeConn) committedRows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed
}

type fakeBatch struct {
	conn *fakeConn
	rows int
	sent bool
}

func (b *fakeBatch) Abort() error                  { return nil }
func (b *fakeBatch) Append(...any) error           { b.rows++; return nil }
func (b *fakeBatch) AppendStruct(any) error        { return errors.New("not supported") }
func (b *fakeBatch) Column(int) driver.BatchColumn { return nil }
func (b *fakeBatch) Flush() error                  { return nil }
func (b *fakeBatch) IsSent() bool                  { return b.sent }
func (b *fakeBatch) Rows() int                     { return b.rows }
func (b *fakeBatch) Columns() []column.Interface   { return nil }
func (b *fakeBatch) Close() error                  { return nil }

func (b *fakeBatch) Send() error {
	b.conn.mu.Lock()
	defer b.conn.mu.Unlock()
	b.conn.sends++
	if b.conn.failSends > 0 {
		b.conn.failSends--
		return errors.New("code: 242, message: table is in readonly mode")
	}
	b.sent = true
	b.conn.committed += b.rows
	return nil
}

func testTrade(txID string) *domain.Trade {
	return &domain.Trade{
		ID:        domain.EventID{TxID: txID, Index: 0},
		Protocol:  domain.ProtocolPact,
		AMM:       domain.AMMTypeOldAMM,
		Pool:      "POOL",
		AssetIn:   domain.AssetID{Standard: domain.AssetTypeASA, ID: 0},
		AssetOut:  domain.AssetID{Standard: domain.AssetTypeASA, ID: 31566704},
		AmountIn:  1_000_000,
		AmountOut: 250_000,
		State:     domain.TxStateConfirmed,
		Round:     46000000,
		Timestamp: 1700000000000,
	}
}

func testLiquidity(txID string) *domain.Liquidity {
	return &domain.Liquidity{
		ID:        domain.EventID{TxID: txID, Index: 1},
		Protocol:  domain.ProtocolTiny,
		AMM:       domain.AMMTypeOldAMM,
		Pool:      "POOL",
		Direction: domain.DirectionDeposit,
		AssetA:    domain.AssetID{Standard: domain.AssetTypeASA, ID: 0},
		AssetB:    domain.AssetID{Standard: domain.AssetTypeASA, ID: 31566704},
		AmountA:   2_000_000,
		AmountB:   500_000,
		State:     domain.TxStateConfirmed,
		Round:     46000000,
		Timestamp: 1700000000000,
	}
}

func TestWriterFlushesOnBatchSize(t *testing.T) {
	conn := &fakeConn{}
	w := NewWriter(conn, Config{
		BatchMaxRows:     2,
		BatchMaxInterval: time.Hour,
	}, zerolog.Nop())
	defer w.Close(context.Background())

	require.NoError(t, w.Trades().Register(context.Background(), testTrade("TX1")))
	require.NoError(t, w.Trades().Register(context.Background(), testTrade("TX2")))

	require.Eventually(t, func() bool {
		return conn.committedRows() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWriterFlushesOnInterval(t *testing.T) {
	conn := &fakeConn{}
	w := NewWriter(conn, Config{
		BatchMaxRows:     1000,
		BatchMaxInterval: 20 * time.Millisecond,
	}, zerolog.Nop())
	defer w.Close(context.Background())

	require.NoError(t, w.Trades().Register(context.Background(), testTrade("TX1")))

	require.Eventually(t, func() bool {
		return conn.committedRows() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWriterCloseFlushesPending(t *testing.T) {
	conn := &fakeConn{}
	w := NewWriter(conn, Config{
		BatchMaxRows:     1000,
		BatchMaxInterval: time.Hour,
	}, zerolog.Nop())

	require.NoError(t, w.Trades().Register(context.Background(), testTrade("TX1")))
	require.NoError(t, w.Trades().Register(context.Background(), testTrade("TX2")))
	require.NoError(t, w.Liquidity().Register(context.Background(), testLiquidity("TX3")))

	require.NoError(t, w.Close(context.Background()))
	assert.Equal(t, 3, conn.committedRows(), "rows enqueued before close must be flushed")
}

func TestWriterRegisterAfterCloseFails(t *testing.T) {
	w := NewWriter(&fakeConn{}, Config{}, zerolog.Nop())
	require.NoError(t, w.Close(context.Background()))

	err := w.Trades().Register(context.Background(), testTrade("TX1"))
	require.ErrorContains(t, err, "closed")
}

func TestWriterRegisterRacingCloseDoesNotPanic(t *testing.T) {
	conn := &fakeConn{}
	w := NewWriter(conn, Config{
		BatchMaxRows:     4,
		BatchMaxInterval: time.Millisecond,
	}, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				// Errors are expected once the writer closes; the send
				// must never panic.
				_ = w.Trades().Register(context.Background(), testTrade(fmt.Sprintf("TX%d-%d", n, j)))
			}
		}(i)
	}

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, w.Close(context.Background()))
	wg.Wait()
}

func TestWriterDropsBatchAfterRetries(t *testing.T) {
	conn := &fakeConn{failSends: 100}

	var (
		mu      sync.Mutex
		flushed []int
		dropped int
	)
	w := NewWriter(conn, Config{
		BatchMaxRows:     1,
		BatchMaxInterval: time.Hour,
		MaxRetries:       1,
		RetryBackoff:     time.Millisecond,
		OnFlush: func(rows int) {
			mu.Lock()
			flushed = append(flushed, rows)
			mu.Unlock()
		},
		OnDropped: func() {
			mu.Lock()
			dropped++
			mu.Unlock()
		},
	}, zerolog.Nop())
	defer w.Close(context.Background())

	require.NoError(t, w.Trades().Register(context.Background(), testTrade("TX1")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dropped == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1}, flushed)
	assert.Equal(t, 0, conn.committedRows())
}

func TestWriterRetriesThenSucceeds(t *testing.T) {
	conn := &fakeConn{failSends: 1}
	w := NewWriter(conn, Config{
		BatchMaxRows:     1,
		BatchMaxInterval: time.Hour,
		MaxRetries:       3,
		RetryBackoff:     time.Millisecond,
	}, zerolog.Nop())
	defer w.Close(context.Background())

	require.NoError(t, w.Trades().Register(context.Background(), testTrade("TX1")))

	require.Eventually(t, func() bool {
		return conn.committedRows() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
