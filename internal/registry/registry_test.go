package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avm-dex-stream/internal/domain"
)

var usdc = domain.Asset{
	AssetID:  domain.AssetID{Standard: domain.AssetTypeASA, ID: 31566704},
	Decimals: 6,
	USDPrice: decimal.NullDecimal{Decimal: decimal.NewFromInt(1), Valid: true},
}

func TestMemoryLookupAndUpsert(t *testing.T) {
	m := NewMemory()

	_, ok := m.Lookup(usdc.AssetID)
	assert.False(t, ok)

	m.Upsert(usdc)
	got, ok := m.Lookup(usdc.AssetID)
	require.True(t, ok)
	assert.Equal(t, uint32(6), got.Decimals)
	assert.True(t, got.Priced())
}

func TestMemorySetPrice(t *testing.T) {
	m := NewMemory()
	m.Upsert(usdc)

	m.SetPrice(usdc.AssetID, decimal.RequireFromString("1.01"))
	got, _ := m.Lookup(usdc.AssetID)
	assert.True(t, got.USDPrice.Decimal.Equal(decimal.RequireFromString("1.01")))

	// Price for an unknown asset is dropped, not inserted.
	unknown := domain.AssetID{Standard: domain.AssetTypeARC200, ID: 1}
	m.SetPrice(unknown, decimal.NewFromInt(5))
	_, ok := m.Lookup(unknown)
	assert.False(t, ok)
}

func TestMemoryReplace(t *testing.T) {
	m := NewMemory()
	m.Upsert(usdc)

	other := domain.Asset{AssetID: domain.AssetID{Standard: domain.AssetTypeASA, ID: 0}, Decimals: 6}
	m.Replace([]domain.Asset{other})

	assert.Equal(t, 1, m.Len())
	_, ok := m.Lookup(usdc.AssetID)
	assert.False(t, ok, "replace swaps the whole table")
}

type fakeSource struct {
	mu     sync.Mutex
	assets []domain.Asset
	err    error
	calls  int
}

func (f *fakeSource) ListAssets(context.Context) ([]domain.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.assets, nil
}

func (f *fakeSource) set(assets []domain.Asset, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets, f.err = assets, err
}

func TestRefresherInitialLoadFailureIsFatal(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	r := NewRefresher(src, NewMemory(), time.Minute, zerolog.Nop())

	err := r.Run(context.Background())
	assert.Error(t, err)
}

func TestRefresherKeepsSnapshotOnFailure(t *testing.T) {
	src := &fakeSource{assets: []domain.Asset{usdc}}
	reg := NewMemory()
	r := NewRefresher(src, reg, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return reg.Len() == 1 }, time.Second, time.Millisecond)

	// Later refreshes fail; the loaded snapshot must survive.
	src.set(nil, errors.New("connection refused"))
	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, 1, reg.Len())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
