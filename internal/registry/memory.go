package registry

import (
	"sync"

	"github.com/shopspring/decimal"

	"avm-dex-stream/internal/domain"
)

// Memory is the in-process registry: read-mostly, safe for concurrent reads,
// replaced wholesale or patched by the refresher.
type Memory struct {
	mu     sync.RWMutex
	assets map[domain.AssetID]domain.Asset
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{assets: make(map[domain.AssetID]domain.Asset)}
}

// Lookup returns the snapshot for an asset.
func (m *Memory) Lookup(id domain.AssetID) (domain.Asset, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assets[id]
	return a, ok
}

// Upsert inserts or replaces an asset snapshot.
func (m *Memory) Upsert(a domain.Asset) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.assets[a.AssetID] = a
}

// SetPrice updates the USD price of a known asset. Unknown assets are
// ignored: a price without decimals cannot be used for valuation anyway.
func (m *Memory) SetPrice(id domain.AssetID, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assets[id]
	if !ok {
		return
	}
	a.USDPrice = decimal.NullDecimal{Decimal: price, Valid: true}
	m.assets[id] = a
}

// Replace swaps the entire asset table for a freshly loaded one.
func (m *Memory) Replace(assets []domain.Asset) {
	next := make(map[domain.AssetID]domain.Asset, len(assets))
	for _, a := range assets {
		next[a.AssetID] = a
	}

	m.mu.Lock()
	m.assets = next
	m.mu.Unlock()
}

// Len returns the number of known assets.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.assets)
}

// Compile-time interface check.
var _ Registry = (*Memory)(nil)
