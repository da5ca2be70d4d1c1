// Package registry holds per-asset decimal precision and current USD prices.
// The pipeline only reads snapshots; refresh happens out of band.
package registry

import "avm-dex-stream/internal/domain"

// Registry is the read side used by valuation.
type Registry interface {
	// Lookup returns the current snapshot for an asset, or false if the
	// asset is unknown.
	Lookup(id domain.AssetID) (domain.Asset, bool)
}
