package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"avm-dex-stream/internal/domain"
)

// AssetSource loads the full asset table from the metadata/price collaborator.
type AssetSource interface {
	ListAssets(ctx context.Context) ([]domain.Asset, error)
}

// Refresher periodically reloads a Memory registry from an AssetSource.
type Refresher struct {
	source   AssetSource
	registry *Memory
	interval time.Duration
	log      zerolog.Logger
}

// NewRefresher creates a refresher. interval must be positive.
func NewRefresher(source AssetSource, reg *Memory, interval time.Duration, log zerolog.Logger) *Refresher {
	return &Refresher{
		source:   source,
		registry: reg,
		interval: interval,
		log:      log.With().Str("component", "registry-refresher").Logger(),
	}
}

// Run loads once immediately, then refreshes on the interval until the
// context is cancelled. A failed refresh keeps the previous snapshot.
func (r *Refresher) Run(ctx context.Context) error {
	if err := r.refresh(ctx); err != nil {
		return fmt.Errorf("initial asset load: %w", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.refresh(ctx); err != nil {
				r.log.Error().Err(err).Msg("asset refresh failed, keeping previous snapshot")
			}
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) error {
	assets, err := r.source.ListAssets(ctx)
	if err != nil {
		return err
	}

	r.registry.Replace(assets)
	r.log.Debug().Int("assets", len(assets)).Msg("asset registry refreshed")
	return nil
}
