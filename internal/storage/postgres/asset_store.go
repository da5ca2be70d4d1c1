package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"avm-dex-stream/internal/domain"
	"avm-dex-stream/internal/storage"
)

// AssetStore reads and writes the asset metadata/price table. The stream
// only reads it; prices and decimals are maintained out of band by the
// metadata and oracle collaborators.
type AssetStore struct {
	pool *Pool
}

// NewAssetStore creates a new AssetStore.
func NewAssetStore(pool *Pool) *AssetStore {
	return &AssetStore{pool: pool}
}

// ListAssets returns the full asset table.
func (s *AssetStore) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	query := `
		SELECT standard, asset_id, name, unit_name, decimals, usd_price
		FROM assets
		ORDER BY standard ASC, asset_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		var (
			a     domain.Asset
			std   string
			price *decimal.Decimal
		)
		if err := rows.Scan(&std, &a.ID, &a.Name, &a.UnitName, &a.Decimals, &price); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}

		a.Standard, err = domain.ParseAssetType(std)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		if price != nil {
			a.USDPrice = decimal.NullDecimal{Decimal: *price, Valid: true}
		}

		assets = append(assets, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset rows: %w", err)
	}

	return assets, nil
}

// GetAsset returns one asset by identity.
func (s *AssetStore) GetAsset(ctx context.Context, id domain.AssetID) (domain.Asset, error) {
	query := `
		SELECT name, unit_name, decimals, usd_price
		FROM assets
		WHERE standard = $1 AND asset_id = $2
	`

	a := domain.Asset{AssetID: id}
	var price *decimal.Decimal
	err := s.pool.QueryRow(ctx, query, string(id.Standard), id.ID).
		Scan(&a.Name, &a.UnitName, &a.Decimals, &price)
	if err != nil {
		if isNotFoundError(err) {
			return domain.Asset{}, fmt.Errorf("get asset %s: %w", id, storage.ErrNotFound)
		}
		return domain.Asset{}, fmt.Errorf("get asset %s: %w", id, err)
	}
	if price != nil {
		a.USDPrice = decimal.NullDecimal{Decimal: *price, Valid: true}
	}
	return a, nil
}

// UpsertAsset inserts or updates one asset's metadata, preserving any
// existing price when the new snapshot has none.
func (s *AssetStore) UpsertAsset(ctx context.Context, a domain.Asset) error {
	query := `
		INSERT INTO assets (standard, asset_id, name, unit_name, decimals, usd_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (standard, asset_id) DO UPDATE SET
			name = EXCLUDED.name,
			unit_name = EXCLUDED.unit_name,
			decimals = EXCLUDED.decimals,
			usd_price = COALESCE(EXCLUDED.usd_price, assets.usd_price),
			updated_at = now()
	`

	var price *decimal.Decimal
	if a.USDPrice.Valid {
		price = &a.USDPrice.Decimal
	}

	_, err := s.pool.Exec(ctx, query,
		string(a.Standard), a.ID, a.Name, a.UnitName, a.Decimals, price,
	)
	if err != nil {
		return fmt.Errorf("upsert asset: %w", err)
	}
	return nil
}

// SetPrice updates the USD price of one asset.
func (s *AssetStore) SetPrice(ctx context.Context, id domain.AssetID, price decimal.Decimal) error {
	query := `UPDATE assets SET usd_price = $3, updated_at = now() WHERE standard = $1 AND asset_id = $2`

	tag, err := s.pool.Exec(ctx, query, string(id.Standard), id.ID, price)
	if err != nil {
		return fmt.Errorf("set asset price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set asset price %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
