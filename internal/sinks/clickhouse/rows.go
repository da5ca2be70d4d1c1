package clickhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimal columns are sent as strings so the driver keeps full precision.

func nullableDecimal(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func (w *Writer) insertTrades(ctx context.Context, rows []row) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO trades (
			tx_id, event_index, protocol, amm, pool, state,
			asset_in_standard, asset_in_id, asset_out_standard, asset_out_id,
			amount_in, amount_out, fee, fee_asset_standard, fee_asset_id,
			round, timestamp_ms, usd_value, usd_fee, usd_price
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare trades batch: %w", err)
	}

	for _, r := range rows {
		t := r.trade

		var fee *uint64
		var feeStandard *string
		var feeID *uint64
		if t.Fee != nil {
			fee = t.Fee
			if t.FeeAsset != nil {
				std := string(t.FeeAsset.Standard)
				id := t.FeeAsset.ID
				feeStandard, feeID = &std, &id
			}
		}

		err = batch.Append(
			t.ID.TxID, t.ID.Index, string(t.Protocol), string(t.AMM), t.Pool, string(t.State),
			string(t.AssetIn.Standard), t.AssetIn.ID, string(t.AssetOut.Standard), t.AssetOut.ID,
			t.AmountIn, t.AmountOut, fee, feeStandard, feeID,
			t.Round, uint64(t.Timestamp),
			nullableDecimal(t.USDValue), nullableDecimal(t.USDFee), nullableDecimal(t.USDPrice),
		)
		if err != nil {
			return fmt.Errorf("append trade row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send trades batch: %w", err)
	}
	return nil
}

func (w *Writer) insertLiquidity(ctx context.Context, rows []row) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO liquidity_events (
			tx_id, event_index, protocol, amm, pool, state, direction,
			asset_a_standard, asset_a_id, asset_b_standard, asset_b_id,
			amount_a, amount_b, round, timestamp_ms, usd_value
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare liquidity batch: %w", err)
	}

	for _, r := range rows {
		l := r.liquidity

		err = batch.Append(
			l.ID.TxID, l.ID.Index, string(l.Protocol), string(l.AMM), l.Pool, string(l.State),
			string(l.Direction),
			string(l.AssetA.Standard), l.AssetA.ID, string(l.AssetB.Standard), l.AssetB.ID,
			l.AmountA, l.AmountB, l.Round, uint64(l.Timestamp),
			nullableDecimal(l.USDValue),
		)
		if err != nil {
			return fmt.Errorf("append liquidity row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send liquidity batch: %w", err)
	}
	return nil
}
