package dispatch

import (
	"context"
	"errors"

	"avm-dex-stream/internal/domain"
)

// MultiTrade fans one trade out to several sinks. Every sink is attempted;
// errors are joined so the retry loop re-offers the record to all of them
// (sinks own their storage-side de-duplication).
type MultiTrade []TradeSink

// Register delivers to every sink.
func (m MultiTrade) Register(ctx context.Context, t *domain.Trade) error {
	var errs []error
	for _, s := range m {
		if err := s.Register(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiLiquidity fans one liquidity record out to several sinks.
type MultiLiquidity []LiquiditySink

// Register delivers to every sink.
func (m MultiLiquidity) Register(ctx context.Context, l *domain.Liquidity) error {
	var errs []error
	for _, s := range m {
		if err := s.Register(ctx, l); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Compile-time interface checks.
var (
	_ TradeSink     = (MultiTrade)(nil)
	_ LiquiditySink = (MultiLiquidity)(nil)
)
