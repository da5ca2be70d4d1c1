package main

import (
	"context"

	"github.com/rs/zerolog"

	"avm-dex-stream/internal/domain"
)

// Log sinks write records to the log when no real sink is configured, which
// keeps a bare config useful for local runs.

type tradeLogSink struct {
	log zerolog.Logger
}

func (s tradeLogSink) Register(_ context.Context, t *domain.Trade) error {
	s.log.Info().
		Str("event", t.ID.Key()).
		Str("protocol", string(t.Protocol)).
		Str("state", string(t.State)).
		Str("pool", t.Pool).
		Uint64("amount_in", t.AmountIn).
		Uint64("amount_out", t.AmountOut).
		Msg("trade")
	return nil
}

type liquidityLogSink struct {
	log zerolog.Logger
}

func (s liquidityLogSink) Register(_ context.Context, l *domain.Liquidity) error {
	s.log.Info().
		Str("event", l.ID.Key()).
		Str("protocol", string(l.Protocol)).
		Str("state", string(l.State)).
		Str("pool", l.Pool).
		Str("direction", string(l.Direction)).
		Uint64("amount_a", l.AmountA).
		Uint64("amount_b", l.AmountB).
		Msg("liquidity")
	return nil
}
