// Package nats publishes canonical records to NATS subjects for downstream
// subscribers. Records are JSON with enum members serialized by name.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"avm-dex-stream/internal/dispatch"
	"avm-dex-stream/internal/domain"
)

// Config for the NATS publisher.
type Config struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Publisher owns the NATS connection and exposes the two sink capabilities.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	log    zerolog.Logger
}

// Connect dials NATS with endless reconnect and returns a publisher.
func Connect(cfg Config, log zerolog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "dexstream"
	}

	opts := []nats.Option{
		nats.Name("avm-dex-stream"),
		nats.Timeout(5 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &Publisher{
		nc:     nc,
		prefix: prefix,
		log:    log.With().Str("component", "nats-sink").Logger(),
	}, nil
}

// Trades returns the trade sink view of the publisher.
func (p *Publisher) Trades() dispatch.TradeSink { return tradeSink{p} }

// Liquidity returns the liquidity sink view of the publisher.
func (p *Publisher) Liquidity() dispatch.LiquiditySink { return liquiditySink{p} }

func (p *Publisher) publish(ctx context.Context, subject string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Health reports whether the connection is usable.
func (p *Publisher) Health(_ context.Context) error {
	if p.nc == nil || p.nc.Status() != nats.CONNECTED {
		return errors.New("nats connection not ready")
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() error {
	if p.nc == nil || p.nc.Status() == nats.CLOSED {
		return nil
	}

	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	p.log.Info().Msg("nats connection closed")
	return nil
}

type tradeSink struct{ p *Publisher }

func (s tradeSink) Register(ctx context.Context, t *domain.Trade) error {
	return s.p.publish(ctx, s.p.prefix+".trades", t)
}

type liquiditySink struct{ p *Publisher }

func (s liquiditySink) Register(ctx context.Context, l *domain.Liquidity) error {
	return s.p.publish(ctx, s.p.prefix+".liquidity", l)
}

// Compile-time interface checks.
var (
	_ dispatch.TradeSink     = tradeSink{}
	_ dispatch.LiquiditySink = liquiditySink{}
)
