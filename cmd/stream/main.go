package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"avm-dex-stream/internal/classify"
	"avm-dex-stream/internal/config"
	"avm-dex-stream/internal/dedupe"
	redisdedupe "avm-dex-stream/internal/dedupe/redis"
	"avm-dex-stream/internal/dispatch"
	"avm-dex-stream/internal/domain"
	"avm-dex-stream/internal/feed"
	"avm-dex-stream/internal/observability"
	"avm-dex-stream/internal/pipeline"
	"avm-dex-stream/internal/registry"
	chsink "avm-dex-stream/internal/sinks/clickhouse"
	natssink "avm-dex-stream/internal/sinks/nats"
	"avm-dex-stream/internal/storage/migrations"
	pgstore "avm-dex-stream/internal/storage/postgres"
	"avm-dex-stream/internal/tracker"
	"avm-dex-stream/internal/valuation"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	feedURL := flag.String("feed-url", "", "Override feed.url from the config")
	metricsAddr := flag.String("metrics-addr", "", "Override metrics.addr from the config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	if *feedURL != "" {
		cfg.Feed.URL = *feedURL
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	logger := newLogger(cfg.Logging)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("stream terminated")
	}
	logger.Info().Msg("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	metrics := observability.NewMetrics("", prometheus.DefaultRegisterer)

	// Postgres holds asset metadata and prices for the registry.
	pool, err := pgstore.NewPool(ctx, cfg.Registry.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return err
	}

	reg := registry.NewMemory()
	refresher := registry.NewRefresher(pgstore.NewAssetStore(pool), reg, cfg.Registry.RefreshInterval, logger)

	deduper, closeDedupe, err := newDeduper(ctx, cfg.Dedupe)
	if err != nil {
		return err
	}
	defer closeDedupe()

	trk := tracker.New(tracker.Config{
		Shards:        cfg.Tracker.Shards,
		Retention:     cfg.Tracker.Retention,
		SweepInterval: cfg.Tracker.SweepInterval,
		TombstoneTTL:  cfg.Tracker.TombstoneTTL,
		Deduper:       deduper,
		OnEvict: func(pending, _ int) {
			metrics.TrackerEvictions.Add(float64(pending))
		},
	}, logger)

	tradeSinks, liquiditySinks, closeSinks, err := newSinks(ctx, cfg.Sinks, metrics, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	dispatcher := dispatch.New(dispatch.Config{
		MaxAttempts:  cfg.Dispatch.MaxAttempts,
		RetryBackoff: cfg.Dispatch.RetryBackoff,
		MaxBackoff:   cfg.Dispatch.MaxBackoff,
		MaxInFlight:  cfg.Dispatch.MaxInFlight,
	}, tradeSinks, liquiditySinks, logger)
	dispatcher.OnOutcome = func(kind string, outcome dispatch.Outcome) {
		metrics.DispatchOutcomes.WithLabelValues(kind, string(outcome)).Inc()
	}
	dispatcher.OnLatency = func(kind string, elapsed time.Duration) {
		metrics.DispatchLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
	}

	feedCfg, err := feedConfig(cfg.Feed)
	if err != nil {
		return err
	}
	feedCfg.OnReconnect = metrics.FeedReconnects.Inc
	feedCfg.OnDecodeError = metrics.FeedDecodeErrors.Inc

	client, err := feed.Connect(ctx, feedCfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	pipe := pipeline.New(pipeline.Config{Workers: cfg.Pipeline.Workers},
		classify.NewClassifier(), trk, valuation.NewEnricher(reg), dispatcher, metrics, logger)

	srv := metricsServer(cfg.Metrics.Addr, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("feed", cfg.Feed.URL).
		Str("metrics", cfg.Metrics.Addr).
		Int("workers", cfg.Pipeline.Workers).
		Msg("stream starting")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return refresher.Run(ctx) })
	g.Go(func() error { return trk.Run(ctx) })
	g.Go(func() error { return pipe.Run(ctx, client.Events()) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newDeduper(ctx context.Context, cfg config.DedupeConfig) (dedupe.Deduper, func(), error) {
	switch cfg.Backend {
	case "redis":
		d, err := redisdedupe.New(ctx, redisdedupe.Config{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return d, func() { d.Close() }, nil
	default:
		if cfg.TTL <= 0 {
			// Tracker tombstones alone cover the duplicate horizon.
			return nil, func() {}, nil
		}
		d := dedupe.NewMemory(cfg.TTL, time.Minute)
		return d, d.Close, nil
	}
}

func newSinks(ctx context.Context, cfg config.SinksConfig, metrics *observability.Metrics, logger zerolog.Logger) (dispatch.TradeSink, dispatch.LiquiditySink, func(), error) {
	var (
		trades    dispatch.MultiTrade
		liquidity dispatch.MultiLiquidity
		closers   []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.NATS.Enabled {
		pub, err := natssink.Connect(natssink.Config{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		}, logger)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		closers = append(closers, func() { pub.Close() })
		trades = append(trades, pub.Trades())
		liquidity = append(liquidity, pub.Liquidity())
	}

	if cfg.ClickHouse.Enabled {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		writer := chsink.NewWriter(conn, chsink.Config{
			DSN:              cfg.ClickHouse.DSN,
			BatchMaxRows:     cfg.ClickHouse.BatchMaxRows,
			BatchMaxInterval: cfg.ClickHouse.BatchMaxInterval,
			MaxRetries:       cfg.ClickHouse.MaxRetries,
			RetryBackoff:     cfg.ClickHouse.RetryBackoff,
			OnFlush:          func(rows int) { metrics.SinkBatchSize.Observe(float64(rows)) },
			OnDropped:        func() { metrics.SinkWriteErrors.WithLabelValues("clickhouse").Inc() },
		}, logger)
		closers = append(closers, func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := writer.Close(flushCtx); err != nil {
				logger.Error().Err(err).Msg("close clickhouse sink")
				metrics.SinkWriteErrors.WithLabelValues("clickhouse").Inc()
			}
			conn.Close()
		})
		trades = append(trades, writer.Trades())
		liquidity = append(liquidity, writer.Liquidity())
	}

	if len(trades) == 0 {
		sinkLog := logger.With().Str("component", "log-sink").Logger()
		trades = append(trades, tradeLogSink{log: sinkLog})
		liquidity = append(liquidity, liquidityLogSink{log: sinkLog})
	}

	return trades, liquidity, closeAll, nil
}

func feedConfig(cfg config.FeedConfig) (feed.Config, error) {
	out := feed.Config{
		URL:               cfg.URL,
		Buffer:            cfg.Buffer,
		ReconnectDelay:    cfg.ReconnectDelay,
		MaxReconnectDelay: cfg.MaxReconnectDelay,
		PingInterval:      cfg.PingInterval,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	for _, s := range cfg.Protocols {
		p, err := domain.ParseDEXProtocol(s)
		if err != nil {
			return feed.Config{}, err
		}
		out.Protocols = append(out.Protocols, p)
	}
	for _, s := range cfg.States {
		st, err := domain.ParseTxState(s)
		if err != nil {
			return feed.Config{}, err
		}
		out.States = append(out.States, st)
	}
	return out, nil
}

func metricsServer(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	return srv
}
