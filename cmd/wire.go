package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bnema/numsel/internal/adapters/events/rabbitmq"
	"github.com/bnema/numsel/internal/adapters/render/board"
	"github.com/bnema/numsel/internal/adapters/store/memory"
	"github.com/bnema/numsel/internal/adapters/store/postgres"
	redisstore "github.com/bnema/numsel/internal/adapters/store/redis"
	tomlstore "github.com/bnema/numsel/internal/adapters/store/toml"
	"github.com/bnema/numsel/internal/adapters/sync/hub"
	"github.com/bnema/numsel/internal/application"
	"github.com/bnema/numsel/internal/ports"
)

const (
	connectTimeout   = 5 * time.Second
	metricsInterval  = 10 * time.Second
	metricsRetention = time.Minute
)

type app struct {
	cfg           *viper.Viper
	logger        hclog.Logger
	store         ports.SlotStore
	feed          ports.ChangeFeed
	service       *application.ReservationService
	metrics       *metrics.Metrics
	metricsSink   *metrics.InmemSink
	boardRenderer func(application.Summary, board.RenderOptions) (string, error)
	closers       []func() error
}

// appOpener builds the app for one command run. longRunning commands get
// runtime metrics and a chattier default log level.
type appOpener func(cmd *cobra.Command, longRunning bool) (*app, error)

func newAppOpener(cfg *viper.Viper) appOpener {
	return func(cmd *cobra.Command, longRunning bool) (*app, error) {
		return wireApp(cmd.Context(), cfg, cmd.ErrOrStderr(), longRunning)
	}
}

func wireApp(ctx context.Context, cfg *viper.Viper, logOutput io.Writer, longRunning bool) (*app, error) {
	logger := newLogger(cfg, logOutput, longRunning)
	a := &app{
		cfg:           cfg,
		logger:        logger,
		boardRenderer: board.Render,
	}

	sink := metrics.NewInmemSink(metricsInterval, metricsRetention)
	metricsCfg := metrics.DefaultConfig("numsel")
	metricsCfg.EnableHostname = false
	metricsCfg.EnableRuntimeMetrics = longRunning
	m, err := metrics.New(metricsCfg, sink)
	if err != nil {
		return nil, fmt.Errorf("wire metrics: %w", err)
	}
	a.metrics = m
	a.metricsSink = sink

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	feed, ok := store.(ports.ChangeFeed)
	if !ok {
		_ = a.Close()
		return nil, fmt.Errorf("store backend %q has no change feed", cfg.GetString(keyStoreBackend))
	}
	a.feed = feed

	opts := []application.ReservationOption{
		application.WithLogger(logger.Named("reservations")),
		application.WithMetrics(m),
	}

	if url := cfg.GetString(keyAMQPURL); url != "" {
		publisher, err := rabbitmq.NewPublisher(url,
			rabbitmq.WithExchange(cfg.GetString(keyAMQPExchange)),
			rabbitmq.WithLogger(logger.Named("amqp")),
		)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("wire claim publisher: %w", err)
		}
		a.closers = append(a.closers, publisher.Close)
		opts = append(opts, application.WithClaimPublisher(publisher))
	}

	service, err := application.NewReservationService(store, cfg.GetInt(keyTotalNumbers), opts...)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("wire reservation service: %w", err)
	}
	a.service = service
	a.closers = append(a.closers, service.Close)

	return a, nil
}

func openStore(ctx context.Context, cfg *viper.Viper, logger hclog.Logger) (ports.SlotStore, func() error, error) {
	switch backend := cfg.GetString(keyStoreBackend); backend {
	case backendFile:
		store, err := tomlstore.NewStore(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("wire file store: %w", err)
		}
		logger.Debug("using file store", "path", store.Path())
		return store, nil, nil

	case backendMemory:
		logger.Warn("memory store keeps numbers for this process only")
		return memory.New(), nil, nil

	case backendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.GetString(keyRedisAddr),
			Password: cfg.GetString(keyRedisPassword),
			DB:       cfg.GetInt(keyRedisDB),
		})

		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.GetString(keyRedisAddr), err)
		}

		logger.Debug("using redis store", "addr", cfg.GetString(keyRedisAddr), "key", cfg.GetString(keyRedisKey))
		return redisstore.NewStore(rdb, redisstore.WithKey(cfg.GetString(keyRedisKey))), rdb.Close, nil

	case backendPostgres:
		openCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		store, err := postgres.Open(openCtx, cfg.GetString(keyPostgresDSN), postgres.WithTable(cfg.GetString(keyPostgresTable)))
		if err != nil {
			return nil, nil, fmt.Errorf("wire postgres store: %w", err)
		}
		logger.Debug("using postgres store", "table", cfg.GetString(keyPostgresTable))
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown %s %q", keyStoreBackend, backend)
	}
}

// newHub returns a sync channel over the app's store. The caller starts and
// closes it.
func (a *app) newHub() *hub.Hub {
	return hub.New(a.store, a.feed, hub.WithLogger(a.logger.Named("hub")))
}

// ensureInitialized creates the numbers on first observation of an empty store.
func (a *app) ensureInitialized(ctx context.Context) error {
	if _, err := a.service.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize numbers: %w", err)
	}
	return nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	return errors.Join(errs...)
}
