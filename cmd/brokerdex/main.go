package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/brokerdex/internal/config"
	"github.com/kailas-cloud/brokerdex/internal/db"
	dbRedis "github.com/kailas-cloud/brokerdex/internal/db/redis"
	"github.com/kailas-cloud/brokerdex/internal/domain"
	"github.com/kailas-cloud/brokerdex/internal/factory"
	logpkg "github.com/kailas-cloud/brokerdex/internal/logger"
	"github.com/kailas-cloud/brokerdex/internal/metrics"
	"github.com/kailas-cloud/brokerdex/internal/source"
	"github.com/kailas-cloud/brokerdex/internal/source/kafka"
	"github.com/kailas-cloud/brokerdex/internal/source/mongo"
	"github.com/kailas-cloud/brokerdex/internal/source/postgres"
	chiTransport "github.com/kailas-cloud/brokerdex/internal/transport/chi"
	callbackuc "github.com/kailas-cloud/brokerdex/internal/usecase/callback"
	healthuc "github.com/kailas-cloud/brokerdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/brokerdex/internal/usecase/search"
	"github.com/kailas-cloud/brokerdex/internal/version"
)

func main() {
	rebuild := flag.Bool("rebuild", false, "replay the configured source into the index, then exit")
	purge := flag.Bool("purge", false, "reset the index before -rebuild")
	flag.Parse()

	if err := run(*rebuild, *purge); err != nil {
		fmt.Fprintln(os.Stderr, "brokerdex:", err)
		os.Exit(1)
	}
}

func run(rebuild, purge bool) error {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting brokerdex",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("backend", cfg.Backend.Driver),
		zap.String("index", cfg.Broker.Index),
		zap.String("source", cfg.Source.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(cfg)
	if err != nil {
		return fmt.Errorf("create %s store: %w", cfg.Backend.Driver, err)
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Backend.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("index backend not ready: %w", err)
	}
	logger.Info("Connected to index backend")

	metrics.RegisterIngestMetrics()

	idx, err := factory.Index(store, cfg.Broker, logger)
	if err != nil {
		return fmt.Errorf("build index adapter: %w", err)
	}
	cb := callbackuc.New(idx, logger)
	health := healthuc.New(store)

	replay, err := openReplaySource(ctx, cfg.Source)
	if err != nil {
		return fmt.Errorf("open %s source: %w", cfg.Source.Driver, err)
	}
	if replay != nil {
		defer replay.close()
		cb.WithReplaySource(replay.opener)
		health.WithCheck(cfg.Source.Driver, replay.pinger)
	}

	if rebuild {
		n, err := cb.Replay(ctx, purge)
		if err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
		logger.Info("Rebuild finished", zap.Int("count", n))
		return nil
	}

	server := chiTransport.NewServer(cb, idx, searchuc.New(idx), health, logger)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEvent(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Kafka.Enabled {
		consumer, err := kafka.NewConsumer(kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, messageHandler(cb, logger), logger)
		if err != nil {
			return fmt.Errorf("create kafka consumer: %w", err)
		}
		defer func() { _ = consumer.Close() }()
		g.Go(func() error { return consumer.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Stopped gracefully")
	return nil
}

func newStore(cfg config.Config) (db.Store, error) {
	switch cfg.Backend.Driver {
	case config.DriverRedis:
		return dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Backend.Addrs,
			Password: cfg.Backend.Password,
		})
	default:
		return factory.ElasticStore(cfg.Broker)
	}
}

// replaySource bundles a rebuild source with its health check and cleanup.
type replaySource struct {
	opener source.Opener
	pinger healthuc.Pinger
	close  func()
}

func openReplaySource(ctx context.Context, cfg config.SourceConfig) (*replaySource, error) {
	switch cfg.Driver {
	case config.SourceMongo:
		src, err := mongo.New(ctx, mongo.Config{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
		if err != nil {
			return nil, err
		}
		return &replaySource{
			opener: src,
			pinger: src,
			close:  func() { _ = src.Close(context.Background()) },
		}, nil
	case config.SourcePostgres:
		src, err := postgres.New(ctx, postgres.Config{
			DSN:       cfg.Postgres.DSN,
			Table:     cfg.Postgres.Table,
			BatchSize: cfg.Postgres.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		return &replaySource{
			opener: src,
			pinger: src,
			close:  func() { _ = src.Close() },
		}, nil
	default:
		return nil, nil
	}
}

// messageHandler adapts the callback to the consumer. Documents that can
// never be indexed are logged and committed. Any other error makes the
// consumer retry the same message with backoff, holding back later
// offsets of its partition until the backend recovers.
func messageHandler(cb *callbackuc.Service, logger *zap.Logger) kafka.Handler {
	return func(ctx context.Context, name string, doc map[string]any) error {
		_, err := cb.Handle(ctx, name, doc)
		if isPermanent(err) {
			logger.Warn("dropping unindexable document", zap.String("name", name), zap.Error(err))
			return nil
		}
		return err
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrMissingID) ||
		errors.Is(err, domain.ErrConversion) ||
		errors.Is(err, domain.ErrBulkPartial)
}
