package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"event-aggregator/internal/application"
	"event-aggregator/internal/config"
	httpserver "event-aggregator/internal/infrastructure/http"
	"event-aggregator/internal/infrastructure/logx"
	"event-aggregator/internal/infrastructure/memstore"
	"event-aggregator/internal/infrastructure/natspub"
	"event-aggregator/internal/infrastructure/observability"
	"event-aggregator/internal/infrastructure/pg"
	redisstore "event-aggregator/internal/infrastructure/redis"
	"event-aggregator/internal/infrastructure/sqlite"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrMissingDBURL = errors.New("DATABASE_URL is required for STORAGE=pg")

const serviceName = "event-aggregator"

// ProvideLogger applies LOG_LEVEL from the loaded config, which may come from
// a .env file read after logx initialized.
func ProvideLogger(cfg config.Config) *zap.Logger {
	if err := logx.SetLevel(cfg.LogLevel); err != nil {
		logx.L().Warn("config.log_level_ignored", zap.Error(err))
	}
	return logx.L()
}

func ProvideConfig() (config.Config, error) { return config.Load() }

// ProvideStore opens the backend selected by STORAGE. Connecting is retried
// until STORE_CONNECT_TIMEOUT so the service can start before its database.
func ProvideStore(ctx context.Context, cfg config.Config, log *zap.Logger) (application.EventStore, func(), error) {
	log = log.With(zap.String("storage", cfg.Storage))
	ctx, cancel := context.WithTimeout(ctx, cfg.StoreConnectTimeout)
	defer cancel()

	switch cfg.Storage {
	case "pg":
		if cfg.DatabaseURL == "" {
			return nil, func() {}, ErrMissingDBURL
		}
		var db *pg.DB
		err := retryConnect(ctx, log, func(ctx context.Context) error {
			conn, err := pg.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			if err := conn.Ping(ctx); err != nil {
				conn.Close()
				return err
			}
			db = conn
			return nil
		})
		if err != nil {
			return nil, func() {}, fmt.Errorf("connect pg: %w", err)
		}
		if err := pg.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, func() {}, err
		}
		cleanup := func() {
			log.Info("closing pg")
			db.Close()
		}
		return pg.NewEventStore(db), cleanup, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		err := retryConnect(ctx, log, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		if err != nil {
			_ = client.Close()
			return nil, func() {}, fmt.Errorf("connect redis: %w", err)
		}
		cleanup := func() {
			log.Info("closing redis")
			_ = client.Close()
		}
		return redisstore.New(client, cfg.RedisKeyPrefix), cleanup, nil

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, func() {}, err
		}
		cleanup := func() {
			log.Info("closing sqlite")
			_ = db.Close()
		}
		return sqlite.NewStore(db), cleanup, nil

	case "memory":
		log.Warn("using in-memory store; events are lost on restart")
		return memstore.New(), func() {}, nil

	default:
		return nil, func() {}, fmt.Errorf("unsupported STORAGE=%q", cfg.Storage)
	}
}

// ProvideMetricsModule returns nil when metrics are disabled.
func ProvideMetricsModule(cfg config.Config) (*observability.Module, func(), error) {
	if !cfg.MetricsEnabled {
		return nil, func() {}, nil
	}
	mod, err := observability.New(serviceName)
	if err != nil {
		return nil, func() {}, fmt.Errorf("metrics: %w", err)
	}
	return mod, func() { _ = mod.Shutdown(context.Background()) }, nil
}

func ProvideMetrics(cfg config.Config, mod *observability.Module) (*observability.Metrics, error) {
	if mod == nil {
		return nil, nil
	}
	return observability.NewMetrics(mod.Meter(), cfg.MetricsTopics...)
}

func ProvideNotifier(cfg config.Config, log *zap.Logger) (application.Notifier, func(), error) {
	pub, err := natspub.New(cfg.NATSURL, cfg.NATSSubjectPrefix, log)
	if err != nil {
		return nil, func() {}, fmt.Errorf("connect nats: %w", err)
	}
	return pub, pub.Close, nil
}

func ProvideIngestionService(
	store application.EventStore,
	notifier application.Notifier,
	metrics *observability.Metrics,
	cfg config.Config,
	log *zap.Logger,
) *application.IngestionService {
	opts := []application.Option{
		application.WithNotifier(notifier),
		application.WithLogger(log),
		application.WithInsertTimeout(cfg.InsertTimeout),
		application.WithListLimits(cfg.ListDefaultLimit, cfg.ListMaxLimit),
	}
	if metrics != nil {
		opts = append(opts, application.WithRecorder(metrics))
	}
	return application.NewIngestionService(store, opts...)
}

func ProvideServer(
	svc *application.IngestionService,
	mod *observability.Module,
	metrics *observability.Metrics,
	cfg config.Config,
) *httpserver.Server {
	srv := httpserver.NewServer(svc)
	srv.SetCORSOrigins(cfg.CORSOrigins)
	if mod != nil {
		srv.SetMetricsHandler(mod.MetricsHandler())
	}
	if metrics != nil {
		srv.Use(observability.HTTPMetrics(metrics))
	}
	return srv
}

// API is what cmd/api needs to serve.
type API struct {
	Server *httpserver.Server
	Config config.Config
	Log    *zap.Logger
}
