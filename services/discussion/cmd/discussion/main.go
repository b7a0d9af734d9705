package main

import (
	"context"
	"errors"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/experience-platform/internal/platform/analytics"
	"github.com/example/experience-platform/internal/platform/auth"
	"github.com/example/experience-platform/internal/platform/config"
	"github.com/example/experience-platform/internal/platform/db"
	"github.com/example/experience-platform/internal/platform/httpserver"
	"github.com/example/experience-platform/internal/platform/logging"
	"github.com/example/experience-platform/internal/platform/metrics"
	"github.com/example/experience-platform/internal/platform/natsconn"
	"github.com/example/experience-platform/internal/platform/run"
	"github.com/example/experience-platform/services/discussion/internal/handlers"
	"github.com/example/experience-platform/services/discussion/internal/ledger"
	"github.com/example/experience-platform/services/discussion/internal/permission"
	"github.com/example/experience-platform/services/discussion/internal/store"
	"github.com/example/experience-platform/services/discussion/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}

	code := serve(cfg, log)
	log.Info("exit", zap.Int("code", code))
	_ = log.Sync()
	run.Exit(code)
}

// serve wires the service and blocks until it stops. Deferred closers run
// before serve returns, so main can exit right after.
func serve(cfg config.AppConfig, log *zap.Logger) int {
	st, pool := initStore(cfg, log)
	if pool != nil {
		defer pool.Close()
	}

	cache, closeCache := initPermissionCache(cfg, log)
	if closeCache != nil {
		defer closeCache()
	}

	replies := ledger.NewReplyLedger(st, st)
	reports := ledger.NewReportLedger(st, st)
	likes := ledger.NewLikeLedger(st, st)
	resolver := permission.NewResolver(st, st, st, permission.WithCache(cache), permission.WithLogger(log))

	// NATS is optional: without it events are dropped and no popularity logs are written.
	var pub *analytics.Publisher
	var consumer *worker.PopularityConsumer
	nc, err := natsconn.Connect(natsconn.Options{Name: cfg.ServiceName, Logger: log})
	if err != nil {
		log.Error("nats connect", zap.Error(err))
	} else {
		defer nc.Close()
		js, err := nc.JetStream(nats.PublishAsyncMaxPending(256))
		if err != nil {
			log.Error("nats jetstream", zap.Error(err))
		} else {
			pub = analytics.New(js, log)
			consumer, err = worker.NewPopularityConsumer(js, st, cfg.WorkerBatchSize, cfg.WorkerBatchIntervalMs, log)
			if err != nil {
				log.Error("popularity consumer", zap.Error(err))
			}
		}
	}

	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: readyFunc(st)})
	r.Handle("/metrics", metrics.Handler())

	// Public reads
	r.Get("/v1/replies/{id}/reports", handlers.ListReports(store.NamespaceReplies, reports, log))
	r.Get("/v1/experiences/{id}/reports", handlers.ListReports(store.NamespaceExperiences, reports, log))

	// Semi-authenticated reads
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalUser(verifier))
		r.Get("/v1/experiences/{id}/replies", handlers.ListReplies(replies, likes, log))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Post("/v1/experiences/{id}/replies", handlers.CreateReply(replies, pub, log))
		r.Post("/v1/experiences/{id}/reports", handlers.CreateReport(store.NamespaceExperiences, reports, pub, log))
		r.Post("/v1/replies/{id}/reports", handlers.CreateReport(store.NamespaceReplies, reports, pub, log))
		r.Post("/v1/replies/{id}/likes", handlers.LikeReply(likes, pub, log))
		r.Get("/v1/me/replies", handlers.MyReplies(replies, log))
		r.Get("/v1/me/permissions/search", handlers.SearchPermission(resolver, log))

		r.With(auth.RequireAdmin).Put("/v1/replies/{id}/status", handlers.SetReplyStatus(replies, log))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	return runner.WithSignals(func(ctx context.Context) error {
		consumerDone := make(chan struct{})
		go func() {
			defer close(consumerDone)
			if consumer != nil {
				consumer.Run(ctx)
			}
		}()
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(log) }()

		select {
		case <-ctx.Done():
			runner.Graceful("http", srv.Shutdown)
			<-consumerDone
			return nil
		case err := <-errCh:
			return err
		}
	})
}

// initStore selects the Store backend. Production requires Postgres;
// elsewhere a missing or unreachable database falls back to memory.
func initStore(cfg config.AppConfig, log *zap.Logger) (store.Store, *pgxpool.Pool) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory discussion store (development only)")
		return store.NewInMemoryStore(), nil
	}

	pool, err := db.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		if cfg.IsProduction() {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory store", zap.Error(err))
		return store.NewInMemoryStore(), nil
	}

	log.Info("discussion store: postgres")
	return store.NewPostgresStore(pool), pool
}

// initPermissionCache shares grants through Redis when REDIS_URL is set and
// keeps them in process otherwise.
func initPermissionCache(cfg config.AppConfig, log *zap.Logger) (permission.Cache, func()) {
	if cfg.RedisURL == "" {
		return permission.NewTTLCache(cfg.PermissionCacheTTL), nil
	}
	rc, err := permission.NewRedisCache(context.Background(), cfg.RedisURL, cfg.PermissionCacheTTL)
	if err != nil {
		log.Warn("redis unavailable, using in-process permission cache", zap.Error(err))
		return permission.NewTTLCache(cfg.PermissionCacheTTL), nil
	}
	log.Info("permission cache: redis")
	return rc, func() { _ = rc.Close() }
}

// pinger is implemented by stores backed by a remote database.
type pinger interface {
	Ping(ctx context.Context) error
}

// readyFunc reports the store's reachability on /readyz. The in-memory store
// is always ready.
func readyFunc(st store.Store) func() error {
	p, ok := st.(pinger)
	if !ok {
		return nil
	}
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			return errors.New("database unreachable")
		}
		return nil
	}
}
