// Command billingd runs the subscription entitlement service: the billing
// provider webhook endpoint and the entitlement read endpoint.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shamar-morrison/show-seek-sub003/pkg/billing"
	"github.com/shamar-morrison/show-seek-sub003/pkg/config"
	"github.com/shamar-morrison/show-seek-sub003/pkg/httpserver"
	"github.com/shamar-morrison/show-seek-sub003/pkg/logger"
	"github.com/shamar-morrison/show-seek-sub003/pkg/mongo"
	"github.com/shamar-morrison/show-seek-sub003/pkg/pg"
	"github.com/shamar-morrison/show-seek-sub003/pkg/redis"
	"github.com/shamar-morrison/show-seek-sub003/svc/billingapi"
)

type appConfig struct {
	Env          string        `env:"APP_ENV" envDefault:"development"`
	StoreDriver  string        `env:"BILLING_STORE_DRIVER" envDefault:"postgres"`
	CatalogPath  string        `env:"BILLING_CATALOG_PATH"`
	CacheEnabled bool          `env:"BILLING_CACHE_ENABLED" envDefault:"false"`
	CacheTTL     time.Duration `env:"BILLING_CACHE_TTL" envDefault:"5m"`
}

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("billingd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var appCfg appConfig
	if err := config.Load(&appCfg); err != nil {
		return err
	}

	log := logger.New(logger.WithService("billingd", appCfg.Env))
	logger.SetAsDefault(log)

	catalog := billing.DefaultCatalog()
	if appCfg.CatalogPath != "" {
		var err error
		if catalog, err = billing.LoadCatalogFile(appCfg.CatalogPath); err != nil {
			return err
		}
		log.Info("loaded product catalog", slog.String("path", appCfg.CatalogPath))
	}

	store, ready, cleanup, err := openStore(ctx, appCfg.StoreDriver, log)
	if err != nil {
		return err
	}
	defer cleanup()

	recOpts := []billing.ReconcilerOption{billing.WithLogger(log)}
	if appCfg.CacheEnabled {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		recOpts = append(recOpts,
			billing.WithSnapshotCache(billing.NewRedisSnapshotCache(client, appCfg.CacheTTL)))
		log.Info("snapshot cache enabled", slog.Duration("ttl", appCfg.CacheTTL))
	}

	reconciler := billing.NewReconciler(store, catalog, recOpts...)

	var apiCfg billingapi.Config
	if err := config.Load(&apiCfg); err != nil {
		return err
	}
	api := billingapi.New(reconciler, apiCfg, log)

	r := chi.NewRouter()
	r.Mount("/v1", api.Handle())
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		if err := ready(req.Context()); err != nil {
			log.Warn("readiness probe failed", slog.Any("error", err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return err
	}
	srv := httpserver.New(httpCfg, httpserver.WithLogger(log))
	return srv.Run(ctx, r)
}

// openStore builds the entitlement store for the configured driver and
// returns it with its readiness probe and connection cleanup.
func openStore(ctx context.Context, driver string, log *slog.Logger) (billing.Store, func(context.Context) error, func(), error) {
	noop := func() {}

	switch driver {
	case "postgres":
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return nil, nil, noop, err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return nil, nil, noop, err
		}
		if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
			pool.Close()
			return nil, nil, noop, err
		}
		return billing.NewPGStore(pool), pg.Healthcheck(pool), pool.Close, nil

	case "mongo":
		var mongoCfg mongo.Config
		if err := config.Load(&mongoCfg); err != nil {
			return nil, nil, noop, err
		}
		client, err := mongo.Connect(ctx, mongoCfg)
		if err != nil {
			return nil, nil, noop, err
		}
		cleanup := func() { _ = client.Disconnect(context.Background()) }
		store := billing.NewMongoStore(client, client.Database(mongoCfg.Database))
		return store, mongo.Healthcheck(client), cleanup, nil

	case "memory":
		// Dev-only: state is lost on restart.
		alwaysReady := func(context.Context) error { return nil }
		return billing.NewMemoryStore(), alwaysReady, noop, nil

	default:
		return nil, nil, noop, fmt.Errorf("%w: %s", billing.ErrUnknownStoreDriver, driver)
	}
}
