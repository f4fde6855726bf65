package main

import (
	"context"
	"log"
	stdhttp "net/http"

	"linkshrink/pkg/config"
	httphandler "linkshrink/pkg/http"
	"linkshrink/pkg/logging"
	"linkshrink/pkg/middleware"
	"linkshrink/pkg/policy"
	"linkshrink/pkg/service"
	"linkshrink/pkg/storage"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := logging.NewLogger(logging.LogLevel(cfg.LogLevel))

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := storage.NewPostgresStorage(pool)
	if err := store.Migrate(context.Background()); err != nil {
		log.Fatal(err)
	}

	pol := policy.New(policy.Config{
		Admins:         cfg.Admins,
		PowerUsers:     cfg.PowerUsers,
		BlockedDomains: cfg.BlockedDomains,
	})

	links := service.NewLinkService(store, pol, logger)
	visits := service.NewVisitRecorder(store, store, logger)
	stats := service.NewAggregationEngine(store)

	handler := httphandler.NewHandler(links, visits, stats, cfg.BaseURL)

	var rateLimit func(stdhttp.Handler) stdhttp.Handler
	if opt, err := redis.ParseURL(cfg.RedisURL); err == nil {
		client := redis.NewClient(opt)
		defer client.Close()
		rateLimit = middleware.NewRateLimiter(client, logger, cfg.RateLimit, cfg.RateWindow).Handler
	} else {
		logger.Warn(context.Background(), "no redis configured, rate limiting disabled", "error", err.Error())
	}

	r := chi.NewRouter()
	httphandler.SetupRedirectRoutes(r, handler, rateLimit)
	r.Handle("/metrics", promhttp.Handler())

	log.Println("Starting redirect server on :" + cfg.RedirectPort)
	log.Fatal(stdhttp.ListenAndServe(":"+cfg.RedirectPort, r))
}
