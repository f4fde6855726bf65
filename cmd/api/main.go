package main

import (
	"context"
	"log"
	stdhttp "net/http"

	"linkshrink/pkg/config"
	httphandler "linkshrink/pkg/http"
	"linkshrink/pkg/logging"
	"linkshrink/pkg/policy"
	"linkshrink/pkg/service"
	"linkshrink/pkg/storage"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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

	r := chi.NewRouter()
	httphandler.SetupAPIRoutes(r, handler)
	r.Handle("/metrics", promhttp.Handler())

	log.Println("Starting API server on :" + cfg.APIPort)
	log.Fatal(stdhttp.ListenAndServe(":"+cfg.APIPort, r))
}
