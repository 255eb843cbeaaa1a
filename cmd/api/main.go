package main

import (
	"context"
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"eatpoint/internal/adapters/audit"
	server "eatpoint/internal/adapters/http_server"
	"eatpoint/internal/adapters/observability"
	redisad "eatpoint/internal/adapters/redis"
	"eatpoint/internal/app"
	"eatpoint/internal/catalog"
	"eatpoint/internal/shared"
	mysqlrepo "eatpoint/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// catalog (built-in defaults unless a file overrides them)
	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		if cat, err = catalog.Load(cfg.CatalogPath); err != nil {
			log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("catalog load failed")
		}
		log.Info().Str("path", cfg.CatalogPath).Msg("catalog loaded")
	}

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cache.Ping(context.Background()); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, caching will fail open")
	}
	sink := audit.NewDispatcher(audit.NewStore(db), cfg.AuditQueueSize)
	defer sink.Close()

	lifecycle := app.NewLifecycleService(repo, sink, cache, cat)
	discovery := app.NewDiscoveryService(repo, cat)
	queries := app.NewQueryService(repo, cache, cfg.CacheTTL)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		L:           lifecycle,
		D:           discovery,
		Q:           queries,
		SearchLimit: rate.NewLimiter(rate.Limit(cfg.SearchRPS), cfg.SearchBurst),
	})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
