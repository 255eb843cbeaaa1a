// Command seed loads sample establishments through the real lifecycle
// service: create as the owning partner, then submit and approve unless
// the item asks to stay a draft. Running it twice plants duplicates;
// point it at a fresh database.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"eatpoint/internal/adapters/audit"
	"eatpoint/internal/adapters/observability"
	redisad "eatpoint/internal/adapters/redis"
	"eatpoint/internal/app"
	"eatpoint/internal/catalog"
	"eatpoint/internal/domain"
	"eatpoint/internal/shared"
	mysqlrepo "eatpoint/internal/storage/mysql"
)

var moderator = domain.Actor{ID: "seed-moderator", Role: domain.RoleModerator}

type seedItem struct {
	PartnerID    string                          `json:"partner_id"`
	Name         string                          `json:"name"`
	Description  string                          `json:"description"`
	City         string                          `json:"city"`
	Address      string                          `json:"address"`
	Latitude     *float64                        `json:"latitude"`
	Longitude    *float64                        `json:"longitude"`
	Categories   []string                        `json:"categories"`
	Cuisines     []string                        `json:"cuisines"`
	PriceRange   string                          `json:"price_range"`
	WorkingHours map[string]domain.HoursInterval `json:"working_hours"`
	SpecialHours map[string]domain.HoursInterval `json:"special_hours"`
	Attributes   map[string]bool                 `json:"attributes"`

	// Draft stops after creation, leaving the item unpublished.
	Draft bool `json:"draft"`
}

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Str("file", cfg.SeedFile).
		Int("workers", cfg.SeedWorkers).
		Msg("seed starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		if cat, err = catalog.Load(cfg.CatalogPath); err != nil {
			log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("catalog load failed")
		}
	}

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	sink := audit.NewDispatcher(audit.NewStore(db), cfg.AuditQueueSize)
	lifecycle := app.NewLifecycleService(repo, sink, cache, cat)

	items, err := readSeed(cfg.SeedFile)
	if err != nil {
		log.Fatal().Err(err).Msg("read seed file failed")
	}

	sem := semaphore.NewWeighted(int64(cfg.SeedWorkers))
	var wg sync.WaitGroup

	for i := range items {
		item := items[i]

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, int64(1)); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(it seedItem) {
			defer wg.Done()
			defer sem.Release(int64(1))

			if err := plant(ctx, lifecycle, it); err != nil {
				log.Warn().Str("name", it.Name).Err(err).Msg("seed failed")
				return
			}
			log.Info().Str("name", it.Name).Str("city", it.City).Msg("seed ok")
		}(item)
	}

	wg.Wait()
	sink.Close()
	log.Info().Msg("seeding completed")
}

func plant(ctx context.Context, svc *app.LifecycleService, it seedItem) error {
	partner := domain.Actor{ID: it.PartnerID, Role: domain.RolePartner}
	e, err := svc.Create(ctx, partner, app.CreateInput{
		Name:         it.Name,
		Description:  it.Description,
		City:         it.City,
		Address:      it.Address,
		Latitude:     it.Latitude,
		Longitude:    it.Longitude,
		Categories:   it.Categories,
		Cuisines:     it.Cuisines,
		PriceRange:   it.PriceRange,
		WorkingHours: it.WorkingHours,
		SpecialHours: it.SpecialHours,
		Attributes:   it.Attributes,
	})
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if it.Draft {
		return nil
	}
	if _, err := svc.Submit(ctx, partner, e.ID); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if _, err := svc.Approve(ctx, moderator, e.ID, nil); err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	return nil
}

func readSeed(path string) ([]seedItem, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []seedItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("seed file %s holds no items", path)
	}
	return items, nil
}
