package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration
	CatalogPath string

	AuditQueueSize int

	SearchRPS   float64
	SearchBurst int

	SeedFile    string
	SeedWorkers int
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/eatpoint?parseTime=true&clientFoundRows=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisDB:     atoi("REDIS_DB", 0),
		RedisPass:   env("REDIS_PASSWORD", ""),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		CatalogPath: env("CATALOG_PATH", ""),

		AuditQueueSize: atoi("AUDIT_QUEUE_SIZE", 256),

		SearchRPS:   atof("SEARCH_RPS", 50),
		SearchBurst: atoi("SEARCH_BURST", 100),

		SeedFile:    env("SEED_FILE", "seed/establishments.json"),
		SeedWorkers: atoi("SEED_WORKERS", 8),
	}
	// the status compare-and-set reads RowsAffected as "rows matched"
	if !strings.Contains(c.MySQLDSN, "clientFoundRows=true") {
		log.Warn().Msg("MYSQL_DSN without clientFoundRows=true misreports guarded writes")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
