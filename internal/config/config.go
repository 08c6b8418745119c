package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

// Config carries all runtime settings, populated from the environment.
type Config struct {
	Environment string `env:"LABDESK_ENV" envDefault:"development"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	// DatabaseDriver selects the gorm driver: "sqlite" or "postgres".
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseDSN    string `env:"DATABASE_DSN" envDefault:"file:labdesk.db?_pragma=busy_timeout(5000)"`

	DefaultCurrency string `env:"DEFAULT_CURRENCY" envDefault:"MXN"`

	// PriceTableJSON overrides the built-in work-type price catalog.
	// Format: {"corona_zirconia": "2750.00", ...}
	PriceTableJSON string `env:"PRICE_TABLE_JSON"`

	RepairBatchSize    int           `env:"REPAIR_BATCH_SIZE" envDefault:"20"`
	RepairPollInterval time.Duration `env:"REPAIR_POLL_INTERVAL" envDefault:"5s"`

	AdminRateLimit       int           `env:"ADMIN_RATE_LIMIT" envDefault:"30"`
	AdminRateLimitWindow time.Duration `env:"ADMIN_RATE_LIMIT_WINDOW" envDefault:"1m"`

	SeedDemoData bool `env:"SEED_DEMO_DATA" envDefault:"false"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPProtocol string `env:"OTEL_EXPORTER_OTLP_PROTOCOL" envDefault:"http"`
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load parses the configuration from process environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var Module = fx.Module("config",
	fx.Provide(Load),
)
