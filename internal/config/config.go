package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/ykvlv/lesson-bot/internal/domain"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken      string        `envconfig:"BOT_TOKEN" required:"true"`
	StoreDriver   string        `envconfig:"STORE_DRIVER" default:"sqlite"` // sqlite|json
	DBPath        string        `envconfig:"DB_PATH" default:"./data/lessons.db"`
	JSONPath      string        `envconfig:"JSON_PATH" default:"./data/lessons_data.json"`
	Timezone      string        `envconfig:"TIMEZONE" default:"Asia/Bishkek"`
	TemplateUser  string        `envconfig:"TEMPLATE_USER_ID"` // empty disables seeding
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"60s"`
	SweepDelay    time.Duration `envconfig:"SWEEP_DELAY" default:"10s"`
	SendTimeout   time.Duration `envconfig:"SEND_TIMEOUT" default:"10s"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"15m"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error
	HTTPAddr      string        `envconfig:"HTTP_ADDR" default:":8080"` // healthz
}

// Load reads an optional .env file, then environment variables into Config.
func Load(envFiles ...string) (Config, error) {
	var cfg Config
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load env file: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if cfg.StoreDriver != "sqlite" && cfg.StoreDriver != "json" {
		return cfg, fmt.Errorf("STORE_DRIVER must be sqlite or json, got %q", cfg.StoreDriver)
	}
	return cfg, nil
}

// Location resolves Timezone. An unknown zone falls back to fixed UTC+6 and
// the lookup error is returned alongside for logging.
func (c Config) Location() (*time.Location, error) {
	return domain.LoadLocation(c.Timezone)
}
