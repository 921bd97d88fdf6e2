package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is read from SPECTRUS_DEV_* environment variables.
type Config struct {
	Port      string        `env:"SPECTRUS_DEV_PORT" envDefault:"3000"`
	DBPath    string        `env:"SPECTRUS_DEV_DB_PATH" envDefault:"./data/devserver.db"`
	JWTSecret string        `env:"SPECTRUS_DEV_JWT_SECRET"`
	Domain    string        `env:"SPECTRUS_DEV_DOMAIN"`
	TokenTTL  time.Duration `env:"SPECTRUS_DEV_TOKEN_TTL" envDefault:"24h"`
	LogLevel  string        `env:"SPECTRUS_DEV_LOG_LEVEL" envDefault:"info"`

	GuildName     string `env:"SPECTRUS_DEV_GUILD_NAME" envDefault:"Spectrus Dev"`
	BotName       string `env:"SPECTRUS_DEV_BOT_NAME" envDefault:"spectrus-bot"`
	OwnerName     string `env:"SPECTRUS_DEV_OWNER_NAME" envDefault:"owner"`
	OwnerPassword string `env:"SPECTRUS_DEV_OWNER_PASSWORD" envDefault:"owner"`
}

var ErrMissingSecret = errors.New("SPECTRUS_DEV_JWT_SECRET must be set")

func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTSecret == "" {
		return Config{}, ErrMissingSecret
	}
	return cfg, nil
}
