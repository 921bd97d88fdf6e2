package spectrus

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

var ErrMissingToken = errors.New("spectrus: token is required")

// Config holds everything needed to construct a Client. Cache maxima of 0
// mean unbounded.
type Config struct {
	Host        string        `env:"SPECTRUS_HOST" yaml:"host"`
	Token       string        `env:"SPECTRUS_TOKEN" yaml:"token"`
	MaxChannels int           `env:"SPECTRUS_MAX_CHANNELS" yaml:"max_channels"`
	MaxMembers  int           `env:"SPECTRUS_MAX_MEMBERS" yaml:"max_members"`
	MaxRoles    int           `env:"SPECTRUS_MAX_ROLES" yaml:"max_roles"`
	MaxCommands int           `env:"SPECTRUS_MAX_COMMANDS" yaml:"max_commands"`
	Compress    bool          `env:"SPECTRUS_COMPRESS" yaml:"compress"`
	HTTPTimeout time.Duration `env:"SPECTRUS_HTTP_TIMEOUT" yaml:"http_timeout"`
	LogLevel    string        `env:"SPECTRUS_LOG_LEVEL" yaml:"log_level"`
}

// DefaultConfig returns the values used for anything not configured.
func DefaultConfig() Config {
	return Config{
		Host:     "http://localhost:3000",
		LogLevel: "info",
	}
}

// LoadConfig reads the configuration from SPECTRUS_* environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadConfigFile reads a YAML config file; SPECTRUS_* environment variables
// override values from the file.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the fields New depends on.
func (c Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	u, err := url.Parse(c.Host)
	if err != nil {
		return fmt.Errorf("spectrus: host %q: %w", c.Host, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("spectrus: host %q must be http or https", c.Host)
	}
	for name, v := range map[string]int{
		"max_channels": c.MaxChannels,
		"max_members":  c.MaxMembers,
		"max_roles":    c.MaxRoles,
		"max_commands": c.MaxCommands,
	} {
		if v < 0 {
			return fmt.Errorf("spectrus: %s must not be negative", name)
		}
	}
	return nil
}

// Level parses LogLevel, defaulting to Info.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func (c Config) apiURL() string {
	return strings.TrimRight(c.Host, "/") + "/api"
}
