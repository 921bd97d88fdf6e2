package spectrus

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SPECTRUS_TOKEN", "abc")
	t.Setenv("SPECTRUS_MAX_MEMBERS", "50")
	t.Setenv("SPECTRUS_HTTP_TIMEOUT", "3s")
	t.Setenv("SPECTRUS_COMPRESS", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.Token)
	assert.Equal(t, "http://localhost:3000", cfg.Host)
	assert.Equal(t, 50, cfg.MaxMembers)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.Compress)
}

func TestLoadConfigRequiresToken(t *testing.T) {
	t.Setenv("SPECTRUS_TOKEN", "")
	_, err := LoadConfig()
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host: https://chat.example.com
token: from-file
max_channels: 10
log_level: debug
`), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com", cfg.Host)
	assert.Equal(t, "from-file", cfg.Token)
	assert.Equal(t, 10, cfg.MaxChannels)
	assert.Equal(t, slog.LevelDebug, cfg.Level())

	t.Setenv("SPECTRUS_TOKEN", "from-env")
	cfg, err = LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Token)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{Host: "http://localhost:3000", Token: "t"}
	require.NoError(t, base.Validate())

	bad := base
	bad.Host = "ftp://example.com"
	assert.Error(t, bad.Validate())

	bad = base
	bad.MaxRoles = -1
	assert.Error(t, bad.Validate())

	bad = base
	bad.LogLevel = "loud"
	assert.Equal(t, slog.LevelInfo, bad.Level())
}
