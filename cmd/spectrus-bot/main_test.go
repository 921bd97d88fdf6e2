package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spectrus "github.com/clk-66/spectrus-go"
	"github.com/clk-66/spectrus-go/payload"
)

func execute(args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRegisterValidatesBeforeConnecting(t *testing.T) {
	t.Setenv("SPECTRUS_TOKEN", "t")
	t.Setenv("SPECTRUS_HOST", "http://127.0.0.1:1")

	_, err := execute("commands", "register", "Not Valid", "--description", "x")
	assert.ErrorIs(t, err, payload.ErrValidation)
}

func TestMissingTokenIsReported(t *testing.T) {
	t.Setenv("SPECTRUS_TOKEN", "")
	_, err := execute("commands", "list")
	assert.ErrorIs(t, err, spectrus.ErrMissingToken)
}

func TestConfigFlag(t *testing.T) {
	t.Setenv("SPECTRUS_TOKEN", "")
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: http://127.0.0.1:1\ntoken: t\n"), 0o600))

	// The config loads, so the failure is the unreachable host.
	_, err := execute("--config", path, "commands", "list")
	require.Error(t, err)
	assert.NotErrorIs(t, err, spectrus.ErrMissingToken)
}

func TestUnknownSubcommand(t *testing.T) {
	_, err := execute("nope")
	assert.Error(t, err)
}
