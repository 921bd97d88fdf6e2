// Command spectrus-bot is a small bot and admin tool built on the client
// library: it can stay connected and answer pings, and manage the bot's
// application commands.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	spectrus "github.com/clk-66/spectrus-go"
)

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "spectrus-bot",
		Short:         "Spectrus bot runner and command manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"YAML config file (SPECTRUS_* environment variables override it)")

	load := func() (spectrus.Config, *slog.Logger, error) {
		var (
			cfg spectrus.Config
			err error
		)
		if configPath != "" {
			cfg, err = spectrus.LoadConfigFile(configPath)
		} else {
			cfg, err = spectrus.LoadConfig()
		}
		if err != nil {
			return cfg, nil, err
		}
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
		slog.SetDefault(logger)
		return cfg, logger, nil
	}

	cmd.AddCommand(
		newRunCommand(load),
		newCommandsCommand(load),
	)
	return cmd
}

// loader reads the configuration selected by the root flags.
type loader func() (spectrus.Config, *slog.Logger, error)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("spectrus-bot", "err", err)
		os.Exit(1)
	}
}
