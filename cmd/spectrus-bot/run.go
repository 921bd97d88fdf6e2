package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	spectrus "github.com/clk-66/spectrus-go"
	"github.com/clk-66/spectrus-go/payload"
)

func newRunCommand(load loader) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect and answer pings until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger, prefix)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "!", "prefix for text commands")
	return cmd
}

func run(ctx context.Context, cfg spectrus.Config, logger *slog.Logger, prefix string) error {
	c, err := spectrus.New(cfg, spectrus.WithLogger(logger))
	if err != nil {
		return err
	}
	defer c.Close()

	c.OnEvent(func(e spectrus.Event) {
		logger.Debug("event", "event", e.Type())
	})
	spectrus.On(c, func(e spectrus.Ready) {
		logger.Info("connected", "user", e.User.Username, "guild", e.Guild.Name)
	})

	// Handlers run on the read loop; anything that calls the API is moved
	// off it.
	spectrus.On(c, func(e spectrus.MessageCreate) {
		m := e.Message
		if m.Author == nil || m.Author.Bot || !strings.HasPrefix(m.Content, prefix) {
			return
		}
		go handleText(ctx, logger, m, strings.TrimPrefix(m.Content, prefix))
	})
	spectrus.On(c, func(e spectrus.InteractionCreate) {
		go handleInteraction(ctx, logger, e.Interaction)
	})

	if err := c.Open(ctx); err != nil {
		return err
	}
	if err := c.WaitReady(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case <-c.Done():
		return fmt.Errorf("gateway connection closed")
	}
}

func handleText(ctx context.Context, logger *slog.Logger, m *spectrus.Message, command string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return
	}
	var reply string
	switch fields[0] {
	case "ping":
		reply = "pong"
	case "whoami":
		name := m.Author.DisplayName()
		if m.Member != nil {
			name = m.Member.DisplayName()
		}
		reply = "you are " + name
	default:
		return
	}
	if _, err := m.Reply(ctx, payload.Text(reply)); err != nil {
		logger.Warn("reply failed", "message_id", m.ID, "err", err)
	}
}

func handleInteraction(ctx context.Context, logger *slog.Logger, it *spectrus.Interaction) {
	var err error
	switch d := it.Data.(type) {
	case *spectrus.CommandData:
		switch d.Name {
		case "ping":
			err = it.RespondMessage(ctx, payload.Text("pong"))
		case "echo":
			text := "(nothing)"
			if o, ok := d.Option("text"); ok {
				if s, ok := o.AsString(); ok {
					text = s
				}
			}
			err = it.RespondMessage(ctx, payload.Text(text))
		default:
			err = it.RespondMessage(ctx, payload.Text("unknown command "+d.Name))
		}
	case *spectrus.ComponentData:
		err = it.Defer(ctx)
	default:
		logger.Info("interaction ignored", "type", it.Type.String())
		return
	}
	if err != nil {
		logger.Warn("interaction response failed", "interaction_id", it.ID, "err", err)
	}
}
