// Command spectrus-devserver runs a single-guild chat server that speaks the
// same REST and event protocol as a production deployment. It exists for
// developing and testing bots locally.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/clk-66/spectrus-go/internal/devserver"
	"github.com/clk-66/spectrus-go/internal/devserver/store"
)

func main() {
	cfg, err := devserver.LoadConfig()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := devserver.New(cfg, st, devserver.WithLogger(logger))
	go srv.Run(ctx)

	seeded, err := srv.Bootstrap(ctx)
	if err != nil {
		slog.Error("bootstrap", "err", err)
		os.Exit(1)
	}
	slog.Info("guild ready",
		"guild_id", seeded.Guild.ID,
		"guild", seeded.Guild.Name,
		"bot_id", seeded.Bot.ID,
		"owner", seeded.Owner.Username,
	)
	// The token is printed so it can be pasted into SPECTRUS_TOKEN.
	slog.Info("bot token", "token", seeded.BotToken)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           chimiddleware.Logger(srv.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	slog.Info("server listening", "port", cfg.Port)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
