// Package devserver is a single-guild chat server speaking the same REST and
// WebSocket protocol the client library consumes. It backs the client's
// integration tests and the spectrus-devserver binary.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/clk-66/spectrus-go/internal/devserver/auth"
	"github.com/clk-66/spectrus-go/internal/devserver/hub"
	"github.com/clk-66/spectrus-go/internal/devserver/store"
	"github.com/clk-66/spectrus-go/payload"
)

// Server wires the store, the hub and the HTTP routes together.
type Server struct {
	cfg    Config
	store  *store.Store
	hub    *hub.Hub
	issuer *auth.Issuer
	logger *slog.Logger
	router chi.Router

	mu           sync.RWMutex
	appID        string
	interactions map[string]*pendingInteraction
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// New builds a server over an open store. Call Run to start the hub.
func New(cfg Config, st *store.Store, opts ...Option) *Server {
	s := &Server{
		cfg:          cfg,
		store:        st,
		issuer:       auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		logger:       slog.Default(),
		interactions: make(map[string]*pendingInteraction),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = hub.New(cfg.Domain, st.GuildID,
		hub.WithLogger(s.logger),
		hub.WithVoiceCheck(s.checkVoiceJoin),
	)
	s.router = s.routes()
	return s
}

// Run drives the hub until ctx is cancelled.
func (s *Server) Run(ctx context.Context) { s.hub.Run(ctx) }

// Handler returns the HTTP entry point.
func (s *Server) Handler() http.Handler { return s.router }

// Hub exposes the event hub, mainly so tests can wait for connections.
func (s *Server) Hub() *hub.Hub { return s.hub }

// Store exposes the underlying store.
func (s *Server) Store() *store.Store { return s.store }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.issuer))
		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			s.hub.ServeWS(w, r, auth.UserID(r.Context()))
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.issuer))

			r.Get("/users/@me", s.currentUser)
			r.Get("/guild", s.getGuild)
			r.Patch("/guild", s.updateGuild)

			r.Get("/channels", s.listChannels)
			r.Post("/channels", s.createChannel)
			r.Route("/channels/{channelID}", func(r chi.Router) {
				r.Patch("/", s.updateChannel)
				r.Delete("/", s.deleteChannel)
				r.Post("/messages", s.createMessage)
				r.Route("/messages/{messageID}", func(r chi.Router) {
					r.Get("/", s.getMessage)
					r.Patch("/", s.updateMessage)
					r.Delete("/", s.deleteMessage)
					r.Delete("/reactions", s.removeAllReactions)
					r.Get("/reactions/{emoji}", s.listReactors)
					r.Put("/reactions/{emoji}/{userID}", s.addReaction)
					r.Delete("/reactions/{emoji}/{userID}", s.removeReaction)
				})
			})

			r.Get("/members", s.listMembers)
			r.Route("/members/{userID}", func(r chi.Router) {
				r.Get("/", s.getMember)
				r.Patch("/", s.updateMember)
				r.Delete("/", s.kickMember)
				r.Put("/roles/{roleID}", s.addMemberRole)
				r.Delete("/roles/{roleID}", s.removeMemberRole)
			})

			r.Get("/bans", s.listBans)
			r.Put("/bans/{userID}", s.banMember)
			r.Delete("/bans/{userID}", s.unbanMember)

			r.Get("/roles", s.listRoles)
			r.Post("/roles", s.createRole)
			r.Patch("/roles/{roleID}", s.updateRole)
			r.Delete("/roles/{roleID}", s.deleteRole)

			r.Get("/commands", s.listCommands)
			r.Post("/commands", s.createCommand)
			r.Delete("/commands/{commandID}", s.deleteCommand)

			r.Post("/interactions/{interactionID}/{token}/callback", s.interactionCallback)
		})
	})
	return r
}

// broadcast logs rather than fails: the REST mutation already happened.
func (s *Server) broadcast(name string, data any) {
	if err := s.hub.Broadcast(name, data); err != nil {
		s.logger.Warn("broadcast failed", "event", name, "err", err)
	}
}

func (s *Server) checkVoiceJoin(ctx context.Context, userID, channelID string) error {
	ch, err := s.store.Channel(ctx, channelID)
	if err != nil {
		return err
	}
	switch payload.ChannelType(ch.Type) {
	case payload.ChannelVoice, payload.ChannelStage:
	default:
		return errors.New("not a voice channel")
	}
	if _, err := s.store.Member(ctx, userID); err != nil {
		return err
	}
	return nil
}

// ---- Response helpers ----------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store and permission errors onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var forbidden ErrForbidden
	switch {
	case errors.As(err, &forbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody treats an empty body as "no fields".
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
