// Package hub fans server events out to every connected WebSocket client.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/clk-66/spectrus-go/gateway"
)

// ErrStopped is returned by Broadcast once Run has returned.
var ErrStopped = errors.New("hub stopped")

// VoiceCheck vets a voice join before it is recorded. A non-nil error
// rejects the join.
type VoiceCheck func(ctx context.Context, userID, channelID string) error

// Hub maintains the set of active clients.
//
// Registration, unregistration and fan-out happen on the single Run
// goroutine. userIndex is also read by Connected, so it has its own lock;
// voice state is written from readPump goroutines and is guarded by voiceMu.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	guildID  func() string
	check    VoiceCheck

	// Event-loop fields, only touched inside Run.
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	indexMu   sync.RWMutex
	userIndex map[string][]*Client

	voiceMu sync.RWMutex
	voice   map[string]VoiceState
}

// Option configures a Hub.
type Option func(*Hub)

func WithLogger(l *slog.Logger) Option { return func(h *Hub) { h.logger = l } }

func WithVoiceCheck(fn VoiceCheck) Option { return func(h *Hub) { h.check = fn } }

// New builds a hub. domain restricts browser origins; empty allows all.
// guildID is stamped onto voice state broadcasts.
func New(domain string, guildID func() string, opts ...Option) *Hub {
	h := &Hub{
		logger:     slog.Default(),
		guildID:    guildID,
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		userIndex:  make(map[string][]*Client),
		voice:      make(map[string]VoiceState),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     makeCheckOrigin(domain, h.logger),
	}
	return h
}

// makeCheckOrigin allows requests without an Origin (bots and other native
// clients), localhost, and origins whose host matches domain.
func makeCheckOrigin(domain string, logger *slog.Logger) func(*http.Request) bool {
	if domain == "" {
		return func(r *http.Request) bool { return true }
	}
	allowed := normaliseHost(domain)

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || origin == "null" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			logger.Warn("ws upgrade rejected: malformed Origin header", "origin", origin)
			return false
		}
		h := normaliseHost(u.Hostname())
		if h == allowed || h == "localhost" || h == "127.0.0.1" {
			return true
		}
		logger.Warn("ws upgrade rejected: origin not allowed", "origin", origin, "allowed_domain", allowed)
		return false
	}
}

func normaliseHost(h string) string {
	h = strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(h), "https://"), "http://")
	if host, _, err := net.SplitHostPort(h); err == nil {
		return host
	}
	return h
}

// Run is the hub's event loop. It returns when ctx is cancelled, closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.indexMu.Lock()
			h.userIndex[c.UserID] = append(h.userIndex[c.UserID], c)
			h.indexMu.Unlock()
			h.logger.Info("ws connected", "user_id", c.UserID, "total", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; !ok {
				continue
			}
			h.drop(c)
			h.logger.Info("ws disconnected", "user_id", c.UserID, "total", len(h.clients))

			// Fan out directly: queueing on h.broadcast from inside Run
			// could block on a full buffer.
			if _, was := h.LeaveVoice(c.UserID); was {
				frame, err := gateway.Encode(EventVoiceStateUpdate, VoiceState{
					GuildID:   h.guildID(),
					UserID:    c.UserID,
					SessionID: c.SessionID,
				})
				if err == nil {
					h.fanOut(frame)
				}
			}

		case frame := <-h.broadcast:
			h.fanOut(frame)
		}
	}
}

func (h *Hub) fanOut(frame []byte) {
	for c := range h.clients {
		if !c.queue(frame) {
			// Slow consumer; its readPump will unregister it.
			h.logger.Warn("ws send buffer full, dropping client", "user_id", c.UserID)
			h.drop(c)
		}
	}
}

// drop removes c from the loop's bookkeeping and closes its send channel.
// Only called from Run.
func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.removeFromUserIndex(c)
	close(c.send)
}

// Broadcast encodes an event and queues it for every client.
func (h *Hub) Broadcast(name string, data any) error {
	frame, err := gateway.Encode(name, data)
	if err != nil {
		return err
	}
	select {
	case <-h.done:
		return ErrStopped
	default:
	}
	select {
	case h.broadcast <- frame:
		return nil
	case <-h.done:
		return ErrStopped
	}
}

// Connected reports whether userID has at least one open connection.
func (h *Hub) Connected(userID string) bool {
	h.indexMu.RLock()
	defer h.indexMu.RUnlock()
	return len(h.userIndex[userID]) > 0
}

// ServeWS upgrades an HTTP connection and registers the client. A
// compress=zstd query parameter switches the client to compressed binary
// frames.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	c := newClient(h, conn, userID, uuid.NewString(), r.URL.Query().Get("compress") == "zstd")
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (h *Hub) removeFromUserIndex(target *Client) {
	h.indexMu.Lock()
	defer h.indexMu.Unlock()

	conns := h.userIndex[target.UserID]
	filtered := conns[:0]
	for _, c := range conns {
		if c != target {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		delete(h.userIndex, target.UserID)
	} else {
		h.userIndex[target.UserID] = filtered
	}
}
