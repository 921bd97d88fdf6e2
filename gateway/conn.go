// Package gateway owns the persistent WebSocket connection that carries
// server-pushed events.
//
// A Conn dials once and never reconnects. Inbound text frames shaped like
// JSON are decoded into Envelopes and handed to the handler one at a time, in
// arrival order, on the connection's single read goroutine. Other text is
// diagnostic and only logged.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	closeWait      = time.Second
	maxMessageSize = 1 << 20

	// Path appended to the host to reach the event stream.
	Path = "/ws"
)

var (
	ErrClosed      = errors.New("gateway: connection is not open")
	ErrAlreadyOpen = errors.New("gateway: Open already called")
)

// HandlerFunc receives every decoded envelope.
type HandlerFunc func(Envelope)

// Conn is a single outbound event-stream connection.
type Conn struct {
	url     string
	header  http.Header
	dialer  *websocket.Dialer
	handler HandlerFunc
	logger  *slog.Logger
	now     func() time.Time

	writeMu sync.Mutex
	ws      *websocket.Conn

	started   atomic.Bool
	open      atomic.Bool
	inHandler atomic.Bool
	done      chan struct{}
}

// Option configures a Conn.
type Option func(*Conn)

// WithDialer replaces the default websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Conn) { c.dialer = d }
}

// WithLogger sets the connection's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conn) { c.logger = l }
}

// WithCompression asks the server for zstd-compressed binary frames.
func WithCompression() Option {
	return func(c *Conn) {
		u, err := url.Parse(c.url)
		if err != nil {
			return
		}
		q := u.Query()
		q.Set("compress", "zstd")
		u.RawQuery = q.Encode()
		c.url = u.String()
	}
}

// EndpointURL maps a REST host onto the event-stream endpoint:
// https→wss, http→ws, and the fixed /ws path appended.
func EndpointURL(host string) (string, error) {
	u, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("parse host %q: %w", host, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported host scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + Path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// New prepares a connection to host authenticated with token. Nothing is
// dialled until Open.
func New(host, token string, handler HandlerFunc, opts ...Option) (*Conn, error) {
	endpoint, err := EndpointURL(host)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	c := &Conn{
		url:     endpoint,
		header:  header,
		dialer:  websocket.DefaultDialer,
		handler: handler,
		logger:  slog.Default(),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the endpoint the connection dials.
func (c *Conn) URL() string { return c.url }

// IsOpen reports whether the connection reached the open state and has not
// closed since.
func (c *Conn) IsOpen() bool { return c.open.Load() }

// Done is closed once the connection has closed or failed to open.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Open dials the endpoint, sends the diagnostic greeting and starts the read
// loop. It may be called once.
func (c *Conn) Open(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyOpen
	}

	ws, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.logger.Warn("gateway connection failed", "url", c.url, "err", err)
		close(c.done)
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	ws.SetReadLimit(maxMessageSize)

	c.writeMu.Lock()
	c.ws = ws
	c.writeMu.Unlock()
	c.open.Store(true)
	c.logger.Info("gateway connected", "url", c.url)

	if err := c.writeText("Connected: " + c.timestamp()); err != nil {
		c.logger.Warn("gateway greeting failed", "err", err)
	}

	go c.readLoop()
	return nil
}

// SendText writes a text frame.
func (c *Conn) SendText(text string) error {
	if !c.open.Load() {
		return ErrClosed
	}
	return c.writeText(text)
}

// Send writes a structured envelope to the server.
func (c *Conn) Send(name string, data any) error {
	frame, err := Encode(name, data)
	if err != nil {
		return err
	}
	return c.SendText(string(frame))
}

// Close sends a normal close frame and waits briefly for the read loop to
// observe it. Closing a connection that never opened is a no-op. Called from
// the handler it skips the wait, since the read loop is blocked on that call.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	ws := c.ws
	c.writeMu.Unlock()
	if ws == nil {
		return nil
	}
	if c.open.Load() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	}
	if !c.inHandler.Load() {
		select {
		case <-c.done:
		case <-time.After(closeWait):
		}
	}
	return ws.Close()
}

func (c *Conn) readLoop() {
	var readErr error
	defer func() { c.handleClose(readErr) }()

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			readErr = err
			return
		}
		c.handleFrame(mt, data)
	}
}

// handleFrame runs on the read goroutine, so envelopes reach the handler
// strictly in arrival order.
func (c *Conn) handleFrame(mt int, data []byte) {
	if mt == websocket.BinaryMessage {
		plain, err := Decompress(data)
		if err != nil {
			c.logger.Warn("gateway binary frame dropped", "err", err)
			return
		}
		data = plain
	}

	text := string(data)
	if !LooksLikeJSON(text) {
		c.logger.Debug("gateway text", "text", text)
		return
	}

	env, err := Decode(data)
	if err != nil {
		c.logger.Warn("gateway frame dropped", "err", err)
		return
	}
	if c.handler != nil {
		c.inHandler.Store(true)
		defer c.inHandler.Store(false)
		c.handler(env)
	}
}

func (c *Conn) handleClose(err error) {
	if err != nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Warn("gateway error", "err", err)
	}

	c.open.Store(false)
	c.logger.Info("gateway disconnected", "url", c.url)
	// Best effort; the transport is usually already gone.
	_ = c.writeText("Disconnected: " + c.timestamp())
	close(c.done)
}

func (c *Conn) writeText(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, []byte(text))
}

func (c *Conn) timestamp() string {
	return c.now().UTC().Format(time.RFC3339)
}
