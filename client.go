package spectrus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/clk-66/spectrus-go/cache"
	"github.com/clk-66/spectrus-go/gateway"
	"github.com/clk-66/spectrus-go/payload"
	"github.com/clk-66/spectrus-go/rest"
)

// Client is the entry point: one REST client, one gateway connection and
// the four entity caches.
type Client struct {
	Channels *cache.Store[*Channel]
	Members  *cache.Store[*Member]
	Roles    *cache.Store[*Role]
	Commands *cache.Store[*ApplicationCommand]

	cfg     Config
	logger  *slog.Logger
	rest    *rest.Client
	gateway *gateway.Conn

	handlers handlers

	mu    sync.RWMutex
	user  *User
	guild *Guild

	// Envelopes received before bootstrap finished, replayed after Ready.
	backlogMu sync.Mutex
	live      bool
	backlog   []gateway.Envelope

	started  atomic.Bool
	ready    chan struct{}
	readyErr error

	lifetime context.Context
	cancel   context.CancelFunc
}

type options struct {
	logger     *slog.Logger
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// Option configures collaborators that do not fit in Config.
type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHTTPClient replaces the REST transport. Config.HTTPTimeout is ignored
// when it is set.
func WithHTTPClient(h *http.Client) Option {
	return func(o *options) { o.httpClient = h }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// New builds a client without touching the network.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	c := &Client{
		cfg:    cfg,
		logger: o.logger,
		ready:  make(chan struct{}),
	}
	c.lifetime, c.cancel = context.WithCancel(context.Background())

	c.rest = rest.New(cfg.apiURL(), cfg.Token,
		rest.WithHTTPClient(o.httpClient),
		rest.WithLogger(o.logger),
	)

	gwOpts := []gateway.Option{gateway.WithLogger(o.logger)}
	if o.dialer != nil {
		gwOpts = append(gwOpts, gateway.WithDialer(o.dialer))
	}
	if cfg.Compress {
		gwOpts = append(gwOpts, gateway.WithCompression())
	}
	gw, err := gateway.New(cfg.Host, cfg.Token, c.handleEnvelope, gwOpts...)
	if err != nil {
		return nil, err
	}
	c.gateway = gw

	c.Channels = cache.New(c.newChannel, cfg.MaxChannels)
	c.Members = cache.New(c.newMember, cfg.MaxMembers)
	c.Roles = cache.New(c.newRole, cfg.MaxRoles)
	c.Commands = cache.New(c.newCommand, cfg.MaxCommands)
	return c, nil
}

// Open connects the gateway and starts bootstrap in the background. Use
// WaitReady to learn how bootstrap went. A failed dial also settles
// WaitReady with the dial error.
func (c *Client) Open(ctx context.Context) error {
	if err := c.gateway.Open(ctx); err != nil {
		if c.started.CompareAndSwap(false, true) {
			c.dropBacklog()
			c.readyErr = err
			close(c.ready)
		}
		return err
	}
	go func() {
		_ = c.Initialize(c.lifetime)
	}()
	return nil
}

// Initialize runs the bootstrap: channels, members, roles, commands, the
// current user and the guild, fetched in that order. On success it emits
// Ready and then replays events that arrived in the meantime. Only the first
// call bootstraps; later calls wait for it.
func (c *Client) Initialize(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return c.WaitReady(ctx)
	}
	if err := c.bootstrap(ctx); err != nil {
		c.logger.Error("bootstrap failed", "err", err)
		c.dropBacklog()
		c.readyErr = err
		close(c.ready)
		return err
	}

	user, guild := c.User(), c.Guild()
	c.logger.Info("client ready",
		"user_id", user.ID,
		"guild_id", guild.ID,
		"channels", c.Channels.Len(),
		"members", c.Members.Len(),
		"roles", c.Roles.Len(),
		"commands", c.Commands.Len(),
	)
	c.handlers.emit(Ready{User: user, Guild: guild})
	c.replayBacklog()
	close(c.ready)
	return nil
}

func (c *Client) bootstrap(ctx context.Context) error {
	if err := populate(ctx, c, rest.Channels(), c.Channels, idOf); err != nil {
		return fmt.Errorf("fetch channels: %w", err)
	}
	if err := populate(ctx, c, rest.Members(), c.Members, memberKeyOf); err != nil {
		return fmt.Errorf("fetch members: %w", err)
	}
	if err := populate(ctx, c, rest.Roles(), c.Roles, idOf); err != nil {
		return fmt.Errorf("fetch roles: %w", err)
	}
	if err := populate(ctx, c, rest.Commands(), c.Commands, idOf); err != nil {
		return fmt.Errorf("fetch commands: %w", err)
	}

	raw, err := c.rest.Request(ctx, http.MethodGet, rest.CurrentUser(), nil)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	user, err := newUser(raw)
	if err != nil {
		return fmt.Errorf("decode user: %w", err)
	}

	raw, err = c.rest.Request(ctx, http.MethodGet, rest.Guild(), nil)
	if err != nil {
		return fmt.Errorf("fetch guild: %w", err)
	}
	guild, err := c.newGuild(raw)
	if err != nil {
		return fmt.Errorf("decode guild: %w", err)
	}

	c.mu.Lock()
	c.user = user
	c.guild = guild
	c.mu.Unlock()
	return nil
}

func populate[T any](ctx context.Context, c *Client, path string, store *cache.Store[T], key func(json.RawMessage) (string, error)) error {
	var items []json.RawMessage
	if err := c.rest.Do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return err
	}
	for _, raw := range items {
		id, err := key(raw)
		if err != nil {
			return err
		}
		if _, err := store.Add(id, raw); err != nil {
			return err
		}
	}
	return nil
}

// hold queues env while bootstrap is running and reports whether it did.
func (c *Client) hold(env gateway.Envelope) bool {
	c.backlogMu.Lock()
	defer c.backlogMu.Unlock()
	if c.live {
		return false
	}
	c.backlog = append(c.backlog, env)
	return true
}

// replayBacklog dispatches queued envelopes in order until the queue is
// empty, then switches to direct dispatch under the same lock, so nothing
// queued concurrently is lost or reordered.
func (c *Client) replayBacklog() {
	for {
		c.backlogMu.Lock()
		batch := c.backlog
		c.backlog = nil
		if len(batch) == 0 {
			c.live = true
			c.backlogMu.Unlock()
			return
		}
		c.backlogMu.Unlock()

		for _, env := range batch {
			c.dispatch(env)
		}
	}
}

func (c *Client) dropBacklog() {
	c.backlogMu.Lock()
	n := len(c.backlog)
	c.backlog = nil
	c.live = true
	c.backlogMu.Unlock()
	if n > 0 {
		c.logger.Warn("discarded events received before failed bootstrap", "count", n)
	}
}

// WaitReady blocks until bootstrap has finished and returns its error.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return c.readyErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// User is the account the token belongs to; nil before bootstrap.
func (c *Client) User() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Guild is the bound guild; nil before bootstrap.
func (c *Client) Guild() *Guild {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.guild
}

func (c *Client) setGuild(g *Guild) {
	c.mu.Lock()
	c.guild = g
	c.mu.Unlock()
}

// REST exposes the underlying REST client for routes without a typed
// wrapper.
func (c *Client) REST() *rest.Client { return c.rest }

// Done is closed when the gateway connection has ended.
func (c *Client) Done() <-chan struct{} { return c.gateway.Done() }

// Close stops bootstrap if it is still running and closes the gateway.
//
// Close may be called from an event handler; it then returns without waiting
// for the read loop, which is the handler's own goroutine.
func (c *Client) Close() error {
	c.cancel()
	return c.gateway.Close()
}

// RegisterCommand creates an application command and caches it. spec is a
// *payload.Command or a payload.CommandOptions.
func (c *Client) RegisterCommand(ctx context.Context, spec payload.CommandSpec) (*ApplicationCommand, error) {
	body, err := spec.CommandPayload()
	if err != nil {
		return nil, err
	}
	raw, err := c.rest.Request(ctx, http.MethodPost, rest.Commands(), body)
	if err != nil {
		return nil, err
	}
	id, err := idOf(raw)
	if err != nil {
		return nil, fmt.Errorf("register command %s: %w", body.Name(), err)
	}
	return c.Commands.Add(id, raw)
}

// UnregisterCommand deletes an application command and drops it from the
// command cache.
func (c *Client) UnregisterCommand(ctx context.Context, id string) error {
	if _, err := c.rest.Request(ctx, http.MethodDelete, rest.Command(id), nil); err != nil {
		return err
	}
	c.Commands.Remove(id)
	return nil
}

// Member returns the cached member, fetching it when it is not cached. A
// fetched member is not added to the cache.
func (c *Client) Member(ctx context.Context, userID string) (*Member, error) {
	if m, ok := c.Members.Get(userID); ok {
		return m, nil
	}
	raw, err := c.rest.Request(ctx, http.MethodGet, rest.Member(userID), nil)
	if err != nil {
		return nil, err
	}
	return c.newMember(raw)
}

// UpdateVoiceState asks the server to move the current user into channelID,
// or out of voice when channelID is empty. The resulting VOICE_STATE_UPDATE
// arrives as an event.
func (c *Client) UpdateVoiceState(channelID string, selfMute, selfDeaf bool) error {
	var ch *string
	if channelID != "" {
		ch = &channelID
	}
	return c.gateway.Send("VOICE_STATE_UPDATE", struct {
		ChannelID *string `json:"channel_id"`
		SelfMute  bool    `json:"self_mute"`
		SelfDeaf  bool    `json:"self_deaf"`
	}{ch, selfMute, selfDeaf})
}
