package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clk-66/spectrus-go/gateway"
	"github.com/clk-66/spectrus-go/internal/devserver/store"
	"github.com/clk-66/spectrus-go/rest"
)

type fixture struct {
	srv    *Server
	ts     *httptest.Server
	seeded *Seeded
	bot    *rest.Client
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig() Config {
	return Config{
		JWTSecret:     "test-secret",
		TokenTTL:      time.Hour,
		GuildName:     "Test Guild",
		BotName:       "bot",
		OwnerName:     "owner",
		OwnerPassword: "pw",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)

	srv := New(testConfig(), st, WithLogger(quiet()))
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Run(ctx)

	seeded, err := srv.Seed(ctx)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		st.Close()
	})
	return &fixture{
		srv:    srv,
		ts:     ts,
		seeded: seeded,
		bot:    rest.New(ts.URL+"/api", seeded.BotToken, rest.WithLogger(quiet())),
	}
}

func (f *fixture) client(t *testing.T, userID string) *rest.Client {
	t.Helper()
	tok, err := f.srv.IssueToken(userID)
	require.NoError(t, err)
	return rest.New(f.ts.URL+"/api", tok, rest.WithLogger(quiet()))
}

// listen opens an event stream as the bot and returns its envelopes.
func (f *fixture) listen(t *testing.T) <-chan gateway.Envelope {
	t.Helper()
	events, _ := f.dial(t)
	return events
}

func (f *fixture) dial(t *testing.T) (<-chan gateway.Envelope, *gateway.Conn) {
	t.Helper()
	events := make(chan gateway.Envelope, 64)
	conn, err := gateway.New(f.ts.URL, f.seeded.BotToken, func(env gateway.Envelope) { events <- env },
		gateway.WithLogger(quiet()))
	require.NoError(t, err)
	require.NoError(t, conn.Open(context.Background()))
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return f.srv.Hub().Connected(f.seeded.Bot.ID) }, 5*time.Second, 10*time.Millisecond)
	return events, conn
}

func next(t *testing.T, events <-chan gateway.Envelope) gateway.Envelope {
	t.Helper()
	select {
	case env := <-events:
		return env
	case <-time.After(5 * time.Second):
	}
	t.Fatal("timed out waiting for event")
	return gateway.Envelope{}
}

func status(err error) int {
	var httpErr *rest.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSeedListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var channels []store.Channel
	require.NoError(t, f.bot.Do(ctx, http.MethodGet, rest.Channels(), nil, &channels))
	require.Len(t, channels, 2)
	assert.Equal(t, "general", channels[0].Name)
	assert.Equal(t, 2, channels[1].Type)

	var members []store.Member
	require.NoError(t, f.bot.Do(ctx, http.MethodGet, rest.Members(), nil, &members))
	require.Len(t, members, 2)
	assert.Equal(t, "owner", members[0].User.Username)
	assert.Len(t, members[1].Roles, 1)

	var me store.User
	require.NoError(t, f.bot.Do(ctx, http.MethodGet, rest.CurrentUser(), nil, &me))
	assert.Equal(t, f.seeded.Bot.ID, me.ID)
	assert.True(t, me.Bot)

	var g store.Guild
	require.NoError(t, f.bot.Do(ctx, http.MethodGet, rest.Guild(), nil, &g))
	assert.Equal(t, "Test Guild", g.Name)
	assert.Equal(t, f.seeded.Owner.ID, g.OwnerID)
	assert.Equal(t, 2, g.MemberCount)

	var cmds []store.Command
	require.NoError(t, f.bot.Do(ctx, http.MethodGet, rest.Commands(), nil, &cmds))
	assert.Empty(t, cmds)
}

func TestAuth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	anon := rest.New(f.ts.URL+"/api", "", rest.WithLogger(quiet()))
	_, err := anon.Request(ctx, http.MethodGet, rest.Guild(), nil)
	assert.Equal(t, http.StatusUnauthorized, status(err))

	var login struct {
		Token string     `json:"token"`
		User  store.User `json:"user"`
	}
	require.NoError(t, anon.Do(ctx, http.MethodPost, rest.Login(),
		map[string]string{"username": "owner", "password": "pw"}, &login))
	assert.Equal(t, f.seeded.Owner.ID, login.User.ID)
	assert.NotEmpty(t, login.Token)

	_, err = anon.Request(ctx, http.MethodPost, rest.Login(), map[string]string{"username": "owner", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status(err))
	_, err = anon.Request(ctx, http.MethodPost, rest.Login(), map[string]string{"username": "bot", "password": ""})
	assert.Equal(t, http.StatusUnauthorized, status(err))
}

func TestChannelLifecycleBroadcasts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events := f.listen(t)

	var ch store.Channel
	require.NoError(t, f.bot.Do(ctx, http.MethodPost, rest.Channels(), map[string]any{"name": "news", "type": 5}, &ch))
	env := next(t, events)
	assert.Equal(t, "CHANNEL_CREATE", env.Name)
	assert.Contains(t, string(env.Data), ch.ID)

	require.NoError(t, f.bot.Do(ctx, http.MethodPatch, rest.Channel(ch.ID), map[string]any{"topic": "hot"}, &ch))
	assert.Equal(t, "hot", ch.Topic)
	assert.Equal(t, "CHANNEL_UPDATE", next(t, events).Name)

	_, err := f.bot.Request(ctx, http.MethodDelete, rest.Channel(ch.ID), nil)
	require.NoError(t, err)
	assert.Equal(t, "CHANNEL_DELETE", next(t, events).Name)

	_, err = f.bot.Request(ctx, http.MethodPost, rest.Channels(), map[string]any{"name": "x", "type": 99})
	assert.Equal(t, http.StatusBadRequest, status(err))
	_, err = f.bot.Request(ctx, http.MethodPost, rest.Channels(), map[string]any{"name": "x", "parent_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, status(err))
}

func TestPermissionsEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stranger, err := f.srv.Store().CreateUser(ctx, store.UserInput{Username: "stranger"})
	require.NoError(t, err)
	c := f.client(t, stranger.ID)

	_, err = c.Request(ctx, http.MethodPost, rest.Channels(), map[string]any{"name": "nope"})
	assert.Equal(t, http.StatusForbidden, status(err))

	_, err = c.Request(ctx, http.MethodPost, rest.Commands(), map[string]any{"name": "ping", "description": "d"})
	assert.Equal(t, http.StatusForbidden, status(err))

	// The owner passes every check without holding a role.
	owner := f.client(t, f.seeded.Owner.ID)
	_, err = owner.Request(ctx, http.MethodPost, rest.Channels(), map[string]any{"name": "owners-only"})
	assert.NoError(t, err)
}

func TestMessagesAndReactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events := f.listen(t)

	var channels []store.Channel
	require.NoError(t, f.bot.Do(ctx, http.MethodGet, rest.Channels(), nil, &channels))
	general := channels[0].ID

	var msg store.Message
	require.NoError(t, f.bot.Do(ctx, http.MethodPost, rest.ChannelMessages(general),
		map[string]any{"content": "hello", "nonce": "abc"}, &msg))
	env := next(t, events)
	assert.Equal(t, "MESSAGE_CREATE", env.Name)
	assert.Contains(t, string(env.Data), `"member"`)

	var reply store.Message
	require.NoError(t, f.bot.Do(ctx, http.MethodPost, rest.ChannelMessages(general), map[string]any{
		"content":           "reply",
		"message_reference": map[string]string{"message_id": msg.ID},
	}, &reply))
	require.NotNil(t, reply.ReferencedMessage)
	assert.Equal(t, "hello", reply.ReferencedMessage.Content)
	next(t, events)

	_, err := f.bot.Request(ctx, http.MethodPut, rest.MessageUserReaction(general, msg.ID, "👍", "@me"), nil)
	require.NoError(t, err)
	env = next(t, events)
	assert.Equal(t, "MESSAGE_REACTION_ADD", env.Name)
	assert.Contains(t, string(env.Data), "👍")

	var fetched store.Message
	require.NoError(t, f.bot.Do(ctx, http.MethodGet, rest.ChannelMessage(general, msg.ID), nil, &fetched))
	require.Len(t, fetched.Reactions, 1)
	assert.True(t, fetched.Reactions[0].Me)

	var users []store.User
	require.NoError(t, f.bot.Do(ctx, http.MethodGet, rest.MessageReaction(general, msg.ID, "👍"), nil, &users))
	require.Len(t, users, 1)

	_, err = f.bot.Request(ctx, http.MethodDelete, rest.MessageReactions(general, msg.ID), nil)
	require.NoError(t, err)
	assert.Equal(t, "MESSAGE_REACTION_REMOVE_ALL", next(t, events).Name)

	// Another member cannot edit the bot's message.
	owner := f.client(t, f.seeded.Owner.ID)
	_, err = owner.Request(ctx, http.MethodPatch, rest.ChannelMessage(general, msg.ID), map[string]any{"content": "x"})
	assert.Equal(t, http.StatusForbidden, status(err))

	_, err = f.bot.Request(ctx, http.MethodDelete, rest.ChannelMessage(general, msg.ID), nil)
	require.NoError(t, err)
	env = next(t, events)
	assert.Equal(t, "MESSAGE_DELETE", env.Name)
	assert.Contains(t, string(env.Data), msg.ID)
}

func TestRoleDeleteUpdatesHolders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events := f.listen(t)
	owner := f.seeded.Owner.ID

	var role store.Role
	require.NoError(t, f.bot.Do(ctx, http.MethodPost, rest.Roles(), map[string]any{"name": "mods", "permissions": "8192"}, &role))
	env := next(t, events)
	assert.Equal(t, "GUILD_ROLE_CREATE", env.Name)
	assert.Contains(t, string(env.Data), `"role":{`)

	_, err := f.bot.Request(ctx, http.MethodPut, rest.MemberRole(owner, role.ID), nil)
	require.NoError(t, err)
	assert.Equal(t, "GUILD_MEMBER_UPDATE", next(t, events).Name)

	_, err = f.bot.Request(ctx, http.MethodDelete, rest.Role(role.ID), nil)
	require.NoError(t, err)
	env = next(t, events)
	assert.Equal(t, "GUILD_ROLE_DELETE", env.Name)
	assert.JSONEq(t, `{"guild_id":"`+f.seeded.Guild.ID+`","role_id":"`+role.ID+`"}`, string(env.Data))
	env = next(t, events)
	assert.Equal(t, "GUILD_MEMBER_UPDATE", env.Name)
	assert.NotContains(t, string(env.Data), role.ID)

	_, err = f.bot.Request(ctx, http.MethodPost, rest.Roles(), map[string]any{"permissions": "abc"})
	assert.Equal(t, http.StatusBadRequest, status(err))
}

func TestBanFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.srv.Store()

	u, err := st.CreateUser(ctx, store.UserInput{Username: "troll"})
	require.NoError(t, err)
	_, err = st.AddMember(ctx, u.ID)
	require.NoError(t, err)
	events := f.listen(t)

	_, err = f.bot.Request(ctx, http.MethodPut, rest.Ban(u.ID), map[string]string{"reason": "spam"})
	require.NoError(t, err)
	assert.Equal(t, "GUILD_MEMBER_REMOVE", next(t, events).Name)
	env := next(t, events)
	assert.Equal(t, "GUILD_BAN_ADD", env.Name)
	assert.Contains(t, string(env.Data), "spam")

	var bans []store.Ban
	require.NoError(t, f.bot.Do(ctx, http.MethodGet, rest.Bans(), nil, &bans))
	require.Len(t, bans, 1)

	_, err = f.bot.Request(ctx, http.MethodDelete, rest.Ban(u.ID), nil)
	require.NoError(t, err)
	assert.Equal(t, "GUILD_BAN_REMOVE", next(t, events).Name)

	_, err = f.bot.Request(ctx, http.MethodDelete, rest.Ban(u.ID), nil)
	assert.Equal(t, http.StatusNotFound, status(err))
}

func TestCommandsUpsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var first, second store.Command
	require.NoError(t, f.bot.Do(ctx, http.MethodPost, rest.Commands(), map[string]any{"name": "ping", "type": 1, "description": "one"}, &first))
	require.NoError(t, f.bot.Do(ctx, http.MethodPost, rest.Commands(), map[string]any{"name": "ping", "type": 1, "description": "two"}, &second))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, f.seeded.Bot.ID, second.ApplicationID)

	_, err := f.bot.Request(ctx, http.MethodDelete, rest.Command(first.ID), nil)
	require.NoError(t, err)
	_, err = f.bot.Request(ctx, http.MethodDelete, rest.Command(first.ID), nil)
	assert.Equal(t, http.StatusNotFound, status(err))
}

func TestInteractionCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events := f.listen(t)

	var channels []store.Channel
	require.NoError(t, f.bot.Do(ctx, http.MethodGet, rest.Channels(), nil, &channels))

	it, err := f.srv.EmitInteraction(ctx, InteractionInput{
		Type:      InteractionCommand,
		ChannelID: channels[0].ID,
		UserID:    f.seeded.Owner.ID,
		Data:      map[string]any{"id": "cmd", "name": "ping", "type": 1},
	})
	require.NoError(t, err)

	env := next(t, events)
	assert.Equal(t, "INTERACTION_CREATE", env.Name)
	var got Interaction
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, it.Token, got.Token)
	require.NotNil(t, got.Member)
	assert.Equal(t, f.seeded.Owner.ID, got.Member.User.ID)

	_, err = f.bot.Request(ctx, http.MethodPost, rest.InteractionCallback(it.ID, "wrong"), map[string]any{"type": 4})
	assert.Equal(t, http.StatusNotFound, status(err))

	_, err = f.bot.Request(ctx, http.MethodPost, rest.InteractionCallback(it.ID, it.Token),
		map[string]any{"type": 4, "data": map[string]any{"content": "pong"}})
	require.NoError(t, err)

	env = next(t, events)
	assert.Equal(t, "MESSAGE_CREATE", env.Name)
	assert.Contains(t, string(env.Data), "pong")
	assert.Contains(t, string(env.Data), f.seeded.Bot.ID)

	_, err = f.bot.Request(ctx, http.MethodPost, rest.InteractionCallback(it.ID, it.Token), map[string]any{"type": 4})
	assert.Equal(t, http.StatusBadRequest, status(err))

	responses := f.srv.Responses(it.ID)
	require.Len(t, responses, 1)
	assert.Equal(t, 4, responses[0].Type)
}

func TestVoiceJoinChecksChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events, conn := f.dial(t)

	var channels []store.Channel
	require.NoError(t, f.bot.Do(ctx, http.MethodGet, rest.Channels(), nil, &channels))
	text, voice := channels[0].ID, channels[1].ID

	// Joining a text channel is dropped without an event.
	require.NoError(t, conn.Send("VOICE_STATE_UPDATE", map[string]any{"channel_id": text}))
	require.NoError(t, conn.Send("VOICE_STATE_UPDATE", map[string]any{"channel_id": voice, "self_mute": true}))

	env := next(t, events)
	assert.Equal(t, "VOICE_STATE_UPDATE", env.Name)
	var st struct {
		ChannelID *string `json:"channel_id"`
		UserID    string  `json:"user_id"`
		SelfMute  bool    `json:"self_mute"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &st))
	require.NotNil(t, st.ChannelID)
	assert.Equal(t, voice, *st.ChannelID)
	assert.Equal(t, f.seeded.Bot.ID, st.UserID)
	assert.True(t, st.SelfMute)
	joined, ok := f.srv.Hub().VoiceChannelOf(f.seeded.Bot.ID)
	assert.True(t, ok)
	assert.Equal(t, voice, joined)

	require.NoError(t, conn.Send("VOICE_STATE_UPDATE", map[string]any{"channel_id": nil}))
	env = next(t, events)
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Nil(t, st.ChannelID)
}

func TestBootstrapReusesSeed(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	srv := New(testConfig(), st, WithLogger(quiet()))
	first, err := srv.Bootstrap(context.Background())
	require.NoError(t, err)

	again := New(testConfig(), st, WithLogger(quiet()))
	second, err := again.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Bot.ID, second.Bot.ID)
	assert.Equal(t, first.Guild.ID, second.Guild.ID)

	_, err = again.Seed(context.Background())
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SPECTRUS_DEV_JWT_SECRET", "s")
	t.Setenv("SPECTRUS_DEV_PORT", "4000")
	t.Setenv("SPECTRUS_DEV_TOKEN_TTL", "30m")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "spectrus-bot", cfg.BotName)

	t.Setenv("SPECTRUS_DEV_JWT_SECRET", "")
	_, err = LoadConfig()
	assert.ErrorIs(t, err, ErrMissingSecret)
}
