package spectrus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clk-66/spectrus-go/cache"
	"github.com/clk-66/spectrus-go/gateway"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// offline returns a client that never dials; envelopes are fed to it by hand.
func offline(t *testing.T, cfg Config) *Client {
	t.Helper()
	cfg.Host = "http://127.0.0.1:1"
	cfg.Token = "test"
	c, err := New(cfg, WithLogger(discard()))
	require.NoError(t, err)
	return c
}

func live(t *testing.T, cfg Config) *Client {
	c := offline(t, cfg)
	c.replayBacklog()
	return c
}

func envelope(name, data string) gateway.Envelope {
	return gateway.Envelope{Name: name, Data: json.RawMessage(data)}
}

func record(c *Client) *[]Event {
	var got []Event
	c.OnEvent(func(e Event) { got = append(got, e) })
	return &got
}

func TestChannelEventsMutateBeforeEmit(t *testing.T) {
	c := live(t, Config{})
	var seen []bool
	On(c, func(e ChannelCreate) { seen = append(seen, c.Channels.Has(e.Channel.ID)) })
	On(c, func(e ChannelDelete) { seen = append(seen, c.Channels.Has(e.Channel.ID)) })

	c.handleEnvelope(envelope("CHANNEL_CREATE", `{"id":"c1","type":0,"name":"general"}`))
	c.handleEnvelope(envelope("CHANNEL_UPDATE", `{"id":"c1","type":0,"name":"renamed"}`))
	ch, ok := c.Channels.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "renamed", ch.Name)

	c.handleEnvelope(envelope("CHANNEL_DELETE", `{"id":"c1"}`))
	assert.Equal(t, []bool{true, false}, seen)
	assert.Zero(t, c.Channels.Len())
}

func TestRoleDeleteCarriesCachedRole(t *testing.T) {
	c := live(t, Config{})
	c.handleEnvelope(envelope("GUILD_ROLE_CREATE", `{"guild_id":"g","role":{"id":"r1","name":"mods","permissions":"8"}}`))
	require.True(t, c.Roles.Has("r1"))

	var got GuildRoleDelete
	var cachedAtEmit bool
	On(c, func(e GuildRoleDelete) {
		got = e
		cachedAtEmit = c.Roles.Has(e.RoleID)
	})
	c.handleEnvelope(envelope("GUILD_ROLE_DELETE", `{"guild_id":"g","role_id":"r1"}`))

	assert.Equal(t, "r1", got.RoleID)
	require.NotNil(t, got.Role)
	assert.Equal(t, "mods", got.Role.Name)
	assert.False(t, cachedAtEmit)

	// Deleting an uncached role still emits, with no role attached.
	c.handleEnvelope(envelope("GUILD_ROLE_DELETE", `{"guild_id":"g","role_id":"missing"}`))
	assert.Equal(t, "missing", got.RoleID)
	assert.Nil(t, got.Role)
}

func TestMemberKeyFallsBackToUserID(t *testing.T) {
	c := live(t, Config{})
	c.handleEnvelope(envelope("GUILD_MEMBER_ADD", `{"user":{"id":"u1","username":"ann"},"roles":[]}`))
	c.handleEnvelope(envelope("GUILD_MEMBER_UPDATE", `{"user_id":"u2","roles":["r"]}`))
	assert.ElementsMatch(t, []string{"u1", "u2"}, c.Members.Keys())

	c.handleEnvelope(envelope("GUILD_MEMBER_REMOVE", `{"guild_id":"g","user":{"id":"u1"}}`))
	assert.Equal(t, []string{"u2"}, c.Members.Keys())

	// A member with no user at all is dropped without touching the cache.
	events := record(c)
	c.handleEnvelope(envelope("GUILD_MEMBER_ADD", `{"roles":[]}`))
	assert.Empty(t, *events)
	assert.Equal(t, 1, c.Members.Len())
}

func TestUnknownAndMalformedEventsAreDropped(t *testing.T) {
	c := live(t, Config{})
	events := record(c)

	c.handleEnvelope(envelope("TYPING_START", `{"user_id":"u"}`))
	c.handleEnvelope(envelope("CHANNEL_CREATE", `"not an object"`))
	c.handleEnvelope(envelope("GUILD_ROLE_DELETE", `{"guild_id":"g"}`))
	c.handleEnvelope(envelope("CHANNEL_CREATE", `{"name":"x","type":0}`))
	c.handleEnvelope(envelope("CHANNEL_UPDATE", `{"name":"y","type":0}`))
	c.handleEnvelope(envelope("GUILD_ROLE_CREATE", `{"role":{"name":"anon"}}`))
	c.handleEnvelope(envelope("GUILD_ROLE_UPDATE", `{"name":"bare"}`))
	assert.Empty(t, *events)
	assert.Empty(t, c.Channels.Keys())
	assert.Empty(t, c.Roles.Keys())

	c.handleEnvelope(envelope("CHANNEL_CREATE", `{"id":"ok","type":0,"name":"fine"}`))
	require.Len(t, *events, 1)
	assert.IsType(t, ChannelCreate{}, (*events)[0])
}

func TestCapacityAppliesToNewKeysOnly(t *testing.T) {
	c := live(t, Config{MaxChannels: 1})
	events := record(c)

	c.handleEnvelope(envelope("CHANNEL_CREATE", `{"id":"a","name":"a"}`))
	c.handleEnvelope(envelope("CHANNEL_UPDATE", `{"id":"a","name":"a2"}`))
	c.handleEnvelope(envelope("CHANNEL_CREATE", `{"id":"b","name":"b"}`))

	assert.Len(t, *events, 2, "the over-capacity insert is not emitted")
	assert.Equal(t, []string{"a"}, c.Channels.Keys())

	_, err := c.Channels.Add("b", json.RawMessage(`{"id":"b"}`))
	assert.ErrorIs(t, err, cache.ErrCapacity)
}

func TestEventsHeldUntilReplay(t *testing.T) {
	c := offline(t, Config{})
	events := record(c)

	c.handleEnvelope(envelope("CHANNEL_CREATE", `{"id":"c1","name":"one"}`))
	c.handleEnvelope(envelope("CHANNEL_UPDATE", `{"id":"c1","name":"two"}`))
	assert.Empty(t, *events)
	assert.Zero(t, c.Channels.Len())

	c.replayBacklog()
	require.Len(t, *events, 2)
	assert.IsType(t, ChannelCreate{}, (*events)[0])
	assert.IsType(t, ChannelUpdate{}, (*events)[1])
	ch, _ := c.Channels.Get("c1")
	assert.Equal(t, "two", ch.Name)

	c.handleEnvelope(envelope("CHANNEL_DELETE", `{"id":"c1"}`))
	assert.Len(t, *events, 3)
}

func TestFailedBootstrapDropsBacklog(t *testing.T) {
	c := offline(t, Config{})
	events := record(c)
	c.handleEnvelope(envelope("CHANNEL_CREATE", `{"id":"c1","name":"one"}`))

	err := c.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, c.WaitReady(context.Background()), err)
	assert.Empty(t, *events)

	c.handleEnvelope(envelope("CHANNEL_CREATE", `{"id":"c2","name":"two"}`))
	assert.Len(t, *events, 1)
	assert.Equal(t, []string{"c2"}, c.Channels.Keys())
}

func TestFailedDialSettlesWaitReady(t *testing.T) {
	c := offline(t, Config{})
	openErr := c.Open(context.Background())
	require.Error(t, openErr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.WaitReady(ctx)
	assert.ErrorIs(t, err, openErr)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, c.Initialize(ctx), openErr)
}

func TestUnsubscribe(t *testing.T) {
	c := live(t, Config{})
	n := 0
	remove := On(c, func(ChannelCreate) { n++ })
	c.handleEnvelope(envelope("CHANNEL_CREATE", `{"id":"a"}`))
	remove()
	remove()
	c.handleEnvelope(envelope("CHANNEL_CREATE", `{"id":"b"}`))
	assert.Equal(t, 1, n)
}

func nestedMessage(levels int) string {
	msg := `null`
	for i := levels; i >= 0; i-- {
		msg = fmt.Sprintf(`{"id":"m%d","channel_id":"c","content":"level %d","referenced_message":%s}`, i, i, msg)
	}
	return msg
}

func TestReferenceDepthIsBounded(t *testing.T) {
	c := live(t, Config{})
	var got *Message
	On(c, func(e MessageCreate) { got = e.Message })
	c.handleEnvelope(envelope("MESSAGE_CREATE", nestedMessage(MaxReferenceDepth+2)))
	require.NotNil(t, got)

	depth := 0
	for m := got; m.ReferencedMessage != nil; m = m.ReferencedMessage {
		depth++
	}
	assert.Equal(t, MaxReferenceDepth, depth)

	shallow, err := c.newMessage(json.RawMessage(nestedMessage(1)))
	require.NoError(t, err)
	require.NotNil(t, shallow.ReferencedMessage)
	assert.Equal(t, "m1", shallow.ReferencedMessage.ID)
	assert.Nil(t, shallow.ReferencedMessage.ReferencedMessage)
}

func TestMessageMemberInheritsAuthor(t *testing.T) {
	c := live(t, Config{})
	m, err := c.newMessage(json.RawMessage(`{"id":"m","channel_id":"c","author":{"id":"u","username":"ann"},"member":{"nick":"A","roles":[]}}`))
	require.NoError(t, err)
	require.NotNil(t, m.Member)
	assert.Equal(t, "u", m.Member.ID())
	assert.Equal(t, "A", m.Member.DisplayName())
}

func TestInteractionDataVariants(t *testing.T) {
	c := live(t, Config{})
	cases := []struct {
		name  string
		typ   InteractionType
		data  string
		check func(t *testing.T, i *Interaction)
	}{
		{"ping", InteractionPing, `{}`, func(t *testing.T, i *Interaction) {
			assert.IsType(t, &PingData{}, i.Data)
		}},
		{"command", InteractionCommand, `{"id":"x","name":"echo","type":1,"options":[{"name":"text","type":3,"value":"hi"},{"name":"n","type":4,"value":7}]}`,
			func(t *testing.T, i *Interaction) {
				d, ok := i.CommandData()
				require.True(t, ok)
				assert.Equal(t, "echo", d.Name)
				o, ok := d.Option("text")
				require.True(t, ok)
				s, ok := o.AsString()
				assert.True(t, ok)
				assert.Equal(t, "hi", s)
				o, _ = d.Option("n")
				n, ok := o.AsInt()
				assert.True(t, ok)
				assert.EqualValues(t, 7, n)
				_, ok = o.AsString()
				assert.False(t, ok)
			}},
		{"component", InteractionComponent, `{"custom_id":"btn","component_type":2}`, func(t *testing.T, i *Interaction) {
			d, ok := i.ComponentData()
			require.True(t, ok)
			assert.Equal(t, "btn", d.CustomID)
			_, ok = i.CommandData()
			assert.False(t, ok)
		}},
		{"autocomplete", InteractionAutocomplete, `{"name":"find","options":[{"name":"sub","type":1,"options":[{"name":"q","type":3,"value":"ab","focused":true}]}]}`,
			func(t *testing.T, i *Interaction) {
				d, ok := i.AutocompleteData()
				require.True(t, ok)
				o, ok := d.Focused()
				require.True(t, ok)
				assert.Equal(t, "q", o.Name)
			}},
		{"modal", InteractionModalSubmit, `{"custom_id":"m","components":[{"type":1,"components":[{"type":4,"custom_id":"title","value":"Hello"}]}]}`,
			func(t *testing.T, i *Interaction) {
				d, ok := i.ModalSubmitData()
				require.True(t, ok)
				assert.Equal(t, map[string]string{"title": "Hello"}, d.Values())
			}},
		{"unknown", InteractionType(99), `{"anything":true}`, func(t *testing.T, i *Interaction) {
			d, ok := i.Data.(*UnknownInteractionData)
			require.True(t, ok)
			assert.Equal(t, InteractionType(99), d.Type)
			assert.JSONEq(t, `{"anything":true}`, string(d.Raw))
			assert.Equal(t, "unknown(99)", i.Type.String())
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got *Interaction
			remove := On(c, func(e InteractionCreate) { got = e.Interaction })
			defer remove()

			raw := fmt.Sprintf(`{"id":"i","application_id":"a","type":%d,"token":"t","version":1,`+
				`"member":{"user":{"id":"u","username":"ann"},"roles":[]},"data":%s}`, int(tc.typ), tc.data)
			c.handleEnvelope(envelope("INTERACTION_CREATE", raw))
			require.NotNil(t, got)
			assert.Equal(t, "u", got.Invoker().ID)
			tc.check(t, got)
		})
	}
}

func TestMemberActionsNeedUser(t *testing.T) {
	c := live(t, Config{})
	m, err := c.newMember(json.RawMessage(`{"user_id":"u","roles":[]}`))
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, m.Kick(ctx), ErrMissingUser)
	assert.ErrorIs(t, m.Ban(ctx, nil), ErrMissingUser)
	assert.ErrorIs(t, m.Unban(ctx), ErrMissingUser)
	assert.ErrorIs(t, m.AddRole(ctx, "r"), ErrMissingUser)
	assert.ErrorIs(t, m.RemoveRole(ctx, "r"), ErrMissingUser)
	_, err = m.Edit(ctx, nil)
	assert.ErrorIs(t, err, ErrMissingUser)
}

func TestVoiceStateLeave(t *testing.T) {
	c := live(t, Config{})
	var got *VoiceState
	On(c, func(e VoiceStateUpdate) { got = e.State })

	c.handleEnvelope(envelope("VOICE_STATE_UPDATE", `{"guild_id":"g","channel_id":null,"user_id":"u","session_id":"s"}`))
	require.NotNil(t, got)
	assert.False(t, got.Connected())
	_, ok := got.Channel()
	assert.False(t, ok)
}

func TestEventTypeNames(t *testing.T) {
	for _, e := range []Event{Ready{}, MessageCreate{}, GuildBanAdd{}, VoiceStateUpdate{}, InteractionCreate{}} {
		assert.Equal(t, strings.ToUpper(string(e.Type())), string(e.Type()))
	}
	assert.Equal(t, EventType("X"), UnknownEvent{Name: "X"}.Type())
}
