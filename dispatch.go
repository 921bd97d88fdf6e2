package spectrus

import (
	"encoding/json"
	"fmt"

	"github.com/clk-66/spectrus-go/gateway"
)

// handleEnvelope is the gateway's frame handler. It runs on the read
// goroutine, so envelopes reach dispatch one at a time in arrival order.
func (c *Client) handleEnvelope(env gateway.Envelope) {
	if c.hold(env) {
		return
	}
	c.dispatch(env)
}

// dispatch decodes env, applies its cache mutation and only then emits it.
func (c *Client) dispatch(env gateway.Envelope) {
	evt, err := c.decode(env)
	if err != nil {
		c.logger.Warn("event decode failed", "event", env.Name, "err", err)
		return
	}
	if u, ok := evt.(UnknownEvent); ok {
		c.logger.Warn("unknown event dropped", "event", u.Name)
		return
	}
	evt, err = c.apply(evt)
	if err != nil {
		c.logger.Error("cache update failed", "event", env.Name, "err", err)
		return
	}
	c.handlers.emit(evt)
}

// decode maps an envelope onto its event type and constructs the payload
// entity. Names outside the table become UnknownEvent.
func (c *Client) decode(env gateway.Envelope) (Event, error) {
	data := env.Data
	switch EventType(env.Name) {
	case EventMessageCreate:
		m, err := c.newMessage(data)
		return MessageCreate{Message: m}, err
	case EventMessageUpdate:
		m, err := c.newMessage(data)
		return MessageUpdate{Message: m}, err
	case EventMessageDelete:
		m, err := c.newMessage(data)
		return MessageDelete{Message: m}, err

	case EventMessageReactionAdd:
		r, err := c.newMessageReaction(data)
		return MessageReactionAdd{Reaction: r}, err
	case EventMessageReactionRemove:
		r, err := c.newMessageReaction(data)
		return MessageReactionRemove{Reaction: r}, err
	case EventMessageReactionRemoveAll:
		var e MessageReactionRemoveAll
		err := json.Unmarshal(data, &e)
		return e, err

	case EventGuildMemberAdd:
		m, err := c.newMember(data)
		return GuildMemberAdd{Member: m}, err
	case EventGuildMemberUpdate:
		m, err := c.newMember(data)
		return GuildMemberUpdate{Member: m}, err
	case EventGuildMemberRemove:
		m, err := c.newMember(data)
		return GuildMemberRemove{Member: m}, err

	case EventGuildBanAdd:
		b, err := c.newGuildBan(data)
		return GuildBanAdd{Ban: b}, err
	case EventGuildBanRemove:
		b, err := c.newGuildBan(data)
		return GuildBanRemove{Ban: b}, err

	case EventGuildUpdate:
		g, err := c.newGuild(data)
		return GuildUpdate{Guild: g}, err

	case EventGuildRoleCreate:
		r, err := c.newRole(data)
		return GuildRoleCreate{Role: r}, err
	case EventGuildRoleUpdate:
		r, err := c.newRole(data)
		return GuildRoleUpdate{Role: r}, err
	case EventGuildRoleDelete:
		var v struct {
			RoleID string `json:"role_id"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		if v.RoleID == "" {
			return nil, fmt.Errorf("role delete: %w", errNoID)
		}
		return GuildRoleDelete{RoleID: v.RoleID}, nil

	case EventChannelCreate:
		ch, err := c.newChannel(data)
		return ChannelCreate{Channel: ch}, err
	case EventChannelUpdate:
		ch, err := c.newChannel(data)
		return ChannelUpdate{Channel: ch}, err
	case EventChannelDelete:
		ch, err := c.newChannel(data)
		return ChannelDelete{Channel: ch}, err

	case EventVoiceStateUpdate:
		v, err := c.newVoiceState(data)
		return VoiceStateUpdate{State: v}, err

	case EventInteractionCreate:
		i, err := c.newInteraction(data)
		return InteractionCreate{Interaction: i}, err
	}
	return UnknownEvent{Name: env.Name, Data: data}, nil
}

// apply performs the cache mutation for evt and returns the event to emit.
// Events that touch no cache are listed explicitly so a new event type must
// be placed on one side.
func (c *Client) apply(evt Event) (Event, error) {
	var err error
	switch e := evt.(type) {
	case ChannelCreate:
		err = c.setChannel(e.Channel)
	case ChannelUpdate:
		err = c.setChannel(e.Channel)
	case ChannelDelete:
		c.Channels.Remove(e.Channel.ID)

	case GuildMemberAdd:
		err = c.setMember(e.Member)
	case GuildMemberUpdate:
		err = c.setMember(e.Member)
	case GuildMemberRemove:
		if id := e.Member.ID(); id != "" {
			c.Members.Remove(id)
		}

	case GuildRoleCreate:
		err = c.setRole(e.Role)
	case GuildRoleUpdate:
		err = c.setRole(e.Role)
	case GuildRoleDelete:
		// the wire event has only the id
		e.Role, _ = c.Roles.Get(e.RoleID)
		c.Roles.Remove(e.RoleID)
		return e, nil

	case GuildUpdate:
		c.setGuild(e.Guild)

	case Ready, MessageCreate, MessageUpdate, MessageDelete,
		MessageReactionAdd, MessageReactionRemove, MessageReactionRemoveAll,
		GuildBanAdd, GuildBanRemove, VoiceStateUpdate, InteractionCreate:
	default:
		err = fmt.Errorf("no cache policy for %s", evt.Type())
	}
	return evt, err
}

func (c *Client) setChannel(ch *Channel) error {
	if ch.ID == "" {
		return fmt.Errorf("channel: %w", errNoID)
	}
	return c.Channels.Set(ch.ID, ch)
}

func (c *Client) setRole(r *Role) error {
	if r.ID == "" {
		return fmt.Errorf("role: %w", errNoID)
	}
	return c.Roles.Set(r.ID, r)
}

func (c *Client) setMember(m *Member) error {
	id := m.ID()
	if id == "" {
		return fmt.Errorf("member: %w", errNoID)
	}
	return c.Members.Set(id, m)
}
