package spectrus

import (
	"encoding/json"
	"sync"
)

// EventType is the wire name of an event.
type EventType string

const (
	EventReady                    EventType = "READY"
	EventMessageCreate            EventType = "MESSAGE_CREATE"
	EventMessageUpdate            EventType = "MESSAGE_UPDATE"
	EventMessageDelete            EventType = "MESSAGE_DELETE"
	EventMessageReactionAdd       EventType = "MESSAGE_REACTION_ADD"
	EventMessageReactionRemove    EventType = "MESSAGE_REACTION_REMOVE"
	EventMessageReactionRemoveAll EventType = "MESSAGE_REACTION_REMOVE_ALL"
	EventGuildMemberAdd           EventType = "GUILD_MEMBER_ADD"
	EventGuildMemberUpdate        EventType = "GUILD_MEMBER_UPDATE"
	EventGuildMemberRemove        EventType = "GUILD_MEMBER_REMOVE"
	EventGuildBanAdd              EventType = "GUILD_BAN_ADD"
	EventGuildBanRemove           EventType = "GUILD_BAN_REMOVE"
	EventGuildUpdate              EventType = "GUILD_UPDATE"
	EventGuildRoleCreate          EventType = "GUILD_ROLE_CREATE"
	EventGuildRoleUpdate          EventType = "GUILD_ROLE_UPDATE"
	EventGuildRoleDelete          EventType = "GUILD_ROLE_DELETE"
	EventChannelCreate            EventType = "CHANNEL_CREATE"
	EventChannelUpdate            EventType = "CHANNEL_UPDATE"
	EventChannelDelete            EventType = "CHANNEL_DELETE"
	EventVoiceStateUpdate         EventType = "VOICE_STATE_UPDATE"
	EventInteractionCreate        EventType = "INTERACTION_CREATE"
)

// Event is implemented only by the event types of this package.
type Event interface {
	Type() EventType
	event()
}

// Ready is emitted once bootstrap has populated every cache.
type Ready struct {
	User  *User
	Guild *Guild
}

type MessageCreate struct{ Message *Message }
type MessageUpdate struct{ Message *Message }

// MessageDelete carries a partial message: ID, ChannelID and GuildID.
type MessageDelete struct{ Message *Message }

type MessageReactionAdd struct{ Reaction *MessageReaction }
type MessageReactionRemove struct{ Reaction *MessageReaction }

type MessageReactionRemoveAll struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	GuildID   string `json:"guild_id,omitempty"`
}

type GuildMemberAdd struct{ Member *Member }
type GuildMemberUpdate struct{ Member *Member }

// GuildMemberRemove is emitted after the member left the member cache.
type GuildMemberRemove struct{ Member *Member }

type GuildBanAdd struct{ Ban *GuildBan }
type GuildBanRemove struct{ Ban *GuildBan }

type GuildUpdate struct{ Guild *Guild }

type GuildRoleCreate struct{ Role *Role }
type GuildRoleUpdate struct{ Role *Role }

// GuildRoleDelete is emitted after the role left the role cache. Role is the
// cached copy at removal time, nil if it was not cached.
type GuildRoleDelete struct {
	RoleID string
	Role   *Role
}

type ChannelCreate struct{ Channel *Channel }
type ChannelUpdate struct{ Channel *Channel }
type ChannelDelete struct{ Channel *Channel }

type VoiceStateUpdate struct{ State *VoiceState }

type InteractionCreate struct{ Interaction *Interaction }

// UnknownEvent is an envelope whose name is not in the event table. It is
// logged and dropped, never delivered to handlers.
type UnknownEvent struct {
	Name string
	Data json.RawMessage
}

func (Ready) Type() EventType                    { return EventReady }
func (MessageCreate) Type() EventType            { return EventMessageCreate }
func (MessageUpdate) Type() EventType            { return EventMessageUpdate }
func (MessageDelete) Type() EventType            { return EventMessageDelete }
func (MessageReactionAdd) Type() EventType       { return EventMessageReactionAdd }
func (MessageReactionRemove) Type() EventType    { return EventMessageReactionRemove }
func (MessageReactionRemoveAll) Type() EventType { return EventMessageReactionRemoveAll }
func (GuildMemberAdd) Type() EventType           { return EventGuildMemberAdd }
func (GuildMemberUpdate) Type() EventType        { return EventGuildMemberUpdate }
func (GuildMemberRemove) Type() EventType        { return EventGuildMemberRemove }
func (GuildBanAdd) Type() EventType              { return EventGuildBanAdd }
func (GuildBanRemove) Type() EventType           { return EventGuildBanRemove }
func (GuildUpdate) Type() EventType              { return EventGuildUpdate }
func (GuildRoleCreate) Type() EventType          { return EventGuildRoleCreate }
func (GuildRoleUpdate) Type() EventType          { return EventGuildRoleUpdate }
func (GuildRoleDelete) Type() EventType          { return EventGuildRoleDelete }
func (ChannelCreate) Type() EventType            { return EventChannelCreate }
func (ChannelUpdate) Type() EventType            { return EventChannelUpdate }
func (ChannelDelete) Type() EventType            { return EventChannelDelete }
func (VoiceStateUpdate) Type() EventType         { return EventVoiceStateUpdate }
func (InteractionCreate) Type() EventType        { return EventInteractionCreate }
func (e UnknownEvent) Type() EventType           { return EventType(e.Name) }

func (Ready) event()                    {}
func (MessageCreate) event()            {}
func (MessageUpdate) event()            {}
func (MessageDelete) event()            {}
func (MessageReactionAdd) event()       {}
func (MessageReactionRemove) event()    {}
func (MessageReactionRemoveAll) event() {}
func (GuildMemberAdd) event()           {}
func (GuildMemberUpdate) event()        {}
func (GuildMemberRemove) event()        {}
func (GuildBanAdd) event()              {}
func (GuildBanRemove) event()           {}
func (GuildUpdate) event()              {}
func (GuildRoleCreate) event()          {}
func (GuildRoleUpdate) event()          {}
func (GuildRoleDelete) event()          {}
func (ChannelCreate) event()            {}
func (ChannelUpdate) event()            {}
func (ChannelDelete) event()            {}
func (VoiceStateUpdate) event()         {}
func (InteractionCreate) event()        {}
func (UnknownEvent) event()             {}

type handler struct {
	id uint64
	fn func(Event)
}

// handlers is the subscription registry. Emission snapshots the handler list,
// so handlers may subscribe or unsubscribe while running.
type handlers struct {
	mu     sync.RWMutex
	nextID uint64
	typed  map[EventType][]handler
	all    []handler
}

func (h *handlers) add(t EventType, fn func(Event)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	if t == "" {
		h.all = append(h.all, handler{id: id, fn: fn})
	} else {
		if h.typed == nil {
			h.typed = make(map[EventType][]handler)
		}
		h.typed[t] = append(h.typed[t], handler{id: id, fn: fn})
	}

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(t, id) })
	}
}

func (h *handlers) remove(t EventType, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	drop := func(list []handler) []handler {
		out := list[:0:0]
		for _, hd := range list {
			if hd.id != id {
				out = append(out, hd)
			}
		}
		return out
	}
	if t == "" {
		h.all = drop(h.all)
		return
	}
	h.typed[t] = drop(h.typed[t])
}

func (h *handlers) emit(evt Event) {
	h.mu.RLock()
	list := make([]handler, 0, len(h.typed[evt.Type()])+len(h.all))
	list = append(list, h.typed[evt.Type()]...)
	list = append(list, h.all...)
	h.mu.RUnlock()

	for _, hd := range list {
		hd.fn(evt)
	}
}

// On registers fn for events of type E and returns a function that removes
// it. E must be one of this package's event value types, for example
//
//	spectrus.On(client, func(e spectrus.MessageCreate) { ... })
func On[E Event](c *Client, fn func(E)) (remove func()) {
	var zero E
	return c.handlers.add(zero.Type(), func(evt Event) {
		if e, ok := evt.(E); ok {
			fn(e)
		}
	})
}

// OnEvent registers fn for every emitted event.
func (c *Client) OnEvent(fn func(Event)) (remove func()) {
	return c.handlers.add("", fn)
}
