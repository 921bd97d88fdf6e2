package spectrus

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/clk-66/spectrus-go/payload"
	"github.com/clk-66/spectrus-go/rest"
)

// MaxReferenceDepth bounds how many levels of referenced_message are decoded
// eagerly. Deeper references are left nil and can be loaded with
// FetchReferenced.
const MaxReferenceDepth = 3

// Embed is a received rich embed.
type Embed = payload.EmbedData

// MessageReference points at the message a reply answers.
type MessageReference struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id,omitempty"`
	GuildID   string `json:"guild_id,omitempty"`
}

// Attachment is a file uploaded with a message.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size"`
	URL         string `json:"url"`
}

// Message is a channel message. MESSAGE_DELETE carries only the ids.
type Message struct {
	ID              string            `json:"id"`
	ChannelID       string            `json:"channel_id"`
	GuildID         string            `json:"guild_id,omitempty"`
	Author          *User             `json:"author,omitempty"`
	Member          *Member           `json:"member,omitempty"`
	Content         string            `json:"content"`
	Timestamp       time.Time         `json:"timestamp"`
	EditedTimestamp *time.Time        `json:"edited_timestamp,omitempty"`
	TTS             bool              `json:"tts"`
	MentionEveryone bool              `json:"mention_everyone"`
	Mentions        []*User           `json:"mentions,omitempty"`
	MentionRoles    []string          `json:"mention_roles,omitempty"`
	Attachments     []Attachment      `json:"attachments,omitempty"`
	Embeds          []Embed           `json:"embeds,omitempty"`
	ReactionCounts  []Reaction        `json:"reactions,omitempty"`
	Nonce           string            `json:"nonce,omitempty"`
	Pinned          bool              `json:"pinned"`
	Type            int               `json:"type"`
	Reference       *MessageReference `json:"message_reference,omitempty"`
	// ReferencedMessage is the replied-to message when the server embedded
	// it and the nesting is within MaxReferenceDepth.
	ReferencedMessage *Message `json:"-"`

	client *Client
}

func (c *Client) newMessage(raw json.RawMessage) (*Message, error) {
	return c.decodeMessage(raw, 0)
}

func (c *Client) decodeMessage(raw json.RawMessage, depth int) (*Message, error) {
	m := &Message{client: c}
	if err := m.refresh(raw, depth); err != nil {
		return nil, err
	}
	return m, nil
}

// Refresh overwrites the fields present in raw.
func (m *Message) Refresh(raw json.RawMessage) error { return m.refresh(raw, 0) }

func (m *Message) refresh(raw json.RawMessage, depth int) error {
	if err := json.Unmarshal(raw, m); err != nil {
		return err
	}
	if m.Member != nil {
		m.Member.client = m.client
		if m.Member.User == nil {
			m.Member.User = m.Author
		}
	}
	var nested struct {
		Referenced json.RawMessage `json:"referenced_message"`
	}
	if err := json.Unmarshal(raw, &nested); err != nil {
		return err
	}
	if len(nested.Referenced) == 0 || string(nested.Referenced) == "null" {
		return nil
	}
	if depth >= MaxReferenceDepth {
		m.ReferencedMessage = nil
		return nil
	}
	ref, err := m.client.decodeMessage(nested.Referenced, depth+1)
	if err != nil {
		return err
	}
	m.ReferencedMessage = ref
	return nil
}

// Channel returns the cached channel the message was sent in.
func (m *Message) Channel() (*Channel, bool) { return m.client.Channels.Get(m.ChannelID) }

// Edit replaces the message body and returns the server's copy.
func (m *Message) Edit(ctx context.Context, spec payload.MessageSpec) (*Message, error) {
	body, err := spec.MessagePayload()
	if err != nil {
		return nil, err
	}
	raw, err := m.client.rest.Request(ctx, http.MethodPatch, rest.ChannelMessage(m.ChannelID, m.ID), body)
	if err != nil {
		return nil, err
	}
	return m.client.newMessage(raw)
}

func (m *Message) Delete(ctx context.Context) error {
	_, err := m.client.rest.Request(ctx, http.MethodDelete, rest.ChannelMessage(m.ChannelID, m.ID), nil)
	return err
}

// Reply sends spec to the same channel as a reply to m.
func (m *Message) Reply(ctx context.Context, spec payload.MessageSpec) (*Message, error) {
	return m.client.sendMessage(ctx, m.ChannelID, spec, &payload.Reference{
		MessageID: m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
	})
}

// React adds the current user's reaction. emoji is a unicode emoji or
// "name:id" for a custom one.
func (m *Message) React(ctx context.Context, emoji string) error {
	_, err := m.client.rest.Request(ctx, http.MethodPut, rest.MessageUserReaction(m.ChannelID, m.ID, emoji, "@me"), nil)
	return err
}

func (m *Message) Unreact(ctx context.Context, emoji string) error {
	return m.RemoveUserReaction(ctx, emoji, "@me")
}

func (m *Message) RemoveUserReaction(ctx context.Context, emoji, userID string) error {
	_, err := m.client.rest.Request(ctx, http.MethodDelete, rest.MessageUserReaction(m.ChannelID, m.ID, emoji, userID), nil)
	return err
}

func (m *Message) RemoveAllReactions(ctx context.Context) error {
	_, err := m.client.rest.Request(ctx, http.MethodDelete, rest.MessageReactions(m.ChannelID, m.ID), nil)
	return err
}

// Reactions lists the users who reacted with emoji.
func (m *Message) Reactions(ctx context.Context, emoji string) ([]*User, error) {
	var users []*User
	if err := m.client.rest.Do(ctx, http.MethodGet, rest.MessageReaction(m.ChannelID, m.ID, emoji), nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// FetchReferenced returns ReferencedMessage when it was decoded, and
// otherwise loads the replied-to message by id.
func (m *Message) FetchReferenced(ctx context.Context) (*Message, error) {
	if m.ReferencedMessage != nil {
		return m.ReferencedMessage, nil
	}
	if m.Reference == nil || m.Reference.MessageID == "" {
		return nil, ErrNoReference
	}
	channelID := m.Reference.ChannelID
	if channelID == "" {
		channelID = m.ChannelID
	}
	ref, err := m.client.fetchMessage(ctx, channelID, m.Reference.MessageID)
	if err != nil {
		return nil, err
	}
	m.ReferencedMessage = ref
	return ref, nil
}
