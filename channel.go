package spectrus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/clk-66/spectrus-go/payload"
	"github.com/clk-66/spectrus-go/rest"
)

// Channel is a guild channel of any type.
type Channel struct {
	ID               string              `json:"id"`
	Type             payload.ChannelType `json:"type"`
	GuildID          string              `json:"guild_id,omitempty"`
	Name             string              `json:"name"`
	Position         int                 `json:"position"`
	Topic            string              `json:"topic,omitempty"`
	NSFW             bool                `json:"nsfw,omitempty"`
	ParentID         string              `json:"parent_id,omitempty"`
	LastMessageID    string              `json:"last_message_id,omitempty"`
	Bitrate          int                 `json:"bitrate,omitempty"`
	UserLimit        int                 `json:"user_limit,omitempty"`
	RateLimitPerUser int                 `json:"rate_limit_per_user,omitempty"`

	client *Client
}

func (c *Client) newChannel(raw json.RawMessage) (*Channel, error) {
	ch := &Channel{client: c}
	if err := ch.Refresh(raw); err != nil {
		return nil, err
	}
	return ch, nil
}

func (ch *Channel) Refresh(raw json.RawMessage) error {
	return json.Unmarshal(raw, ch)
}

func (ch *Channel) Mention() string { return "<#" + ch.ID + ">" }

// Text reports whether messages can be sent to the channel.
func (ch *Channel) Text() bool {
	return ch.Type == payload.ChannelText || ch.Type == payload.ChannelAnnouncement
}

func (ch *Channel) Voice() bool {
	return ch.Type == payload.ChannelVoice || ch.Type == payload.ChannelStage
}

// Parent returns the cached category the channel sits under.
func (ch *Channel) Parent() (*Channel, bool) {
	if ch.ParentID == "" {
		return nil, false
	}
	return ch.client.Channels.Get(ch.ParentID)
}

// Send posts a message. A nonce is generated when the body has none, so the
// resulting MESSAGE_CREATE can be matched to this call.
func (ch *Channel) Send(ctx context.Context, spec payload.MessageSpec) (*Message, error) {
	return ch.client.sendMessage(ctx, ch.ID, spec, nil)
}

// Edit patches the channel and returns the server's copy.
func (ch *Channel) Edit(ctx context.Context, p *payload.Channel) (*Channel, error) {
	raw, err := ch.client.rest.Request(ctx, http.MethodPatch, rest.Channel(ch.ID), p)
	if err != nil {
		return nil, err
	}
	return ch.client.newChannel(raw)
}

func (ch *Channel) Delete(ctx context.Context) error {
	_, err := ch.client.rest.Request(ctx, http.MethodDelete, rest.Channel(ch.ID), nil)
	return err
}

// Message fetches one message of the channel.
func (ch *Channel) Message(ctx context.Context, id string) (*Message, error) {
	return ch.client.fetchMessage(ctx, ch.ID, id)
}

// CreateChannel creates a channel in the bound guild.
func (c *Client) CreateChannel(ctx context.Context, p *payload.Channel) (*Channel, error) {
	if p == nil {
		return nil, fmt.Errorf("create channel: %w", &payload.ValidationError{Field: "channel", Reason: "body required"})
	}
	raw, err := c.rest.Request(ctx, http.MethodPost, rest.Channels(), p)
	if err != nil {
		return nil, err
	}
	return c.newChannel(raw)
}

func (c *Client) sendMessage(ctx context.Context, channelID string, spec payload.MessageSpec, ref *payload.Reference) (*Message, error) {
	msg, err := spec.MessagePayload()
	if err != nil {
		return nil, err
	}
	body := *msg
	msg = &body
	if ref != nil {
		msg.SetReply(*ref)
	}
	if msg.Nonce() == "" {
		if err := msg.SetNonce(uuid.NewString()); err != nil {
			return nil, err
		}
	}
	raw, err := c.rest.Request(ctx, http.MethodPost, rest.ChannelMessages(channelID), msg)
	if err != nil {
		return nil, err
	}
	return c.newMessage(raw)
}

func (c *Client) fetchMessage(ctx context.Context, channelID, messageID string) (*Message, error) {
	raw, err := c.rest.Request(ctx, http.MethodGet, rest.ChannelMessage(channelID, messageID), nil)
	if err != nil {
		return nil, err
	}
	return c.newMessage(raw)
}
