package spectrus

import (
	"context"
	"encoding/json"
)

// Emoji is a unicode emoji (ID empty) or a custom guild emoji.
type Emoji struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Animated bool   `json:"animated,omitempty"`
}

// APIName is the form used in reaction routes.
func (e Emoji) APIName() string {
	if e.ID == "" {
		return e.Name
	}
	return e.Name + ":" + e.ID
}

// Reaction is the aggregate count of one emoji on a message.
type Reaction struct {
	Count int   `json:"count"`
	Me    bool  `json:"me"`
	Emoji Emoji `json:"emoji"`
}

// MessageReaction is one user adding or removing a reaction.
type MessageReaction struct {
	UserID    string  `json:"user_id"`
	ChannelID string  `json:"channel_id"`
	MessageID string  `json:"message_id"`
	GuildID   string  `json:"guild_id,omitempty"`
	Member    *Member `json:"member,omitempty"`
	Emoji     Emoji   `json:"emoji"`

	client *Client
}

func (c *Client) newMessageReaction(raw json.RawMessage) (*MessageReaction, error) {
	r := &MessageReaction{client: c}
	if err := r.Refresh(raw); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MessageReaction) Refresh(raw json.RawMessage) error {
	if err := json.Unmarshal(raw, r); err != nil {
		return err
	}
	if r.Member != nil {
		r.Member.client = r.client
	}
	return nil
}

// Message fetches the reacted-to message.
func (r *MessageReaction) Message(ctx context.Context) (*Message, error) {
	return r.client.fetchMessage(ctx, r.ChannelID, r.MessageID)
}

// Remove deletes this user's reaction.
func (r *MessageReaction) Remove(ctx context.Context) error {
	m := &Message{ID: r.MessageID, ChannelID: r.ChannelID, client: r.client}
	return m.RemoveUserReaction(ctx, r.Emoji.APIName(), r.UserID)
}
