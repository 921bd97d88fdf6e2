package spectrus

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/clk-66/spectrus-go/payload"
	"github.com/clk-66/spectrus-go/rest"
)

// Guild is the single guild the client is bound to.
type Guild struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Icon            string   `json:"icon,omitempty"`
	OwnerID         string   `json:"owner_id"`
	PreferredLocale string   `json:"preferred_locale,omitempty"`
	Features        []string `json:"features,omitempty"`
	MemberCount     int      `json:"member_count,omitempty"`

	client *Client
}

func (c *Client) newGuild(raw json.RawMessage) (*Guild, error) {
	g := &Guild{client: c}
	if err := g.Refresh(raw); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Guild) Refresh(raw json.RawMessage) error {
	return json.Unmarshal(raw, g)
}

// Edit patches the guild and returns the server's copy. The client's bound
// guild is updated by the GUILD_UPDATE event that follows.
func (g *Guild) Edit(ctx context.Context, e *payload.GuildEdit) (*Guild, error) {
	raw, err := g.client.rest.Request(ctx, http.MethodPatch, rest.Guild(), e)
	if err != nil {
		return nil, err
	}
	return g.client.newGuild(raw)
}

// Bans lists the guild's bans.
func (g *Guild) Bans(ctx context.Context) ([]*GuildBan, error) {
	var items []json.RawMessage
	if err := g.client.rest.Do(ctx, http.MethodGet, rest.Bans(), nil, &items); err != nil {
		return nil, err
	}
	bans := make([]*GuildBan, 0, len(items))
	for _, raw := range items {
		b, err := g.client.newGuildBan(raw)
		if err != nil {
			return nil, err
		}
		bans = append(bans, b)
	}
	return bans, nil
}

// Owner returns the cached member owning the guild.
func (g *Guild) Owner() (*Member, bool) { return g.client.Members.Get(g.OwnerID) }

// GuildBan is a ban record.
type GuildBan struct {
	GuildID string `json:"guild_id,omitempty"`
	User    *User  `json:"user"`
	Reason  string `json:"reason,omitempty"`

	client *Client
}

func (c *Client) newGuildBan(raw json.RawMessage) (*GuildBan, error) {
	b := &GuildBan{client: c}
	if err := b.Refresh(raw); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *GuildBan) Refresh(raw json.RawMessage) error {
	return json.Unmarshal(raw, b)
}

// Revoke lifts the ban.
func (b *GuildBan) Revoke(ctx context.Context) error {
	if b.User == nil {
		return ErrMissingUser
	}
	_, err := b.client.rest.Request(ctx, http.MethodDelete, rest.Ban(b.User.ID), nil)
	return err
}
