package spectrus

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/clk-66/spectrus-go/payload"
	"github.com/clk-66/spectrus-go/rest"
)

// Member is a user's membership in the guild. Members are cached under their
// user id. User may be nil for partial payloads (for example the member
// attached to a message); actions on such a member return ErrMissingUser.
type Member struct {
	User                       *User      `json:"user,omitempty"`
	UserID                     string     `json:"user_id,omitempty"`
	GuildID                    string     `json:"guild_id,omitempty"`
	Nick                       string     `json:"nick,omitempty"`
	Avatar                     string     `json:"avatar,omitempty"`
	Roles                      []string   `json:"roles"`
	JoinedAt                   time.Time  `json:"joined_at"`
	PremiumSince               *time.Time `json:"premium_since,omitempty"`
	Deaf                       bool       `json:"deaf"`
	Mute                       bool       `json:"mute"`
	Pending                    bool       `json:"pending,omitempty"`
	CommunicationDisabledUntil *time.Time `json:"communication_disabled_until,omitempty"`

	client *Client
}

func (c *Client) newMember(raw json.RawMessage) (*Member, error) {
	m := &Member{client: c}
	if err := m.Refresh(raw); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Member) Refresh(raw json.RawMessage) error {
	return json.Unmarshal(raw, m)
}

// ID is the member's user id, or "" when the payload carried neither a user
// nor a user_id.
func (m *Member) ID() string {
	if m.User != nil {
		return m.User.ID
	}
	return m.UserID
}

// DisplayName prefers the guild nickname.
func (m *Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User != nil {
		return m.User.DisplayName()
	}
	return ""
}

func (m *Member) HasRole(roleID string) bool { return slices.Contains(m.Roles, roleID) }

// TimedOut reports whether the member is currently timed out.
func (m *Member) TimedOut(now time.Time) bool {
	return m.CommunicationDisabledUntil != nil && now.Before(*m.CommunicationDisabledUntil)
}

func (m *Member) userID() (string, error) {
	if m.User == nil || m.User.ID == "" {
		return "", ErrMissingUser
	}
	return m.User.ID, nil
}

// Kick removes the member from the guild.
func (m *Member) Kick(ctx context.Context) error {
	id, err := m.userID()
	if err != nil {
		return err
	}
	_, err = m.client.rest.Request(ctx, http.MethodDelete, rest.Member(id), nil)
	return err
}

// Ban bans the member's user. b may be nil.
func (m *Member) Ban(ctx context.Context, b *payload.Ban) error {
	id, err := m.userID()
	if err != nil {
		return err
	}
	if b == nil {
		b = payload.NewBan()
	}
	_, err = m.client.rest.Request(ctx, http.MethodPut, rest.Ban(id), b)
	return err
}

func (m *Member) Unban(ctx context.Context) error {
	id, err := m.userID()
	if err != nil {
		return err
	}
	_, err = m.client.rest.Request(ctx, http.MethodDelete, rest.Ban(id), nil)
	return err
}

// Edit patches the member and returns the server's copy.
func (m *Member) Edit(ctx context.Context, e *payload.MemberEdit) (*Member, error) {
	id, err := m.userID()
	if err != nil {
		return nil, err
	}
	raw, err := m.client.rest.Request(ctx, http.MethodPatch, rest.Member(id), e)
	if err != nil {
		return nil, err
	}
	return m.client.newMember(raw)
}

func (m *Member) AddRole(ctx context.Context, roleID string) error {
	id, err := m.userID()
	if err != nil {
		return err
	}
	_, err = m.client.rest.Request(ctx, http.MethodPut, rest.MemberRole(id, roleID), nil)
	return err
}

func (m *Member) RemoveRole(ctx context.Context, roleID string) error {
	id, err := m.userID()
	if err != nil {
		return err
	}
	_, err = m.client.rest.Request(ctx, http.MethodDelete, rest.MemberRole(id, roleID), nil)
	return err
}

// RoleObjects resolves Roles against the role cache, skipping unknown ids.
func (m *Member) RoleObjects() []*Role {
	var out []*Role
	for _, id := range m.Roles {
		if r, ok := m.client.Roles.Get(id); ok {
			out = append(out, r)
		}
	}
	return out
}
