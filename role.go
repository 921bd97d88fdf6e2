package spectrus

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/clk-66/spectrus-go/payload"
	"github.com/clk-66/spectrus-go/rest"
)

// Role is a guild role. Permissions is the decimal bitset string the server
// sends.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Hoist       bool   `json:"hoist"`
	Icon        string `json:"icon,omitempty"`
	Position    int    `json:"position"`
	Permissions string `json:"permissions"`
	Managed     bool   `json:"managed"`
	Mentionable bool   `json:"mentionable"`

	client *Client
}

func (c *Client) newRole(raw json.RawMessage) (*Role, error) {
	r := &Role{client: c}
	if err := r.Refresh(raw); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh overwrites the fields present in raw. Role events wrapping the
// role in {"role": ...} are accepted as well.
func (r *Role) Refresh(raw json.RawMessage) error {
	return json.Unmarshal(unwrapRole(raw), r)
}

func (r *Role) Mention() string { return "<@&" + r.ID + ">" }

// Has reports whether every bit of perm is set. Unparseable permission
// strings grant nothing.
func (r *Role) Has(perm uint64) bool {
	bits, err := strconv.ParseUint(r.Permissions, 10, 64)
	if err != nil {
		return false
	}
	return bits&perm == perm
}

// Edit patches the role and returns the server's copy.
func (r *Role) Edit(ctx context.Context, p *payload.Role) (*Role, error) {
	raw, err := r.client.rest.Request(ctx, http.MethodPatch, rest.Role(r.ID), p)
	if err != nil {
		return nil, err
	}
	return r.client.newRole(raw)
}

func (r *Role) Delete(ctx context.Context) error {
	_, err := r.client.rest.Request(ctx, http.MethodDelete, rest.Role(r.ID), nil)
	return err
}

// CreateRole creates a role in the bound guild.
func (c *Client) CreateRole(ctx context.Context, p *payload.Role) (*Role, error) {
	if p == nil {
		p = payload.NewRole()
	}
	raw, err := c.rest.Request(ctx, http.MethodPost, rest.Roles(), p)
	if err != nil {
		return nil, err
	}
	return c.newRole(raw)
}
