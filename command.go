package spectrus

import (
	"context"
	"encoding/json"

	"github.com/clk-66/spectrus-go/payload"
)

// CommandOption and CommandChoice share the builder's wire types.
type (
	CommandOption = payload.Option
	CommandChoice = payload.Choice
)

// ApplicationCommand is a registered command as returned by the server.
type ApplicationCommand struct {
	ID                       string              `json:"id"`
	ApplicationID            string              `json:"application_id,omitempty"`
	GuildID                  string              `json:"guild_id,omitempty"`
	Name                     string              `json:"name"`
	Type                     payload.CommandType `json:"type"`
	Description              string              `json:"description"`
	Options                  []CommandOption     `json:"options,omitempty"`
	DefaultMemberPermissions string              `json:"default_member_permissions,omitempty"`
	NSFW                     bool                `json:"nsfw,omitempty"`
	Version                  string              `json:"version,omitempty"`

	client *Client
}

func (c *Client) newCommand(raw json.RawMessage) (*ApplicationCommand, error) {
	cmd := &ApplicationCommand{client: c}
	if err := cmd.Refresh(raw); err != nil {
		return nil, err
	}
	return cmd, nil
}

func (a *ApplicationCommand) Refresh(raw json.RawMessage) error {
	return json.Unmarshal(raw, a)
}

// Delete unregisters the command and drops it from the command cache.
func (a *ApplicationCommand) Delete(ctx context.Context) error {
	return a.client.UnregisterCommand(ctx, a.ID)
}
