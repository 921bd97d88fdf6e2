package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const commandSelect = `SELECT id, name, type, description, options, default_member_permissions, nsfw, version FROM commands `

// Commands lists registered commands in registration order. applicationID is
// stamped onto each.
func (s *Store) Commands(ctx context.Context, applicationID string) ([]Command, error) {
	rows, err := s.db.QueryContext(ctx, commandSelect+`ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cmds := []Command{}
	for rows.Next() {
		var c Command
		var opts string
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Description, &opts, &c.DefaultMemberPermissions, &c.NSFW, &c.Version); err != nil {
			return nil, err
		}
		c.Options = json.RawMessage(opts)
		c.ApplicationID = applicationID
		c.GuildID = s.GuildID()
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}

// UpsertCommand creates a command, or overwrites the one with the same name
// and type, keeping its id.
func (s *Store) UpsertCommand(ctx context.Context, applicationID string, in CommandInput) (*Command, error) {
	opts := string(in.Options)
	if opts == "" || opts == "null" {
		opts = "[]"
	}
	version := strconv.FormatInt(time.Now().UnixNano(), 10)

	var id string
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commands (id, name, type, description, options, default_member_permissions, nsfw, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name, type) DO UPDATE SET
			description                = excluded.description,
			options                    = excluded.options,
			default_member_permissions = excluded.default_member_permissions,
			nsfw                       = excluded.nsfw,
			version                    = excluded.version
	`, uuid.NewString(), in.Name, in.Type, in.Description, opts, in.DefaultMemberPermissions, in.NSFW, version, s.stamp())
	if err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM commands WHERE name = ? AND type = ?`, in.Name, in.Type,
	).Scan(&id); err != nil {
		return nil, err
	}

	var c Command
	var o string
	err = s.db.QueryRowContext(ctx, commandSelect+`WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Type, &c.Description, &o, &c.DefaultMemberPermissions, &c.NSFW, &c.Version)
	if err != nil {
		return nil, err
	}
	c.Options = json.RawMessage(o)
	c.ApplicationID = applicationID
	c.GuildID = s.GuildID()
	return &c, nil
}

func (s *Store) DeleteCommand(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM commands WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}
