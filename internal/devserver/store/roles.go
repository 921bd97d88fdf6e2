package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const roleSelect = `SELECT id, name, color, hoist, position, permissions, managed, mentionable FROM roles `

func scanRole(row interface{ Scan(...any) error }) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.Name, &r.Color, &r.Hoist, &r.Position, &r.Permissions, &r.Managed, &r.Mentionable)
	return r, err
}

// Roles lists roles by position, then creation order.
func (s *Store) Roles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, roleSelect+`ORDER BY position ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *Store) Role(ctx context.Context, id string) (*Role, error) {
	r, err := scanRole(s.db.QueryRowContext(ctx, roleSelect+`WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// CreateRole places the new role above every existing one.
func (s *Store) CreateRole(ctx context.Context, p RolePatch) (*Role, error) {
	var pos int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM roles`).Scan(&pos); err != nil {
		return nil, err
	}
	r := Role{ID: uuid.NewString(), Name: "new role", Position: pos, Permissions: "0"}
	applyRole(&r, p)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roles (id, name, color, hoist, mentionable, permissions, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Name, r.Color, r.Hoist, r.Mentionable, r.Permissions, r.Position, s.stamp())
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) UpdateRole(ctx context.Context, id string, p RolePatch) (*Role, error) {
	r, err := s.Role(ctx, id)
	if err != nil {
		return nil, err
	}
	applyRole(r, p)
	_, err = s.db.ExecContext(ctx, `
		UPDATE roles SET name = ?, color = ?, hoist = ?, mentionable = ?, permissions = ? WHERE id = ?
	`, r.Name, r.Color, r.Hoist, r.Mentionable, r.Permissions, r.ID)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteRole removes the role and its assignments. It returns the ids of
// members that held it.
func (s *Store) DeleteRole(ctx context.Context, id string) ([]string, error) {
	var holders []string
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT user_id FROM member_roles WHERE role_id = ? ORDER BY rowid`, id)
		if err != nil {
			return err
		}
		for rows.Next() {
			var uid string
			if err := rows.Scan(&uid); err != nil {
				rows.Close()
				return err
			}
			holders = append(holders, uid)
		}
		rows.Close()

		if _, err := tx.ExecContext(ctx, `DELETE FROM member_roles WHERE role_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return affected(res)
	})
	return holders, err
}

func applyRole(r *Role, p RolePatch) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Color != nil {
		r.Color = *p.Color
	}
	if p.Hoist != nil {
		r.Hoist = *p.Hoist
	}
	if p.Mentionable != nil {
		r.Mentionable = *p.Mentionable
	}
	if p.Permissions != nil {
		r.Permissions = *p.Permissions
	}
}
