package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreateGuild creates the single guild. It fails with ErrConflict when one
// already exists.
func (s *Store) CreateGuild(ctx context.Context, name, ownerID string) (*Guild, error) {
	if s.GuildID() != "" {
		return nil, ErrConflict
	}
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO guild (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)`,
		id, name, ownerID, s.stamp(),
	); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.guildID = id
	s.mu.Unlock()
	return s.Guild(ctx)
}

func (s *Store) Guild(ctx context.Context) (*Guild, error) {
	var g Guild
	err := s.db.QueryRowContext(ctx, `
		SELECT g.id, g.name, g.description, g.icon, g.owner_id,
		       (SELECT COUNT(*) FROM members)
		FROM guild g LIMIT 1
	`).Scan(&g.ID, &g.Name, &g.Description, &g.Icon, &g.OwnerID, &g.MemberCount)
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (s *Store) SetGuildOwner(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE guild SET owner_id = ?`, ownerID)
	return err
}

// UpdateGuild applies only the fields set in p.
func (s *Store) UpdateGuild(ctx context.Context, p GuildPatch) (*Guild, error) {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE guild SET
			name        = COALESCE(?, name),
			description = COALESCE(?, description),
			icon        = COALESCE(?, icon)
	`, p.Name, p.Description, p.Icon); err != nil {
		return nil, err
	}
	return s.Guild(ctx)
}

// ---- Users ---------------------------------------------------------------

type UserInput struct {
	Username     string
	GlobalName   string
	Bot          bool
	PasswordHash string
}

func (s *Store) CreateUser(ctx context.Context, in UserInput) (*User, error) {
	u := &User{
		ID:         uuid.NewString(),
		Username:   in.Username,
		GlobalName: in.GlobalName,
		Bot:        in.Bot,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, global_name, bot, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.GlobalName, u.Bot, in.PasswordHash, s.stamp(),
	)
	if isUniqueConstraint(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) User(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, global_name, avatar, bot FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Username, &u.GlobalName, &u.Avatar, &u.Bot)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UserByUsername returns the user and its password hash for login.
func (s *Store) UserByUsername(ctx context.Context, username string) (*User, string, error) {
	var u User
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, global_name, avatar, bot, password_hash FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.GlobalName, &u.Avatar, &u.Bot, &hash)
	if err != nil {
		return nil, "", notFound(err)
	}
	return &u, hash, nil
}

// ---- Members -------------------------------------------------------------

const memberSelect = `
	SELECT u.id, u.username, u.global_name, u.avatar, u.bot,
	       m.nick, m.deaf, m.mute, m.joined_at
	FROM members m
	JOIN users u ON u.id = m.user_id
`

func (s *Store) AddMember(ctx context.Context, userID string) (*Member, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO members (user_id, joined_at) VALUES (?, ?)`, userID, s.stamp(),
	)
	if isUniqueConstraint(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return s.Member(ctx, userID)
}

func (s *Store) Member(ctx context.Context, userID string) (*Member, error) {
	rows, err := s.db.QueryContext(ctx, memberSelect+`WHERE m.user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	members, err := s.scanMembers(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrNotFound
	}
	return &members[0], nil
}

// Members lists members in join order.
func (s *Store) Members(ctx context.Context) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, memberSelect+`ORDER BY m.rowid ASC`)
	if err != nil {
		return nil, err
	}
	return s.scanMembers(ctx, rows)
}

func (s *Store) scanMembers(ctx context.Context, rows *sql.Rows) ([]Member, error) {
	defer rows.Close()

	members := []Member{}
	index := map[string]int{}
	for rows.Next() {
		var m Member
		var joined string
		if err := rows.Scan(
			&m.User.ID, &m.User.Username, &m.User.GlobalName, &m.User.Avatar, &m.User.Bot,
			&m.Nick, &m.Deaf, &m.Mute, &joined,
		); err != nil {
			return nil, err
		}
		m.GuildID = s.GuildID()
		m.JoinedAt = parseTime(joined)
		m.Roles = []string{}
		index[m.User.ID] = len(members)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	// Attach role ids in a second query (avoids N+1).
	roleRows, err := s.db.QueryContext(ctx, `SELECT user_id, role_id FROM member_roles ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var uid, rid string
		if err := roleRows.Scan(&uid, &rid); err != nil {
			return nil, err
		}
		if i, ok := index[uid]; ok {
			members[i].Roles = append(members[i].Roles, rid)
		}
	}
	return members, roleRows.Err()
}

// UpdateMember applies p. A Roles patch replaces the member's role set.
func (s *Store) UpdateMember(ctx context.Context, userID string, p MemberPatch) (*Member, error) {
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE members SET
				nick = COALESCE(?, nick),
				mute = COALESCE(?, mute),
				deaf = COALESCE(?, deaf)
			WHERE user_id = ?
		`, p.Nick, p.Mute, p.Deaf, userID)
		if err != nil {
			return err
		}
		if err := affected(res); err != nil {
			return err
		}
		if p.Roles == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM member_roles WHERE user_id = ?`, userID); err != nil {
			return err
		}
		for _, rid := range *p.Roles {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO member_roles (user_id, role_id) VALUES (?, ?)`, userID, rid,
			); err != nil {
				return fmt.Errorf("assign role %s: %w", rid, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Member(ctx, userID)
}

// RemoveMember deletes the membership and returns what was removed.
func (s *Store) RemoveMember(ctx context.Context, userID string) (*Member, error) {
	m, err := s.Member(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE user_id = ?`, userID); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) AddMemberRole(ctx context.Context, userID, roleID string) (*Member, error) {
	if _, err := s.Role(ctx, roleID); err != nil {
		return nil, err
	}
	if _, err := s.Member(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO member_roles (user_id, role_id) VALUES (?, ?)`, userID, roleID,
	); err != nil {
		return nil, err
	}
	return s.Member(ctx, userID)
}

func (s *Store) RemoveMemberRole(ctx context.Context, userID, roleID string) (*Member, error) {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM member_roles WHERE user_id = ? AND role_id = ?`, userID, roleID,
	); err != nil {
		return nil, err
	}
	return s.Member(ctx, userID)
}

// MemberPermissions ORs the permission bitsets of the member's roles.
func (s *Store) MemberPermissions(ctx context.Context, userID string) (uint64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.permissions
		FROM member_roles mr
		JOIN roles r ON r.id = mr.role_id
		WHERE mr.user_id = ?
	`, userID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var bits uint64
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return 0, err
		}
		var v uint64
		if _, err := fmt.Sscan(p, &v); err == nil {
			bits |= v
		}
	}
	return bits, rows.Err()
}

// ---- Bans ----------------------------------------------------------------

// Ban records the ban and removes the membership, returning the ban and the
// removed member (nil if the user was not a member).
func (s *Store) Ban(ctx context.Context, userID, reason string) (*Ban, *Member, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.Member(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, nil, err
	}
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bans (user_id, reason, created_at) VALUES (?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET reason = excluded.reason
		`, userID, reason, s.stamp()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM members WHERE user_id = ?`, userID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &Ban{GuildID: s.GuildID(), User: *u, Reason: reason}, m, nil
}

func (s *Store) Unban(ctx context.Context, userID string) (*Ban, error) {
	bans, err := s.bans(ctx, `WHERE b.user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	if len(bans) == 0 {
		return nil, ErrNotFound
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bans WHERE user_id = ?`, userID); err != nil {
		return nil, err
	}
	return &bans[0], nil
}

func (s *Store) Bans(ctx context.Context) ([]Ban, error) {
	return s.bans(ctx, `ORDER BY b.rowid ASC`)
}

func (s *Store) IsBanned(ctx context.Context, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM bans WHERE user_id = ?`, userID).Scan(&n)
	return n > 0, err
}

func (s *Store) bans(ctx context.Context, where string, args ...any) ([]Ban, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.global_name, u.avatar, u.bot, b.reason
		FROM bans b
		JOIN users u ON u.id = b.user_id
	`+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bans := []Ban{}
	for rows.Next() {
		b := Ban{GuildID: s.GuildID()}
		if err := rows.Scan(&b.User.ID, &b.User.Username, &b.User.GlobalName, &b.User.Avatar, &b.User.Bot, &b.Reason); err != nil {
			return nil, err
		}
		bans = append(bans, b)
	}
	return bans, rows.Err()
}
