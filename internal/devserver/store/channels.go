package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

const channelSelect = `
	SELECT id, type, name, position, topic, nsfw, parent_id, bitrate, user_limit, rate_limit_per_user
	FROM channels `

func (s *Store) scanChannel(row interface{ Scan(...any) error }) (Channel, error) {
	c := Channel{GuildID: s.GuildID()}
	err := row.Scan(&c.ID, &c.Type, &c.Name, &c.Position, &c.Topic, &c.NSFW, &c.ParentID,
		&c.Bitrate, &c.UserLimit, &c.RateLimitPerUser)
	return c, err
}

// Channels lists channels in creation order.
func (s *Store) Channels(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, channelSelect+`ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channels := []Channel{}
	for rows.Next() {
		c, err := s.scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

func (s *Store) Channel(ctx context.Context, id string) (*Channel, error) {
	c, err := s.scanChannel(s.db.QueryRowContext(ctx, channelSelect+`WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) CreateChannel(ctx context.Context, p ChannelPatch) (*Channel, error) {
	c := Channel{ID: uuid.NewString(), GuildID: s.GuildID()}
	if p.Position == nil {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels`).Scan(&c.Position); err != nil {
			return nil, err
		}
	}
	applyChannel(&c, p)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (id, type, name, position, topic, nsfw, parent_id, bitrate, user_limit, rate_limit_per_user, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Type, c.Name, c.Position, c.Topic, c.NSFW, c.ParentID, c.Bitrate, c.UserLimit, c.RateLimitPerUser, s.stamp())
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) UpdateChannel(ctx context.Context, id string, p ChannelPatch) (*Channel, error) {
	c, err := s.Channel(ctx, id)
	if err != nil {
		return nil, err
	}
	applyChannel(c, p)
	_, err = s.db.ExecContext(ctx, `
		UPDATE channels SET
			type = ?, name = ?, position = ?, topic = ?, nsfw = ?, parent_id = ?,
			bitrate = ?, user_limit = ?, rate_limit_per_user = ?
		WHERE id = ?
	`, c.Type, c.Name, c.Position, c.Topic, c.NSFW, c.ParentID, c.Bitrate, c.UserLimit, c.RateLimitPerUser, c.ID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteChannel removes the channel with its messages, and detaches any
// children that had it as parent.
func (s *Store) DeleteChannel(ctx context.Context, id string) (*Channel, error) {
	c, err := s.Channel(ctx, id)
	if err != nil {
		return nil, err
	}
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE channels SET parent_id = '' WHERE parent_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func applyChannel(c *Channel, p ChannelPatch) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Topic != nil {
		c.Topic = *p.Topic
	}
	if p.Position != nil {
		c.Position = *p.Position
	}
	if p.ParentID != nil {
		c.ParentID = *p.ParentID
	}
	if p.NSFW != nil {
		c.NSFW = *p.NSFW
	}
	if p.Bitrate != nil {
		c.Bitrate = *p.Bitrate
	}
	if p.UserLimit != nil {
		c.UserLimit = *p.UserLimit
	}
	if p.RateLimitPerUser != nil {
		c.RateLimitPerUser = *p.RateLimitPerUser
	}
}

// ---- Messages ------------------------------------------------------------

const messageSelect = `
	SELECT m.id, m.channel_id, m.content, m.tts, m.embeds, m.nonce, m.reference_id, m.flags,
	       m.created_at, m.edited_at,
	       u.id, u.username, u.global_name, u.avatar, u.bot
	FROM messages m
	JOIN users u ON u.id = m.author_id
`

// ErrEmptyMessage is returned when a message has neither content nor embeds.
var ErrEmptyMessage = errors.New("message has no content")

// CreateMessage stores a message authored by authorID. A reference must point
// at an existing message in the same channel.
func (s *Store) CreateMessage(ctx context.Context, channelID, authorID string, in MessageInput) (*Message, error) {
	if _, err := s.Channel(ctx, channelID); err != nil {
		return nil, err
	}
	content := ""
	if in.Content != nil {
		content = *in.Content
	}
	embeds := normalizeEmbeds(in.Embeds)
	if content == "" && embeds == "[]" {
		return nil, ErrEmptyMessage
	}
	refID := ""
	if in.Reference != nil && in.Reference.MessageID != "" {
		if _, err := s.message(ctx, channelID, in.Reference.MessageID); err != nil {
			return nil, err
		}
		refID = in.Reference.MessageID
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, channel_id, author_id, content, tts, embeds, nonce, reference_id, flags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, channelID, authorID, content, in.TTS, embeds, in.Nonce, refID, in.Flags, s.stamp())
	if err != nil {
		return nil, err
	}
	return s.Message(ctx, channelID, id)
}

// Message loads a message with its reactions and, one level deep, the
// message it replies to.
func (s *Store) Message(ctx context.Context, channelID, id string) (*Message, error) {
	m, err := s.message(ctx, channelID, id)
	if err != nil {
		return nil, err
	}
	if m.Reference != nil {
		ref, err := s.message(ctx, channelID, m.Reference.MessageID)
		if err == nil {
			m.ReferencedMessage = ref
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return m, nil
}

func (s *Store) message(ctx context.Context, channelID, id string) (*Message, error) {
	var (
		m        = Message{GuildID: s.GuildID()}
		embeds   string
		refID    string
		created  string
		editedAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx, messageSelect+`WHERE m.id = ? AND m.channel_id = ?`, id, channelID).Scan(
		&m.ID, &m.ChannelID, &m.Content, &m.TTS, &embeds, &m.Nonce, &refID, &m.Flags,
		&created, &editedAt,
		&m.Author.ID, &m.Author.Username, &m.Author.GlobalName, &m.Author.Avatar, &m.Author.Bot,
	)
	if err != nil {
		return nil, notFound(err)
	}
	m.Embeds = json.RawMessage(embeds)
	m.Timestamp = parseTime(created)
	if editedAt.Valid {
		t := parseTime(editedAt.String)
		m.EditedTimestamp = &t
	}
	if refID != "" {
		m.Reference = &Reference{MessageID: refID, ChannelID: m.ChannelID, GuildID: m.GuildID}
	}

	reactions, err := s.reactions(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	m.Reactions = reactions
	return &m, nil
}

// UpdateMessage replaces content and/or embeds and stamps the edit time.
func (s *Store) UpdateMessage(ctx context.Context, channelID, id string, in MessageInput) (*Message, error) {
	m, err := s.message(ctx, channelID, id)
	if err != nil {
		return nil, err
	}
	content := m.Content
	if in.Content != nil {
		content = *in.Content
	}
	embeds := string(m.Embeds)
	if in.Embeds != nil {
		embeds = normalizeEmbeds(in.Embeds)
	}
	if content == "" && embeds == "[]" {
		return nil, ErrEmptyMessage
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, embeds = ?, edited_at = ? WHERE id = ?`,
		content, embeds, s.stamp(), id,
	); err != nil {
		return nil, err
	}
	return s.Message(ctx, channelID, id)
}

func (s *Store) DeleteMessage(ctx context.Context, channelID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ? AND channel_id = ?`, id, channelID)
	if err != nil {
		return err
	}
	return affected(res)
}

func normalizeEmbeds(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "[]"
	}
	return string(raw)
}

// ---- Reactions -----------------------------------------------------------

// AddReaction records userID's reaction. Adding the same reaction twice is
// not an error; added reports whether anything changed.
func (s *Store) AddReaction(ctx context.Context, channelID, messageID, userID, emoji string) (added bool, err error) {
	if _, err := s.message(ctx, channelID, messageID); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO reactions (message_id, user_id, emoji, created_at) VALUES (?, ?, ?, ?)
	`, messageID, userID, emoji, s.stamp())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) RemoveReaction(ctx context.Context, channelID, messageID, userID, emoji string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM reactions
		WHERE message_id = ? AND user_id = ? AND emoji = ?
		  AND message_id IN (SELECT id FROM messages WHERE channel_id = ?)
	`, messageID, userID, emoji, channelID)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) RemoveAllReactions(ctx context.Context, channelID, messageID string) error {
	if _, err := s.message(ctx, channelID, messageID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM reactions WHERE message_id = ?`, messageID)
	return err
}

// Reactors lists users who reacted with emoji, oldest first.
func (s *Store) Reactors(ctx context.Context, channelID, messageID, emoji string) ([]User, error) {
	if _, err := s.message(ctx, channelID, messageID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.global_name, u.avatar, u.bot
		FROM reactions r
		JOIN users u ON u.id = r.user_id
		WHERE r.message_id = ? AND r.emoji = ?
		ORDER BY r.created_at ASC, r.rowid ASC
	`, messageID, emoji)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.GlobalName, &u.Avatar, &u.Bot); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// reactions aggregates reactions per emoji in first-use order. Me is left
// for the handler to fill in for the requesting user.
func (s *Store) reactions(ctx context.Context, messageID string) ([]Reaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT emoji, COUNT(*), MIN(rowid) AS first
		FROM reactions
		WHERE message_id = ?
		GROUP BY emoji
		ORDER BY first ASC
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reaction
	for rows.Next() {
		var (
			emoji string
			r     Reaction
			first int64
		)
		if err := rows.Scan(&emoji, &r.Count, &first); err != nil {
			return nil, err
		}
		r.Emoji = ParseEmoji(emoji)
		out = append(out, r)
	}
	return out, rows.Err()
}
