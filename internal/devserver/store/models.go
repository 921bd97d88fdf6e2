package store

import (
	"encoding/json"
	"time"
)

// The JSON shapes below are what the REST API and the event stream send.

type Guild struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	OwnerID     string `json:"owner_id"`
	MemberCount int    `json:"member_count"`
}

type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	Bot        bool   `json:"bot,omitempty"`
}

type Member struct {
	GuildID  string    `json:"guild_id"`
	User     User      `json:"user"`
	Nick     string    `json:"nick,omitempty"`
	Roles    []string  `json:"roles"`
	JoinedAt time.Time `json:"joined_at"`
	Deaf     bool      `json:"deaf"`
	Mute     bool      `json:"mute"`
}

type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Hoist       bool   `json:"hoist"`
	Position    int    `json:"position"`
	Permissions string `json:"permissions"`
	Managed     bool   `json:"managed"`
	Mentionable bool   `json:"mentionable"`
}

type Channel struct {
	ID               string `json:"id"`
	GuildID          string `json:"guild_id"`
	Type             int    `json:"type"`
	Name             string `json:"name"`
	Position         int    `json:"position"`
	Topic            string `json:"topic,omitempty"`
	NSFW             bool   `json:"nsfw,omitempty"`
	ParentID         string `json:"parent_id,omitempty"`
	Bitrate          int    `json:"bitrate,omitempty"`
	UserLimit        int    `json:"user_limit,omitempty"`
	RateLimitPerUser int    `json:"rate_limit_per_user,omitempty"`
}

type Emoji struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// ParseEmoji splits the "name:id" route form of a custom emoji.
func ParseEmoji(s string) Emoji {
	for i := len(s) - 1; i > 0; i-- {
		if s[i] == ':' {
			return Emoji{Name: s[:i], ID: s[i+1:]}
		}
	}
	return Emoji{Name: s}
}

type Reaction struct {
	Count int   `json:"count"`
	Me    bool  `json:"me"`
	Emoji Emoji `json:"emoji"`
}

type Reference struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id,omitempty"`
	GuildID   string `json:"guild_id,omitempty"`
}

type Message struct {
	ID                string          `json:"id"`
	ChannelID         string          `json:"channel_id"`
	GuildID           string          `json:"guild_id"`
	Author            User            `json:"author"`
	Content           string          `json:"content"`
	Timestamp         time.Time       `json:"timestamp"`
	EditedTimestamp   *time.Time      `json:"edited_timestamp"`
	TTS               bool            `json:"tts"`
	Embeds            json.RawMessage `json:"embeds"`
	Reactions         []Reaction      `json:"reactions,omitempty"`
	Nonce             string          `json:"nonce,omitempty"`
	Flags             int             `json:"flags,omitempty"`
	Reference         *Reference      `json:"message_reference,omitempty"`
	ReferencedMessage *Message        `json:"referenced_message,omitempty"`
}

type Ban struct {
	GuildID string `json:"guild_id"`
	User    User   `json:"user"`
	Reason  string `json:"reason,omitempty"`
}

type Command struct {
	ID                       string          `json:"id"`
	ApplicationID            string          `json:"application_id"`
	GuildID                  string          `json:"guild_id"`
	Name                     string          `json:"name"`
	Type                     int             `json:"type"`
	Description              string          `json:"description"`
	Options                  json.RawMessage `json:"options,omitempty"`
	DefaultMemberPermissions string          `json:"default_member_permissions,omitempty"`
	NSFW                     bool            `json:"nsfw,omitempty"`
	Version                  string          `json:"version"`
}

// Patch types decode straight from PATCH/POST bodies: nil means "not sent".

type GuildPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
}

type MemberPatch struct {
	Nick  *string   `json:"nick"`
	Roles *[]string `json:"roles"`
	Mute  *bool     `json:"mute"`
	Deaf  *bool     `json:"deaf"`
}

type RolePatch struct {
	Name        *string `json:"name"`
	Color       *int    `json:"color"`
	Hoist       *bool   `json:"hoist"`
	Mentionable *bool   `json:"mentionable"`
	Permissions *string `json:"permissions"`
}

type ChannelPatch struct {
	Name             *string `json:"name"`
	Type             *int    `json:"type"`
	Topic            *string `json:"topic"`
	Position         *int    `json:"position"`
	ParentID         *string `json:"parent_id"`
	NSFW             *bool   `json:"nsfw"`
	Bitrate          *int    `json:"bitrate"`
	UserLimit        *int    `json:"user_limit"`
	RateLimitPerUser *int    `json:"rate_limit_per_user"`
}

type MessageInput struct {
	Content   *string         `json:"content"`
	TTS       bool            `json:"tts"`
	Embeds    json.RawMessage `json:"embeds"`
	Nonce     string          `json:"nonce"`
	Flags     int             `json:"flags"`
	Reference *Reference      `json:"message_reference"`
}

type CommandInput struct {
	Name                     string          `json:"name"`
	Type                     int             `json:"type"`
	Description              string          `json:"description"`
	Options                  json.RawMessage `json:"options"`
	DefaultMemberPermissions string          `json:"default_member_permissions"`
	NSFW                     bool            `json:"nsfw"`
}
