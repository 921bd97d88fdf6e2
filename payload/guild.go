package payload

import "encoding/json"

// Role builds a role create or edit body. Only fields that were set are sent,
// so the same builder serves PATCH requests.
type Role struct {
	data struct {
		Name        *string `json:"name,omitempty"`
		Color       *int    `json:"color,omitempty"`
		Hoist       *bool   `json:"hoist,omitempty"`
		Mentionable *bool   `json:"mentionable,omitempty"`
		Permissions *string `json:"permissions,omitempty"`
	}
}

func NewRole() *Role { return &Role{} }

func (r *Role) SetName(name string) error {
	if err := checkLen("role name", name, 1, 100); err != nil {
		return err
	}
	r.data.Name = &name
	return nil
}

func (r *Role) SetColor(c int) error {
	if err := checkRange("role color", c, 0, maxColor); err != nil {
		return err
	}
	r.data.Color = &c
	return nil
}

func (r *Role) SetHoist(on bool)       { r.data.Hoist = &on }
func (r *Role) SetMentionable(on bool) { r.data.Mentionable = &on }

func (r *Role) SetPermissions(p string) error {
	if err := checkPermissions("role permissions", p); err != nil {
		return err
	}
	r.data.Permissions = &p
	return nil
}

func (r *Role) MarshalJSON() ([]byte, error) { return json.Marshal(r.data) }

// ChannelType enumerates guild channel kinds.
type ChannelType int

const (
	ChannelText         ChannelType = 0
	ChannelVoice        ChannelType = 2
	ChannelCategory     ChannelType = 4
	ChannelAnnouncement ChannelType = 5
	ChannelStage        ChannelType = 13
	ChannelForum        ChannelType = 15
)

func (t ChannelType) Valid() bool {
	switch t {
	case ChannelText, ChannelVoice, ChannelCategory, ChannelAnnouncement, ChannelStage, ChannelForum:
		return true
	}
	return false
}

// Channel builds a channel create or edit body.
type Channel struct {
	data struct {
		Name             *string      `json:"name,omitempty"`
		Type             *ChannelType `json:"type,omitempty"`
		Topic            *string      `json:"topic,omitempty"`
		Position         *int         `json:"position,omitempty"`
		ParentID         *string      `json:"parent_id,omitempty"`
		NSFW             *bool        `json:"nsfw,omitempty"`
		Bitrate          *int         `json:"bitrate,omitempty"`
		UserLimit        *int         `json:"user_limit,omitempty"`
		RateLimitPerUser *int         `json:"rate_limit_per_user,omitempty"`
	}
}

func NewChannel() *Channel { return &Channel{} }

func (c *Channel) SetName(name string) error {
	if err := checkLen("channel name", name, 1, 100); err != nil {
		return err
	}
	c.data.Name = &name
	return nil
}

func (c *Channel) SetType(t ChannelType) error {
	if !t.Valid() {
		return invalid("channel type", "unknown type %d", t)
	}
	c.data.Type = &t
	return nil
}

// SetTopic sets the topic; an empty string clears it.
func (c *Channel) SetTopic(topic string) error {
	if err := checkLen("channel topic", topic, 0, 1024); err != nil {
		return err
	}
	c.data.Topic = &topic
	return nil
}

func (c *Channel) SetPosition(p int) error {
	if p < 0 {
		return invalid("channel position", "negative position %d", p)
	}
	c.data.Position = &p
	return nil
}

// SetParent moves the channel under a category; an empty string detaches it.
func (c *Channel) SetParent(categoryID string) { c.data.ParentID = &categoryID }

func (c *Channel) SetNSFW(on bool) { c.data.NSFW = &on }

func (c *Channel) SetBitrate(bps int) error {
	if err := checkRange("channel bitrate", bps, 8000, 384000); err != nil {
		return err
	}
	c.data.Bitrate = &bps
	return nil
}

func (c *Channel) SetUserLimit(n int) error {
	if err := checkRange("channel user limit", n, 0, 99); err != nil {
		return err
	}
	c.data.UserLimit = &n
	return nil
}

func (c *Channel) SetRateLimitPerUser(seconds int) error {
	if err := checkRange("channel slow mode", seconds, 0, 21600); err != nil {
		return err
	}
	c.data.RateLimitPerUser = &seconds
	return nil
}

func (c *Channel) MarshalJSON() ([]byte, error) { return json.Marshal(c.data) }

// MemberEdit builds a member PATCH body.
type MemberEdit struct {
	data struct {
		Nick  *string   `json:"nick,omitempty"`
		Roles *[]string `json:"roles,omitempty"`
		Mute  *bool     `json:"mute,omitempty"`
		Deaf  *bool     `json:"deaf,omitempty"`
	}
}

func NewMemberEdit() *MemberEdit { return &MemberEdit{} }

// SetNick sets the guild nickname; an empty string resets it.
func (m *MemberEdit) SetNick(nick string) error {
	if err := checkLen("member nick", nick, 0, 32); err != nil {
		return err
	}
	m.data.Nick = &nick
	return nil
}

func (m *MemberEdit) SetRoles(roleIDs []string) {
	roles := append([]string{}, roleIDs...)
	m.data.Roles = &roles
}

func (m *MemberEdit) SetMute(on bool) { m.data.Mute = &on }
func (m *MemberEdit) SetDeaf(on bool) { m.data.Deaf = &on }

func (m *MemberEdit) MarshalJSON() ([]byte, error) { return json.Marshal(m.data) }

// Ban builds a ban body.
type Ban struct {
	data struct {
		DeleteMessageSeconds int    `json:"delete_message_seconds,omitempty"`
		Reason               string `json:"reason,omitempty"`
	}
}

func NewBan() *Ban { return &Ban{} }

// SetDeleteMessageSeconds purges the user's messages from the last n seconds
// (up to 7 days).
func (b *Ban) SetDeleteMessageSeconds(n int) error {
	if err := checkRange("ban delete message seconds", n, 0, 604800); err != nil {
		return err
	}
	b.data.DeleteMessageSeconds = n
	return nil
}

func (b *Ban) SetReason(reason string) error {
	if err := checkLen("ban reason", reason, 0, 512); err != nil {
		return err
	}
	b.data.Reason = reason
	return nil
}

func (b *Ban) MarshalJSON() ([]byte, error) { return json.Marshal(b.data) }

// GuildEdit builds a guild PATCH body.
type GuildEdit struct {
	data struct {
		Name        *string `json:"name,omitempty"`
		Description *string `json:"description,omitempty"`
		Icon        *string `json:"icon,omitempty"`
	}
}

func NewGuildEdit() *GuildEdit { return &GuildEdit{} }

func (g *GuildEdit) SetName(name string) error {
	if err := checkLen("guild name", name, 2, 100); err != nil {
		return err
	}
	g.data.Name = &name
	return nil
}

func (g *GuildEdit) SetDescription(d string) error {
	if err := checkLen("guild description", d, 0, 120); err != nil {
		return err
	}
	g.data.Description = &d
	return nil
}

func (g *GuildEdit) SetIcon(icon string) { g.data.Icon = &icon }

func (g *GuildEdit) MarshalJSON() ([]byte, error) { return json.Marshal(g.data) }
