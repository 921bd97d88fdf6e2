package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/clk-66/spectrus-go/internal/devserver/auth"
	"github.com/clk-66/spectrus-go/internal/devserver/hub"
	"github.com/clk-66/spectrus-go/internal/devserver/store"
	"github.com/clk-66/spectrus-go/payload"
)

// GET /api/channels
func (s *Server) listChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.store.Channels(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

// POST /api/channels
func (s *Server) createChannel(w http.ResponseWriter, r *http.Request) {
	if err := s.requirePermission(r.Context(), auth.UserID(r.Context()), payload.PermManageChannels); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	var p store.ChannelPatch
	if err := decodeBody(r, &p); err != nil || p.Name == nil {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if msg := validateChannelPatch(p); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.checkParent(r, p.ParentID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ch, err := s.store.CreateChannel(r.Context(), p)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.broadcast(hub.EventChannelCreate, ch)
	writeJSON(w, http.StatusCreated, ch)
}

// PATCH /api/channels/{channelID}
func (s *Server) updateChannel(w http.ResponseWriter, r *http.Request) {
	if err := s.requirePermission(r.Context(), auth.UserID(r.Context()), payload.PermManageChannels); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	var p store.ChannelPatch
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateChannelPatch(p); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.checkParent(r, p.ParentID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ch, err := s.store.UpdateChannel(r.Context(), chi.URLParam(r, "channelID"), p)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.broadcast(hub.EventChannelUpdate, ch)
	writeJSON(w, http.StatusOK, ch)
}

// DELETE /api/channels/{channelID}
func (s *Server) deleteChannel(w http.ResponseWriter, r *http.Request) {
	if err := s.requirePermission(r.Context(), auth.UserID(r.Context()), payload.PermManageChannels); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	ch, err := s.store.DeleteChannel(r.Context(), chi.URLParam(r, "channelID"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.broadcast(hub.EventChannelDelete, ch)
	writeJSON(w, http.StatusOK, ch)
}

func validateChannelPatch(p store.ChannelPatch) string {
	switch {
	case p.Name != nil && (*p.Name == "" || len(*p.Name) > 100):
		return "name must be 1-100 characters"
	case p.Type != nil && !payload.ChannelType(*p.Type).Valid():
		return "unknown channel type"
	case p.Topic != nil && len(*p.Topic) > 1024:
		return "topic must be at most 1024 characters"
	case p.UserLimit != nil && (*p.UserLimit < 0 || *p.UserLimit > 99):
		return "user_limit must be 0-99"
	case p.Bitrate != nil && (*p.Bitrate < 8000 || *p.Bitrate > 384000):
		return "bitrate must be 8000-384000"
	case p.RateLimitPerUser != nil && (*p.RateLimitPerUser < 0 || *p.RateLimitPerUser > 21600):
		return "rate_limit_per_user must be 0-21600"
	}
	return ""
}

// checkParent requires parent_id, when set, to name a category.
func (s *Server) checkParent(r *http.Request, parentID *string) error {
	if parentID == nil || *parentID == "" {
		return nil
	}
	parent, err := s.store.Channel(r.Context(), *parentID)
	if err != nil {
		return errors.New("parent channel not found")
	}
	if payload.ChannelType(parent.Type) != payload.ChannelCategory {
		return errors.New("parent must be a category")
	}
	return nil
}

// ---- Messages ------------------------------------------------------------

type messageEvent struct {
	*store.Message
	Member *store.Member `json:"member,omitempty"`
}

// withMember attaches the author's guild membership, as message events carry.
func (s *Server) withMember(r *http.Request, m *store.Message) messageEvent {
	ev := messageEvent{Message: m}
	if member, err := s.store.Member(r.Context(), m.Author.ID); err == nil {
		ev.Member = member
	}
	return ev
}

// POST /api/channels/{channelID}/messages
func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if err := s.requirePermission(r.Context(), userID, payload.PermSendMessages); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	var in store.MessageInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateMessageInput(in); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	m, err := s.store.CreateMessage(r.Context(), chi.URLParam(r, "channelID"), userID, in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	ev := s.withMember(r, m)
	s.broadcast(hub.EventMessageCreate, ev)
	writeJSON(w, http.StatusOK, ev)
}

// GET /api/channels/{channelID}/messages/{messageID}
func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.Message(r.Context(), chi.URLParam(r, "channelID"), chi.URLParam(r, "messageID"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.markOwnReactions(r, m)
	writeJSON(w, http.StatusOK, s.withMember(r, m))
}

// PATCH /api/channels/{channelID}/messages/{messageID}
//
// Only the author may edit.
func (s *Server) updateMessage(w http.ResponseWriter, r *http.Request) {
	channelID, messageID := chi.URLParam(r, "channelID"), chi.URLParam(r, "messageID")
	existing, err := s.store.Message(r.Context(), channelID, messageID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if existing.Author.ID != auth.UserID(r.Context()) {
		writeError(w, http.StatusForbidden, "cannot edit another user's message")
		return
	}

	var in store.MessageInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateMessageInput(in); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	m, err := s.store.UpdateMessage(r.Context(), channelID, messageID, in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	ev := s.withMember(r, m)
	s.broadcast(hub.EventMessageUpdate, ev)
	writeJSON(w, http.StatusOK, ev)
}

// DELETE /api/channels/{channelID}/messages/{messageID}
//
// Authors may delete their own messages; anyone else needs ManageMessages.
func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	channelID, messageID := chi.URLParam(r, "channelID"), chi.URLParam(r, "messageID")
	userID := auth.UserID(r.Context())
	existing, err := s.store.Message(r.Context(), channelID, messageID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if existing.Author.ID != userID {
		if err := s.requirePermission(r.Context(), userID, payload.PermManageMessages); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
	}
	if err := s.store.DeleteMessage(r.Context(), channelID, messageID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.broadcast(hub.EventMessageDelete, map[string]string{
		"id":         messageID,
		"channel_id": channelID,
		"guild_id":   s.store.GuildID(),
	})
	w.WriteHeader(http.StatusNoContent)
}

func validateMessageInput(in store.MessageInput) string {
	if in.Content != nil && len([]rune(*in.Content)) > 2000 {
		return "content must be at most 2000 characters"
	}
	if len(in.Nonce) > 64 {
		return "nonce must be at most 64 characters"
	}
	if len(in.Embeds) > 0 {
		var embeds []json.RawMessage
		if err := json.Unmarshal(in.Embeds, &embeds); err != nil {
			return "embeds must be an array"
		}
		if len(embeds) > 10 {
			return "at most 10 embeds"
		}
	}
	return ""
}

// ---- Reactions -----------------------------------------------------------

type reactionEvent struct {
	UserID    string        `json:"user_id"`
	ChannelID string        `json:"channel_id"`
	MessageID string        `json:"message_id"`
	GuildID   string        `json:"guild_id"`
	Member    *store.Member `json:"member,omitempty"`
	Emoji     store.Emoji   `json:"emoji"`
}

func (s *Server) reactionEvent(r *http.Request, userID, emoji string) reactionEvent {
	ev := reactionEvent{
		UserID:    userID,
		ChannelID: chi.URLParam(r, "channelID"),
		MessageID: chi.URLParam(r, "messageID"),
		GuildID:   s.store.GuildID(),
		Emoji:     store.ParseEmoji(emoji),
	}
	if m, err := s.store.Member(r.Context(), userID); err == nil {
		ev.Member = m
	}
	return ev
}

func emojiParam(r *http.Request) string {
	raw := chi.URLParam(r, "emoji")
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// markOwnReactions sets Reaction.Me for the requesting user.
func (s *Server) markOwnReactions(r *http.Request, m *store.Message) {
	userID := auth.UserID(r.Context())
	for i, rc := range m.Reactions {
		name := rc.Emoji.Name
		if rc.Emoji.ID != "" {
			name += ":" + rc.Emoji.ID
		}
		users, err := s.store.Reactors(r.Context(), m.ChannelID, m.ID, name)
		if err != nil {
			continue
		}
		for _, u := range users {
			if u.ID == userID {
				m.Reactions[i].Me = true
				break
			}
		}
	}
}

// PUT /api/channels/{channelID}/messages/{messageID}/reactions/{emoji}/@me
func (s *Server) addReaction(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if chi.URLParam(r, "userID") != "@me" {
		writeError(w, http.StatusMethodNotAllowed, "reactions can only be added as @me")
		return
	}
	if err := s.requirePermission(r.Context(), userID, payload.PermAddReactions); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	emoji := emojiParam(r)
	added, err := s.store.AddReaction(r.Context(), chi.URLParam(r, "channelID"), chi.URLParam(r, "messageID"), userID, emoji)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if added {
		s.broadcast(hub.EventMessageReactionAdd, s.reactionEvent(r, userID, emoji))
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/channels/{channelID}/messages/{messageID}/reactions/{emoji}/{userID}
func (s *Server) removeReaction(w http.ResponseWriter, r *http.Request) {
	callerID := auth.UserID(r.Context())
	targetID := chi.URLParam(r, "userID")
	if targetID == "@me" {
		targetID = callerID
	}
	if targetID != callerID {
		if err := s.requirePermission(r.Context(), callerID, payload.PermManageMessages); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
	}
	emoji := emojiParam(r)
	if err := s.store.RemoveReaction(r.Context(), chi.URLParam(r, "channelID"), chi.URLParam(r, "messageID"), targetID, emoji); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.broadcast(hub.EventMessageReactionRemove, s.reactionEvent(r, targetID, emoji))
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/channels/{channelID}/messages/{messageID}/reactions/{emoji}
func (s *Server) listReactors(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.Reactors(r.Context(), chi.URLParam(r, "channelID"), chi.URLParam(r, "messageID"), emojiParam(r))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// DELETE /api/channels/{channelID}/messages/{messageID}/reactions
func (s *Server) removeAllReactions(w http.ResponseWriter, r *http.Request) {
	if err := s.requirePermission(r.Context(), auth.UserID(r.Context()), payload.PermManageMessages); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	channelID, messageID := chi.URLParam(r, "channelID"), chi.URLParam(r, "messageID")
	if err := s.store.RemoveAllReactions(r.Context(), channelID, messageID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.broadcast(hub.EventMessageReactionRemoveAll, map[string]string{
		"channel_id": channelID,
		"message_id": messageID,
		"guild_id":   s.store.GuildID(),
	})
	w.WriteHeader(http.StatusNoContent)
}
