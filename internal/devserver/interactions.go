package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clk-66/spectrus-go/internal/devserver/auth"
	"github.com/clk-66/spectrus-go/internal/devserver/hub"
	"github.com/clk-66/spectrus-go/internal/devserver/store"
)

// Interaction types, as carried on INTERACTION_CREATE.
const (
	InteractionPing         = 1
	InteractionCommand      = 2
	InteractionComponent    = 3
	InteractionAutocomplete = 4
	InteractionModalSubmit  = 5
)

const (
	responseChannelMessage    = 4
	responseDeferredComponent = 6
	responseUpdateMessage     = 7
)

var ErrNoApplication = errors.New("devserver: no application; run Seed first")

// InteractionInput describes an interaction to inject. The dev server has no
// end-user UI, so tests and tooling fabricate interactions with it.
type InteractionInput struct {
	Type      int
	ChannelID string
	UserID    string
	// Data is encoded as the interaction's "data" object.
	Data any
	// MessageID names the message a component interaction came from.
	MessageID string
}

// Interaction is what EmitInteraction broadcast.
type Interaction struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          int             `json:"type"`
	GuildID       string          `json:"guild_id"`
	ChannelID     string          `json:"channel_id,omitempty"`
	Member        *store.Member   `json:"member,omitempty"`
	Token         string          `json:"token"`
	Version       int             `json:"version"`
	Data          json.RawMessage `json:"data,omitempty"`
	Message       *store.Message  `json:"message,omitempty"`
}

// InteractionResponse is one recorded callback.
type InteractionResponse struct {
	Type int             `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type pendingInteraction struct {
	Interaction
	responses []InteractionResponse
}

// EmitInteraction builds an INTERACTION_CREATE for in, remembers it for the
// callback route and broadcasts it.
func (s *Server) EmitInteraction(ctx context.Context, in InteractionInput) (*Interaction, error) {
	appID := s.applicationID()
	if appID == "" {
		return nil, ErrNoApplication
	}
	it := Interaction{
		ID:            uuid.NewString(),
		ApplicationID: appID,
		Type:          in.Type,
		GuildID:       s.store.GuildID(),
		ChannelID:     in.ChannelID,
		Token:         uuid.NewString(),
		Version:       1,
	}
	if in.UserID != "" {
		m, err := s.store.Member(ctx, in.UserID)
		if err != nil {
			return nil, fmt.Errorf("invoker %s: %w", in.UserID, err)
		}
		it.Member = m
	}
	if in.Data != nil {
		raw, err := json.Marshal(in.Data)
		if err != nil {
			return nil, fmt.Errorf("encode interaction data: %w", err)
		}
		it.Data = raw
	}
	if in.MessageID != "" {
		msg, err := s.store.Message(ctx, in.ChannelID, in.MessageID)
		if err != nil {
			return nil, fmt.Errorf("source message %s: %w", in.MessageID, err)
		}
		it.Message = msg
	}

	s.mu.Lock()
	s.interactions[it.ID] = &pendingInteraction{Interaction: it}
	s.mu.Unlock()

	if err := s.hub.Broadcast(hub.EventInteractionCreate, it); err != nil {
		return nil, err
	}
	return &it, nil
}

// Responses returns the callbacks recorded for an interaction, oldest first.
func (s *Server) Responses(interactionID string) []InteractionResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.interactions[interactionID]
	if !ok {
		return nil
	}
	return append([]InteractionResponse(nil), p.responses...)
}

// POST /api/interactions/{interactionID}/{token}/callback
//
// Channel-message responses become real messages authored by the
// application; update responses edit the source message. Each interaction
// accepts one response.
func (s *Server) interactionCallback(w http.ResponseWriter, r *http.Request) {
	id, token := chi.URLParam(r, "interactionID"), chi.URLParam(r, "token")

	var resp InteractionResponse
	if err := decodeBody(r, &resp); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch resp.Type {
	case 1, 4, 5, 6, 7, 8, 9:
	default:
		writeError(w, http.StatusBadRequest, "unknown interaction response type")
		return
	}

	s.mu.Lock()
	p, ok := s.interactions[id]
	switch {
	case !ok || p.Token != token:
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "unknown interaction")
		return
	case len(p.responses) > 0:
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "interaction has already been acknowledged")
		return
	}
	p.responses = append(p.responses, resp)
	it := p.Interaction
	s.mu.Unlock()

	switch resp.Type {
	case responseChannelMessage:
		var in store.MessageInput
		if len(resp.Data) > 0 {
			if err := json.Unmarshal(resp.Data, &in); err != nil {
				writeError(w, http.StatusBadRequest, "invalid message data")
				return
			}
		}
		m, err := s.store.CreateMessage(r.Context(), it.ChannelID, it.ApplicationID, in)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.broadcast(hub.EventMessageCreate, s.withMember(r, m))

	case responseUpdateMessage:
		if it.Message == nil {
			writeError(w, http.StatusBadRequest, "interaction has no source message")
			return
		}
		var in store.MessageInput
		if err := json.Unmarshal(resp.Data, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid message data")
			return
		}
		m, err := s.store.UpdateMessage(r.Context(), it.ChannelID, it.Message.ID, in)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.broadcast(hub.EventMessageUpdate, s.withMember(r, m))

	case responseDeferredComponent:
		if it.Type != InteractionComponent {
			writeError(w, http.StatusBadRequest, "deferred update requires a component interaction")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- Commands ------------------------------------------------------------

// GET /api/commands
func (s *Server) listCommands(w http.ResponseWriter, r *http.Request) {
	cmds, err := s.store.Commands(r.Context(), s.applicationID())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmds)
}

// POST /api/commands
//
// Registering a name and type that already exist overwrites that command.
func (s *Server) createCommand(w http.ResponseWriter, r *http.Request) {
	if !s.isApplication(r) {
		writeError(w, http.StatusForbidden, "only the application may manage commands")
		return
	}
	var in store.CommandInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.Type == 0 {
		in.Type = 1
	}
	if in.Name == "" || len(in.Name) > 32 || in.Type < 1 || in.Type > 3 {
		writeError(w, http.StatusBadRequest, "invalid command")
		return
	}
	cmd, err := s.store.UpsertCommand(r.Context(), s.applicationID(), in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

// DELETE /api/commands/{commandID}
func (s *Server) deleteCommand(w http.ResponseWriter, r *http.Request) {
	if !s.isApplication(r) {
		writeError(w, http.StatusForbidden, "only the application may manage commands")
		return
	}
	if err := s.store.DeleteCommand(r.Context(), chi.URLParam(r, "commandID")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) applicationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appID
}

func (s *Server) isApplication(r *http.Request) bool {
	c := auth.ClaimsFrom(r.Context())
	return c != nil && c.Bot && c.UserID == s.applicationID()
}
