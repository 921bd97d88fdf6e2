package devserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clk-66/spectrus-go/internal/devserver/auth"
	"github.com/clk-66/spectrus-go/internal/devserver/hub"
	"github.com/clk-66/spectrus-go/internal/devserver/store"
	"github.com/clk-66/spectrus-go/payload"
)

// POST /api/auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil || body.Username == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	u, hash, err := s.store.UserByUsername(r.Context(), body.Username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.writeStoreError(w, r, err)
		return
	}
	if err != nil || auth.CheckPassword(hash, body.Password) != nil {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}
	token, err := s.issuer.Issue(u.ID, false)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": u})
}

// GET /api/users/@me
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.User(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// GET /api/guild
func (s *Server) getGuild(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.Guild(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// PATCH /api/guild
func (s *Server) updateGuild(w http.ResponseWriter, r *http.Request) {
	if err := s.requirePermission(r.Context(), auth.UserID(r.Context()), payload.PermManageGuild); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	var p store.GuildPatch
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.Name != nil && (len(*p.Name) < 2 || len(*p.Name) > 100) {
		writeError(w, http.StatusBadRequest, "name must be 2-100 characters")
		return
	}
	g, err := s.store.UpdateGuild(r.Context(), p)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.broadcast(hub.EventGuildUpdate, g)
	writeJSON(w, http.StatusOK, g)
}

// ---- Members -------------------------------------------------------------

// GET /api/members
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.store.Members(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// GET /api/members/{userID}
func (s *Server) getMember(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.Member(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// PATCH /api/members/{userID}
func (s *Server) updateMember(w http.ResponseWriter, r *http.Request) {
	var p store.MemberPatch
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.Nick != nil && len(*p.Nick) > 32 {
		writeError(w, http.StatusBadRequest, "nick must be at most 32 characters")
		return
	}

	var need uint64
	if p.Nick != nil {
		need |= payload.PermManageNicknames
	}
	if p.Roles != nil {
		need |= payload.PermManageRoles
	}
	if p.Mute != nil {
		need |= payload.PermMuteMembers
	}
	if p.Deaf != nil {
		need |= payload.PermDeafenMembers
	}
	if err := s.requirePermission(r.Context(), auth.UserID(r.Context()), need); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	m, err := s.store.UpdateMember(r.Context(), chi.URLParam(r, "userID"), p)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.broadcast(hub.EventGuildMemberUpdate, m)
	writeJSON(w, http.StatusOK, m)
}

// DELETE /api/members/{userID}
func (s *Server) kickMember(w http.ResponseWriter, r *http.Request) {
	if err := s.requirePermission(r.Context(), auth.UserID(r.Context()), payload.PermKickMembers); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	m, err := s.store.RemoveMember(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.broadcast(hub.EventGuildMemberRemove, map[string]any{"guild_id": m.GuildID, "user": m.User})
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/members/{userID}/roles/{roleID}
func (s *Server) addMemberRole(w http.ResponseWriter, r *http.Request) {
	if err := s.requirePermission(r.Context(), auth.UserID(r.Context()), payload.PermManageRoles); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	m, err := s.store.AddMemberRole(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "roleID"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.broadcast(hub.EventGuildMemberUpdate, m)
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/members/{userID}/roles/{roleID}
func (s *Server) removeMemberRole(w http.ResponseWriter, r *http.Request) {
	if err := s.requirePermission(r.Context(), auth.UserID(r.Context()), payload.PermManageRoles); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	m, err := s.store.RemoveMemberRole(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "roleID"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.broadcast(hub.EventGuildMemberUpdate, m)
	w.WriteHeader(http.StatusNoContent)
}

// ---- Bans ----------------------------------------------------------------

// GET /api/bans
func (s *Server) listBans(w http.ResponseWriter, r *http.Request) {
	if err := s.requirePermission(r.Context(), auth.UserID(r.Context()), payload.PermBanMembers); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	bans, err := s.store.Bans(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bans)
}

// PUT /api/bans/{userID}
func (s *Server) banMember(w http.ResponseWriter, r *http.Request) {
	callerID := auth.UserID(r.Context())
	if err := s.requirePermission(r.Context(), callerID, payload.PermBanMembers); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	targetID := chi.URLParam(r, "userID")
	if targetID == callerID {
		writeError(w, http.StatusBadRequest, "cannot ban yourself")
		return
	}

	ban, removed, err := s.store.Ban(r.Context(), targetID, body.Reason)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if removed != nil {
		s.broadcast(hub.EventGuildMemberRemove, map[string]any{"guild_id": removed.GuildID, "user": removed.User})
	}
	s.broadcast(hub.EventGuildBanAdd, ban)
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/bans/{userID}
func (s *Server) unbanMember(w http.ResponseWriter, r *http.Request) {
	if err := s.requirePermission(r.Context(), auth.UserID(r.Context()), payload.PermBanMembers); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	ban, err := s.store.Unban(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.broadcast(hub.EventGuildBanRemove, map[string]any{"guild_id": ban.GuildID, "user": ban.User})
	w.WriteHeader(http.StatusNoContent)
}

// ---- Roles ---------------------------------------------------------------

type roleEvent struct {
	GuildID string     `json:"guild_id"`
	Role    store.Role `json:"role"`
}

// GET /api/roles
func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.store.Roles(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

// POST /api/roles
func (s *Server) createRole(w http.ResponseWriter, r *http.Request) {
	if err := s.requirePermission(r.Context(), auth.UserID(r.Context()), payload.PermManageRoles); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	var p store.RolePatch
	if err := decodeBody(r, &p); err != nil || !validRolePatch(p) {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}
	role, err := s.store.CreateRole(r.Context(), p)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.broadcast(hub.EventGuildRoleCreate, roleEvent{GuildID: s.store.GuildID(), Role: *role})
	writeJSON(w, http.StatusOK, role)
}

// PATCH /api/roles/{roleID}
func (s *Server) updateRole(w http.ResponseWriter, r *http.Request) {
	if err := s.requirePermission(r.Context(), auth.UserID(r.Context()), payload.PermManageRoles); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	var p store.RolePatch
	if err := decodeBody(r, &p); err != nil || !validRolePatch(p) {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}
	role, err := s.store.UpdateRole(r.Context(), chi.URLParam(r, "roleID"), p)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.broadcast(hub.EventGuildRoleUpdate, roleEvent{GuildID: s.store.GuildID(), Role: *role})
	writeJSON(w, http.StatusOK, role)
}

// DELETE /api/roles/{roleID}
//
// Members who held the role get a GUILD_MEMBER_UPDATE after the delete.
func (s *Server) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := s.requirePermission(r.Context(), auth.UserID(r.Context()), payload.PermManageRoles); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	roleID := chi.URLParam(r, "roleID")
	holders, err := s.store.DeleteRole(r.Context(), roleID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.broadcast(hub.EventGuildRoleDelete, map[string]string{"guild_id": s.store.GuildID(), "role_id": roleID})
	for _, uid := range holders {
		if m, err := s.store.Member(r.Context(), uid); err == nil {
			s.broadcast(hub.EventGuildMemberUpdate, m)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func validRolePatch(p store.RolePatch) bool {
	if p.Name != nil && (*p.Name == "" || len(*p.Name) > 100) {
		return false
	}
	if p.Color != nil && (*p.Color < 0 || *p.Color > 0xFFFFFF) {
		return false
	}
	if p.Permissions != nil {
		if *p.Permissions == "" {
			return false
		}
		for _, c := range *p.Permissions {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}
