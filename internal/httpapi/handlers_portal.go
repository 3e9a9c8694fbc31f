package httpapi

import (
	"net/http"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/apierr"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/auth"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/store"
)

// handlePortalMyInstance returns the authenticated participant's own record
// and, if assigned, their workspace (§4.5 participant portal).
func (s *Server) handlePortalMyInstance(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	p, err := s.Store.GetParticipant(claims.ParticipantID)
	if err != nil {
		writeError(w, apierr.NotFound("participant not found"))
		return
	}
	var instance *store.Workspace
	if p.AssignedWorkspace != "" {
		if ws, err := s.Store.GetWorkspace(p.AssignedWorkspace); err == nil {
			instance = &ws
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"participant": p, "instance": instance})
}

// handlePortalChangePassword is the participant-scoped analogue of the
// admin change-password handler, scoped to the authenticated participant's
// own record.
func (s *Server) handlePortalChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.Store.GetParticipant(claims.ParticipantID)
	if err != nil {
		writeError(w, apierr.NotFound("participant not found"))
		return
	}
	if !auth.CheckPassword(p.PasswordHash, req.CurrentPassword) {
		writeError(w, apierr.Unauthenticated("invalid credentials"))
		return
	}
	if req.NewPassword == "" {
		writeError(w, apierr.Validation("newPassword required"))
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, apierr.Internal("hash password: %v", err))
		return
	}
	if _, err := s.Store.PatchParticipant(p.ID, store.ParticipantPatch{PasswordHash: &hash}); err != nil {
		writeError(w, apierr.Internal("persist password: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
