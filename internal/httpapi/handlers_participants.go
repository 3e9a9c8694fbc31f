package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/apierr"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/auth"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/store"
)

func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.ListParticipants())
}

type participantInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Notes string `json:"notes,omitempty"`
}

func (s *Server) handleCreateParticipant(w http.ResponseWriter, r *http.Request) {
	var req participantInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.createParticipant(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createParticipant(in participantInput) (store.Participant, error) {
	if in.Name == "" || in.Email == "" {
		return store.Participant{}, apierr.Validation("name and email required")
	}
	token, err := auth.GenerateAccessToken()
	if err != nil {
		return store.Participant{}, apierr.Internal("generate access token: %v", err)
	}
	password, err := auth.GeneratePassword()
	if err != nil {
		return store.Participant{}, apierr.Internal("generate password: %v", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return store.Participant{}, apierr.Internal("hash password: %v", err)
	}
	return s.Store.InsertParticipant(store.Participant{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		Notes:        in.Notes,
		AccessToken:  token,
		PasswordHash: hash,
	})
}

// handleImportParticipants implements bulk import (SPEC_FULL.md supplement
// to spec §6.1): each row is validated independently and per-row failures
// are collected alongside successes.
func (s *Server) handleImportParticipants(w http.ResponseWriter, r *http.Request) {
	var rows []participantInput
	if err := readJSON(r, &rows); err != nil {
		writeError(w, err)
		return
	}
	type result struct {
		Participant *store.Participant `json:"participant,omitempty"`
		Error       string             `json:"error,omitempty"`
	}
	results := make([]result, 0, len(rows))
	imported := 0
	for _, row := range rows {
		p, err := s.createParticipant(row)
		if err != nil {
			results = append(results, result{Error: err.Error()})
			continue
		}
		imported++
		pp := p
		results = append(results, result{Participant: &pp})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": imported > 0, "imported": imported, "results": results})
}

func (s *Server) handlePatchParticipant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
		Notes *string `json:"notes"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.Store.PatchParticipant(id, store.ParticipantPatch{Name: req.Name, Email: req.Email, Notes: req.Notes})
	if err != nil {
		writeError(w, notFoundAware(err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteParticipant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Store.DeleteParticipant(id); err != nil {
		writeError(w, notFoundAware(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleRegeneratePassword issues a fresh plaintext password, updates the
// hash atomically, and returns the plaintext exactly once (§4.5).
func (s *Server) handleRegeneratePassword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	password, err := auth.GeneratePassword()
	if err != nil {
		writeError(w, apierr.Internal("generate password: %v", err))
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		writeError(w, apierr.Internal("hash password: %v", err))
		return
	}
	if _, err := s.Store.PatchParticipant(id, store.ParticipantPatch{PasswordHash: &hash}); err != nil {
		writeError(w, notFoundAware(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"password": password})
}

func (s *Server) handleAssignParticipant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		WorkspaceID string `json:"workspace_id"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Orchestrator.AssignParticipant(req.WorkspaceID, id); err != nil {
		writeError(w, notFoundAware(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleUnassignParticipant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Orchestrator.UnassignParticipant(id); err != nil {
		writeError(w, notFoundAware(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAutoAssignParticipant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkspaceID string `json:"workspace_id"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, ok, err := s.Orchestrator.AutoAssign(req.WorkspaceID)
	if err != nil {
		writeError(w, apierr.Internal("%v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assigned": ok, "participant": p})
}
