package httpapi

import (
	"net/http"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/apierr"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/auth"
)

type loginResponse struct {
	Token string   `json:"token"`
	User  userInfo `json:"user"`
}

type userInfo struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !auth.CheckPassword(s.Store.GetAuth().AdminPasswordHash, req.Password) {
		writeError(w, apierr.Unauthenticated("invalid credentials"))
		return
	}
	token, err := s.issuer().IssueAdmin()
	if err != nil {
		writeError(w, apierr.Internal("issue token: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: userInfo{Type: "admin"}})
}

func (s *Server) handleAdminChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !auth.CheckPassword(s.Store.GetAuth().AdminPasswordHash, req.CurrentPassword) {
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
	if err := s.Store.SetAdminPasswordHash(hash); err != nil {
		writeError(w, apierr.Internal("persist password: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleParticipantLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.Store.FindParticipantByEmail(req.Email)
	if err != nil || !auth.CheckPassword(p.PasswordHash, req.Password) {
		// Never leak which of email/password was wrong.
		writeError(w, apierr.Unauthenticated("invalid credentials"))
		return
	}
	token, err := s.issuer().IssueParticipant(p.ID, p.Email, p.Name)
	if err != nil {
		writeError(w, apierr.Internal("issue token: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: userInfo{Type: "participant", ID: p.ID, Name: p.Name, Email: p.Email}})
}

// handleAccessTokenLogin implements the single-step "landing code" flow
// (§4.5): a 5-char case-insensitive token, rejecting with "please wait" if
// the bound workspace isn't running yet (§8 boundary behavior).
func (s *Server) handleAccessTokenLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessToken string `json:"accessToken"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.Store.FindParticipantByAccessToken(req.AccessToken)
	if err != nil {
		writeError(w, apierr.Unauthenticated("invalid access token"))
		return
	}
	if p.AssignedWorkspace == "" {
		writeError(w, apierr.Validation("no workspace assigned"))
		return
	}
	ws, err := s.Store.GetWorkspace(p.AssignedWorkspace)
	if err != nil {
		writeError(w, apierr.Validation("no workspace assigned"))
		return
	}
	if ws.Lifecycle != "running" {
		writeError(w, apierr.Validation("please wait"))
		return
	}
	token, err := s.issuer().IssueParticipant(p.ID, p.Email, p.Name)
	if err != nil {
		writeError(w, apierr.Internal("issue token: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":    token,
		"instance": ws,
	})
}
