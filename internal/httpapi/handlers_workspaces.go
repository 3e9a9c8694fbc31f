package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/apierr"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/store"
)

func patchFromRequest(name, email, notes *string) store.WorkspacePatch {
	return store.WorkspacePatch{ParticipantName: name, ParticipantEmail: email, Notes: notes}
}

// handleListWorkspaces triggers reconciliation as a side effect (spec §4.3.3
// notes the reconciler also runs as "the behavior of the list workspaces
// read endpoint").
func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	s.Orchestrator.ReconcileOnce(r.Context())
	writeJSON(w, http.StatusOK, s.Store.ListWorkspaces())
}

func (s *Server) handleSpinUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count                  int    `json:"count"`
		Extension              string `json:"extension"`
		AutoAssignParticipants bool   `json:"autoAssignParticipants"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	resp, err := s.Orchestrator.Spawn(r.Context(), req.Count, req.Extension, req.AutoAssignParticipants)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStopOne(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ws, err := s.Orchestrator.Stop(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleStartOne(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ws, err := s.Orchestrator.Start(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleDeleteOne(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Orchestrator.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handlePatchOne(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		ParticipantName  *string `json:"participant_name"`
		ParticipantEmail *string `json:"participant_email"`
		Notes            *string `json:"notes"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ws, err := s.Store.PatchWorkspace(id, patchFromRequest(req.ParticipantName, req.ParticipantEmail, req.Notes))
	if err != nil {
		writeError(w, notFoundAware(err))
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	errs := s.Orchestrator.StopAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "errors": errs})
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	errs := s.Orchestrator.DeleteAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "errors": errs})
}

func (s *Server) handleOrphanScan(w http.ResponseWriter, r *http.Request) {
	family := s.Store.GetConfig().TaskFamily
	orphans, err := s.Orchestrator.ScanOrphans(r.Context(), family)
	if err != nil {
		writeError(w, apierr.Internal("%v", err))
		return
	}
	writeJSON(w, http.StatusOK, orphans)
}

func (s *Server) handleOrphanImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskArn string `json:"task_arn"`
		TaskID  string `json:"task_id"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ws, err := s.Orchestrator.ImportOrphan(r.Context(), req.TaskArn, req.TaskID)
	if err != nil {
		writeError(w, apierr.Internal("%v", err))
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleOrphanTerminate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskArn string `json:"task_arn"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Orchestrator.TerminateOrphan(r.Context(), req.TaskArn); err != nil {
		writeError(w, apierr.Internal("%v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleOrphanTerminateAll(w http.ResponseWriter, r *http.Request) {
	family := s.Store.GetConfig().TaskFamily
	results, err := s.Orchestrator.TerminateAllOrphans(r.Context(), family)
	if err != nil {
		writeError(w, apierr.Internal("%v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "errors": results})
}

// notFoundAware maps a store lookup-or-mutate error to the right HTTP kind:
// a genuine ErrNotFound becomes 404, but any other failure (e.g. the record
// was found and a subsequent persist to disk failed) must still surface as
// 500, not be misreported as "not found".
func notFoundAware(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierr.NotFound("%v", err)
	}
	return apierr.Internal("%v", err)
}
