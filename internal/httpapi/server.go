// Package httpapi is the thin HTTP adapter over the Orchestrator, Store,
// and Auth components (spec §4.6 / §6.1), routed with chi the way the
// teacher's dashboard and ReleaseParty services do.
package httpapi

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/auth"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/cloud"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/edge"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/orchestrator"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/store"
)

// Server holds everything the handlers need.
type Server struct {
	Store        *store.Store
	Orchestrator *orchestrator.Orchestrator
	Edge         *edge.Router
	Cloud        cloud.Capability
	Log          *log.Logger
}

func New(st *store.Store, orch *orchestrator.Orchestrator, router *edge.Router, capability cloud.Capability, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "fleetd ", log.LstdFlags|log.LUTC)
	}
	return &Server{Store: st, Orchestrator: orch, Edge: router, Cloud: capability, Log: logger}
}

// issuer returns the token issuer bound to the store's current signing
// secret. Constructed per-request since the secret is hot-reloaded from the
// store like the rest of cluster configuration.
func (s *Server) issuer() *auth.Issuer {
	return auth.NewIssuer(s.Store.GetAuth().SigningSecret)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/admin/login", s.handleAdminLogin)
		r.Post("/admin/change-password", s.withRole(auth.RoleAdmin, s.handleAdminChangePassword))
		r.Post("/participant/login", s.handleParticipantLogin)
		r.Post("/access-token/login", s.handleAccessTokenLogin)
	})

	r.Route("/workspaces", func(r chi.Router) {
		r.Use(s.requireRole(auth.RoleAdmin))
		r.Get("/", s.handleListWorkspaces)
		r.Post("/spin-up", s.handleSpinUp)
		r.Post("/stop-all", s.handleStopAll)
		r.Delete("/all", s.handleDeleteAll)
		r.Post("/{id}/stop", s.handleStopOne)
		r.Post("/{id}/start", s.handleStartOne)
		r.Delete("/{id}", s.handleDeleteOne)
		r.Patch("/{id}", s.handlePatchOne)
		r.Get("/orphaned/scan", s.handleOrphanScan)
		r.Post("/orphaned/import", s.handleOrphanImport)
		r.Post("/orphaned/terminate", s.handleOrphanTerminate)
		r.Post("/orphaned/terminate-all", s.handleOrphanTerminateAll)
	})

	r.Route("/participants", func(r chi.Router) {
		r.Use(s.requireRole(auth.RoleAdmin))
		r.Get("/", s.handleListParticipants)
		r.Post("/", s.handleCreateParticipant)
		r.Post("/import", s.handleImportParticipants)
		r.Patch("/{id}", s.handlePatchParticipant)
		r.Delete("/{id}", s.handleDeleteParticipant)
		r.Post("/{id}/regenerate-password", s.handleRegeneratePassword)
		r.Post("/{id}/assign", s.handleAssignParticipant)
		r.Post("/{id}/unassign", s.handleUnassignParticipant)
		r.Post("/{id}/auto-assign", s.handleAutoAssignParticipant)
	})

	r.Route("/setup", func(r chi.Router) {
		r.Use(s.requireRole(auth.RoleAdmin))
		r.Post("/cluster", s.handleSetupCluster)
		r.Get("/identity", s.handleSetupIdentity)
	})

	r.Route("/portal", func(r chi.Router) {
		r.Use(s.requireRole(auth.RoleParticipant))
		r.Get("/my-instance", s.handlePortalMyInstance)
		r.Post("/change-password", s.handlePortalChangePassword)
	})

	return r
}
