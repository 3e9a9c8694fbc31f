package httpapi

import (
	"net/http"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/apierr"
)

// handleSetupCluster bootstraps the shared load balancer and CDN
// distribution the first time a cluster comes online (§4.4).
func (s *Server) handleSetupCluster(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.Edge.Bootstrap(r.Context())
	if err != nil {
		writeError(w, apierr.Internal("bootstrap cluster: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleSetupIdentity surfaces the cloud account/region the control plane is
// currently driving, for the setup wizard's confirmation step.
func (s *Server) handleSetupIdentity(w http.ResponseWriter, r *http.Request) {
	id, err := s.Cloud.Identity(r.Context())
	if err != nil {
		writeError(w, apierr.Internal("identity: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, id)
}
