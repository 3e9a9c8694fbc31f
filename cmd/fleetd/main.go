// Command fleetd is the fleet control-plane process: it serves the HTTP
// surface of §6.1 over the Store, Orchestrator, and Edge Router, and runs
// the background reconciliation loop.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/cloud"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/cloud/awscloud"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/cloud/localcloud"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/config"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/edge"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/httpapi"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/orchestrator"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "fleetd ", log.LstdFlags|log.LUTC)
	cfg := config.LoadFleet()

	st, err := store.New(filepath.Join(cfg.DataDir, "state.json"))
	if err != nil {
		logger.Fatalf("store: %v", err)
	}
	if err := seedClusterBootstrap(st, cfg); err != nil {
		logger.Fatalf("cluster bootstrap: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	capability, err := newCapability(ctx, cfg)
	if err != nil {
		logger.Fatalf("cloud: %v", err)
	}

	router := edge.New(capability, st)
	orch := orchestrator.New(st, capability, router, logger, cfg.TaskFamily)
	orch.StartReconciler(ctx, time.Duration(cfg.ReconcileEvery)*time.Second)

	srv := httpapi.New(st, orch, router, capability, logger)
	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Router()}

	go func() {
		logger.Printf("listening on %s (cloud backend: %s)", cfg.ListenAddr, cfg.CloudBackend)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Print("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	cancel()
}

// seedClusterBootstrap loads the optional YAML cluster config file (§9) and,
// if present, patches its VPC/subnet/security-group values into the store
// once, so an operator doesn't have to POST the same values to
// /setup/cluster by hand after every fresh deploy.
func seedClusterBootstrap(st *store.Store, cfg config.Fleet) error {
	cb, ok, err := config.LoadClusterBootstrap(cfg.ClusterConfigFile)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	_, err = st.PatchConfig(func(c *store.ClusterConfig) {
		c.VPCID = cb.VPCID
		c.SubnetIDs = cb.SubnetIDs
		c.SecurityGroupID = cb.SecurityGroupID
	})
	return err
}

// newCapability selects the real AWS implementation or the local Docker
// implementation per CLOUD_BACKEND (spec §4.2/§9: both satisfy the same
// narrow Capability interface, so the rest of the process is indifferent).
func newCapability(ctx context.Context, cfg config.Fleet) (cloud.Capability, error) {
	switch cfg.CloudBackend {
	case "aws":
		return awscloud.New(ctx, cfg.AWSRegion, cfg.ECSCluster, cfg.TaskFamily)
	default:
		return localcloud.New()
	}
}
