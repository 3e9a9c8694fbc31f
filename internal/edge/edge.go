// Package edge owns the shared L7 router and the single CDN distribution in
// front of it (spec §4.4). It is a thin, idempotent-aware layer over the
// Cloud Capability's load-balancer/CDN methods; the Orchestrator calls
// through it rather than the raw Cloud Capability so the edge-specific
// bookkeeping (bring-up once, re-use everywhere) lives in one place.
package edge

import (
	"context"
	"fmt"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/cloud"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/store"
)

// Router owns the shared router + CDN bring-up and per-workspace
// attach/detach.
type Router struct {
	Cloud cloud.Capability
	Store *store.Store
}

func New(capability cloud.Capability, st *store.Store) *Router {
	return &Router{Cloud: capability, Store: st}
}

// Bootstrap is the one-shot cloud bring-up the /setup/cluster endpoint
// drives: ensure the shared router exists, then the CDN in front of it, and
// persist both sets of handles into cluster configuration.
func (r *Router) Bootstrap(ctx context.Context) (store.ClusterConfig, error) {
	cfg := r.Store.GetConfig()
	lb, err := r.Cloud.EnsureLoadBalancer(ctx, cfg.VPCID, cfg.SubnetIDs, cfg.SecurityGroupID)
	if err != nil {
		return store.ClusterConfig{}, fmt.Errorf("edge: ensure load balancer: %w", err)
	}
	dist, err := r.Cloud.EnsureCDN(ctx, lb.DNSName)
	if err != nil {
		return store.ClusterConfig{}, fmt.Errorf("edge: ensure cdn: %w", err)
	}
	return r.Store.PatchConfig(func(c *store.ClusterConfig) {
		c.LoadBalancerArn = lb.Arn
		c.LoadBalancerDNSName = lb.DNSName
		c.ListenerArn = lb.ListenerArn
		c.CDNDistributionID = dist.DistributionID
		c.CDNDomain = dist.Domain
	})
}

// Attach registers targetIP for workspaceID and returns the path prefix,
// target group, and rule handles. Re-attaching an already-attached
// workspace re-uses the existing handles (idempotent per spec §4.4).
func (r *Router) Attach(ctx context.Context, workspaceID, targetIP string, targetPort int) (cloud.Attachment, error) {
	return r.Cloud.AttachWorkspace(ctx, workspaceID, targetIP, targetPort)
}

// Detach is a no-op for a workspace with no existing rule.
func (r *Router) Detach(ctx context.Context, workspaceID string) error {
	return r.Cloud.DetachWorkspace(ctx, workspaceID)
}
