// Package localcloud implements the Cloud Capability interface against a
// local Docker daemon instead of a real cloud account, for `cmd/fleetd
// -cloud=local` development runs: container lifecycle over the Docker SDK
// with idempotent Ensure* helpers. The load-balancer/CDN surface has no
// local equivalent so it is simulated with deterministic in-memory handles
// rather than a real network path.
package localcloud

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/cloud"
)

const labelFamily = "fleet.family"
const labelWorkspace = "fleet.workspace_id"
const networkName = "fleet-workspaces"

// Client wraps a Docker SDK client and keeps the small amount of in-memory
// routing state the simulated Edge Router needs.
type Client struct {
	api *client.Client

	mu          sync.Mutex
	attachments map[string]cloud.Attachment
	lb          *cloud.LoadBalancer
	cdn         *cloud.Distribution
	nextRule    int
}

// New connects to the local Docker daemon using the standard environment
// variables (DOCKER_HOST etc.).
func New() (*Client, error) {
	api, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("localcloud: connect docker: %w", err)
	}
	return &Client{api: api, attachments: map[string]cloud.Attachment{}}, nil
}

func (c *Client) ensureNetwork(ctx context.Context) (string, error) {
	args := filters.NewArgs()
	args.Add("name", networkName)
	list, err := c.api.NetworkList(ctx, types.NetworkListOptions{Filters: args})
	if err != nil {
		return "", err
	}
	for _, item := range list {
		if item.Name == networkName {
			return item.ID, nil
		}
	}
	resp, err := c.api.NetworkCreate(ctx, networkName, types.NetworkCreate{Driver: "bridge"})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// RunTask starts a container labeled with the workspace id and image
// family, injecting the same workspace-scoped environment variables a real
// ECS task definition would receive.
func (c *Client) RunTask(ctx context.Context, family, workspaceID string) (string, error) {
	if _, err := c.ensureNetwork(ctx); err != nil {
		return "", err
	}
	name := containerName(workspaceID)
	image := imageForFamily(family)
	cfg := &container.Config{
		Image: image,
		Env: []string{
			"WORKSPACE_ID=" + workspaceID,
			"WORKSPACE_FAMILY=" + family,
			"AWS_REGION=us-east-1",
		},
		Labels: map[string]string{
			labelFamily:    family,
			labelWorkspace: workspaceID,
		},
		ExposedPorts: map[string]struct{}{},
	}
	hostCfg := &container.HostConfig{
		NetworkMode: container.NetworkMode(networkName),
	}
	resp, err := c.api.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, nil, name)
	if err != nil {
		return "", err
	}
	if err := c.api.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func containerName(workspaceID string) string {
	return "fleet-ws-" + workspaceID
}

func imageForFamily(family string) string {
	return "fleet-workspace-" + strings.ToLower(family) + ":latest"
}

// StopTask is idempotent: stopping an already-stopped or missing container
// is not an error.
func (c *Client) StopTask(ctx context.Context, taskHandle string) error {
	timeout := 10
	err := c.api.ContainerStop(ctx, taskHandle, container.StopOptions{Timeout: &timeout})
	if err != nil && client.IsErrNotFound(err) {
		return nil
	}
	return err
}

func (c *Client) DescribeTask(ctx context.Context, taskHandle string) (cloud.TaskDescription, error) {
	info, err := c.api.ContainerInspect(ctx, taskHandle)
	if err != nil {
		if client.IsErrNotFound(err) {
			return cloud.TaskDescription{}, cloud.ErrTaskNotFound
		}
		return cloud.TaskDescription{}, err
	}
	status := cloud.TaskStopped
	publicIP := ""
	if info.State != nil && info.State.Running {
		status = cloud.TaskRunning
	}
	for _, settings := range info.NetworkSettings.Networks {
		if settings.IPAddress != "" {
			publicIP = settings.IPAddress
			break
		}
	}
	return cloud.TaskDescription{Status: status, PublicIP: publicIP, PrivateIP: publicIP}, nil
}

func (c *Client) ListRunningTasks(ctx context.Context, family string) ([]cloud.RunningTask, error) {
	args := filters.NewArgs()
	args.Add("label", labelFamily+"="+family)
	containers, err := c.api.ContainerList(ctx, types.ContainerListOptions{Filters: args})
	if err != nil {
		return nil, err
	}
	out := make([]cloud.RunningTask, 0, len(containers))
	for _, ct := range containers {
		out = append(out, cloud.RunningTask{TaskHandle: ct.ID, Status: cloud.TaskRunning})
	}
	return out, nil
}

// EnsureLoadBalancer has no local equivalent; it returns a deterministic
// simulated handle so the orchestrator's logic path is exercised end to end
// in development without a real VPC.
func (c *Client) EnsureLoadBalancer(_ context.Context, _ string, _ []string, _ string) (cloud.LoadBalancer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lb == nil {
		c.lb = &cloud.LoadBalancer{Arn: "local-lb", DNSName: "localhost", ListenerArn: "local-listener"}
	}
	return *c.lb, nil
}

func (c *Client) AttachWorkspace(_ context.Context, workspaceID, _ string, _ int) (cloud.Attachment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.attachments[workspaceID]; ok {
		return a, nil
	}
	c.nextRule++
	a := cloud.Attachment{TargetGroupArn: "local-tg-" + workspaceID, PathPrefix: workspaceID, RuleArn: fmt.Sprintf("local-rule-%d", c.nextRule)}
	c.attachments[workspaceID] = a
	return a, nil
}

func (c *Client) DetachWorkspace(_ context.Context, workspaceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attachments, workspaceID)
	return nil
}

func (c *Client) EnsureCDN(_ context.Context, _ string) (cloud.Distribution, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cdn == nil {
		c.cdn = &cloud.Distribution{DistributionID: "local-dist", Domain: "localhost"}
	}
	return *c.cdn, nil
}

func (c *Client) Identity(_ context.Context) (cloud.Identity, error) {
	return cloud.Identity{AccountID: "000000000000", Region: "local"}, nil
}

var _ cloud.Capability = (*Client)(nil)
