// Package cloud defines the narrow Cloud Capability interface consumed by
// the Workspace Orchestrator and Edge Router. No component outside this
// package and its implementations references cloud-specific vocabulary.
package cloud

import (
	"context"
	"errors"
	"time"
)

// ErrTaskNotFound is returned by DescribeTask when the cloud has already
// reaped the task; it is not treated as a failure by the caller.
var ErrTaskNotFound = errors.New("cloud: task not found")

// Permanent wraps an error the caller must not retry (access denied,
// malformed resource). Transient errors are returned unwrapped so callers
// apply their own retry/backoff policy.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// TaskStatus is the normalized, lowercase cloud-reported state of a task.
type TaskStatus string

const (
	TaskProvisioning TaskStatus = "provisioning"
	TaskPending      TaskStatus = "pending"
	TaskRunning      TaskStatus = "running"
	TaskStopping     TaskStatus = "stopping"
	TaskStopped      TaskStatus = "stopped"
)

// TaskDescription is the result of DescribeTask.
type TaskDescription struct {
	Status         TaskStatus
	PublicIP       string
	PrivateIP      string
	StartedAt      time.Time
	TaskDefinition string
}

// RunningTask is one element of ListRunningTasks.
type RunningTask struct {
	TaskHandle string
	Status     TaskStatus
	PublicIP   string
}

// LoadBalancer is the result of EnsureLoadBalancer.
type LoadBalancer struct {
	Arn         string
	DNSName     string
	ListenerArn string
}

// Attachment is the result of AttachWorkspace.
type Attachment struct {
	TargetGroupArn string
	PathPrefix     string
	RuleArn        string
}

// Distribution is the result of EnsureCDN.
type Distribution struct {
	DistributionID string
	Domain         string
}

// Identity is the result of Identity().
type Identity struct {
	AccountID string
	Region    string
}

// Capability is the narrow interface the Orchestrator and Edge Router
// consume. Implementations may call real cloud APIs or be test doubles;
// every method is fallible and every failure is either transient (plain
// error, retried by the caller per its own policy) or permanent (*Permanent,
// never retried).
type Capability interface {
	// RunTask registers a task definition derived from a base template for
	// the requested image family, substitutes the image tag, injects
	// workspace-scoped environment variables (workspace id, region, family,
	// model id), and starts it under the cluster's networking configuration
	// with a public IP.
	RunTask(ctx context.Context, family, workspaceID string) (taskHandle string, err error)

	// StopTask requests a stop; idempotent.
	StopTask(ctx context.Context, taskHandle string) error

	// DescribeTask returns ErrTaskNotFound if the cloud has reaped the task.
	DescribeTask(ctx context.Context, taskHandle string) (TaskDescription, error)

	// ListRunningTasks is filtered by the coding-lab task family.
	ListRunningTasks(ctx context.Context, family string) ([]RunningTask, error)

	// EnsureLoadBalancer is idempotent: creates or discovers a shared L7
	// router with a default 404 action and an HTTP listener on port 80.
	EnsureLoadBalancer(ctx context.Context, vpcID string, subnetIDs []string, securityGroupID string) (LoadBalancer, error)

	// AttachWorkspace creates a target group, registers targetIP as a
	// target, and inserts a path-prefix forwarding rule at a priority
	// derived from workspaceID.
	AttachWorkspace(ctx context.Context, workspaceID, targetIP string, targetPort int) (Attachment, error)

	// DetachWorkspace deletes the listener rule and target group;
	// idempotent — a detach for a non-existent rule is a no-op.
	DetachWorkspace(ctx context.Context, workspaceID string) error

	// EnsureCDN is idempotent: creates an HTTPS-terminating distribution in
	// front of routerDNSName with caching disabled and WebSocket methods
	// allowed.
	EnsureCDN(ctx context.Context, routerDNSName string) (Distribution, error)

	Identity(ctx context.Context) (Identity, error)
}
