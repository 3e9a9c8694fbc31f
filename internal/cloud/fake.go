package cloud

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Fake is an in-memory Capability double for unit-testing the orchestrator
// and edge router without a real cloud account: deterministic handles,
// injectable errors, and call counters.
type Fake struct {
	mu sync.Mutex

	nextTaskN   int
	nextRuleN   int
	tasks       map[string]*fakeTask
	attachments map[string]Attachment
	lb          *LoadBalancer
	cdn         *Distribution

	// RunTaskErr, when set, is returned by every RunTask call instead of
	// succeeding, letting tests exercise the transient/permanent paths.
	RunTaskErr error

	Calls map[string]int
}

type fakeTask struct {
	handle    string
	family    string
	status    TaskStatus
	publicIP  string
	privateIP string
}

// NewFake constructs an empty fake capability.
func NewFake() *Fake {
	return &Fake{
		tasks:       map[string]*fakeTask{},
		attachments: map[string]Attachment{},
		Calls:       map[string]int{},
	}
}

func (f *Fake) count(name string) {
	f.Calls[name]++
}

func (f *Fake) RunTask(_ context.Context, family, workspaceID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("RunTask")
	if f.RunTaskErr != nil {
		return "", f.RunTaskErr
	}
	f.nextTaskN++
	handle := fmt.Sprintf("fake-task-%d", f.nextTaskN)
	f.tasks[handle] = &fakeTask{
		handle:    handle,
		family:    family,
		status:    TaskRunning,
		publicIP:  fmt.Sprintf("203.0.113.%d", f.nextTaskN%254+1),
		privateIP: fmt.Sprintf("10.0.0.%d", f.nextTaskN%254+1),
	}
	return handle, nil
}

func (f *Fake) StopTask(_ context.Context, taskHandle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("StopTask")
	t, ok := f.tasks[taskHandle]
	if !ok {
		return nil // idempotent
	}
	t.status = TaskStopped
	return nil
}

func (f *Fake) DescribeTask(_ context.Context, taskHandle string) (TaskDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("DescribeTask")
	t, ok := f.tasks[taskHandle]
	if !ok {
		return TaskDescription{}, ErrTaskNotFound
	}
	return TaskDescription{Status: t.status, PublicIP: t.publicIP, PrivateIP: t.privateIP}, nil
}

func (f *Fake) ListRunningTasks(_ context.Context, family string) ([]RunningTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ListRunningTasks")
	var out []RunningTask
	for _, t := range f.tasks {
		if t.family != family || t.status != TaskRunning {
			continue
		}
		out = append(out, RunningTask{TaskHandle: t.handle, Status: t.status, PublicIP: t.publicIP})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskHandle < out[j].TaskHandle })
	return out, nil
}

func (f *Fake) EnsureLoadBalancer(_ context.Context, _ string, _ []string, _ string) (LoadBalancer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("EnsureLoadBalancer")
	if f.lb == nil {
		f.lb = &LoadBalancer{Arn: "fake-lb-arn", DNSName: "fake-lb.example.com", ListenerArn: "fake-listener-arn"}
	}
	return *f.lb, nil
}

func (f *Fake) AttachWorkspace(_ context.Context, workspaceID, targetIP string, targetPort int) (Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("AttachWorkspace")
	if a, ok := f.attachments[workspaceID]; ok {
		return a, nil // idempotent re-use
	}
	f.nextRuleN++
	a := Attachment{
		TargetGroupArn: fmt.Sprintf("fake-tg-%s", workspaceID),
		PathPrefix:     workspaceID,
		RuleArn:        fmt.Sprintf("fake-rule-%d", f.nextRuleN),
	}
	f.attachments[workspaceID] = a
	return a, nil
}

func (f *Fake) DetachWorkspace(_ context.Context, workspaceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("DetachWorkspace")
	delete(f.attachments, workspaceID) // no-op if absent
	return nil
}

func (f *Fake) EnsureCDN(_ context.Context, _ string) (Distribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("EnsureCDN")
	if f.cdn == nil {
		f.cdn = &Distribution{DistributionID: "fake-dist-1", Domain: "fake.cloudfront.example"}
	}
	return *f.cdn, nil
}

func (f *Fake) Identity(_ context.Context) (Identity, error) {
	f.count("Identity")
	return Identity{AccountID: "000000000000", Region: "us-east-1"}, nil
}

var _ Capability = (*Fake)(nil)
