package orchestrator

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/cloud"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/edge"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/store"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *cloud.Fake) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	fake := cloud.NewFake()
	router := edge.New(fake, st)
	logger := log.New(io.Discard, "", 0)
	return New(st, fake, router, logger, "vibe-workspace"), fake
}

func TestSpawnRejectsOutOfRangeCount(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	if _, err := o.Spawn(context.Background(), 0, "vibe", false); err == nil {
		t.Fatalf("expected count=0 to be rejected")
	}
	if _, err := o.Spawn(context.Background(), 101, "vibe", false); err == nil {
		t.Fatalf("expected count=101 to be rejected")
	}
}

func TestSpawnRejectsUnknownExtension(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	if _, err := o.Spawn(context.Background(), 1, "nonexistent", false); err == nil {
		t.Fatalf("expected an unknown extension to be rejected")
	}
}

func TestSpawnInsertsWorkspacesAndCallsRunTask(t *testing.T) {
	o, fake := newTestOrchestrator(t)
	resp, err := o.Spawn(context.Background(), 3, "vibe", false)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if !resp.Success || len(resp.Instances) != 3 {
		t.Fatalf("expected 3 spawned instances, got %+v", resp)
	}
	if fake.Calls["RunTask"] != 3 {
		t.Fatalf("expected 3 RunTask calls, got %d", fake.Calls["RunTask"])
	}
	for _, w := range resp.Instances {
		if w.Lifecycle != store.LifecyclePending {
			t.Fatalf("expected lifecycle pending after a successful RunTask, got %q", w.Lifecycle)
		}
		if w.TaskHandle == "" {
			t.Fatalf("expected a task handle to be recorded")
		}
	}
}

func TestSpawnMarksWorkspaceFailedOnRunTaskError(t *testing.T) {
	o, fake := newTestOrchestrator(t)
	fake.RunTaskErr = errors.New("quota exceeded")
	resp, err := o.Spawn(context.Background(), 1, "vibe", false)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if resp.Success {
		t.Fatalf("expected Success=false when every spawn fails")
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("expected 1 error entry, got %+v", resp.Errors)
	}
}

func TestSpawnAutoAssignsQueuedParticipants(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	p, err := o.Store.InsertParticipant(store.Participant{ID: "p-1", Name: "Ada"})
	if err != nil {
		t.Fatalf("insert participant: %v", err)
	}
	resp, err := o.Spawn(context.Background(), 1, "vibe", true)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if resp.ParticipantsAssigned != 1 {
		t.Fatalf("expected 1 participant assigned, got %d", resp.ParticipantsAssigned)
	}
	if resp.Instances[0].ParticipantID != p.ID {
		t.Fatalf("expected workspace assigned to %s, got %+v", p.ID, resp.Instances[0])
	}
}

func TestStopAndDelete(t *testing.T) {
	o, fake := newTestOrchestrator(t)
	resp, err := o.Spawn(context.Background(), 1, "vibe", false)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	id := resp.Instances[0].ID

	if _, err := o.Stop(context.Background(), id); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if fake.Calls["StopTask"] != 1 {
		t.Fatalf("expected StopTask to be called")
	}

	if err := o.Delete(context.Background(), id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := o.Store.GetWorkspace(id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected the workspace to be removed, got %v", err)
	}
}

func TestStopUnknownWorkspaceReturnsNotFound(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	if _, err := o.Stop(context.Background(), "does-not-exist"); err == nil {
		t.Fatalf("expected an error for an unknown workspace")
	}
}

func TestReconcileOnceAttachesRunningWorkspace(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	resp, err := o.Spawn(context.Background(), 1, "vibe", false)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	id := resp.Instances[0].ID

	o.ReconcileOnce(context.Background())

	w, err := o.Store.GetWorkspace(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w.Lifecycle != store.LifecycleRunning {
		t.Fatalf("expected lifecycle running after reconcile, got %q", w.Lifecycle)
	}
	if w.PathPrefix == "" {
		t.Fatalf("expected the edge attach to populate a path prefix")
	}
	if w.PublicIP == "" {
		t.Fatalf("expected a public IP to be recorded")
	}
}

func TestReconcileOnceMarksStoppedWhenTaskGone(t *testing.T) {
	o, fake := newTestOrchestrator(t)
	resp, err := o.Spawn(context.Background(), 1, "vibe", false)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	id := resp.Instances[0].ID
	if err := fake.StopTask(context.Background(), resp.Instances[0].TaskHandle); err != nil {
		t.Fatalf("stop: %v", err)
	}
	// Simulate the cloud reaping the task entirely by describing a handle
	// the fake no longer recognizes.
	if _, err := o.Store.PatchWorkspace(id, store.WorkspacePatch{TaskHandle: strPtr("reaped-handle")}); err != nil {
		t.Fatalf("patch: %v", err)
	}

	o.ReconcileOnce(context.Background())

	w, err := o.Store.GetWorkspace(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w.Lifecycle != store.LifecycleStopped {
		t.Fatalf("expected lifecycle stopped once the task is unknown to the cloud, got %q", w.Lifecycle)
	}
}

func TestScanOrphansFindsUntrackedTasks(t *testing.T) {
	o, fake := newTestOrchestrator(t)
	handle, err := fake.RunTask(context.Background(), "vibe-workspace", "untracked")
	if err != nil {
		t.Fatalf("runtask: %v", err)
	}
	orphans, err := o.ScanOrphans(context.Background(), "vibe-workspace")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(orphans) != 1 || orphans[0].TaskHandle != handle {
		t.Fatalf("expected the untracked task to surface as an orphan, got %+v", orphans)
	}
}

func TestAutoAssignReportsEmptyQueue(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	if _, err := o.Store.InsertWorkspace(store.Workspace{ID: "ws-1", Lifecycle: store.LifecycleRunning}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, ok, err := o.AutoAssign("ws-1")
	if err != nil {
		t.Fatalf("autoassign: %v", err)
	}
	if ok {
		t.Fatalf("expected no participant to be available")
	}
}
