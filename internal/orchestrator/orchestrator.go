// Package orchestrator drives the lifecycle of workspaces: spawn, stop,
// delete, the reconciliation loop that advances status and publishes
// endpoints, the orphan scanner, and participant assignment.
package orchestrator

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/apierr"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/cloud"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/edge"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/store"
)

// Families is the closed set of supported image family tags (spec §3.1,
// §4.3.2). vibe-ct is the extension used by the spawn-and-auto-assign
// scenario in spec §8.
var Families = map[string]string{
	"continue": "ct",
	"cline":    "cl",
	"vibe":     "vb",
	"vibe-pro": "vp",
}

const ideContainerPort = 8080
const appContainerPort = 3000

// Orchestrator owns spawn/stop/delete/reconcile/orphan-scan/assignment.
type Orchestrator struct {
	Store  *store.Store
	Cloud  cloud.Capability
	Edge   *edge.Router
	Log    *log.Logger
	Family string // the cloud task family name, from cluster config
}

func New(st *store.Store, capability cloud.Capability, router *edge.Router, logger *log.Logger, taskFamily string) *Orchestrator {
	return &Orchestrator{Store: st, Cloud: capability, Edge: router, Log: logger, Family: taskFamily}
}

// SpawnResult is the per-workspace outcome of a spin-up request.
type SpawnResult struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// SpawnResponse is the full result of a spin-up request.
type SpawnResponse struct {
	Success             bool          `json:"success"`
	Instances           []store.Workspace `json:"instances"`
	ParticipantsAssigned int          `json:"participantsAssigned"`
	Errors              []SpawnResult `json:"errors,omitempty"`
}

// Spawn executes the spin-up protocol (§4.3.2): generate ids, insert
// provisioning records, call RunTask in parallel with bounded concurrency,
// and optionally auto-assign queued participants in insertion order.
func (o *Orchestrator) Spawn(ctx context.Context, count int, extension string, autoAssign bool) (SpawnResponse, error) {
	if count < 1 || count > 100 {
		return SpawnResponse{}, apierr.Validation("count must be between 1 and 100")
	}
	prefix, ok := Families[extension]
	if !ok {
		return SpawnResponse{}, apierr.Validation("unknown extension %q", extension)
	}

	const maxConcurrency = 10
	sem := make(chan struct{}, maxConcurrency)
	results := make([]SpawnResult, count)
	workspaces := make([]*store.Workspace, count)
	var wg sync.WaitGroup

	for i := 0; i < count; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			w, err := o.spawnOne(ctx, extension, prefix)
			if err != nil {
				results[idx] = SpawnResult{Error: err.Error()}
				return
			}
			workspaces[idx] = &w
		}(i)
	}
	wg.Wait()

	resp := SpawnResponse{}
	anySucceeded := false
	for i, w := range workspaces {
		if w == nil {
			resp.Errors = append(resp.Errors, SpawnResult{Error: results[i].Error})
			continue
		}
		anySucceeded = true
		resp.Instances = append(resp.Instances, *w)
	}
	resp.Success = anySucceeded

	if autoAssign {
		for i := range resp.Instances {
			p, ok := o.Store.NextUnassignedParticipant()
			if !ok {
				break
			}
			if err := o.Store.AssignParticipant(resp.Instances[i].ID, p.ID); err != nil {
				o.Log.Printf("orchestrator: auto-assign %s -> %s: %v", p.ID, resp.Instances[i].ID, err)
				continue
			}
			if w, err := o.Store.GetWorkspace(resp.Instances[i].ID); err == nil {
				resp.Instances[i] = w
			}
			resp.ParticipantsAssigned++
		}
	}
	return resp, nil
}

func (o *Orchestrator) spawnOne(ctx context.Context, extension, prefix string) (store.Workspace, error) {
	id, err := generateWorkspaceID(prefix)
	if err != nil {
		return store.Workspace{}, err
	}
	w, err := o.Store.InsertWorkspace(store.Workspace{
		ID:        id,
		Lifecycle: store.LifecycleProvisioning,
		Family:    extension,
	})
	if err != nil {
		return store.Workspace{}, err
	}

	taskHandle, err := o.Cloud.RunTask(ctx, extension, id)
	if err != nil {
		_, _ = o.Store.PatchWorkspace(id, store.WorkspacePatch{
			Lifecycle: lifecyclePtr(store.LifecycleFailed),
			Error:     strPtr(err.Error()),
		})
		return store.Workspace{}, fmt.Errorf("workspace %s: %w", id, err)
	}

	return o.Store.PatchWorkspace(id, store.WorkspacePatch{
		TaskHandle: strPtr(taskHandle),
		Lifecycle:  lifecyclePtr(store.LifecyclePending),
	})
}

func generateWorkspaceID(prefix string) (string, error) {
	const alphabet = "23456789abcdefghjkmnpqrstuvwxyz" // excludes ambiguous 0/o/1/l/i
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	suffix := make([]byte, 5)
	for i, b := range buf {
		suffix[i] = alphabet[int(b)%len(alphabet)]
	}
	return fmt.Sprintf("vibe-%s-%s", prefix, string(suffix)), nil
}

func lifecyclePtr(l store.Lifecycle) *store.Lifecycle { return &l }
func strPtr(s string) *string                         { return &s }

// Stop requests StopTask and marks the workspace stopping.
func (o *Orchestrator) Stop(ctx context.Context, id string) (store.Workspace, error) {
	w, err := o.Store.GetWorkspace(id)
	if err != nil {
		return store.Workspace{}, notFoundOrErr(err)
	}
	if w.TaskHandle != "" {
		if err := o.Cloud.StopTask(ctx, w.TaskHandle); err != nil {
			return store.Workspace{}, err
		}
	}
	return o.Store.PatchWorkspace(id, store.WorkspacePatch{Lifecycle: lifecyclePtr(store.LifecycleStopping)})
}

// Start re-runs the task for a stopped workspace, producing a fresh task
// handle and public IP while keeping the same workspace id (spec §8
// round-trip property).
func (o *Orchestrator) Start(ctx context.Context, id string) (store.Workspace, error) {
	w, err := o.Store.GetWorkspace(id)
	if err != nil {
		return store.Workspace{}, notFoundOrErr(err)
	}
	taskHandle, err := o.Cloud.RunTask(ctx, w.Family, w.ID)
	if err != nil {
		return store.Workspace{}, err
	}
	return o.Store.PatchWorkspace(id, store.WorkspacePatch{
		TaskHandle: strPtr(taskHandle),
		Lifecycle:  lifecyclePtr(store.LifecyclePending),
		PublicIP:   strPtr(""),
	})
}

// Delete stops the task (best-effort), detaches the edge, and removes the
// record.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	w, err := o.Store.GetWorkspace(id)
	if err != nil {
		return notFoundOrErr(err)
	}
	if w.TaskHandle != "" && w.Lifecycle != store.LifecycleStopped {
		if err := o.Cloud.StopTask(ctx, w.TaskHandle); err != nil {
			o.Log.Printf("orchestrator: best-effort stop %s: %v", id, err)
		}
	}
	if err := o.Edge.Detach(ctx, id); err != nil {
		o.Log.Printf("orchestrator: detach %s: %v", id, err)
	}
	return o.Store.DeleteWorkspace(id)
}

// StopAll and DeleteAll fan out over every workspace, collecting per-id
// errors without letting one failure stop the rest.
func (o *Orchestrator) StopAll(ctx context.Context) []SpawnResult {
	var results []SpawnResult
	for _, w := range o.Store.ListWorkspaces() {
		if _, err := o.Stop(ctx, w.ID); err != nil {
			results = append(results, SpawnResult{ID: w.ID, Error: err.Error()})
		}
	}
	return results
}

func (o *Orchestrator) DeleteAll(ctx context.Context) []SpawnResult {
	var results []SpawnResult
	for _, w := range o.Store.ListWorkspaces() {
		if err := o.Delete(ctx, w.ID); err != nil {
			results = append(results, SpawnResult{ID: w.ID, Error: err.Error()})
		}
	}
	return results
}

func notFoundOrErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierr.NotFound("workspace not found")
	}
	return err
}

// ReconcileOnce drives every non-terminal workspace through one
// reconciliation step (§4.3.3). It never returns early on a single
// workspace's error — "one workspace's failure must not starve others."
func (o *Orchestrator) ReconcileOnce(ctx context.Context) {
	cfg := o.Store.GetConfig()
	for _, w := range o.Store.ListWorkspaces() {
		if !reconcilable(w.Lifecycle) {
			continue
		}
		if err := o.reconcileWorkspace(ctx, w, cfg); err != nil {
			o.Log.Printf("orchestrator: reconcile %s: %v", w.ID, err)
		}
	}
}

func reconcilable(l store.Lifecycle) bool {
	switch l {
	case store.LifecycleProvisioning, store.LifecyclePending, store.LifecycleRunning, store.LifecycleStopping:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) reconcileWorkspace(ctx context.Context, w store.Workspace, cfg store.ClusterConfig) error {
	if w.TaskHandle == "" {
		return nil
	}
	desc, err := o.Cloud.DescribeTask(ctx, w.TaskHandle)
	if err != nil {
		if errors.Is(err, cloud.ErrTaskNotFound) {
			_, perr := o.Store.PatchWorkspace(w.ID, store.WorkspacePatch{Lifecycle: lifecyclePtr(store.LifecycleStopped)})
			return perr
		}
		return err
	}

	patch := store.WorkspacePatch{}
	changed := false
	newLifecycle := store.Lifecycle(desc.Status)
	if newLifecycle != "" && newLifecycle != w.Lifecycle {
		patch.Lifecycle = lifecyclePtr(newLifecycle)
		changed = true
	}
	if desc.PublicIP != "" && desc.PublicIP != w.PublicIP {
		patch.PublicIP = strPtr(desc.PublicIP)
		changed = true
	}

	effectiveIP := w.PublicIP
	if desc.PublicIP != "" {
		effectiveIP = desc.PublicIP
	}

	if desc.Status == cloud.TaskRunning && effectiveIP != "" {
		needsAttach := w.PathPrefix == "" || (w.PublicIP != "" && w.PublicIP != effectiveIP)
		if needsAttach {
			att, err := o.Edge.Attach(ctx, w.ID, effectiveIP, ideContainerPort)
			if err != nil {
				return fmt.Errorf("attach: %w", err)
			}
			patch.PathPrefix = strPtr(att.PathPrefix)
			patch.TargetGroupArn = strPtr(att.TargetGroupArn)
			patch.RuleArn = strPtr(att.RuleArn)
			changed = true
		}

		vscodeURL, previewURL := publishedURLs(cfg.CDNDomain, w.ID, effectiveIP)
		if vscodeURL != w.VSCodeURL {
			patch.VSCodeURL = strPtr(vscodeURL)
			changed = true
		}
		if previewURL != w.PreviewURL {
			patch.PreviewURL = strPtr(previewURL)
			changed = true
		}
	}

	if !changed {
		return nil
	}
	_, err = o.Store.PatchWorkspace(w.ID, patch)
	return err
}

// publishedURLs computes the IDE/app URLs per spec §4.3.3: preferred is the
// shared CDN domain with the workspace's path prefix; fallback (pre-edge) is
// the public IP directly.
func publishedURLs(cdnDomain, workspaceID, publicIP string) (ide, app string) {
	if cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s/", cdnDomain, workspaceID), fmt.Sprintf("https://%s/%s/app/", cdnDomain, workspaceID)
	}
	return fmt.Sprintf("http://%s:%d", publicIP, ideContainerPort), fmt.Sprintf("http://%s:%d", publicIP, appContainerPort)
}

// StartReconciler launches the periodic reconciliation task. Spec §9 leaves
// the cadence an open question and recommends 10 seconds; the caller
// supplies it via config.
func (o *Orchestrator) StartReconciler(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.ReconcileOnce(ctx)
			}
		}
	}()
}

// --- Orphan scanner (§4.3.4) ---

// Orphan is a cloud task belonging to the configured family with no
// corresponding Store record.
type Orphan struct {
	TaskHandle string `json:"task_arn"`
	PublicIP   string `json:"public_ip,omitempty"`
}

// ScanOrphans queries ListRunningTasks and diffs against Store.workspaces
// by task handle.
func (o *Orchestrator) ScanOrphans(ctx context.Context, family string) ([]Orphan, error) {
	running, err := o.Cloud.ListRunningTasks(ctx, family)
	if err != nil {
		return nil, err
	}
	known := map[string]bool{}
	for _, w := range o.Store.ListWorkspaces() {
		if w.TaskHandle != "" {
			known[w.TaskHandle] = true
		}
	}
	var orphans []Orphan
	for _, t := range running {
		if !known[t.TaskHandle] {
			orphans = append(orphans, Orphan{TaskHandle: t.TaskHandle, PublicIP: t.PublicIP})
		}
	}
	return orphans, nil
}

// ImportOrphan adopts an orphaned task by inserting a new workspace record
// pointing at its task handle.
func (o *Orchestrator) ImportOrphan(ctx context.Context, taskHandle, taskID string) (store.Workspace, error) {
	id := "imported-" + strings.TrimSpace(taskID)
	return o.Store.InsertWorkspace(store.Workspace{
		ID:         id,
		TaskHandle: taskHandle,
		Lifecycle:  store.LifecyclePending,
	})
}

// TerminateOrphan calls StopTask directly without touching the store.
func (o *Orchestrator) TerminateOrphan(ctx context.Context, taskHandle string) error {
	return o.Cloud.StopTask(ctx, taskHandle)
}

// TerminateAllOrphans iterates the current diff and collects per-task errors.
func (o *Orchestrator) TerminateAllOrphans(ctx context.Context, family string) ([]SpawnResult, error) {
	orphans, err := o.ScanOrphans(ctx, family)
	if err != nil {
		return nil, err
	}
	var results []SpawnResult
	for _, orph := range orphans {
		if err := o.TerminateOrphan(ctx, orph.TaskHandle); err != nil {
			results = append(results, SpawnResult{ID: orph.TaskHandle, Error: err.Error()})
		}
	}
	return results, nil
}

// --- Participant assignment (§4.3.5) ---

func (o *Orchestrator) AssignParticipant(workspaceID, participantID string) error {
	return o.Store.AssignParticipant(workspaceID, participantID)
}

func (o *Orchestrator) UnassignParticipant(participantID string) error {
	return o.Store.UnassignParticipant(participantID)
}

// AutoAssign dequeues the oldest unassigned participant and binds it to
// workspaceID, or reports that the queue is empty.
func (o *Orchestrator) AutoAssign(workspaceID string) (store.Participant, bool, error) {
	p, ok := o.Store.NextUnassignedParticipant()
	if !ok {
		return store.Participant{}, false, nil
	}
	if err := o.Store.AssignParticipant(workspaceID, p.ID); err != nil {
		return store.Participant{}, false, err
	}
	return p, true, nil
}
