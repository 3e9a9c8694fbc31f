package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/agent/tools"
)

type scriptStep struct {
	events         []StreamEvent
	err            error
	blockForCancel bool
	// blockAfterEvents, when set, sends events then waits for ctx
	// cancellation instead of closing normally — for exercising
	// cancellation that lands after a block has already completed.
	blockAfterEvents bool
}

// scriptedModel is a Model test double driven by a fixed sequence of
// per-call scripts, the agent-loop analogue of cloud.Fake.
type scriptedModel struct {
	mu    sync.Mutex
	steps []scriptStep
	idx   int
}

func (m *scriptedModel) Stream(ctx context.Context, system string, messages []Message, schemas []ToolSchema) (<-chan StreamEvent, <-chan error) {
	m.mu.Lock()
	i := m.idx
	m.idx++
	m.mu.Unlock()

	events := make(chan StreamEvent, 16)
	errc := make(chan error, 1)

	var step scriptStep
	if i < len(m.steps) {
		step = m.steps[i]
	} else {
		step.err = errors.New("scriptedModel: no more steps scripted")
	}

	go func() {
		defer close(events)
		defer close(errc)
		if step.blockForCancel {
			<-ctx.Done()
			errc <- ctx.Err()
			return
		}
		for _, ev := range step.events {
			events <- ev
		}
		if step.blockAfterEvents {
			<-ctx.Done()
			errc <- ctx.Err()
			return
		}
		if step.err != nil {
			errc <- step.err
		}
	}()
	return events, errc
}

func (m *scriptedModel) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	return "", nil
}

func textStep(text, stopReason string) scriptStep {
	return scriptStep{events: []StreamEvent{
		{Kind: StreamBlockStart, Index: 0, Block: Block{Kind: BlockText}},
		{Kind: StreamBlockDelta, Index: 0, TextDelta: text},
		{Kind: StreamBlockStop, Index: 0},
		{Kind: StreamMessageStop, StopReason: stopReason},
	}}
}

func toolUseStep(id, tool string) scriptStep {
	return scriptStep{events: []StreamEvent{
		{Kind: StreamBlockStart, Index: 0, Block: Block{Kind: BlockToolUse, ID: id, Tool: tool}},
		{Kind: StreamBlockDelta, Index: 0, InputDelta: `{}`},
		{Kind: StreamBlockStop, Index: 0},
		{Kind: StreamMessageStop, StopReason: "tool_use"},
	}}
}

// toolUseStepBlockingBeforeMessageStop completes a tool_use block's
// StreamBlockStart/Delta/Stop, then blocks (rather than sending
// StreamMessageStop) until the context is canceled.
func toolUseStepBlockingBeforeMessageStop(id, tool string) scriptStep {
	return scriptStep{
		events: []StreamEvent{
			{Kind: StreamBlockStart, Index: 0, Block: Block{Kind: BlockToolUse, ID: id, Tool: tool}},
			{Kind: StreamBlockDelta, Index: 0, InputDelta: `{}`},
			{Kind: StreamBlockStop, Index: 0},
		},
		blockAfterEvents: true,
	}
}

func collectEvents(t *testing.T, root string, model Model) []Event {
	t.Helper()
	registry := tools.NewRegistry(root, nil)
	loop := NewLoop(model, registry, nil, root)

	var events []Event
	loop.Run(context.Background(), "do the thing", func(ev Event) { events = append(events, ev) })
	return events
}

func TestLoopTextOnlyTurnEmitsTextAndDone(t *testing.T) {
	model := &scriptedModel{steps: []scriptStep{textStep("hello there", "end_turn")}}
	events := collectEvents(t, t.TempDir(), model)

	var gotText, gotDone bool
	for _, ev := range events {
		switch ev.Kind {
		case EventText:
			if ev.Content != "hello there" {
				t.Fatalf("expected agent:text content %q, got %q", "hello there", ev.Content)
			}
			gotText = true
		case EventDone:
			gotDone = true
		case EventError:
			t.Fatalf("unexpected agent:error: %s", ev.Message)
		}
	}
	if !gotText || !gotDone {
		t.Fatalf("expected agent:text and agent:done, got %+v", events)
	}
}

func TestLoopDispatchesToolThenFinishes(t *testing.T) {
	model := &scriptedModel{steps: []scriptStep{
		toolUseStep("tu1", "git_status"),
		textStep("done", "end_turn"),
	}}
	events := collectEvents(t, t.TempDir(), model)

	var gotCall, gotResult, gotDone bool
	for _, ev := range events {
		switch ev.Kind {
		case EventToolCall:
			if ev.Tool != "git_status" {
				t.Fatalf("expected tool_call for git_status, got %q", ev.Tool)
			}
			gotCall = true
		case EventToolResult:
			if ev.Tool != "git_status" {
				t.Fatalf("expected tool_result for git_status, got %q", ev.Tool)
			}
			gotResult = true
		case EventDone:
			gotDone = true
		case EventError:
			t.Fatalf("unexpected agent:error: %s", ev.Message)
		}
	}
	if !gotCall || !gotResult || !gotDone {
		t.Fatalf("expected tool_call, tool_result, and done events, got %+v", events)
	}
}

func TestLoopExceedingMaxIterationsEmitsError(t *testing.T) {
	var steps []scriptStep
	for i := 0; i < maxIterations+2; i++ {
		steps = append(steps, toolUseStep("tu", "git_status"))
	}
	model := &scriptedModel{steps: steps}
	events := collectEvents(t, t.TempDir(), model)

	last := events[len(events)-1]
	if last.Kind != EventError {
		t.Fatalf("expected the final event to be agent:error, got %+v", last)
	}
	for _, ev := range events {
		if ev.Kind == EventDone {
			t.Fatalf("did not expect agent:done when max iterations is exceeded")
		}
	}
}

func TestLoopCancellationStopsWithoutDone(t *testing.T) {
	model := &scriptedModel{steps: []scriptStep{{blockForCancel: true}}}
	registry := tools.NewRegistry(t.TempDir(), nil)
	loop := NewLoop(model, registry, nil, t.TempDir())

	var events []Event
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		loop.Run(context.Background(), "hi", func(ev Event) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	loop.Cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not return after cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, ev := range events {
		if ev.Kind == EventDone || ev.Kind == EventError {
			t.Fatalf("expected cancellation to return quietly, got %+v", ev)
		}
	}
}

// TestLoopCancellationAfterToolUseSanitizesConversation exercises the path
// where cancellation lands after a tool_use block has finished assembling
// but before StreamMessageStop: the persisted conversation must not end
// with a dangling, unpaired tool_use block, or the next Run() would resume
// from an invalid conversation.
func TestLoopCancellationAfterToolUseSanitizesConversation(t *testing.T) {
	model := &scriptedModel{steps: []scriptStep{toolUseStepBlockingBeforeMessageStop("tu1", "git_status")}}
	registry := tools.NewRegistry(t.TempDir(), nil)
	loop := NewLoop(model, registry, nil, t.TempDir())

	done := make(chan struct{})
	go func() {
		loop.Run(context.Background(), "hi", func(Event) {})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	loop.Cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not return after cancellation")
	}

	conv := loop.Snapshot()
	for _, m := range conv {
		if m.Role == RoleAssistant && m.HasToolUse() {
			t.Fatalf("expected no dangling tool_use message in the persisted conversation, got %+v", conv)
		}
	}
}

func TestToolSchemasMatchRegistry(t *testing.T) {
	registry := tools.NewRegistry(t.TempDir(), nil)
	loop := NewLoop(&scriptedModel{}, registry, nil, t.TempDir())
	schemas := loop.toolSchemas()
	if len(schemas) != len(registry.Names()) {
		t.Fatalf("expected %d tool schemas, got %d", len(registry.Names()), len(schemas))
	}
	for _, s := range schemas {
		var raw json.RawMessage
		if err := json.Unmarshal(s.InputSchema, &raw); err != nil {
			t.Fatalf("tool %q has invalid input schema: %v", s.Name, err)
		}
	}
}
