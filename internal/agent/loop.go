package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/agent/tools"
)

// maxIterations bounds a single user turn (§4.7.3); exceeding it without a
// terminal stop reason is reported as agent:error.
const maxIterations = 25

// maxTransientAttempts is a local safety net on top of §4.7.7's policy: the
// spec leaves context-overflow and throttle retries uncapped within a
// single iteration, but an implementation must not spin forever against a
// persistently broken provider. See DESIGN.md.
const maxTransientAttempts = 8

const systemPreamble = "You are a coding agent embedded in a live development workspace. " +
	"Use the available tools to read, write, and edit files, run commands, and restart the preview " +
	"server as needed. Verify your changes before reporting them done."

// Loop is a session-scoped instance of the iteration contract (§4.7): one
// per WebSocket connection, single-threaded cooperative scheduling, an
// isProcessing flag rejecting overlapping turns.
type Loop struct {
	Model Model
	Tools *tools.Registry
	Log   *log.Logger
	Root  string

	mu           sync.Mutex
	conv         []Message
	processing   bool
	cancelFn     context.CancelFunc
	otherRetries int
}

// NewLoop constructs a Loop bound to model, the tool registry, and root.
func NewLoop(model Model, registry *tools.Registry, logger *log.Logger, root string) *Loop {
	return &Loop{Model: model, Tools: registry, Log: logger, Root: root}
}

// TryBeginProcessing sets the isProcessing flag, returning false if a turn
// is already in flight (§6.2: "rejects overlapping chat messages with an
// error frame rather than queuing").
func (l *Loop) TryBeginProcessing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.processing {
		return false
	}
	l.processing = true
	return true
}

// EndProcessing clears the isProcessing flag after a turn completes.
func (l *Loop) EndProcessing() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processing = false
	l.cancelFn = nil
}

// Cancel aborts the in-flight streaming call, if any (§4.7.6).
func (l *Loop) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancelFn != nil {
		l.cancelFn()
	}
}

// Reset clears the entire conversation (§4.7.6 "reset" operation).
func (l *Loop) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conv = nil
	l.otherRetries = 0
}

// Snapshot returns a defensive copy of the current conversation, for chat
// history persistence.
func (l *Loop) Snapshot() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.conv))
	copy(out, l.conv)
	return out
}

// SetConversation seeds the conversation from persisted chat history, e.g.
// on reconnect (§6.3).
func (l *Loop) SetConversation(messages []Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conv = append([]Message{}, messages...)
}

func (l *Loop) setConv(conv []Message) {
	l.mu.Lock()
	l.conv = conv
	l.mu.Unlock()
}

// iterationOutcome is the result of one streamed model call.
type iterationOutcome struct {
	message    Message
	stopReason string
	canceled   bool
}

// Run drives one user turn to completion per the iteration contract
// (§4.7.3): compact if needed, stream, dispatch tools, loop, or emit the
// final text and agent:done. emit is called synchronously between
// suspension points so wire ordering matches loop ordering (§5).
func (l *Loop) Run(parent context.Context, userMessage string, emit func(Event)) {
	ctx, cancel := context.WithCancel(parent)
	conv := append(l.Snapshot(), Message{Role: RoleUser, Content: []Block{{Kind: BlockText, Text: userMessage}}})
	l.setConv(conv)
	l.mu.Lock()
	l.cancelFn = cancel
	l.mu.Unlock()
	defer cancel()

	system := l.buildSystemPrompt()

	for iter := 1; iter <= maxIterations; iter++ {
		conv = Compact(ctx, l.Model, system, conv)
		l.setConv(conv)

		outcome, nextConv, err := l.iterationStep(ctx, system, conv, emit, iter)
		conv = nextConv
		if err != nil {
			emit(Event{Kind: EventError, Message: err.Error()})
			return
		}
		conv = append(conv, outcome.message)

		if outcome.canceled {
			// A cancellation can land after a tool_use block's StreamBlockStop
			// but before StreamMessageStop, leaving outcome.message a
			// fully-assembled assistant message with no paired tool_result.
			// Sanitize before persisting so the next Run() never resumes from
			// a conversation with a dangling tool-invocation block.
			l.setConv(Sanitize(conv))
			return // partial content already appended; no agent:done (§4.7.6)
		}
		l.setConv(conv)

		if outcome.stopReason == "tool_use" && outcome.message.HasToolUse() {
			results := l.dispatchTools(ctx, outcome.message, emit)
			conv = append(conv, Message{Role: RoleUser, Content: results})
			l.setConv(conv)
			continue
		}

		for _, b := range outcome.message.Content {
			if b.Kind == BlockText && strings.TrimSpace(b.Text) != "" {
				emit(Event{Kind: EventText, Content: b.Text})
			}
		}
		emit(Event{Kind: EventDone})
		return
	}
	emit(Event{Kind: EventError, Message: "exceeded maximum iterations"})
}

// iterationStep streams one model call, applying the transient-error
// policy of §4.7.7 across retries. It returns the (possibly
// truncated/sanitized) conversation alongside the outcome, since the
// context-overflow and throttle paths mutate conv before retrying.
func (l *Loop) iterationStep(ctx context.Context, system string, conv []Message, emit func(Event), iteration int) (iterationOutcome, []Message, error) {
	attempts := 0
	for {
		outcome, err := l.streamOnce(ctx, system, conv, emit)
		if err == nil {
			return outcome, conv, nil
		}
		attempts++
		if attempts > maxTransientAttempts {
			return iterationOutcome{}, conv, fmtIterationError(iteration, fmt.Errorf("exhausted retries: %w", err))
		}
		switch classifyTransient(err) {
		case transientContextOverflow:
			conv = Sanitize(truncateTail(conv, 30))
		case transientThrottle:
			conv = Sanitize(truncateTail(conv, 30))
			if serr := l.sleep(ctx, 5*time.Duration(iteration)*time.Second); serr != nil {
				return iterationOutcome{}, conv, serr
			}
		case transientOther:
			l.mu.Lock()
			l.otherRetries++
			retries := l.otherRetries
			l.mu.Unlock()
			if retries > 3 {
				return iterationOutcome{}, conv, fmtIterationError(iteration, err)
			}
			if serr := l.sleep(ctx, time.Duration(1<<retries)*time.Second); serr != nil {
				return iterationOutcome{}, conv, serr
			}
		default:
			return iterationOutcome{}, conv, fmtIterationError(iteration, err)
		}
	}
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// streamOnce opens one streaming call and accumulates content blocks as
// events arrive (§4.7.2/§4.7.3 step 4). If the call ends because ctx was
// canceled, it returns the partial assembly with canceled=true and a nil
// error rather than surfacing context.Canceled as a failure.
func (l *Loop) streamOnce(ctx context.Context, system string, conv []Message, emit func(Event)) (iterationOutcome, error) {
	events, errc := l.Model.Stream(ctx, system, conv, l.toolSchemas())

	blocks := map[int]*Block{}
	inputBuf := map[int]*strings.Builder{}
	var order []int
	stopReason := ""

	for ev := range events {
		switch ev.Kind {
		case StreamBlockStart:
			b := ev.Block
			blocks[ev.Index] = &b
			order = append(order, ev.Index)
			if b.Kind == BlockToolUse {
				inputBuf[ev.Index] = &strings.Builder{}
			}
		case StreamBlockDelta:
			b, ok := blocks[ev.Index]
			if !ok {
				continue
			}
			if ev.TextDelta != "" {
				b.Text += ev.TextDelta
				emit(Event{Kind: EventThinking, Text: ev.TextDelta})
			}
			if ev.InputDelta != "" {
				if buf, ok := inputBuf[ev.Index]; ok {
					buf.WriteString(ev.InputDelta)
				}
				emit(Event{Kind: EventThinking, Text: ev.InputDelta})
			}
		case StreamBlockStop:
			if buf, ok := inputBuf[ev.Index]; ok {
				if b, ok := blocks[ev.Index]; ok {
					raw := strings.TrimSpace(buf.String())
					if raw == "" {
						raw = "{}"
					}
					b.Input = json.RawMessage(raw)
				}
			}
		case StreamMessageStop:
			stopReason = ev.StopReason
		}
	}

	if err := <-errc; err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return iterationOutcome{message: assembleMessage(blocks, order), canceled: true}, nil
		}
		return iterationOutcome{}, err
	}

	return iterationOutcome{message: assembleMessage(blocks, order), stopReason: stopReason}, nil
}

func assembleMessage(blocks map[int]*Block, order []int) Message {
	content := make([]Block, 0, len(order))
	for _, idx := range order {
		if b, ok := blocks[idx]; ok {
			content = append(content, *b)
		}
	}
	return Message{Role: RoleAssistant, Content: content}
}

// dispatchTools executes every tool-invocation block in msg, in order,
// emitting tool_call/tool_result/file_changed per §4.7.3 step 6a, and
// returns the matching tool-result blocks for the synthetic user message.
func (l *Loop) dispatchTools(ctx context.Context, msg Message, emit func(Event)) []Block {
	var results []Block
	for _, b := range msg.Content {
		if b.Kind != BlockToolUse {
			continue
		}
		emit(Event{Kind: EventToolCall, Tool: b.Tool, Input: rawToAny(b.Input)})

		res, err := l.Tools.Execute(ctx, b.Tool, b.Input)
		output, isErr := res.Output, false
		if err != nil {
			payload, _ := json.Marshal(map[string]string{"error": err.Error()})
			output, isErr = string(payload), true
		}
		emit(Event{Kind: EventToolResult, Tool: b.Tool, Result: output})
		if res.Changed != nil {
			emit(Event{Kind: EventFileChanged, Path: res.Changed.Path, Content: res.Changed.Content})
		}
		results = append(results, Block{Kind: BlockToolResult, ID: b.ID, Result: output, IsErr: isErr})
	}
	return results
}

func rawToAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{}
	}
	return v
}

func (l *Loop) toolSchemas() []ToolSchema {
	names := l.Tools.Names()
	out := make([]ToolSchema, 0, len(names))
	for _, name := range names {
		t, ok := l.Tools.Get(name)
		if !ok {
			continue
		}
		out = append(out, ToolSchema{Name: t.Name(), Description: t.Description(), InputSchema: t.InputSchema()})
	}
	return out
}

func (l *Loop) buildSystemPrompt() string {
	return fmt.Sprintf("%s\n\nProject file map:\n%s", systemPreamble, tools.RepoMap(l.Root))
}
