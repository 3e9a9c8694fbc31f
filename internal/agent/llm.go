// Package agent drives the in-workspace streaming tool-use loop: one
// instance per WebSocket connection, consuming user messages and producing
// typed events (§4.7).
package agent

import (
	"context"
	"encoding/json"
)

// ToolSchema is one entry of the tool table (§4.8) offered to the model on
// every streaming call.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// StreamEventKind names the four event shapes the model's streaming API
// emits (§4.7.2): block-start, block-delta, block-stop, message-stop.
type StreamEventKind string

const (
	StreamBlockStart  StreamEventKind = "block_start"
	StreamBlockDelta  StreamEventKind = "block_delta"
	StreamBlockStop   StreamEventKind = "block_stop"
	StreamMessageStop StreamEventKind = "message_stop"
)

// StreamEvent is one item from a streaming model call. Only the fields
// relevant to Kind are populated.
type StreamEvent struct {
	Kind StreamEventKind
	Index int

	// StreamBlockStart: the block header. For a tool-invocation block, ID
	// and Tool are set; for a text block, only Kind=BlockText is set.
	Block Block

	// StreamBlockDelta
	TextDelta  string
	InputDelta string // a chunk of the tool-input JSON being streamed

	// StreamMessageStop
	StopReason string
}

// Model is the external LLM capability the loop drives. It is the agent
// analogue of the fleet's cloud.Capability: a narrow interface so the loop
// can be unit-tested against a fake instead of a real provider.
type Model interface {
	// Stream opens a streaming call over the given system prompt,
	// conversation, and tool schema. The returned channel is closed when the
	// stream ends (normally or on error); a non-nil error is sent as the
	// final value read from errc.
	Stream(ctx context.Context, system string, messages []Message, tools []ToolSchema) (events <-chan StreamEvent, errc <-chan error)

	// Complete issues a single non-streaming call, used by context
	// compaction (§4.7.4) to summarize the oldest portion of a conversation.
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}
