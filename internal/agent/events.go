package agent

// EventKind names the frames in §6.2's server-to-client protocol that
// originate from loop execution (connection-lifecycle frames like
// chat_history and conversation_reset are assembled by the ws package).
type EventKind string

const (
	EventThinking    EventKind = "agent:thinking"
	EventText        EventKind = "agent:text"
	EventToolCall    EventKind = "agent:tool_call"
	EventToolResult  EventKind = "agent:tool_result"
	EventFileChanged EventKind = "agent:file_changed"
	EventDone        EventKind = "agent:done"
	EventError       EventKind = "error"
)

// Event is the single typed shape emitted by the loop onto its event
// channel; the ws package fans it out to the wire.
type Event struct {
	Kind    EventKind `json:"type"`
	Text    string    `json:"text,omitempty"`
	Content string    `json:"content,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	Input   any       `json:"input,omitempty"`
	Result  string    `json:"result,omitempty"`
	Path    string    `json:"path,omitempty"`
	Message string    `json:"message,omitempty"`
}
