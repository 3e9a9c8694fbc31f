// Package agent drives the in-workspace streaming tool-use loop: one
// instance per WebSocket connection, consuming user messages and producing
// typed events (§4.7).
package agent

import "encoding/json"

// Role is either "user" or "assistant" (§4.7.2).
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockKind distinguishes the three content block shapes carried in a
// Message.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
)

// Block is a single content block. Only the fields relevant to Kind are
// populated; the zero value of the others is ignored at the wire boundary.
type Block struct {
	Kind BlockKind `json:"kind"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockToolUse
	ID    string          `json:"id,omitempty"`
	Tool  string          `json:"tool,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// BlockToolResult (ID reused to match the invoking tool_use block)
	Result string `json:"result,omitempty"`
	IsErr  bool   `json:"is_error,omitempty"`
}

// Message is one turn in the conversation.
type Message struct {
	Role    Role    `json:"role"`
	Content []Block `json:"content"`
}

// TextOnly reports whether m has no content beyond plain text blocks.
func (m Message) TextOnly() bool {
	for _, b := range m.Content {
		if b.Kind != BlockText {
			return false
		}
	}
	return true
}

// HasToolUse reports whether m contains at least one tool_use block.
func (m Message) HasToolUse() bool {
	for _, b := range m.Content {
		if b.Kind == BlockToolUse {
			return true
		}
	}
	return false
}

// OnlyToolResults reports whether m's content is entirely tool_result
// blocks (and non-empty).
func (m Message) OnlyToolResults() bool {
	if len(m.Content) == 0 {
		return false
	}
	for _, b := range m.Content {
		if b.Kind != BlockToolResult {
			return false
		}
	}
	return true
}

// estimatedTokens approximates token count as char-length / 4 (§4.7.4),
// summing text, tool-input JSON, and tool-result text across all blocks.
func (m Message) estimatedChars() int {
	n := 0
	for _, b := range m.Content {
		switch b.Kind {
		case BlockText:
			n += len(b.Text)
		case BlockToolUse:
			n += len(b.Input)
		case BlockToolResult:
			n += len(b.Result)
		}
	}
	return n
}
