package bedrock

import (
	"encoding/json"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/agent"
)

// anthropicVersion is the Bedrock-native Anthropic Messages API version
// string every InvokeModel(WithResponseStream) body must carry.
const anthropicVersion = "bedrock-2023-05-31"

const defaultMaxTokens = 4096

// wireMessage/wireBlock mirror the Bedrock Anthropic Messages request and
// streaming-response JSON shapes.
type wireMessage struct {
	Role    string      `json:"role"`
	Content []wireBlock `json:"content"`
}

type wireBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type invokeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	System           string          `json:"system,omitempty"`
	Messages         []wireMessage   `json:"messages"`
	Tools            []agent.ToolSchema `json:"tools,omitempty"`
}

func toWireMessages(messages []agent.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wm := wireMessage{Role: string(m.Role)}
		for _, b := range m.Content {
			switch b.Kind {
			case agent.BlockText:
				wm.Content = append(wm.Content, wireBlock{Type: "text", Text: b.Text})
			case agent.BlockToolUse:
				wm.Content = append(wm.Content, wireBlock{Type: "tool_use", ID: b.ID, Name: b.Tool, Input: b.Input})
			case agent.BlockToolResult:
				wm.Content = append(wm.Content, wireBlock{Type: "tool_result", ToolUseID: b.ID, Content: b.Result, IsError: b.IsErr})
			}
		}
		out = append(out, wm)
	}
	return out
}

func buildRequestBody(system string, messages []agent.Message, tools []agent.ToolSchema) ([]byte, error) {
	req := invokeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        defaultMaxTokens,
		System:           system,
		Messages:         toWireMessages(messages),
		Tools:            tools,
	}
	return json.Marshal(req)
}

// streamChunk is the union of every "type" the Bedrock Anthropic streaming
// protocol can emit on InvokeModelWithResponseStream.
type streamChunk struct {
	Type    string `json:"type"`
	Index   *int   `json:"index,omitempty"`
	Message struct {
		Role string `json:"role"`
	} `json:"message,omitempty"`
	ContentBlock struct {
		Type  string          `json:"type"`
		ID    string          `json:"id,omitempty"`
		Name  string          `json:"name,omitempty"`
		Text  string          `json:"text,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	} `json:"content_block,omitempty"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text,omitempty"`
		PartialJSON string `json:"partial_json,omitempty"`
		StopReason  string `json:"stop_reason,omitempty"`
	} `json:"delta,omitempty"`
}

// nonStreamResponse is the InvokeModel (non-streaming) response body shape,
// used by Complete for compaction summarization calls.
type nonStreamResponse struct {
	Content []wireBlock `json:"content"`
}

func extractText(resp nonStreamResponse) string {
	var out string
	for _, b := range resp.Content {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}
