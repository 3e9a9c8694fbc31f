package bedrock

import (
	"encoding/json"
	"testing"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/agent"
)

func TestToWireMessagesRoundTripsAllBlockKinds(t *testing.T) {
	messages := []agent.Message{
		{Role: agent.RoleUser, Content: []agent.Block{{Kind: agent.BlockText, Text: "hi"}}},
		{Role: agent.RoleAssistant, Content: []agent.Block{
			{Kind: agent.BlockToolUse, ID: "tu1", Tool: "read_file", Input: json.RawMessage(`{"path":"a.txt"}`)},
		}},
		{Role: agent.RoleUser, Content: []agent.Block{
			{Kind: agent.BlockToolResult, ID: "tu1", Result: "file contents", IsErr: false},
		}},
	}
	wire := toWireMessages(messages)
	if len(wire) != 3 {
		t.Fatalf("expected 3 wire messages, got %d", len(wire))
	}
	if wire[1].Content[0].Type != "tool_use" || wire[1].Content[0].Name != "read_file" {
		t.Fatalf("expected a tool_use block naming read_file, got %+v", wire[1].Content[0])
	}
	if wire[2].Content[0].Type != "tool_result" || wire[2].Content[0].ToolUseID != "tu1" {
		t.Fatalf("expected a tool_result block referencing tu1, got %+v", wire[2].Content[0])
	}
}

func TestBuildRequestBodyCarriesAnthropicVersionAndTools(t *testing.T) {
	tools := []agent.ToolSchema{{Name: "read_file", Description: "reads a file", InputSchema: json.RawMessage(`{}`)}}
	body, err := buildRequestBody("be concise", nil, tools)
	if err != nil {
		t.Fatalf("buildRequestBody: %v", err)
	}
	var req invokeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.AnthropicVersion != anthropicVersion {
		t.Fatalf("expected anthropic_version %q, got %q", anthropicVersion, req.AnthropicVersion)
	}
	if req.System != "be concise" {
		t.Fatalf("expected system prompt to be carried through, got %q", req.System)
	}
	if len(req.Tools) != 1 || req.Tools[0].Name != "read_file" {
		t.Fatalf("expected the tool table to be carried through, got %+v", req.Tools)
	}
}

func TestTranslateChunkTextDelta(t *testing.T) {
	var chunk streamChunk
	raw := []byte(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hi"}}`)
	if err := json.Unmarshal(raw, &chunk); err != nil {
		t.Fatalf("decode: %v", err)
	}
	events := make(chan agent.StreamEvent, 1)
	translateChunk(chunk, events)
	ev := <-events
	if ev.Kind != agent.StreamBlockDelta || ev.TextDelta != "hi" {
		t.Fatalf("expected a text block-delta event, got %+v", ev)
	}
}

func TestTranslateChunkToolUseStart(t *testing.T) {
	var chunk streamChunk
	raw := []byte(`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"tu1","name":"read_file"}}`)
	if err := json.Unmarshal(raw, &chunk); err != nil {
		t.Fatalf("decode: %v", err)
	}
	events := make(chan agent.StreamEvent, 1)
	translateChunk(chunk, events)
	ev := <-events
	if ev.Kind != agent.StreamBlockStart || ev.Block.Kind != agent.BlockToolUse || ev.Block.Tool != "read_file" {
		t.Fatalf("expected a tool_use block-start event, got %+v", ev)
	}
}

func TestTranslateChunkMessageDeltaCarriesStopReason(t *testing.T) {
	var chunk streamChunk
	raw := []byte(`{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`)
	if err := json.Unmarshal(raw, &chunk); err != nil {
		t.Fatalf("decode: %v", err)
	}
	events := make(chan agent.StreamEvent, 1)
	translateChunk(chunk, events)
	ev := <-events
	if ev.Kind != agent.StreamMessageStop || ev.StopReason != "end_turn" {
		t.Fatalf("expected a message-stop event with stop_reason end_turn, got %+v", ev)
	}
}

func TestExtractTextConcatenatesTextBlocks(t *testing.T) {
	resp := nonStreamResponse{Content: []wireBlock{
		{Type: "text", Text: "hello "},
		{Type: "text", Text: "world"},
		{Type: "tool_use", Name: "ignored"},
	}}
	if got := extractText(resp); got != "hello world" {
		t.Fatalf("expected concatenated text %q, got %q", "hello world", got)
	}
}
