package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func textMsg(role Role, text string) Message {
	return Message{Role: role, Content: []Block{{Kind: BlockText, Text: text}}}
}

func toolUseMsg(id, tool string) Message {
	return Message{Role: RoleAssistant, Content: []Block{{Kind: BlockToolUse, ID: id, Tool: tool, Input: []byte(`{}`)}}}
}

func toolResultMsg(id string) Message {
	return Message{Role: RoleUser, Content: []Block{{Kind: BlockToolResult, ID: id, Result: "ok"}}}
}

func TestSanitizeDropsLeadingToolResultOnly(t *testing.T) {
	messages := []Message{
		toolResultMsg("t1"),
		textMsg(RoleAssistant, "hi"),
	}
	got := Sanitize(messages)
	if len(got) != 2 {
		t.Fatalf("expected the leading tool-result message dropped and a resumed prefix added, got %+v", got)
	}
	if got[0].Role != RoleUser || got[1].Role != RoleAssistant {
		t.Fatalf("expected [resumed user, assistant], got %+v", got)
	}
}

func TestSanitizePrependsResumedMessageWhenHeadIsAssistant(t *testing.T) {
	messages := []Message{textMsg(RoleAssistant, "hi")}
	got := Sanitize(messages)
	if len(got) != 2 {
		t.Fatalf("expected a synthetic user message prepended, got %d messages", len(got))
	}
	if got[0].Role != RoleUser || got[0].Content[0].Text != "[Conversation resumed]" {
		t.Fatalf("expected [Conversation resumed] prefix, got %+v", got[0])
	}
}

func TestSanitizeDropsTrailingToolUse(t *testing.T) {
	messages := []Message{
		textMsg(RoleUser, "do something"),
		toolUseMsg("t1", "read_file"),
	}
	got := Sanitize(messages)
	if len(got) != 1 {
		t.Fatalf("expected trailing tool_use message dropped, got %d messages", len(got))
	}
	if got[0].Role != RoleUser {
		t.Fatalf("expected remaining message to be the user message, got role %q", got[0].Role)
	}
}

func TestSanitizeLeavesWellFormedConversationUntouched(t *testing.T) {
	messages := []Message{
		textMsg(RoleUser, "hello"),
		textMsg(RoleAssistant, "hi there"),
	}
	got := Sanitize(messages)
	if len(got) != 2 {
		t.Fatalf("expected no changes, got %d messages", len(got))
	}
}

func TestEstimatedTokens(t *testing.T) {
	messages := []Message{textMsg(RoleUser, strings.Repeat("a", 400))}
	if got := EstimatedTokens(messages); got != 100 {
		t.Fatalf("expected 100 estimated tokens, got %d", got)
	}
}

func TestTruncateTailKeepsAtLeastOneMessage(t *testing.T) {
	messages := []Message{textMsg(RoleUser, "a"), textMsg(RoleAssistant, "b"), textMsg(RoleUser, "c")}
	got := truncateTail(messages, 10)
	if len(got) != 1 {
		t.Fatalf("expected at least one message kept, got %d", len(got))
	}
	if got[0].Content[0].Text != "c" {
		t.Fatalf("expected the most recent message kept, got %q", got[0].Content[0].Text)
	}
}

type fakeModel struct {
	completeText string
	completeErr  error
}

func (f *fakeModel) Stream(ctx context.Context, system string, messages []Message, tools []ToolSchema) (<-chan StreamEvent, <-chan error) {
	events := make(chan StreamEvent)
	errc := make(chan error, 1)
	close(events)
	close(errc)
	return events, errc
}

func (f *fakeModel) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	return f.completeText, f.completeErr
}

func TestCompactUnderThresholdReturnsUnchanged(t *testing.T) {
	messages := []Message{textMsg(RoleUser, "short")}
	got := Compact(context.Background(), &fakeModel{}, "system", messages)
	if len(got) != 1 {
		t.Fatalf("expected unchanged conversation, got %d messages", len(got))
	}
}

func TestCompactSummarizesOldestPortion(t *testing.T) {
	var messages []Message
	for i := 0; i < 20; i++ {
		messages = append(messages, textMsg(RoleUser, strings.Repeat("x", 40_000)))
	}
	model := &fakeModel{completeText: "summary of earlier work"}
	got := Compact(context.Background(), model, "system", messages)
	if len(got) == 0 {
		t.Fatalf("expected a compacted conversation")
	}
	if !strings.Contains(got[0].Content[0].Text, "summary of earlier work") {
		t.Fatalf("expected the summary to open the compacted conversation, got %+v", got[0])
	}
}

func TestCompactFallsBackToTailTruncationOnSummarizeFailure(t *testing.T) {
	var messages []Message
	for i := 0; i < 20; i++ {
		messages = append(messages, textMsg(RoleUser, strings.Repeat("x", 40_000)))
	}
	model := &fakeModel{completeErr: errors.New("model unavailable")}
	got := Compact(context.Background(), model, "system", messages)
	if len(got) == 0 || len(got) >= len(messages) {
		t.Fatalf("expected fallback truncation to shrink the conversation, got %d messages", len(got))
	}
}

func TestClassifyTransient(t *testing.T) {
	tests := []struct {
		err  error
		want transientKind
	}{
		{errors.New("input is too long for this model"), transientContextOverflow},
		{errors.New("ThrottlingException: rate limit exceeded"), transientThrottle},
		{errors.New("503 service unavailable, please retry"), transientOther},
		{errors.New("access denied"), transientNone},
		{nil, transientNone},
	}
	for _, tc := range tests {
		if got := classifyTransient(tc.err); got != tc.want {
			t.Fatalf("classifyTransient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
