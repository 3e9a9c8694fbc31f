package agent

import (
	"context"
	"fmt"
	"strings"
)

// tokenThreshold is the high-water mark (§4.7.4) beyond which context is
// compacted: ~150K tokens, estimated as total content chars / 4.
const tokenThreshold = 150_000

// EstimatedTokens sums estimatedChars across every message and divides by 4,
// the approximation spec §4.7.4 mandates.
func EstimatedTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += m.estimatedChars()
	}
	return total / 4
}

// summaryPrompt is the instruction given to the single non-streaming model
// call that compacts old conversation content.
const summaryPrompt = "Summarize the conversation so far in 2-3 paragraphs. " +
	"You must preserve: decisions made, file mutations performed, the current task, and any unfinished work."

// Compact implements §4.7.4: if messages are under the threshold, it
// returns them unchanged. Otherwise the oldest 60% are summarized via a
// single non-streaming model call into a synthetic user/assistant pair; if
// that call fails, it falls back to raw truncation of the tail only. Either
// path is followed by Sanitize.
func Compact(ctx context.Context, model Model, system string, messages []Message) []Message {
	if EstimatedTokens(messages) < tokenThreshold {
		return messages
	}
	cut := (len(messages) * 60) / 100
	old, tail := messages[:cut], messages[cut:]

	summary, err := model.Complete(ctx, system, append(old, Message{Role: RoleUser, Content: []Block{{Kind: BlockText, Text: summaryPrompt}}}))
	if err != nil || strings.TrimSpace(summary) == "" {
		return Sanitize(truncateTail(messages, 30))
	}

	compacted := []Message{
		{Role: RoleUser, Content: []Block{{Kind: BlockText, Text: "Previous conversation summary:\n\n" + summary}}},
		{Role: RoleAssistant, Content: []Block{{Kind: BlockText, Text: "Understood. Continuing from this context."}}},
	}
	compacted = append(compacted, tail...)
	return Sanitize(compacted)
}

// truncateTail keeps the tail percent of messages, for the context-overflow
// forced-truncation path (§4.7.7) and the compaction fallback.
func truncateTail(messages []Message, percent int) []Message {
	if len(messages) == 0 {
		return messages
	}
	keep := (len(messages) * percent) / 100
	if keep < 1 {
		keep = 1
	}
	if keep >= len(messages) {
		return messages
	}
	return messages[len(messages)-keep:]
}

// resumedMessage is prepended when sanitization would otherwise leave the
// conversation starting with an assistant message.
func resumedMessage() Message {
	return Message{Role: RoleUser, Content: []Block{{Kind: BlockText, Text: "[Conversation resumed]"}}}
}

// Sanitize enforces the invariant from §4.7.5 after any truncation or
// compaction:
//
//	(a) if the first message is a user message containing only tool-result
//	    blocks, drop it (its answering assistant message was truncated away);
//	(b) if the last message is an assistant message containing any
//	    tool-invocation block, drop it (its answers would be missing);
//	(c) if the head is now an assistant message, prepend a synthetic
//	    "[Conversation resumed]" user message.
func Sanitize(messages []Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)

	for len(out) > 0 && out[0].Role == RoleUser && out[0].OnlyToolResults() {
		out = out[1:]
	}
	for len(out) > 0 {
		last := out[len(out)-1]
		if last.Role == RoleAssistant && last.HasToolUse() {
			out = out[:len(out)-1]
			continue
		}
		break
	}
	if len(out) > 0 && out[0].Role == RoleAssistant {
		out = append([]Message{resumedMessage()}, out...)
	}
	return out
}

// transientKind classifies a model-call failure per §4.7.7.
type transientKind int

const (
	transientNone transientKind = iota
	transientContextOverflow
	transientThrottle
	transientOther
)

func classifyTransient(err error) transientKind {
	if err == nil {
		return transientNone
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "too many tokens", "too long", "input is too long"):
		return transientContextOverflow
	case containsAny(msg, "throttl", "rate limit", "rate exceeded"):
		return transientThrottle
	case containsAny(msg, "timeout", "service unavailable", "503", "retry"):
		return transientOther
	default:
		return transientNone
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func fmtIterationError(iteration int, err error) error {
	return fmt.Errorf("iteration %d: %w", iteration, err)
}
