package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestBashCommandCapturesOutputAndExitCode(t *testing.T) {
	root := t.TempDir()
	input, _ := json.Marshal(map[string]string{"command": "echo hi && exit 3"})
	res, err := bashCommandTool{}.Execute(context.Background(), root, input)
	if err != nil {
		t.Fatalf("bash_command: %v", err)
	}
	var out struct {
		ExitCode int    `json:"exit_code"`
		Output   string `json:"output"`
	}
	if err := json.Unmarshal([]byte(res.Output), &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", out.ExitCode)
	}
	if !strings.Contains(out.Output, "hi") {
		t.Fatalf("expected captured stdout to contain %q, got %q", "hi", out.Output)
	}
}

func TestBashCommandRejectsDenylistedPattern(t *testing.T) {
	root := t.TempDir()
	input, _ := json.Marshal(map[string]string{"command": "rm -rf /"})
	if _, err := bashCommandTool{}.Execute(context.Background(), root, input); err == nil {
		t.Fatalf("expected the denylisted command to be rejected")
	}
}

func TestBashCommandTimesOut(t *testing.T) {
	root := t.TempDir()
	input, _ := json.Marshal(map[string]any{"command": "sleep 5", "timeout_ms": 50})
	res, err := bashCommandTool{}.Execute(context.Background(), root, input)
	if err != nil {
		t.Fatalf("bash_command: %v", err)
	}
	var out struct {
		ExitCode int    `json:"exit_code"`
		Output   string `json:"output"`
	}
	if err := json.Unmarshal([]byte(res.Output), &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out.ExitCode != -1 {
		t.Fatalf("expected exit code -1 on timeout, got %d", out.ExitCode)
	}
	if !strings.Contains(out.Output, "timeout") {
		t.Fatalf("expected a timeout marker in the output, got %q", out.Output)
	}
}

func TestGitStatusReportsClean(t *testing.T) {
	// Not a git repository: the command fails and the Registry wraps it as
	// an {"error": ...} payload rather than a Go error, which is exercised
	// by TestRegistryExecuteWrapsToolErrors below.
	root := t.TempDir()
	if _, err := gitStatusTool{}.Execute(context.Background(), root, json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected git_status to fail outside a git repository")
	}
}
