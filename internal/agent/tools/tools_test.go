package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestRegistryExecuteWrapsToolErrors(t *testing.T) {
	registry := NewRegistry(t.TempDir(), nil)
	input, _ := json.Marshal(map[string]string{"path": "does/not/exist.txt"})
	res, err := registry.Execute(context.Background(), "read_file", input)
	if err != nil {
		t.Fatalf("expected tool errors to be wrapped, not returned, got %v", err)
	}
	if !strings.Contains(res.Output, `"error"`) {
		t.Fatalf("expected an {error:...} payload, got %q", res.Output)
	}
}

func TestRegistryExecuteRejectsUnknownTool(t *testing.T) {
	registry := NewRegistry(t.TempDir(), nil)
	if _, err := registry.Execute(context.Background(), "does_not_exist", json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected an error for an unknown tool name")
	}
}

func TestRegistryNamesMatchAllTenTools(t *testing.T) {
	registry := NewRegistry(t.TempDir(), nil)
	want := []string{
		"read_file", "write_file", "edit_file", "list_files", "search_files",
		"glob", "grep", "bash_command", "restart_preview", "git_status",
	}
	got := registry.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d tools, got %d: %v", len(want), len(got), got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("expected tool %d to be %q, got %q", i, name, got[i])
		}
	}
}

func TestRestartPreviewWithoutConfiguredProcessErrors(t *testing.T) {
	registry := NewRegistry(t.TempDir(), nil)
	tool, ok := registry.Get("restart_preview")
	if !ok {
		t.Fatalf("expected restart_preview to be registered")
	}
	if _, err := tool.Execute(context.Background(), t.TempDir(), json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected an error when no PreviewProcess is configured")
	}
}

func TestPreviewProcessRestartAndClose(t *testing.T) {
	root := t.TempDir()
	preview := NewPreviewProcess("sleep 30", 3000)
	pid, err := preview.Restart(context.Background(), root)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if pid == 0 {
		t.Fatalf("expected a non-zero pid")
	}
	preview.Close()
}
