package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileNumbersLines(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("one\ntwo\nthree"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	input, _ := json.Marshal(map[string]string{"path": "a.txt"})
	res, err := readFileTool{}.Execute(context.Background(), root, input)
	if err != nil {
		t.Fatalf("read_file: %v", err)
	}
	if !strings.Contains(res.Output, "1\tone") || !strings.Contains(res.Output, "3\tthree") {
		t.Fatalf("expected line-numbered output, got %q", res.Output)
	}
}

func TestWriteFileCreatesParentDirs(t *testing.T) {
	root := t.TempDir()
	input, _ := json.Marshal(map[string]string{"path": "nested/dir/file.txt", "content": "hello"})
	res, err := writeFileTool{}.Execute(context.Background(), root, input)
	if err != nil {
		t.Fatalf("write_file: %v", err)
	}
	if res.Changed == nil || res.Changed.Content != "hello" {
		t.Fatalf("expected a FileChange echoing the written content, got %+v", res.Changed)
	}
	data, err := os.ReadFile(filepath.Join(root, "nested/dir/file.txt"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected file content %q, got %q", "hello", string(data))
	}
}

func TestEditFileRequiresUniqueOccurrence(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.txt")
	if err := os.WriteFile(path, []byte("foo foo"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	input, _ := json.Marshal(map[string]string{"path": "a.txt", "old_string": "foo", "new_string": "bar"})
	if _, err := editFileTool{}.Execute(context.Background(), root, input); err == nil {
		t.Fatalf("expected an error for a non-unique old_string")
	}
}

func TestEditFileReplacesUniqueOccurrence(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.txt")
	if err := os.WriteFile(path, []byte("foo bar"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	input, _ := json.Marshal(map[string]string{"path": "a.txt", "old_string": "foo", "new_string": "baz"})
	res, err := editFileTool{}.Execute(context.Background(), root, input)
	if err != nil {
		t.Fatalf("edit_file: %v", err)
	}
	if res.Changed == nil || res.Changed.Content != "baz bar" {
		t.Fatalf("expected replaced content %q, got %+v", "baz bar", res.Changed)
	}
}

func TestEditFileRejectsMissingOldString(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.txt")
	if err := os.WriteFile(path, []byte("foo bar"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	input, _ := json.Marshal(map[string]string{"path": "a.txt", "old_string": "nope", "new_string": "baz"})
	if _, err := editFileTool{}.Execute(context.Background(), root, input); err == nil {
		t.Fatalf("expected an error when old_string is not present")
	}
}

func TestListFilesRespectsDepthAndSkipDirs(t *testing.T) {
	root := t.TempDir()
	mustMkdirAll(t, filepath.Join(root, "node_modules", "pkg"))
	mustMkdirAll(t, filepath.Join(root, "src", "nested", "deep"))
	mustWriteFile(t, filepath.Join(root, "src", "nested", "deep", "buried.txt"), "x")
	mustWriteFile(t, filepath.Join(root, "top.txt"), "x")

	res, err := listFilesTool{}.Execute(context.Background(), root, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("list_files: %v", err)
	}
	if strings.Contains(res.Output, "node_modules") {
		t.Fatalf("expected node_modules to be skipped, got %q", res.Output)
	}
	if strings.Contains(res.Output, "buried.txt") {
		t.Fatalf("expected depth-2 cap to exclude a depth-3 file, got %q", res.Output)
	}
	if !strings.Contains(res.Output, "top.txt") {
		t.Fatalf("expected top-level file to be listed, got %q", res.Output)
	}
}

func TestRootedPathRejectsEscape(t *testing.T) {
	root := t.TempDir()
	if _, err := rootedPath(root, "../../etc/passwd"); err != ErrPathEscape {
		t.Fatalf("expected ErrPathEscape, got %v", err)
	}
}

func mustMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
