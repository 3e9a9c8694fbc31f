package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func TestSearchFilesFindsMatchingLines(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.go"), "package a\n\nfunc Hello() {}\n")
	mustWriteFile(t, filepath.Join(root, "b.go"), "package a\n\nfunc Goodbye() {}\n")

	input, _ := json.Marshal(map[string]string{"pattern": "func (Hello|Goodbye)"})
	res, err := searchFilesTool{}.Execute(context.Background(), root, input)
	if err != nil {
		t.Fatalf("search_files: %v", err)
	}
	if !strings.Contains(res.Output, "a.go:3:") || !strings.Contains(res.Output, "b.go:3:") {
		t.Fatalf("expected both matches with file:line prefixes, got %q", res.Output)
	}
}

func TestSearchFilesRejectsInvalidPattern(t *testing.T) {
	root := t.TempDir()
	input, _ := json.Marshal(map[string]string{"pattern": "("})
	if _, err := searchFilesTool{}.Execute(context.Background(), root, input); err == nil {
		t.Fatalf("expected an error for an invalid regex")
	}
}

func TestGlobMatchesByBasenameOrRelativePath(t *testing.T) {
	root := t.TempDir()
	mustMkdirAll(t, filepath.Join(root, "src"))
	mustWriteFile(t, filepath.Join(root, "src", "main.go"), "package main")
	mustWriteFile(t, filepath.Join(root, "readme.md"), "# hi")

	input, _ := json.Marshal(map[string]string{"pattern": "*.go"})
	res, err := globTool{}.Execute(context.Background(), root, input)
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if !strings.Contains(res.Output, "main.go") {
		t.Fatalf("expected main.go to match *.go, got %q", res.Output)
	}
	if strings.Contains(res.Output, "readme.md") {
		t.Fatalf("did not expect readme.md to match *.go, got %q", res.Output)
	}
}

func TestGrepFallsBackWithoutRipgrep(t *testing.T) {
	t.Setenv("PATH", "")

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.txt"), "needle in a haystack\n")

	input, _ := json.Marshal(map[string]string{"pattern": "needle"})
	res, err := grepTool{}.Execute(context.Background(), root, input)
	if err != nil {
		t.Fatalf("grep: %v", err)
	}
	if !strings.Contains(res.Output, "a.txt:1:") {
		t.Fatalf("expected the fallback scanner to find the match, got %q", res.Output)
	}
}
