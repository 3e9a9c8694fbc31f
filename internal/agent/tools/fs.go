package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// --- read_file ---

type readFileTool struct{}

func (readFileTool) Name() string        { return "read_file" }
func (readFileTool) Description() string { return "Read a file's contents, prefixed with 1-based line numbers." }
func (readFileTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)
}

func (readFileTool) Execute(_ context.Context, root string, input json.RawMessage) (Result, error) {
	var in struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return Result{}, fmt.Errorf("read_file: %w", err)
	}
	abs, err := rootedPath(root, in.Path)
	if err != nil {
		return Result{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return Result{}, fmt.Errorf("read_file: %w", err)
	}
	lines := strings.Split(string(data), "\n")
	width := len(strconv.Itoa(len(lines)))
	var sb strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&sb, "%*d\t%s\n", width, i+1, line)
	}
	return Result{Output: sb.String()}, nil
}

// --- write_file ---

type writeFileTool struct{}

func (writeFileTool) Name() string        { return "write_file" }
func (writeFileTool) Description() string { return "Write content to a file, creating parent directories as needed." }
func (writeFileTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`)
}

func (writeFileTool) Execute(_ context.Context, root string, input json.RawMessage) (Result, error) {
	var in struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return Result{}, fmt.Errorf("write_file: %w", err)
	}
	abs, err := rootedPath(root, in.Path)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return Result{}, fmt.Errorf("write_file: %w", err)
	}
	if err := os.WriteFile(abs, []byte(in.Content), 0o644); err != nil {
		return Result{}, fmt.Errorf("write_file: %w", err)
	}
	payload, _ := json.Marshal(map[string]any{"status": "ok", "path": in.Path, "bytes": len(in.Content)})
	return Result{Output: string(payload), Changed: &FileChange{Path: in.Path, Content: in.Content}}, nil
}

// --- edit_file ---

type editFileTool struct{}

func (editFileTool) Name() string        { return "edit_file" }
func (editFileTool) Description() string { return "Replace an exact, unique occurrence of old_string with new_string in a file." }
func (editFileTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"old_string":{"type":"string"},"new_string":{"type":"string"}},"required":["path","old_string","new_string"]}`)
}

func (editFileTool) Execute(_ context.Context, root string, input json.RawMessage) (Result, error) {
	var in struct {
		Path      string `json:"path"`
		OldString string `json:"old_string"`
		NewString string `json:"new_string"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return Result{}, fmt.Errorf("edit_file: %w", err)
	}
	abs, err := rootedPath(root, in.Path)
	if err != nil {
		return Result{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return Result{}, fmt.Errorf("edit_file: %w", err)
	}
	content := string(data)
	count := strings.Count(content, in.OldString)
	if count == 0 {
		return Result{}, fmt.Errorf("edit_file: old_string not found in %s", in.Path)
	}
	if count > 1 {
		return Result{}, fmt.Errorf("edit_file: old_string occurs %d times in %s, must be unique", count, in.Path)
	}
	updated := strings.Replace(content, in.OldString, in.NewString, 1)
	if err := os.WriteFile(abs, []byte(updated), 0o644); err != nil {
		return Result{}, fmt.Errorf("edit_file: %w", err)
	}
	reread, err := os.ReadFile(abs)
	if err != nil {
		return Result{}, fmt.Errorf("edit_file: reread: %w", err)
	}
	payload, _ := json.Marshal(map[string]any{"status": "ok", "path": in.Path, "replacements": 1})
	return Result{Output: string(payload), Changed: &FileChange{Path: in.Path, Content: string(reread)}}, nil
}

// --- list_files ---

type listFilesTool struct{}

func (listFilesTool) Name() string        { return "list_files" }
func (listFilesTool) Description() string { return "Recursively list files and directories up to depth 2." }
func (listFilesTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}}}`)
}

const listFilesMaxDepth = 2

func (listFilesTool) Execute(_ context.Context, root string, input json.RawMessage) (Result, error) {
	var in struct {
		Path string `json:"path"`
	}
	_ = json.Unmarshal(input, &in)
	start, err := rootedPath(root, in.Path)
	if err != nil {
		return Result{}, err
	}
	var lines []string
	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			if e.IsDir() && skippable(e.Name()) {
				continue
			}
			abs := filepath.Join(dir, e.Name())
			rel := rootRelative(root, abs)
			if e.IsDir() {
				lines = append(lines, rel+"/")
				if depth < listFilesMaxDepth {
					if err := walk(abs, depth+1); err != nil {
						return err
					}
				}
				continue
			}
			lines = append(lines, rel)
		}
		return nil
	}
	if err := walk(start, 0); err != nil {
		return Result{}, fmt.Errorf("list_files: %w", err)
	}
	return Result{Output: strings.Join(lines, "\n")}, nil
}
