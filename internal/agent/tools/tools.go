// Package tools implements the sandboxed filesystem/shell/process tools the
// agent loop dispatches (spec §4.8). Every tool is rooted to a single
// project directory; any path that would resolve outside it is rejected.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a tool input path resolves outside Root.
var ErrPathEscape = fmt.Errorf("path escapes project root")

// skipDirs are never descended into by list_files, search_files, or glob.
var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
	".next":        true,
}

// FileChange describes a write the loop must echo back as an
// agent:file_changed event.
type FileChange struct {
	Path    string
	Content string
}

// Result is what Execute returns: a string payload for the model, and an
// optional file mutation for the loop to fan out.
type Result struct {
	Output  string
	Changed *FileChange
}

// Tool is one named operation with a JSON-schema input and a string result.
type Tool interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	Execute(ctx context.Context, root string, input json.RawMessage) (Result, error)
}

// Registry is the fixed tool table offered to the model on every iteration.
type Registry struct {
	Root  string
	tools map[string]Tool
	order []string
}

// NewRegistry builds the standard tool table (§4.8) rooted at root.
func NewRegistry(root string, preview *PreviewProcess) *Registry {
	root = filepath.Clean(root)
	r := &Registry{Root: root, tools: map[string]Tool{}}
	for _, t := range []Tool{
		readFileTool{},
		writeFileTool{},
		editFileTool{},
		listFilesTool{},
		searchFilesTool{},
		globTool{},
		grepTool{},
		bashCommandTool{},
		restartPreviewTool{preview: preview},
		gitStatusTool{},
	} {
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string { return r.order }

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Execute dispatches to the named tool. Tool errors (including path
// traversal) are caught here and returned as a {"error": <message>} JSON
// payload rather than as a Go error, so the model can recover (§4.8, §7
// kind 7) — the returned error is reserved for "unknown tool name", which
// the loop treats as a caller bug, not a recoverable tool error.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return Result{}, fmt.Errorf("tools: unknown tool %q", name)
	}
	res, err := t.Execute(ctx, r.Root, input)
	if err != nil {
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		return Result{Output: string(payload)}, nil
	}
	return res, nil
}

// rootedPath resolves rel against root and rejects any result outside it.
func rootedPath(root, rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" || rel == "." {
		return root, nil
	}
	joined := filepath.Join(root, rel)
	cleanRoot := filepath.Clean(root)
	cleanJoined := filepath.Clean(joined)
	if cleanJoined != cleanRoot && !strings.HasPrefix(cleanJoined, cleanRoot+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return cleanJoined, nil
}

func rootRelative(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return abs
	}
	return rel
}

func skippable(name string) bool { return skipDirs[name] }
