package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// --- search_files: plain substring/regex search over file contents ---

type searchFilesTool struct{}

func (searchFilesTool) Name() string        { return "search_files" }
func (searchFilesTool) Description() string { return "Search file contents for a regex pattern, returning file:line: match." }
func (searchFilesTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"pattern":{"type":"string"},"path":{"type":"string"}},"required":["pattern"]}`)
}

func (searchFilesTool) Execute(_ context.Context, root string, input json.RawMessage) (Result, error) {
	var in struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return Result{}, fmt.Errorf("search_files: %w", err)
	}
	start, err := rootedPath(root, in.Path)
	if err != nil {
		return Result{}, err
	}
	re, err := regexp.Compile(in.Pattern)
	if err != nil {
		return Result{}, fmt.Errorf("search_files: invalid pattern: %w", err)
	}
	var lines []string
	err = filepath.WalkDir(start, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skippable(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			if re.MatchString(scanner.Text()) {
				lines = append(lines, fmt.Sprintf("%s:%d: %s", rootRelative(root, path), lineNo, scanner.Text()))
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("search_files: %w", err)
	}
	return Result{Output: strings.Join(lines, "\n")}, nil
}

// --- glob ---

type globTool struct{}

func (globTool) Name() string        { return "glob" }
func (globTool) Description() string { return "List files matching a glob pattern." }
func (globTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"pattern":{"type":"string"},"path":{"type":"string"}},"required":["pattern"]}`)
}

func (globTool) Execute(_ context.Context, root string, input json.RawMessage) (Result, error) {
	var in struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return Result{}, fmt.Errorf("glob: %w", err)
	}
	start, err := rootedPath(root, in.Path)
	if err != nil {
		return Result{}, err
	}
	var matches []string
	err = filepath.WalkDir(start, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skippable(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel := rootRelative(root, path)
		ok, _ := filepath.Match(in.Pattern, filepath.Base(path))
		if !ok {
			ok, _ = filepath.Match(in.Pattern, rel)
		}
		if ok {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("glob: %w", err)
	}
	return Result{Output: strings.Join(matches, "\n")}, nil
}

// --- grep: shells out to ripgrep when present, falls back to search_files's
// scanner otherwise ---

type grepTool struct{}

func (grepTool) Name() string        { return "grep" }
func (grepTool) Description() string { return "Search file contents with ripgrep, falling back to a plain scan if unavailable." }
func (grepTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"pattern":{"type":"string"},"path":{"type":"string"},"context":{"type":"integer"}},"required":["pattern"]}`)
}

func (grepTool) Execute(ctx context.Context, root string, input json.RawMessage) (Result, error) {
	var in struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
		Context int    `json:"context"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return Result{}, fmt.Errorf("grep: %w", err)
	}
	start, err := rootedPath(root, in.Path)
	if err != nil {
		return Result{}, err
	}

	if _, err := exec.LookPath("rg"); err == nil {
		args := []string{"--line-number", "--no-heading", "--color=never"}
		if in.Context > 0 {
			args = append(args, fmt.Sprintf("-C%d", in.Context))
		}
		args = append(args, in.Pattern, start)
		out, runErr := exec.CommandContext(ctx, "rg", args...).CombinedOutput()
		// rg exits 1 for "no matches", which is not a tool failure.
		if runErr == nil || strings.TrimSpace(string(out)) != "" {
			return Result{Output: rootRelativeLines(root, string(out))}, nil
		}
		if runErr != nil {
			if exitErr, ok := runErr.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
				return Result{Output: ""}, nil
			}
		}
	}

	// Fallback: reuse the plain scanner, ignoring the context radius (no
	// ripgrep available to supply surrounding lines).
	return searchFilesTool{}.Execute(ctx, root, input)
}

func rootRelativeLines(root, output string) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		if idx := strings.Index(line, root); idx == 0 {
			rel, err := filepath.Rel(root, strings.SplitN(line, ":", 2)[0])
			if err == nil {
				rest := strings.SplitN(line, ":", 2)
				if len(rest) == 2 {
					lines[i] = rel + ":" + rest[1]
				}
			}
		}
	}
	return strings.Join(lines, "\n")
}
