package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	defaultBashTimeout = 30 * time.Second
	maxBashOutput      = 50_000
	previewKillGrace   = 3 * time.Second
)

// denylistedPatterns are substrings that, if present anywhere in the
// requested command, block execution outright (§4.8).
var denylistedPatterns = []string{
	"rm -rf /",
	"mkfs",
	"dd if=",
	"/dev/sd",
}

// --- bash_command ---

type bashCommandTool struct{}

func (bashCommandTool) Name() string        { return "bash_command" }
func (bashCommandTool) Description() string { return "Run a shell command with a timeout, returning exit code and output." }
func (bashCommandTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"command":{"type":"string"},"timeout_ms":{"type":"integer"}},"required":["command"]}`)
}

func (bashCommandTool) Execute(ctx context.Context, root string, input json.RawMessage) (Result, error) {
	var in struct {
		Command   string `json:"command"`
		TimeoutMs int    `json:"timeout_ms"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return Result{}, fmt.Errorf("bash_command: %w", err)
	}
	for _, pattern := range denylistedPatterns {
		if strings.Contains(in.Command, pattern) {
			return Result{}, fmt.Errorf("bash_command: command matches a denylisted pattern %q", pattern)
		}
	}

	timeout := defaultBashTimeout
	if in.TimeoutMs > 0 {
		timeout = time.Duration(in.TimeoutMs) * time.Millisecond
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "bash", "-c", in.Command)
	cmd.Dir = root
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	output := truncate(buf.String(), maxBashOutput)
	exitCode := 0

	if runCtx.Err() != nil {
		exitCode = -1
		output = fmt.Sprintf("[timeout after %dms]\n%s", timeout.Milliseconds(), output)
	} else if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	payload, _ := json.Marshal(map[string]any{"exit_code": exitCode, "output": output})
	return Result{Output: string(payload)}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// --- restart_preview ---

// PreviewProcess is a per-session owned dev-server child process (spec §9
// design note: "this should become a per-session owned value ... rather
// than a process-wide singleton"). The loop constructs one per WebSocket
// session and it dies with the session.
type PreviewProcess struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	command string
	port    int
}

// NewPreviewProcess binds the launch command and known preview port.
func NewPreviewProcess(command string, port int) *PreviewProcess {
	return &PreviewProcess{command: command, port: port}
}

// Restart kills any previous child (SIGTERM then SIGKILL after 3s) and
// relaunches the dev-server on the known preview port.
func (p *PreviewProcess) Restart(ctx context.Context, root string) (pid int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil && p.cmd.Process != nil {
		killGracefully(p.cmd)
	}

	cmd := exec.Command("bash", "-c", p.command)
	cmd.Dir = root
	cmd.Env = append(cmd.Environ(), fmt.Sprintf("PORT=%d", p.port))
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("restart_preview: %w", err)
	}
	p.cmd = cmd
	return cmd.Process.Pid, nil
}

// Close terminates the owned child, if any; called when the session ends.
func (p *PreviewProcess) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil && p.cmd.Process != nil {
		killGracefully(p.cmd)
	}
}

func killGracefully(cmd *exec.Cmd) {
	_ = cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan struct{})
	go func() { _, _ = cmd.Process.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(previewKillGrace):
		_ = cmd.Process.Kill()
		<-done
	}
}

type restartPreviewTool struct {
	preview *PreviewProcess
}

func (restartPreviewTool) Name() string        { return "restart_preview" }
func (restartPreviewTool) Description() string { return "Restart the dev-server preview process." }
func (restartPreviewTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t restartPreviewTool) Execute(ctx context.Context, root string, _ json.RawMessage) (Result, error) {
	if t.preview == nil {
		return Result{}, fmt.Errorf("restart_preview: no preview process configured")
	}
	pid, err := t.preview.Restart(ctx, root)
	if err != nil {
		return Result{}, err
	}
	payload, _ := json.Marshal(map[string]any{"status": "restarted", "message": "preview server restarted", "pid": pid})
	return Result{Output: string(payload)}, nil
}

// --- git_status ---

type gitStatusTool struct{}

func (gitStatusTool) Name() string        { return "git_status" }
func (gitStatusTool) Description() string { return "Show the short-format working-tree diff, or (clean)." }
func (gitStatusTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (gitStatusTool) Execute(ctx context.Context, root string, _ json.RawMessage) (Result, error) {
	cmd := exec.CommandContext(ctx, "git", "status", "--short")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("git_status: %w", err)
	}
	status := strings.TrimRight(string(out), "\n")
	if status == "" {
		status = "(clean)"
	}
	return Result{Output: status}, nil
}
