// Command agentd is the in-workspace agent process: it serves the
// per-connection WebSocket surface of §6.2 over an agent.Loop backed by
// Bedrock, the sandboxed tool registry, and a per-workspace preview process.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/agent"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/agent/bedrock"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/agent/history"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/agent/tools"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/agent/ws"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/config"
)

func main() {
	logger := log.New(os.Stdout, "agentd ", log.LstdFlags|log.LUTC)
	cfg := config.LoadAgent()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model, err := bedrock.New(ctx, cfg.AWSRegion, cfg.ModelID)
	if err != nil {
		logger.Fatalf("bedrock: %v", err)
	}

	preview := tools.NewPreviewProcess(previewCommand(), cfg.PreviewPort)
	defer preview.Close()
	registry := tools.NewRegistry(cfg.ProjectRoot, preview)
	loop := agent.NewLoop(model, registry, logger, cfg.ProjectRoot)
	hist := history.New(cfg.ChatHistoryDir, workspaceID())

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("upgrade: %v", err)
			return
		}
		session := ws.NewSession(conn, loop, hist, logger)
		session.Serve(r.Context())
	})

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	go func() {
		logger.Printf("listening on %s (model %s)", cfg.ListenAddr, cfg.ModelID)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Print("shutting down")
	_ = httpSrv.Close()
	cancel()
}

// workspaceID identifies the chat history file for this process; the
// orchestrator injects it as an environment variable when it runs the task
// (internal/cloud/awscloud.RunTask).
func workspaceID() string {
	id := strings.TrimSpace(os.Getenv("WORKSPACE_ID"))
	if id == "" {
		return "local"
	}
	return id
}

// previewCommand is the dev-server launch command for this workspace's
// family; defaulting to the common Node convention since every supported
// family (continue/cline/vibe/vibe-pro) ships a package.json dev script.
func previewCommand() string {
	if cmd := strings.TrimSpace(os.Getenv("PREVIEW_COMMAND")); cmd != "" {
		return cmd
	}
	return "npm run dev"
}
