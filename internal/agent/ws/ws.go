// Package ws is the per-workspace WebSocket surface (§6.2): one socket per
// connected user, fronting a single agent.Loop. A single writer goroutine
// drains one typed channel of outbound frames — the loop's events and the
// session's own control frames (prefill, conversation_reset, error) all
// flow through the same channel rather than N independent listeners.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/agent"
	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/agent/history"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	previewErrorCooldown = 5 * time.Second
	maxPreviewAttempts   = 3
)

// Upgrader is shared across connections; CheckOrigin is left permissive
// since the workspace is reached only through the edge router's per-user
// path prefix, not directly from arbitrary origins.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientFrame is the union of every shape a client can send (§6.2).
type clientFrame struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	TagName     string `json:"tagName"`
	TextContent string `json:"textContent"`
	Error       string `json:"error"`
}

// Session owns one upgraded connection bound to one agent.Loop.
type Session struct {
	conn *websocket.Conn
	loop *agent.Loop
	hist *history.Store
	log  *log.Logger

	out  chan any
	done chan struct{}

	mu               sync.Mutex
	previewAttempts  int
	lastPreviewError time.Time
}

// NewSession wraps an already-upgraded connection.
func NewSession(conn *websocket.Conn, loop *agent.Loop, hist *history.Store, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New(log.Writer(), "agentd ", log.LstdFlags|log.LUTC)
	}
	return &Session{
		conn: conn,
		loop: loop,
		hist: hist,
		log:  logger,
		out:  make(chan any, 64),
		done: make(chan struct{}),
	}
}

// Serve runs the session until the connection closes or ctx is canceled.
// It blocks, so callers invoke it from the HTTP handler's goroutine.
func (s *Session) Serve(ctx context.Context) {
	go s.writePump()
	defer s.close()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	s.sendHistory()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.send(wireError("malformed frame"))
			continue
		}
		switch frame.Type {
		case "chat":
			s.handleChat(ctx, frame.Message)
		case "element_click":
			s.handleElementClick(frame)
		case "preview_error":
			s.handlePreviewError(ctx, frame.Error)
		case "reset_conversation":
			s.handleReset()
		case "cancel_response":
			s.loop.Cancel()
		default:
			s.send(wireError(fmt.Sprintf("unknown frame type %q", frame.Type)))
		}
	}
}

func (s *Session) close() {
	close(s.done)
	_ = s.conn.Close()
}

// send enqueues v for the write pump, dropping it silently if the session
// is already closing (§6.2 back-pressure: a closed socket drops sends).
func (s *Session) send(v any) {
	select {
	case s.out <- v:
	case <-s.done:
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.out:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) sendHistory() {
	messages, err := s.hist.Load()
	if err != nil {
		s.log.Printf("history load: %v", err)
		return
	}
	if len(messages) == 0 {
		return
	}
	s.loop.SetConversation(messages)
	s.send(map[string]any{"type": "chat_history", "messages": messages})
}

// handleChat runs one turn of the loop in its own goroutine so the read
// loop stays free to observe cancel_response while a turn is in flight.
func (s *Session) handleChat(ctx context.Context, message string) {
	if message == "" {
		return
	}
	if !s.loop.TryBeginProcessing() {
		s.send(wireError("a response is already in progress"))
		return
	}
	go func() {
		defer s.loop.EndProcessing()
		s.loop.Run(ctx, message, func(ev agent.Event) { s.send(ev) })
		if err := s.hist.Save(s.loop.Snapshot()); err != nil {
			s.log.Printf("history save: %v", err)
		}
	}()
}

func (s *Session) handleElementClick(f clientFrame) {
	msg := fmt.Sprintf("Change the <%s> element that says '%s'...", f.TagName, f.TextContent)
	s.send(map[string]string{"type": "prefill", "message": msg})
}

// handlePreviewError is the auto-fix trigger, rate-limited to one
// invocation per 5 seconds and 3 attempts per conversation (§6.2).
func (s *Session) handlePreviewError(ctx context.Context, errMsg string) {
	s.mu.Lock()
	if s.previewAttempts >= maxPreviewAttempts {
		s.mu.Unlock()
		s.send(wireError("preview auto-fix limit reached for this conversation"))
		return
	}
	now := time.Now()
	if !s.lastPreviewError.IsZero() && now.Sub(s.lastPreviewError) < previewErrorCooldown {
		s.mu.Unlock()
		return
	}
	s.lastPreviewError = now
	s.previewAttempts++
	s.mu.Unlock()

	s.handleChat(ctx, fmt.Sprintf("The preview crashed with this error, please fix it:\n\n%s", errMsg))
}

func (s *Session) handleReset() {
	s.loop.Reset()
	if err := s.hist.Reset(); err != nil {
		s.log.Printf("history reset: %v", err)
	}
	s.mu.Lock()
	s.previewAttempts = 0
	s.lastPreviewError = time.Time{}
	s.mu.Unlock()
	s.send(map[string]string{"type": "conversation_reset"})
}

func wireError(message string) map[string]string {
	return map[string]string{"type": "error", "message": message}
}
