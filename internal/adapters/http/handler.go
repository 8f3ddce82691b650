package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/websocket"

	"github.com/PabloGalante/singlechat/internal/app/conversation"
	"github.com/PabloGalante/singlechat/internal/domain"
	"github.com/PabloGalante/singlechat/internal/observability"
)

// Conversation is what the channels need from the conversation owner.
type Conversation interface {
	SendMessage(ctx context.Context, content string) (conversation.Turn, error)
	History(ctx context.Context) ([]domain.Message, error)
}

type Options struct {
	// StaticDir holds index.html, styles.css and chat.js. Empty disables them.
	StaticDir string
	// SilentFailures drops WebSocket error frames.
	SilentFailures bool
}

type Server struct {
	conv     Conversation
	opts     Options
	upgrader websocket.Upgrader
}

// staticFiles maps the served paths to file names under StaticDir.
var staticFiles = map[string]string{
	"/":           "index.html",
	"/index.html": "index.html",
	"/styles.css": "styles.css",
	"/chat.js":    "chat.js",
}

func NewServer(conv Conversation, opts Options) http.Handler {
	s := &Server{
		conv: conv,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The bundled page may be opened from any origin in development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)

	// /api/messages → GET: whole conversation
	mux.HandleFunc("/api/messages", s.handleMessages)

	// /ws → session channel
	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("/", s.handleStatic)

	return chainMiddlewares(mux, withRequestID, withLogging, withCORS)
}

type messageResponse struct {
	Role    string  `json:"role"`
	Content string  `json:"content"`
	Parent  *string `json:"parent"`
	ID      string  `json:"id"`
}

type messagesResponse struct {
	Status   string            `json:"status"`
	Messages []messageResponse `json:"messages"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	msgs, err := s.conv.History(r.Context())
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error("failed to get messages", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, messagesResponse{
		Status:   "success",
		Messages: toMessagesResponse(msgs),
	})
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name, ok := staticFiles[r.URL.Path]
	if !ok || s.opts.StaticDir == "" || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(filepath.Join(s.opts.StaticDir, name))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		internalError(w)
		return
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func toMessageResponse(m domain.Message) messageResponse {
	var parent *string
	if m.Parent != nil {
		p := string(*m.Parent)
		parent = &p
	}
	return messageResponse{
		Role:    string(m.Role),
		Content: m.Content,
		Parent:  parent,
		ID:      string(m.ID),
	}
}

func toMessagesResponse(msgs []domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// internalError never leaks the cause; it is logged by the caller.
func internalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"status": "error",
		"error":  "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
