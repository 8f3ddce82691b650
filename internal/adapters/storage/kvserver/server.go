// Package kvserver is the key/value collaborator: it answers envelope
// requests against a content-addressed Backend.
package kvserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/PabloGalante/singlechat/internal/adapters/storage/kv"
	"github.com/PabloGalante/singlechat/internal/domain"
	"github.com/PabloGalante/singlechat/internal/observability"
)

// ErrKeyNotFound is returned by backends when a key is absent.
var ErrKeyNotFound = errors.New("key not found")

// Backend stores opaque values by key.
type Backend interface {
	// Get returns ErrKeyNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// PutIfAbsent stores value under key unless the key already exists.
	PutIfAbsent(ctx context.Context, key string, value []byte) (existed bool, err error)
	Close() error
}

// maxRequestBytes bounds a single envelope read over HTTP.
const maxRequestBytes = 8 << 20

// Server answers envelopes. Put payloads are keyed by their fingerprint, so
// writing the same bytes twice lands on the same key.
type Server struct {
	backend Backend
}

func New(backend Backend) *Server {
	return &Server{backend: backend}
}

// Handle decodes one request envelope and always returns a response envelope.
func (s *Server) Handle(ctx context.Context, request []byte) []byte {
	resp := s.handle(ctx, request)
	out, err := json.Marshal(resp)
	if err != nil {
		// Response only carries strings and bytes.
		out = []byte(`{"status":"error","error":"encode response"}`)
	}
	return out
}

func (s *Server) handle(ctx context.Context, request []byte) kv.Response {
	log := observability.LoggerFromContext(ctx)

	var req kv.Request
	if err := json.Unmarshal(request, &req); err != nil {
		log.Warn("kv: undecodable request", "error", err)
		return errorResponse("invalid request")
	}
	if req.Type != kv.RequestType {
		return errorResponse("unsupported envelope type")
	}

	switch {
	case req.Data.Get != nil && req.Data.Put == nil:
		return s.get(ctx, log, *req.Data.Get)
	case req.Data.Put != nil && req.Data.Get == nil:
		return s.put(ctx, log, req.Data.Put)
	default:
		return errorResponse("request must carry exactly one action")
	}
}

func (s *Server) get(ctx context.Context, log *slog.Logger, key string) kv.Response {
	value, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return kv.Response{Status: "not_found", Error: "key not found"}
	}
	if err != nil {
		log.Error("kv: backend get failed", "key", key, "error", err)
		return errorResponse("backend failure")
	}
	v := kv.Bytes(value)
	return kv.Response{Status: kv.StatusOK, Value: &v}
}

func (s *Server) put(ctx context.Context, log *slog.Logger, value []byte) kv.Response {
	key := string(domain.Fingerprint(value))
	existed, err := s.backend.PutIfAbsent(ctx, key, value)
	if err != nil {
		log.Error("kv: backend put failed", "key", key, "error", err)
		return errorResponse("backend failure")
	}
	if existed {
		log.Debug("kv: put of existing content", "key", key)
	}
	return kv.Response{Status: kv.StatusOK, Key: key, Existed: existed}
}

func errorResponse(msg string) kv.Response {
	return kv.Response{Status: kv.StatusError, Error: msg}
}

// HTTPHandler exposes the server at a single POST endpoint.
func (s *Server) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(s.Handle(r.Context(), body))
	})
}

var _ kv.Handler = (*Server)(nil)
