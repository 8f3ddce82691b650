package kv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Transport carries one encoded request envelope to the collaborator and
// returns the encoded response envelope.
type Transport interface {
	RoundTrip(ctx context.Context, request []byte) ([]byte, error)
}

// Handler is the collaborator side of the protocol.
type Handler interface {
	Handle(ctx context.Context, request []byte) []byte
}

// LocalTransport calls an in-process collaborator directly.
type LocalTransport struct {
	handler Handler
}

func NewLocalTransport(h Handler) *LocalTransport {
	return &LocalTransport{handler: h}
}

func (t *LocalTransport) RoundTrip(ctx context.Context, request []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.handler.Handle(ctx, request), nil
}

// HTTPTransport posts envelopes to a remote collaborator (see cmd/kvstore).
type HTTPTransport struct {
	url        string
	httpClient *http.Client
}

// NewHTTPTransport creates a transport for the collaborator at url.
// A zero timeout leaves requests bounded only by the caller's context.
func NewHTTPTransport(url string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (t *HTTPTransport) RoundTrip(ctx context.Context, request []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(request))
	if err != nil {
		return nil, fmt.Errorf("create kv request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kv request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read kv response: %w", err)
	}

	// The collaborator reports failures inside the envelope, so any status
	// other than 200 means the transport itself is broken.
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kv request: unexpected status %d", resp.StatusCode)
	}

	return body, nil
}
