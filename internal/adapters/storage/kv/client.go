package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PabloGalante/singlechat/internal/domain"
)

// Client implements domain.MessageStore over the envelope protocol.
// It never retries; every failure is mapped to a *domain.StoreError.
type Client struct {
	transport Transport
}

func NewClient(t Transport) *Client {
	return &Client{transport: t}
}

// Put stores the canonical payload of msg and returns the key the
// collaborator assigned. Storing an identical message again is not an error;
// the result reports Existed instead.
func (c *Client) Put(ctx context.Context, msg domain.Message) (domain.PutResult, error) {
	resp, err := c.roundTrip(ctx, "put", "", NewPutRequest(domain.EncodeMessage(msg)))
	if err != nil {
		return domain.PutResult{}, err
	}

	if !resp.OK() {
		return domain.PutResult{}, domain.NewStoreError("put", "", domain.ErrRejected, statusError(resp))
	}
	if resp.Key == "" {
		return domain.PutResult{}, domain.NewStoreError("put", "", domain.ErrMalformedResponse, errors.New("missing key"))
	}

	return domain.PutResult{
		ID:      domain.MessageID(resp.Key),
		Existed: resp.Existed,
	}, nil
}

// Get fetches the payload stored under id and returns it as a message
// bearing id.
func (c *Client) Get(ctx context.Context, id domain.MessageID) (domain.Message, error) {
	resp, err := c.roundTrip(ctx, "get", id, NewGetRequest(string(id)))
	if err != nil {
		return domain.Message{}, err
	}

	if !resp.OK() {
		return domain.Message{}, domain.NewStoreError("get", id, domain.ErrNotFound, statusError(resp))
	}
	if resp.Value == nil {
		return domain.Message{}, domain.NewStoreError("get", id, domain.ErrMalformedResponse, errors.New("missing value"))
	}

	msg, err := domain.DecodeMessage(*resp.Value)
	if err != nil {
		return domain.Message{}, domain.NewStoreError("get", id, domain.ErrMalformedResponse, err)
	}

	return msg.WithID(id), nil
}

func (c *Client) roundTrip(ctx context.Context, op string, id domain.MessageID, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, domain.NewStoreError(op, id, domain.ErrUnavailable, fmt.Errorf("encode request: %w", err))
	}

	raw, err := c.transport.RoundTrip(ctx, payload)
	if err != nil {
		return Response{}, domain.NewStoreError(op, id, domain.ErrUnavailable, err)
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, domain.NewStoreError(op, id, domain.ErrMalformedResponse, fmt.Errorf("decode response: %w", err))
	}
	return resp, nil
}

func statusError(resp Response) error {
	if resp.Error != "" {
		return fmt.Errorf("status %q: %s", resp.Status, resp.Error)
	}
	return fmt.Errorf("status %q", resp.Status)
}

var _ domain.MessageStore = (*Client)(nil)
