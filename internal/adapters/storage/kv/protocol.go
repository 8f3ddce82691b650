// Package kv speaks the request/response envelope protocol of the key/value
// collaborator and adapts it to domain.MessageStore.
package kv

import (
	"encoding/json"
	"fmt"
)

const (
	RequestType = "request"
	StatusOK    = "ok"
	StatusError = "error"
)

// Bytes is a byte payload that travels as a JSON array of numbers
// instead of the base64 string encoding/json uses for []byte.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, c := range b {
		ints[i] = int(c)
	}
	return json.Marshal(ints)
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte value %d out of range", v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// Action holds exactly one of Get or Put.
type Action struct {
	Get *string `json:"Get,omitempty"`
	Put Bytes   `json:"Put,omitempty"`
}

type Request struct {
	Type string `json:"type"`
	Data Action `json:"data"`
}

// Response is the collaborator's reply. Key is set on Put success, Value on
// Get success. Existed marks a Put whose content was already stored.
type Response struct {
	Status  string `json:"status"`
	Key     string `json:"key,omitempty"`
	Value   *Bytes `json:"value,omitempty"`
	Existed bool   `json:"existed,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewGetRequest(key string) Request {
	return Request{Type: RequestType, Data: Action{Get: &key}}
}

func NewPutRequest(value []byte) Request {
	return Request{Type: RequestType, Data: Action{Put: Bytes(value)}}
}

// OK reports whether the response carries a success status.
func (r Response) OK() bool {
	return r.Status == StatusOK
}
