package domain

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Message is an immutable conversational turn.
// ID is empty while the message is in transit and set once it is stored.
type Message struct {
	Role    Role       `json:"role"`
	Content string     `json:"content"`
	Parent  *MessageID `json:"parent"`
	ID      MessageID  `json:"id"`
}

// canonicalMessage fixes the field order of the serialized triple.
type canonicalMessage struct {
	Role    Role       `json:"role"`
	Content string     `json:"content"`
	Parent  *MessageID `json:"parent"`
}

// NewMessage builds an unstored message.
func NewMessage(role Role, content string, parent *MessageID) Message {
	return Message{
		Role:    role,
		Content: content,
		Parent:  cloneID(parent),
	}
}

// WithID returns a copy of m bearing id.
func (m Message) WithID(id MessageID) Message {
	m.Parent = cloneID(m.Parent)
	m.ID = id
	return m
}

// Stored reports whether the message carries an identifier.
func (m Message) Stored() bool {
	return m.ID != ""
}

// EncodeMessage returns the canonical payload of (role, content, parent).
// The identifier is never part of the payload. HTML characters are written
// unescaped so identifiers match payloads written by other serializers.
func EncodeMessage(m Message) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a struct of strings cannot fail.
	_ = enc.Encode(canonicalMessage{
		Role:    m.Role,
		Content: m.Content,
		Parent:  m.Parent,
	})
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

// DecodeMessage parses a canonical payload. The result has no identifier.
func DecodeMessage(b []byte) (Message, error) {
	var c canonicalMessage
	if err := json.Unmarshal(b, &c); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if !c.Role.Valid() {
		return Message{}, fmt.Errorf("decode message: unknown role %q", c.Role)
	}
	return NewMessage(c.Role, c.Content, c.Parent), nil
}

// Fingerprint is the content address of a stored payload.
func Fingerprint(payload []byte) MessageID {
	sum := sha1.Sum(payload)
	return MessageID(hex.EncodeToString(sum[:]))
}

// DeriveID computes the identifier a message with this triple is stored under.
// Equal triples always yield equal identifiers.
func DeriveID(role Role, content string, parent *MessageID) MessageID {
	return Fingerprint(EncodeMessage(NewMessage(role, content, parent)))
}

// IDPtr is a small helper for optional parents.
func IDPtr(id MessageID) *MessageID {
	return &id
}

func cloneID(id *MessageID) *MessageID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
