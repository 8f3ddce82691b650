package domain

import "context"

// PutResult reports where a message landed. Existed is true when an identical
// message was already stored under the same identifier.
type PutResult struct {
	ID      MessageID
	Existed bool
}

// MessageStore defines message persistence against the key/value collaborator.
type MessageStore interface {
	Put(ctx context.Context, msg Message) (PutResult, error)
	Get(ctx context.Context, id MessageID) (Message, error)
}

// HeadStore persists the conversation head, separately from the messages.
type HeadStore interface {
	LoadHead(ctx context.Context) (*MessageID, error)
	SaveHead(ctx context.Context, head *MessageID) error
}

// Completer defines how the core asks an LLM for the next assistant turn.
// Only role and content of each history entry reach the wire.
type Completer interface {
	Complete(ctx context.Context, history []Message) (string, error)
}
