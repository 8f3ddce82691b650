package domain

import (
	"errors"
	"fmt"
)

// Store error kinds.
var (
	ErrUnavailable       = errors.New("store unavailable")
	ErrRejected          = errors.New("store rejected request")
	ErrNotFound          = errors.New("message not found")
	ErrMalformedResponse = errors.New("malformed store response")
	ErrCycleSuspected    = errors.New("history cycle suspected")
)

// Completion error kinds.
var (
	ErrTransportFailure    = errors.New("completion transport failure")
	ErrMalformedCompletion = errors.New("malformed completion response")
)

// StoreError is returned by every MessageStore and history operation.
// Kind is one of the Err* store kinds above and matches with errors.Is.
type StoreError struct {
	Op   string
	ID   MessageID
	Kind error
	Err  error
}

func NewStoreError(op string, id MessageID, kind, err error) *StoreError {
	return &StoreError{Op: op, ID: id, Kind: kind, Err: err}
}

func (e *StoreError) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.ID != "" {
		msg += " (id=" + string(e.ID) + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// CompletionError is returned by Completer implementations.
type CompletionError struct {
	Provider string
	Kind     error
	Err      error
}

func NewCompletionError(provider string, kind, err error) *CompletionError {
	return &CompletionError{Provider: provider, Kind: kind, Err: err}
}

func (e *CompletionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

func (e *CompletionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// TurnStage names the step of a turn that failed.
type TurnStage string

const (
	StagePersistUser        TurnStage = "persist_user"
	StageReconstructHistory TurnStage = "reconstruct_history"
	StageCompletion         TurnStage = "completion"
	StagePersistAssistant   TurnStage = "persist_assistant"
)

// TurnError wraps the cause of a failed turn with the stage it failed in.
type TurnError struct {
	Stage TurnStage
	Err   error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed at %s: %v", e.Stage, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, &TurnError{Stage: s}) match on the stage alone.
func (e *TurnError) Is(target error) bool {
	t, ok := target.(*TurnError)
	if !ok {
		return false
	}
	return t.Err == nil && t.Stage == e.Stage
}

// StageOf returns the failed stage of a turn error, or "" for other errors.
func StageOf(err error) TurnStage {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Stage
	}
	return ""
}
