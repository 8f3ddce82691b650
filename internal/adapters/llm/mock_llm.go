package llm

import (
	"context"
	"fmt"

	"github.com/PabloGalante/singlechat/internal/domain"
)

type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

// Complete echoes the latest user turn so local runs need no API key.
func (m *MockLLM) Complete(ctx context.Context, history []domain.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.NewCompletionError("mock", domain.ErrTransportFailure, err)
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleUser {
			return fmt.Sprintf("I hear you. You said %q (turn %d).", history[i].Content, i/2+1), nil
		}
	}
	return "Hello! What would you like to talk about?", nil
}
