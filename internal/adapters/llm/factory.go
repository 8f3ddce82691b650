package llm

import (
	"context"
	"fmt"

	"github.com/PabloGalante/singlechat/internal/config"
	"github.com/PabloGalante/singlechat/internal/domain"
)

// New builds the Completer selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (domain.Completer, error) {
	switch cfg.Provider {
	case "anthropic", "":
		return NewAnthropicClient(AnthropicConfig{
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			MaxTokens:    cfg.MaxTokens,
			SystemPrompt: cfg.SystemPrompt,
			Timeout:      cfg.Timeout,
		})
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			MaxTokens:    cfg.MaxTokens,
			SystemPrompt: cfg.SystemPrompt,
			Timeout:      cfg.Timeout,
		})
	case "vertex":
		return NewVertexClient(ctx, VertexConfig{
			ProjectID:    cfg.GCPProjectID,
			Location:     cfg.GCPLocation,
			Model:        cfg.Model,
			MaxTokens:    cfg.MaxTokens,
			SystemPrompt: cfg.SystemPrompt,
		})
	case "mock":
		return NewMockLLM(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
