package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/PabloGalante/singlechat/internal/domain"
)

const DefaultVertexModel = "gemini-2.5-flash"

type VertexClient struct {
	client       *genai.Client
	modelName    string
	maxTokens    int32
	systemPrompt string
}

type VertexConfig struct {
	ProjectID    string
	Location     string
	Model        string
	MaxTokens    int64
	SystemPrompt string
}

// NewVertexClient creates a Completer backed by Gemini on Vertex AI.
func NewVertexClient(ctx context.Context, cfg VertexConfig) (*VertexClient, error) {
	if cfg.ProjectID == "" || cfg.Location == "" {
		return nil, fmt.Errorf("vertex project and location must be set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultVertexModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.ProjectID,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &VertexClient{
		client:       client,
		modelName:    cfg.Model,
		maxTokens:    int32(cfg.MaxTokens),
		systemPrompt: cfg.SystemPrompt,
	}, nil
}

// Complete implements domain.Completer. The history already ends with the
// current user turn.
func (v *VertexClient) Complete(ctx context.Context, history []domain.Message) (string, error) {
	contents := toGenaiContents(history)

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: v.maxTokens,
	}
	if v.systemPrompt != "" {
		// Gemini takes the system instruction as user-role content.
		cfg.SystemInstruction = genai.NewContentFromText(v.systemPrompt, genai.RoleUser)
	}

	res, err := v.client.Models.GenerateContent(ctx, v.modelName, contents, cfg)
	if err != nil {
		return "", domain.NewCompletionError("vertex", domain.ErrTransportFailure, err)
	}

	text := res.Text()
	if text == "" {
		return "", domain.NewCompletionError("vertex", domain.ErrMalformedCompletion, errors.New("empty text"))
	}

	return text, nil
}

func toGenaiContents(history []domain.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		var role genai.Role = genai.RoleUser
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}
