package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/PabloGalante/singlechat/internal/domain"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAIClient implements domain.Completer against any OpenAI-compatible
// chat completions endpoint.
type OpenAIClient struct {
	client       openai.Client
	model        string
	maxTokens    int64
	systemPrompt string
}

type OpenAIConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	MaxTokens    int64
	SystemPrompt string
	Timeout      time.Duration
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAIClient{
		client:       openai.NewClient(opts...),
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		systemPrompt: cfg.SystemPrompt,
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, history []domain.Message) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if c.systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(c.systemPrompt))
	}
	for _, t := range toTurns(history) {
		if t.Role == string(domain.RoleAssistant) {
			messages = append(messages, openai.AssistantMessage(t.Content))
		} else {
			messages = append(messages, openai.UserMessage(t.Content))
		}
	}

	var res *http.Response
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(c.maxTokens),
	}, option.WithResponseInto(&res))
	if err != nil {
		return "", domain.NewCompletionError("openai", failureKind(res), err)
	}

	text, err := firstOpenAIText(resp.RawJSON())
	if err != nil {
		return "", domain.NewCompletionError("openai", domain.ErrMalformedCompletion, err)
	}
	return text, nil
}

func firstOpenAIText(raw string) (string, error) {
	var reply struct {
		Choices []struct {
			Message struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	if len(reply.Choices) == 0 {
		return "", errors.New("reply has no choices")
	}
	if reply.Choices[0].Message.Content == nil {
		return "", errors.New("first choice has no content")
	}
	return *reply.Choices[0].Message.Content, nil
}
