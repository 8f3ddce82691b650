package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/PabloGalante/singlechat/internal/domain"
)

const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	DefaultAnthropicModel   = "claude-3-5-sonnet-20241022"
	DefaultMaxTokens        = 1024
)

// AnthropicClient implements domain.Completer with the official Anthropic SDK.
// The SDK sets the versioned protocol header; its retries are disabled so a
// failed call surfaces once.
type AnthropicClient struct {
	client       anthropic.Client
	model        anthropic.Model
	maxTokens    int64
	systemPrompt string
}

type AnthropicConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	MaxTokens    int64
	SystemPrompt string
	Timeout      time.Duration
}

func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAnthropicBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
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

	return &AnthropicClient{
		client:       anthropic.NewClient(opts...),
		model:        anthropic.Model(cfg.Model),
		maxTokens:    cfg.MaxTokens,
		systemPrompt: cfg.SystemPrompt,
	}, nil
}

// Complete sends the whole history in one request and returns the text of the
// first content block of the reply.
func (c *AnthropicClient) Complete(ctx context.Context, history []domain.Message) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  toAnthropicMessages(history),
	}
	if c.systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.systemPrompt}}
	}

	var res *http.Response
	msg, err := c.client.Messages.New(ctx, params, option.WithResponseInto(&res))
	if err != nil {
		return "", domain.NewCompletionError("anthropic", failureKind(res), err)
	}

	text, err := firstAnthropicText(msg.RawJSON())
	if err != nil {
		return "", domain.NewCompletionError("anthropic", domain.ErrMalformedCompletion, err)
	}
	return text, nil
}

func toAnthropicMessages(history []domain.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(history))
	for _, t := range toTurns(history) {
		block := anthropic.NewTextBlock(t.Content)
		if t.Role == string(domain.RoleAssistant) {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

// firstAnthropicText reads content[0].text from the raw reply, so a block
// without a text field is told apart from one with empty text.
func firstAnthropicText(raw string) (string, error) {
	var reply struct {
		Content []struct {
			Type string  `json:"type"`
			Text *string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	if len(reply.Content) == 0 {
		return "", errors.New("reply has no content")
	}
	if reply.Content[0].Text == nil {
		return "", fmt.Errorf("first content block (%s) has no text", reply.Content[0].Type)
	}
	return *reply.Content[0].Text, nil
}
