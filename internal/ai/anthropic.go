package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicMessager is the subset of the Anthropic client used by AnthropicClient.
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicClient adapts the Anthropic Messages API to Runtime.
type AnthropicClient struct {
	messages AnthropicMessager
	apiKey   string
}

// NewAnthropicClient builds a client using the official SDK. An empty baseURL keeps the SDK default.
func NewAnthropicClient(apiKey, baseURL string, cfg RuntimeConfig) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if cfg.HTTPTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.HTTPTimeout))
	}
	if cfg.RetryMax > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.RetryMax-1))
	}
	c := anthropic.NewClient(opts...)
	return &AnthropicClient{messages: &c.Messages, apiKey: apiKey}
}

// NewAnthropicClientWith wraps an existing messager (used in tests).
func NewAnthropicClientWith(m AnthropicMessager) *AnthropicClient {
	return &AnthropicClient{messages: m, apiKey: "injected"}
}

func (c *AnthropicClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, missingKey(ProviderAnthropic, "ANTHROPIC_API_KEY")
	}
	if err := ValidateModel(req.Model); err != nil {
		return nil, err
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = 1000
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(params.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	resp, err := c.messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError(err)
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	return &GenerateResponse{
		ID:        resp.ID,
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: sb.String()}}},
		Usage:     Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
		RequestID: resp.ID,
	}, nil
}

func classifyAnthropicError(err error) error {
	var aerr *anthropic.Error
	if !errors.As(err, &aerr) {
		return err
	}
	apiErr := &APIError{Provider: ProviderAnthropic, StatusCode: aerr.StatusCode, Message: http.StatusText(aerr.StatusCode)}
	if aerr.Request != nil && aerr.Response != nil {
		apiErr.Message = aerr.Error()
		apiErr.RequestID = extractRequestID(aerr.Response)
	}
	return classifyAPIError(apiErr, retryAfter(aerr.Response))
}
