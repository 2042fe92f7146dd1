package ai

import (
	"context"
	"errors"
	"net/http"
	"sync"

	genai "google.golang.org/genai"
)

// GeminiClient adapts the Gemini API (google.golang.org/genai) to Runtime.
// The SDK client is created lazily on the first call.
type GeminiClient struct {
	apiKey  string
	baseURL string
	http    *http.Client

	once sync.Once
	cli  *genai.Client
	err  error
}

// NewGeminiClient returns a client for the Gemini API. An empty baseURL keeps the SDK default.
func NewGeminiClient(apiKey, baseURL string, cfg RuntimeConfig) *GeminiClient {
	c := &GeminiClient{apiKey: apiKey, baseURL: baseURL}
	if cfg.HTTPTimeout > 0 {
		c.http = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return c
}

func (c *GeminiClient) client(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:     c.apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: c.http,
		}
		if c.baseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
		}
		c.cli, c.err = genai.NewClient(ctx, cc)
	})
	return c.cli, c.err
}

func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, missingKey(ProviderGemini, "GEMINI_API_KEY")
	}
	if err := ValidateModel(req.Model); err != nil {
		return nil, err
	}
	cfg := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			cfg.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	cli, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := cli.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	out := &GenerateResponse{
		ID:        resp.ResponseID,
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: resp.Text()}}},
		RequestID: resp.ResponseID,
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func classifyGeminiError(err error) error {
	var apiErr *APIError
	var gerr genai.APIError
	var gptr *genai.APIError
	switch {
	case errors.As(err, &gerr):
		apiErr = &APIError{Provider: ProviderGemini, StatusCode: gerr.Code, Code: gerr.Status, Message: gerr.Message}
	case errors.As(err, &gptr):
		apiErr = &APIError{Provider: ProviderGemini, StatusCode: gptr.Code, Code: gptr.Status, Message: gptr.Message}
	default:
		return err
	}
	if apiErr.Code == "RESOURCE_EXHAUSTED" && apiErr.StatusCode == 0 {
		apiErr.StatusCode = http.StatusTooManyRequests
	}
	return classifyAPIError(apiErr, 0)
}
