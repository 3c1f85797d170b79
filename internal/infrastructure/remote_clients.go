package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
)

const (
	OpenRouterReferer = "https://pocket-consultant.ru"
	OpenRouterTitle   = "Pocket Consultant Bot"
)

// ChatClient talks to an OpenAI-compatible chat-completions endpoint. Both
// the question backend (Perplexity) and the document backend (OpenRouter)
// speak this protocol.
type ChatClient struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
	Headers map[string]string
	HTTP    *http.Client
}

func NewChatClient(name, baseURL, apiKey, model string, timeout time.Duration) *ChatClient {
	return &ChatClient{
		Name:    name,
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Headers: map[string]string{},
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// NewPerplexityClient answers legal questions.
func NewPerplexityClient(baseURL, apiKey, model string, timeout time.Duration) *ChatClient {
	return NewChatClient("perplexity", baseURL, apiKey, model, timeout)
}

// NewOpenRouterClient processes documents. OpenRouter asks callers to
// identify themselves with HTTP-Referer and X-Title.
func NewOpenRouterClient(baseURL, apiKey, model string, timeout time.Duration) *ChatClient {
	c := NewChatClient("openrouter", baseURL, apiKey, model, timeout)
	c.Headers["HTTP-Referer"] = OpenRouterReferer
	c.Headers["X-Title"] = OpenRouterTitle
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete returns the first choice's content. Non-2xx statuses and empty
// choice lists are errors.
func (c *ChatClient) Complete(ctx context.Context, req entities.RemoteRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.Model
	}
	body := chatCompletionRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})

	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	for k, v := range c.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.Name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: read body: %w", c.Name, err)
	}

	var out chatCompletionResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("%s http %d: %s", c.Name, resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("%s http %d: %s", c.Name, resp.StatusCode, truncateBody(raw))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%s: decode response: %w", c.Name, decodeErr)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s: empty choices", c.Name)
	}
	return out.Choices[0].Message.Content, nil
}

func truncateBody(raw []byte) string {
	const max = 300
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
