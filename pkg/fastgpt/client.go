// Package fastgpt is a minimal client for FastGPT's OpenAI-compatible chat
// completions endpoint.
package fastgpt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/zihaomo080808/FileprocessingFastGPT/internal/resilience"
)

// ErrContextLength is returned when the service rejects a prompt as longer
// than the model's context window.
var ErrContextLength = errors.New("fastgpt: context length exceeded")

// Client performs chat completions against a FastGPT app.
type Client interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// ChatCompletionRequest is the request body for the completions endpoint.
type ChatCompletionRequest struct {
	ChatID   string    `json:"chatId"`
	Stream   bool      `json:"stream"`
	Detail   bool      `json:"detail"`
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
}

// Message is a single conversation message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse is the subset of the response the tool reads.
type ChatCompletionResponse struct {
	ID      string          `json:"id"`
	Choices []Choice        `json:"choices"`
	Usage   Usage           `json:"usage"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// Choice is a single completion choice.
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Content returns the first choice's message content, or "".
func (r *ChatCompletionResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRetry overrides the transport retry policy.
func WithRetry(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

// WithChatID sets the chatId sent with every request.
func WithChatID(id string) Option {
	return func(c *httpClient) {
		c.chatID = id
	}
}

type httpClient struct {
	apiKey string
	url    string
	chatID string
	http   *http.Client
	retry  resilience.Policy
}

// NewClient creates a FastGPT client posting to url, the full completions
// endpoint (for example https://api.fastgpt.in/api/v1/chat/completions).
func NewClient(url, apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey: apiKey,
		url:    url,
		chatID: "000",
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.PolicyFor("fastgpt", 0, 0),
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.Name == "" {
		c.retry.Name = "fastgpt"
	}
	return c
}

func (c *httpClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if req.ChatID == "" {
		req.ChatID = c.chatID
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "fastgpt: marshal request")
	}

	return resilience.Do(ctx, c.retry, func(ctx context.Context) (*ChatCompletionResponse, error) {
		return c.do(ctx, body)
	})
}

func (c *httpClient) do(ctx context.Context, body []byte) (*ChatCompletionResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "fastgpt: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "fastgpt: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fastgpt: read response")
	}

	if isContextLength(respBody) {
		return nil, eris.Wrapf(ErrContextLength, "fastgpt: status %d", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.StatusError{Service: "fastgpt", Status: resp.StatusCode, Body: string(respBody)}
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "fastgpt: unmarshal response")
	}
	if len(result.Error) > 0 && string(result.Error) != "null" {
		msg := gjson.GetBytes(result.Error, "message").String()
		if msg == "" {
			msg = string(result.Error)
		}
		return nil, eris.Errorf("fastgpt: service error: %s", msg)
	}
	if len(result.Choices) == 0 {
		return nil, eris.New("fastgpt: response has no choices")
	}

	return &result, nil
}

func isContextLength(body []byte) bool {
	if gjson.ValidBytes(body) {
		if gjson.GetBytes(body, "error.code").String() == "context_length_exceeded" {
			return true
		}
		if msg := gjson.GetBytes(body, "error.message").String(); strings.Contains(msg, "maximum context length") {
			return true
		}
	}
	s := string(body)
	return strings.Contains(s, "context_length_exceeded") || strings.Contains(s, "maximum context length")
}
