// Package llm adapts the supported Answering Service providers to one
// prompt-in, text-out interface.
package llm

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/zihaomo080808/FileprocessingFastGPT/internal/config"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/resilience"
	"github.com/zihaomo080808/FileprocessingFastGPT/pkg/anthropic"
	"github.com/zihaomo080808/FileprocessingFastGPT/pkg/fastgpt"
)

// DefaultAnthropicModel is used when answering.model is empty.
const DefaultAnthropicModel = "claude-sonnet-4-5-20250929"

// ErrContextLength reports that a prompt did not fit the model's context
// window, whichever provider signalled it.
var ErrContextLength = errors.New("llm: context length exceeded")

// Answerer sends one prompt and returns the model's text reply.
type Answerer interface {
	Answer(ctx context.Context, prompt string) (string, error)
}

// New builds the Answerer selected by cfg.Provider.
func New(cfg config.AnsweringConfig) (Answerer, error) {
	switch cfg.Provider {
	case "", "fastgpt":
		if cfg.URL == "" {
			return nil, eris.New("llm: fastgpt requires answering.url")
		}
		opts := []fastgpt.Option{
			fastgpt.WithRetry(resilience.PolicyFor("fastgpt", cfg.MaxAttempts, 0)),
		}
		if cfg.TimeoutSecs > 0 {
			opts = append(opts, fastgpt.WithTimeout(cfg.Timeout()))
		}
		return NewFastGPT(fastgpt.NewClient(cfg.URL, cfg.APIKey, opts...), cfg.Model), nil
	case "anthropic":
		opts := []option.RequestOption{}
		if cfg.URL != "" {
			opts = append(opts, option.WithBaseURL(cfg.URL))
		}
		if cfg.MaxAttempts > 0 {
			opts = append(opts, option.WithMaxRetries(cfg.MaxAttempts-1))
		}
		if cfg.TimeoutSecs > 0 {
			opts = append(opts, option.WithRequestTimeout(cfg.Timeout()))
		}
		model := cfg.Model
		if model == "" {
			model = DefaultAnthropicModel
		}
		return NewAnthropic(anthropic.NewClient(cfg.APIKey, opts...), model, int64(cfg.MaxTokens)), nil
	default:
		return nil, eris.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// FastGPT answers through a FastGPT app.
type FastGPT struct {
	client fastgpt.Client
	model  string
}

// NewFastGPT wraps a FastGPT client. model may be empty.
func NewFastGPT(client fastgpt.Client, model string) *FastGPT {
	return &FastGPT{client: client, model: model}
}

func (f *FastGPT) Answer(ctx context.Context, prompt string) (string, error) {
	resp, err := f.client.ChatCompletion(ctx, fastgpt.ChatCompletionRequest{
		Model:    f.model,
		Messages: []fastgpt.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		if errors.Is(err, fastgpt.ErrContextLength) {
			return "", eris.Wrap(ErrContextLength, err.Error())
		}
		return "", eris.Wrap(err, "llm: fastgpt answer")
	}
	return resp.Content(), nil
}

// Anthropic answers through the Claude messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic wraps an Anthropic client.
func NewAnthropic(client anthropic.Client, model string, maxTokens int64) *Anthropic {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Anthropic{client: client, model: model, maxTokens: maxTokens}
}

func (a *Anthropic) Answer(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		if errors.Is(err, anthropic.ErrPromptTooLong) {
			return "", eris.Wrap(ErrContextLength, err.Error())
		}
		return "", eris.Wrap(err, "llm: anthropic answer")
	}
	resp.Usage.LogUsage(a.model, "answer")
	return resp.Text(), nil
}
