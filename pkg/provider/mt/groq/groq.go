// Package groq implements [mt.Translator] backed by Groq's OpenAI-compatible
// chat completions API. Groq serves small open-weight models with first-token
// latencies well under typical hosted LLM APIs, which is what the translation
// leg of a live conversation needs.
package groq

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/parley/pkg/provider/mt"
)

const defaultBaseURL = "https://api.groq.com/openai/v1"

// DefaultModel is the chat model used when [WithModel] is not given.
const DefaultModel = "llama-3.1-8b-instant"

type config struct {
	model   string
	baseURL string
	timeout time.Duration
}

// Option customizes the translator.
type Option func(*config)

// WithModel overrides the default model (llama-3.1-8b-instant).
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithBaseURL overrides the API endpoint. Any OpenAI-compatible server
// works, so this doubles as the hook for self-hosted gateways.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout bounds each completion request.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Translator talks to Groq's chat completions endpoint.
type Translator struct {
	client oai.Client
	model  string
}

// New creates a Translator. apiKey must not be empty.
func New(apiKey string, opts ...Option) (*Translator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq: apiKey must not be empty")
	}
	cfg := &config{model: DefaultModel, baseURL: defaultBaseURL}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.model == "" {
		return nil, fmt.Errorf("groq: model must not be empty")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Translator{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
	}, nil
}

// Translate implements [mt.Translator]. Replies that do not match the
// expected JSON shape are logged and the source text is passed through
// unchanged.
func (t *Translator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	resp, err := t.client.Chat.Completions.New(ctx, t.buildParams(text, targetLang))
	if err != nil {
		return "", fmt.Errorf("groq: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("groq: empty choices in response")
	}

	content := resp.Choices[0].Message.Content
	translation, ok := mt.ParseResponse(content)
	if !ok {
		slog.Warn("groq: unexpected translation reply, passing source through",
			"target_lang", targetLang, "reply", snippet(content))
		return text, nil
	}
	return translation, nil
}

func (t *Translator) buildParams(text, targetLang string) oai.ChatCompletionNewParams {
	return oai.ChatCompletionNewParams{
		Model: shared.ChatModel(t.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(mt.SystemPrompt),
			oai.UserMessage(mt.UserPrompt(targetLang, text)),
		},
		Temperature: param.NewOpt(mt.Temperature),
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
}

// snippet keeps log lines readable when a model rambles.
func snippet(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}

var _ mt.Translator = (*Translator)(nil)
