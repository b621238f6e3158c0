// Package openai provides an LLM provider backed by any OpenAI-compatible
// chat completions endpoint.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/novakeep/herald/pkg/provider/llm"
	"github.com/novakeep/herald/pkg/types"
)

// Compile-time interface assertion.
var _ llm.Provider = (*Provider)(nil)

// Provider implements llm.Provider using the OpenAI-compatible API.
type Provider struct {
	client oai.Client
	model  string
}

type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
}

// Option customizes a Provider at construction time.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Point this at a
// local brain server's /v1 root to use it instead of api.openai.com.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout. The timeout covers the whole
// stream, not just the first byte.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new Provider. apiKey may be empty for unauthenticated
// local endpoints; model must be non-empty.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	var reqOpts []option.RequestOption
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// StreamCompletion implements llm.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("openai: build params: %w", err)
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai: start stream: %w", err)
	}

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]

			select {
			case ch <- llm.Chunk{Text: choice.Delta.Content, FinishReason: choice.FinishReason}:
			case <-ctx.Done():
				return
			}
		}

		// A stream cut short by a transport error still gets a terminal
		// chunk so the consumer can distinguish failure from completion.
		if err := stream.Err(); err != nil {
			select {
			case ch <- llm.Chunk{FinishReason: "error", Text: err.Error()}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// buildParams maps a Request onto the SDK's chat completion params.
func (p *Provider) buildParams(req llm.Request) (oai.ChatCompletionNewParams, error) {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, msg)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}

	if req.MaxTokens > 0 {
		// The classic max_tokens field: local OpenAI-compatible servers
		// widely support it, unlike max_completion_tokens.
		params.MaxTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.User != "" {
		params.User = param.NewOpt(req.User)
	}

	return params, nil
}

// convertMessage picks the SDK message constructor matching the role.
func convertMessage(m types.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case types.RoleSystem:
		return oai.SystemMessage(m.Content), nil
	case types.RoleUser:
		return oai.UserMessage(m.Content), nil
	case types.RoleAssistant:
		return oai.AssistantMessage(m.Content), nil
	default:
		return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: unknown message role %q", m.Role)
	}
}
