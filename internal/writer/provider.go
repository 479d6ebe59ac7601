// Package writer rewrites extracted section text into book prose with an
// LLM, checkpointing every finished article so interrupted runs resume, and
// generates front matter such as the copyright page.
package writer

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"bookpress/internal/types"
)

// GeminiBaseURL is Gemini's OpenAI-compatible endpoint.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

const anthropicMaxTokens = 4096

// Provider completes a prompt with an LLM.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	Name    string // openai, gemini or anthropic
	APIKey  string
	Model   string
	BaseURL string // openai only
}

// NewProvider builds the provider named in cfg.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, types.NewAppErrorWithDetails(types.ErrConfig, "API key not configured", cfg.Name, nil)
	}
	if cfg.Model == "" {
		return nil, types.NewAppErrorWithDetails(types.ErrConfig, "model not configured", cfg.Name, nil)
	}

	switch strings.ToLower(cfg.Name) {
	case "anthropic", "claude":
		return NewAnthropicProvider(cfg.APIKey, cfg.Model), nil
	case "gemini":
		return NewOpenAIProvider(ctx, "gemini", cfg.APIKey, GeminiBaseURL, cfg.Model)
	case "openai", "":
		return NewOpenAIProvider(ctx, "openai", cfg.APIKey, cfg.BaseURL, cfg.Model)
	}
	return nil, types.NewAppErrorWithDetails(types.ErrConfig, "unknown LLM provider", cfg.Name, nil)
}

// OpenAIProvider talks to OpenAI-compatible chat endpoints through eino.
type OpenAIProvider struct {
	name  string
	model string
	chat  *openai.ChatModel
}

// NewOpenAIProvider creates an eino chat model for an OpenAI-compatible API.
func NewOpenAIProvider(ctx context.Context, name, apiKey, baseURL, model string) (*OpenAIProvider, error) {
	chatModelConfig := &openai.ChatModelConfig{
		Model:  model,
		APIKey: apiKey,
	}
	if baseURL != "" {
		chatModelConfig.BaseURL = baseURL
	}

	chat, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to create chat model", err)
	}
	return &OpenAIProvider{name: name, model: model, chat: chat}, nil
}

func (p *OpenAIProvider) Name() string  { return p.name }
func (p *OpenAIProvider) Model() string { return p.model }

// Complete sends one system and one user message.
func (p *OpenAIProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	msgs := make([]*schema.Message, 0, 2)
	if system != "" {
		msgs = append(msgs, schema.SystemMessage(system))
	}
	msgs = append(msgs, schema.UserMessage(prompt))

	resp, err := p.chat.Generate(ctx, msgs)
	if err != nil {
		return "", types.NewAppErrorWithDetails(types.ErrAPICall, "chat completion failed", p.name, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", types.NewAppErrorWithDetails(types.ErrAPICall, "empty response", p.name, nil)
	}
	return resp.Content, nil
}

// AnthropicProvider talks to the Anthropic Messages API.
type AnthropicProvider struct {
	model  string
	client *anthropic.Client
}

// NewAnthropicProvider creates a Messages API client.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &AnthropicProvider{model: model, client: client}
}

func (p *AnthropicProvider) Name() string  { return "anthropic" }
func (p *AnthropicProvider) Model() string { return p.model }

// Complete sends one user message with an optional system prompt.
func (p *AnthropicProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(p.model)),
		MaxTokens: anthropic.F(int64(anthropicMaxTokens)),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		}),
	}
	if system != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(system),
		})
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", types.NewAppError(types.ErrAPICall, "claude api error", err)
	}
	if len(message.Content) == 0 || strings.TrimSpace(message.Content[0].Text) == "" {
		return "", types.NewAppError(types.ErrAPICall, "empty response from claude", nil)
	}
	return message.Content[0].Text, nil
}
