package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// OpenAIProvider implements Provider for OpenAI and OpenAI-compatible endpoints.
type OpenAIProvider struct {
	config *OpenAIConfig
	apiKey string
}

// OpenAIConfig holds configuration for OpenAI provider.
type OpenAIConfig struct {
	// ID is the provider identifier (e.g., "openai", "ollama").
	// If empty, defaults to "openai".
	ID        string
	APIKey    string
	BaseURL   string
	MaxTokens int
}

// NewOpenAIProvider creates a new OpenAI provider. The key falls back to
// OPENAI_API_KEY.
func NewOpenAIProvider(config *OpenAIConfig) (*OpenAIProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrNoAPIKey)
	}
	return &OpenAIProvider{config: config, apiKey: apiKey}, nil
}

// ID returns the provider identifier.
func (p *OpenAIProvider) ID() string {
	if p.config.ID != "" {
		return p.config.ID
	}
	return "openai"
}

// Name returns the human-readable provider name.
func (p *OpenAIProvider) Name() string { return "OpenAI" }

// Models returns the list of available models.
func (p *OpenAIProvider) Models() []Model {
	return openAIModels(p.ID())
}

// ChatModel creates an OpenAI chat model.
func (p *OpenAIProvider) ChatModel(ctx context.Context, modelID string) (model.ToolCallingChatModel, error) {
	if modelID == "" {
		modelID = "gpt-4o"
	}
	maxTokens := p.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	cfg := &openai.ChatModelConfig{
		APIKey:              p.apiKey,
		Model:               modelID,
		MaxCompletionTokens: &maxTokens, // Use MaxCompletionTokens for GPT-5 compatibility
	}
	if p.config.BaseURL != "" {
		cfg.BaseURL = p.config.BaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI model: %w", err)
	}
	return chatModel, nil
}

// openAIModels returns the list of OpenAI models.
func openAIModels(providerID string) []Model {
	return []Model{
		{ID: "gpt-5", Name: "GPT-5", ProviderID: providerID, ContextLength: 272000, MaxOutputTokens: 128000, SupportsTools: true},
		{ID: "gpt-5-mini", Name: "GPT-5 Mini", ProviderID: providerID, ContextLength: 272000, MaxOutputTokens: 128000, SupportsTools: true},
		{ID: "gpt-4o", Name: "GPT-4o", ProviderID: providerID, ContextLength: 128000, MaxOutputTokens: 16384, SupportsTools: true},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", ProviderID: providerID, ContextLength: 128000, MaxOutputTokens: 16384, SupportsTools: true},
	}
}
