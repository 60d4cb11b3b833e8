package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// ArkProvider implements Provider for Volcengine ARK endpoints.
type ArkProvider struct {
	config  *ArkConfig
	apiKey  string
	baseURL string
}

// ArkConfig holds configuration for ARK provider.
type ArkConfig struct {
	APIKey    string
	BaseURL   string
	MaxTokens int
}

// NewArkProvider creates a new ARK provider. The key falls back to
// ARK_API_KEY and the base URL to ARK_BASE_URL.
func NewArkProvider(config *ArkConfig) (*ArkProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ARK_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ark: %w", ErrNoAPIKey)
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("ARK_BASE_URL")
	}
	return &ArkProvider{config: config, apiKey: apiKey, baseURL: baseURL}, nil
}

// ID returns the provider identifier.
func (p *ArkProvider) ID() string { return "ark" }

// Name returns the human-readable provider name.
func (p *ArkProvider) Name() string { return "ARK" }

// Models returns nothing; ARK models are account-specific endpoint IDs.
func (p *ArkProvider) Models() []Model { return nil }

// ChatModel creates an ARK chat model. modelID is the endpoint ID and falls
// back to ARK_MODEL_ID.
func (p *ArkProvider) ChatModel(ctx context.Context, modelID string) (model.ToolCallingChatModel, error) {
	if modelID == "" {
		modelID = os.Getenv("ARK_MODEL_ID")
	}
	if modelID == "" {
		return nil, fmt.Errorf("ark: endpoint model not set")
	}
	maxTokens := p.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	cfg := &ark.ChatModelConfig{
		APIKey:    p.apiKey,
		Model:     modelID,
		MaxTokens: &maxTokens,
	}
	if p.baseURL != "" {
		cfg.BaseURL = p.baseURL
	}

	chatModel, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ARK model: %w", err)
	}
	return chatModel, nil
}
