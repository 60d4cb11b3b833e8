package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"

	"github.com/opencode-ai/overseer/internal/config"
	"github.com/opencode-ai/overseer/internal/logging"
)

// ErrProviderNotFound is returned for a model reference naming an unknown provider.
var ErrProviderNotFound = errors.New("provider not found")

// DefaultProvider is used for bare model IDs no registered provider lists.
const DefaultProvider = "anthropic"

// aliases are the short names the claude CLI accepts, mapped to full references.
var aliases = map[string]string{
	"opus":   "anthropic/claude-opus-4-20250514",
	"sonnet": "anthropic/claude-sonnet-4-20250514",
	"haiku":  "anthropic/claude-3-5-haiku-20241022",
}

// Registry manages all available providers and caches resolved chat models.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	models    map[string]model.ToolCallingChatModel
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		models:    make(map[string]model.ToolCallingChatModel),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = provider
	for key := range r.models {
		if strings.HasPrefix(key, provider.ID()+"/") {
			delete(r.models, key)
		}
	}
}

// Get retrieves a provider by ID.
func (r *Registry) Get(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)
	}
	return provider, nil
}

// List returns all providers sorted by ID.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID() < providers[j].ID() })
	return providers
}

// AllModels returns the known models of every provider.
func (r *Registry) AllModels() []Model {
	var models []Model
	for _, p := range r.List() {
		models = append(models, p.Models()...)
	}
	return models
}

// Canonical expands aliases and bare model IDs into a "provider/model" reference.
func (r *Registry) Canonical(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("empty model reference")
	}
	if full, ok := aliases[strings.ToLower(ref)]; ok {
		return full, nil
	}

	providerID, modelID := ParseModelString(ref)
	if providerID == "" {
		providerID = DefaultProvider
		for _, p := range r.List() {
			if hasModel(p, modelID) {
				providerID = p.ID()
				break
			}
		}
	}
	if modelID == "" {
		return "", fmt.Errorf("model reference %q has no model", ref)
	}
	return providerID + "/" + modelID, nil
}

// Resolve returns the chat model for ref along with its canonical reference.
func (r *Registry) Resolve(ctx context.Context, ref string) (model.ToolCallingChatModel, string, error) {
	canonical, err := r.Canonical(ref)
	if err != nil {
		return nil, "", err
	}

	r.mu.RLock()
	cached, ok := r.models[canonical]
	r.mu.RUnlock()
	if ok {
		return cached, canonical, nil
	}

	providerID, modelID := ParseModelString(canonical)
	provider, err := r.Get(providerID)
	if err != nil {
		return nil, "", err
	}
	chatModel, err := provider.ChatModel(ctx, modelID)
	if err != nil {
		return nil, "", err
	}

	r.mu.Lock()
	r.models[canonical] = chatModel
	r.mu.Unlock()
	return chatModel, canonical, nil
}

// ParseModelString parses "provider/model" format.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

// InitializeProviders registers every provider that has credentials in cfg
// or the environment and is not disabled.
func InitializeProviders(cfg *config.Config) *Registry {
	registry := NewRegistry()
	log := logging.Component("provider")
	maxTokens := cfg.Overseer.MaxTokens

	settings := func(id string) (config.ProviderConfig, bool) {
		pc := cfg.Provider[id]
		return pc, !pc.Disable
	}

	if pc, ok := settings("anthropic"); ok {
		if p, err := NewAnthropicProvider(&AnthropicConfig{APIKey: pc.APIKey, BaseURL: pc.BaseURL, MaxTokens: maxTokens}); err == nil {
			registry.Register(p)
		} else {
			log.Debug().Err(err).Msg("provider skipped")
		}
	}
	if pc, ok := settings("openai"); ok {
		if p, err := NewOpenAIProvider(&OpenAIConfig{APIKey: pc.APIKey, BaseURL: pc.BaseURL, MaxTokens: maxTokens}); err == nil {
			registry.Register(p)
		} else {
			log.Debug().Err(err).Msg("provider skipped")
		}
	}
	if pc, ok := settings("ark"); ok {
		if p, err := NewArkProvider(&ArkConfig{APIKey: pc.APIKey, BaseURL: pc.BaseURL, MaxTokens: maxTokens}); err == nil {
			registry.Register(p)
		} else {
			log.Debug().Err(err).Msg("provider skipped")
		}
	}

	ids := make([]string, 0)
	for _, p := range registry.List() {
		ids = append(ids, p.ID())
	}
	log.Info().Strs("providers", ids).Msg("providers initialized")
	return registry
}
