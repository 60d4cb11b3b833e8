// Package provider resolves overseer model references into Eino chat models.
package provider

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/components/model"
)

// ErrNoAPIKey is returned by a provider constructor when no key is configured.
var ErrNoAPIKey = errors.New("api key not set")

// Model describes a model a provider is known to serve. The lists are
// informational; providers accept model IDs they do not list.
type Model struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ProviderID      string `json:"providerID"`
	ContextLength   int    `json:"contextLength"`
	MaxOutputTokens int    `json:"maxOutputTokens"`
	SupportsTools   bool   `json:"supportsTools"`
}

// Provider represents an LLM provider backed by Eino chat models.
type Provider interface {
	// ID returns the provider identifier.
	ID() string

	// Name returns the human-readable provider name.
	Name() string

	// Models returns the list of known models.
	Models() []Model

	// ChatModel creates a tool-calling chat model for modelID.
	ChatModel(ctx context.Context, modelID string) (model.ToolCallingChatModel, error)
}

func hasModel(p Provider, modelID string) bool {
	for _, m := range p.Models() {
		if m.ID == modelID {
			return true
		}
	}
	return false
}
