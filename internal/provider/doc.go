// Package provider resolves the overseer's model references into Eino
// tool-calling chat models.
//
// A reference is "provider/model" (for example "anthropic/claude-sonnet-4-20250514"),
// a bare model ID, or one of the claude CLI aliases opus, sonnet and haiku.
// Bare IDs resolve to the first provider that lists them, then to anthropic.
//
// # Supported Providers
//
//   - anthropic: Claude models through eino-ext/components/model/claude
//   - openai: OpenAI and OpenAI-compatible endpoints through eino-ext/components/model/openai
//   - ark: Volcengine ARK endpoints through eino-ext/components/model/ark
//
// InitializeProviders registers each provider that has an API key, either in
// the config file or in ANTHROPIC_API_KEY, OPENAI_API_KEY or ARK_API_KEY.
//
//	registry := provider.InitializeProviders(cfg)
//	chatModel, ref, err := registry.Resolve(ctx, "sonnet")
package provider
