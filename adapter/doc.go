// Package adapter defines how the canonical PromptExecution reaches a model provider.
//
// ProviderAdapter is the pure translation layer (request building, response parsing);
// Client performs the network call. Provider implementations live in the gemini, openai,
// anthropic and ollama subpackages; only gemini supports video input and search grounding.
package adapter
