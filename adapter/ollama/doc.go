// Package ollama adapts prompt executions to the Ollama Chat API.
// Translate returns *api.ChatRequest; ParseResponse expects *api.ChatResponse.
// Use TranslateTyped to get the concrete type without a type assertion.
//
// A ResponseFormat is sent as the request's JSON schema "format". Images must be inline Data;
// video media and grounding are rejected. Model options (temperature, max_tokens, top_p, stop)
// are set on the request's Options map.
package ollama
