// Package openai adapts safeclick executions to the OpenAI Chat Completions API
// (github.com/openai/openai-go/v3), or any endpoint compatible with it.
//
// A response_format schema is sent as a json_schema response format. Image media is inlined
// as a data URL; video media and search grounding are rejected with adapter sentinel errors.
package openai
