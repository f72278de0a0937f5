// Package safeclick is the prompt core of the SafeClick threat-intelligence adapter.
//
// A ChatPromptTemplate renders system and user messages from a tagged payload struct
// (fields with `prompt:"name"`), validates required variables, and returns a
// PromptExecution that also carries the expected response shape: a JSON schema for
// structured analysis, an ordered list of bracketed section tags for free-text reports,
// and a grounding flag for web-search backed answers. Provider adapters translate a
// PromptExecution into SDK requests; see the adapter package.
package safeclick
