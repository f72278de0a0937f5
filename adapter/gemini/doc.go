// Package gemini adapts safeclick executions to the Google Gemini API (google.golang.org/genai).
//
// It is the only provider that accepts inline video and search grounding: media parts become
// inline data parts, Grounding adds the GoogleSearch tool, and grounding chunks come back as
// safeclick.CitationPart values. A response_format schema is sent as ResponseSchema with the
// JSON response MIME type. The model comes from model_config "model", else WithModel, else
// DefaultModel.
package gemini
