// Package anthropic adapts prompt executions to the Anthropic Messages API.
// Translate returns *anthropic.MessageNewParams; ParseResponse expects *anthropic.Message.
// Use TranslateTyped to get the concrete type without a type assertion.
//
// The Messages API has no native JSON schema mode, so a ResponseFormat is rendered as an
// instruction appended to the system prompt. Only base64 image media is accepted; video
// parts fail with adapter.ErrUnsupportedContentType and grounded executions fail with
// adapter.ErrGroundingNotSupported.
package anthropic
