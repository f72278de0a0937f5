package safeclick

import (
	"strings"
	"testing"
)

func BenchmarkFormatStruct(b *testing.B) {
	tpl, err := NewChatPromptTemplate([]MessageTemplate{
		{Role: RoleSystem, Content: `You analyze {{ .kind }} content.{{ if eq .kind "url" }} Check for homographs.{{ end }}`},
		{Role: RoleUser, Content: "{{ truncate_tokens .content .budget }}"},
	}, WithPartialVariables(map[string]any{"budget": 8000}))
	if err != nil {
		b.Fatal(err)
	}
	payload := &scanPayload{Kind: "email", Content: strings.Repeat("Your account has been suspended. ", 200)}
	ctx := b.Context()
	for b.Loop() {
		_, _ = tpl.FormatStruct(ctx, payload)
	}
}

func BenchmarkGetPayloadFields(b *testing.B) {
	payload := scanPayload{Kind: "sms", Content: "Toll unpaid, pay at hxxp://e-zpass.top"}
	for b.Loop() {
		_, _, _ = getPayloadFields(payload)
	}
}

func BenchmarkTruncateTokens(b *testing.B) {
	fn := makeTruncateTokens(&CharFallbackCounter{})
	text := strings.Repeat("phishing ", 10000)
	for b.Loop() {
		_, _ = fn(text, 8000)
	}
}
