package safeclick_test

import (
	"context"
	"fmt"

	"github.com/safeclick/safeclick"
)

func ExampleChatPromptTemplate_FormatStruct() {
	tpl, err := safeclick.NewChatPromptTemplate([]safeclick.MessageTemplate{
		{Role: safeclick.RoleSystem, Content: "You are a threat analyst. Inspect this {{ .kind }}."},
		{Role: safeclick.RoleUser, Content: "{{ truncate_chars .content 40 }}"},
	}, safeclick.WithSections([]string{"VERDICT", "CONFIDENCE"}))
	if err != nil {
		panic(err)
	}
	type payload struct {
		Kind    string `prompt:"kind"`
		Content string `prompt:"content"`
	}
	exec, err := tpl.FormatStruct(context.Background(), payload{Kind: "url", Content: "http://g00gle.com/login-verify"})
	if err != nil {
		panic(err)
	}
	for _, m := range exec.Messages {
		fmt.Printf("%s: %s\n", m.Role, m.Content[0].(safeclick.TextPart).Text)
	}
	fmt.Println(exec.Sections)
	// Output:
	// system: You are a threat analyst. Inspect this url.
	// user: http://g00gle.com/login-verify
	// [VERDICT CONFIDENCE]
}
