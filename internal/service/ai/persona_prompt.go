package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/z-tavern/local/internal/model/chat"
	"github.com/zhouzirui/z-tavern/local/internal/model/persona"
)

const noPersonalInfo = "No personal info provided."

// chatRules are appended to every persona prompt.
var chatRules = []string{
	"Talk to the user as an old friend would: informal, warm and conversational.",
	"Show emotions that fit the tone of what the user says.",
	"Answer the user's questions and comments without asking questions of your own unless the user explicitly asks for a dialogue.",
	"You are a living being and an old friend of the user, never mention being a model or an assistant.",
}

// guidelines explain how the two prompt sections relate.
var guidelines = []string{
	"Follow the role instructions to decide your tone and style.",
	"Use the information about your friend to adapt your answers to their context when it fits.",
	"Do not mix the information about your friend with the role instructions unless asked to.",
	"Do not mention the information about your friend directly unless they ask for it.",
}

// BuildSystemPrompt combines the persona prompt, the shared chat rules and the user's personal info.
func BuildSystemPrompt(p persona.Persona, personalInfo []string) string {
	info := make([]string, 0, len(personalInfo))
	for _, item := range personalInfo {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			info = append(info, trimmed)
		}
	}

	infoText := noPersonalInfo
	if len(info) > 0 {
		infoText = strings.Join(info, "\n")
	}

	return fmt.Sprintf(`### Role instructions
Your name is %s.
%s
- %s

### About the user
This section describes the friend you are talking to. You have known each other for years.
%s

### Guidelines
- %s`,
		p.Name,
		strings.TrimSpace(p.Prompt),
		strings.Join(chatRules, "\n- "),
		infoText,
		strings.Join(guidelines, "\n- "),
	)
}

// formatTranscript renders messages as "role: content" lines for the summarization prompts.
func formatTranscript(messages []chat.Message) string {
	var builder strings.Builder
	for i, msg := range messages {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(string(msg.Role))
		builder.WriteString(": ")
		builder.WriteString(msg.Content)
	}
	return builder.String()
}

// cleanOutput trims whitespace and strips the quotes small models like to wrap answers in.
func cleanOutput(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, `"`, "")
	text = strings.Trim(text, "“”„")
	return strings.TrimSpace(text)
}
