package chat

import (
	"strings"

	"github.com/zhouzirui/agent-chat/backend/internal/model/chat"
)

// DefaultSystemPrompt is the instruction prepended to every prompt unless
// configured otherwise.
const DefaultSystemPrompt = "You are a helpful, friendly, and knowledgeable AI assistant. " +
	"You provide clear, concise, and accurate responses to user questions."

// Assembler builds the context window handed to the agent.
type Assembler struct {
	systemPrompt string
	window       TruncationPolicy
}

// NewAssembler returns an assembler that prepends systemPrompt (when not
// blank) and bounds the conversation part of the prompt with window.
func NewAssembler(systemPrompt string, window TruncationPolicy) *Assembler {
	return &Assembler{
		systemPrompt: strings.TrimSpace(systemPrompt),
		window:       window,
	}
}

// BuildPrompt returns the system instruction, the windowed history and the
// new user message, oldest first. history is not modified.
func (a *Assembler) BuildPrompt(history []chat.Turn, newUserText string) []chat.PromptMessage {
	candidate := make([]chat.Turn, 0, len(history)+1)
	candidate = append(candidate, history...)
	candidate = append(candidate, chat.Turn{Role: chat.RoleUser, Text: newUserText})

	windowed := retain(a.window, candidate, 1)

	prompt := make([]chat.PromptMessage, 0, len(windowed)+1)
	if a.systemPrompt != "" {
		prompt = append(prompt, chat.PromptMessage{Role: chat.RoleSystem, Text: a.systemPrompt})
	}
	for _, turn := range windowed {
		prompt = append(prompt, chat.PromptMessage{Role: turn.Role, Text: turn.Text})
	}
	return prompt
}
