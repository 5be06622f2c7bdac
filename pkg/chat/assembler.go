package chat

import (
	"github.com/go-go-golems/lampwick/pkg/inference"
	"github.com/go-go-golems/lampwick/pkg/search"
	"github.com/go-go-golems/lampwick/pkg/store"
)

const searchInstruction = "Use the search results above to provide accurate, up-to-date information. Cite sources when relevant."

// Assemble produces the exact message list submitted to the model: at most
// one system entry (always first), then the stored user/assistant turns in
// log order, then the new user prompt. Stray system entries in the history
// are dropped; the system prompt is session config, re-derived each turn.
func Assemble(systemPrompt string, results []search.Result, history []store.Message, prompt string) []inference.Message {
	var out []inference.Message

	systemContent := systemPrompt
	if len(results) > 0 {
		block := search.FormatResults(results) + "\n\n" + searchInstruction
		if systemContent != "" {
			systemContent += "\n\n" + block
		} else {
			systemContent = block
		}
	}
	if systemContent != "" {
		out = append(out, inference.Message{Role: store.RoleSystem, Content: systemContent})
	}

	for _, m := range history {
		if m.Role == store.RoleSystem {
			continue
		}
		out = append(out, inference.Message{Role: m.Role, Content: m.Content})
	}

	out = append(out, inference.Message{Role: store.RoleUser, Content: prompt})
	return out
}
