package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/lampwick/pkg/chat"
	"github.com/go-go-golems/lampwick/pkg/search"
	"github.com/go-go-golems/lampwick/pkg/store"
)

func TestAssembleBareConversation(t *testing.T) {
	history := []store.Message{
		{Role: store.RoleUser, Content: "hi", Timestamp: "t1"},
		{Role: store.RoleAssistant, Content: "hello", Timestamp: "t2"},
	}
	out := chat.Assemble("", nil, history, "how are you?")
	require.Len(t, out, 3)
	assert.Equal(t, store.RoleUser, out[0].Role)
	assert.Equal(t, "hi", out[0].Content)
	assert.Equal(t, store.RoleAssistant, out[1].Role)
	assert.Equal(t, store.RoleUser, out[2].Role)
	assert.Equal(t, "how are you?", out[2].Content)
}

func TestAssembleSystemPromptFirst(t *testing.T) {
	out := chat.Assemble("be terse", nil, nil, "hi")
	require.Len(t, out, 2)
	assert.Equal(t, store.RoleSystem, out[0].Role)
	assert.Equal(t, "be terse", out[0].Content)
	assert.Equal(t, store.RoleUser, out[1].Role)
}

func TestAssembleStripsStraySystemEntries(t *testing.T) {
	history := []store.Message{
		{Role: store.RoleSystem, Content: "stale injected prompt"},
		{Role: store.RoleUser, Content: "hi"},
		{Role: store.RoleSystem, Content: "another stale one"},
		{Role: store.RoleAssistant, Content: "hello"},
	}
	out := chat.Assemble("fresh prompt", nil, history, "again")

	count := 0
	for i, m := range out {
		if m.Role == store.RoleSystem {
			count++
			assert.Equal(t, 0, i, "system entry must be first")
			assert.Equal(t, "fresh prompt", m.Content)
		}
	}
	assert.Equal(t, 1, count, "at most one system entry")
	require.Len(t, out, 4)
}

func TestAssembleSearchResultsBlock(t *testing.T) {
	results := []search.Result{{Title: "Go 1.24", URL: "https://go.dev", Snippet: "released"}}

	out := chat.Assemble("base prompt", results, nil, "latest go release")
	require.Len(t, out, 2)
	require.Equal(t, store.RoleSystem, out[0].Role)
	assert.Contains(t, out[0].Content, "base prompt")
	assert.Contains(t, out[0].Content, "Search Results:")
	assert.Contains(t, out[0].Content, "1. Go 1.24")
	assert.Contains(t, out[0].Content, "Cite sources")

	// search results alone still synthesize a system entry
	out = chat.Assemble("", results, nil, "latest go release")
	require.Equal(t, store.RoleSystem, out[0].Role)
	assert.Contains(t, out[0].Content, "Search Results:")
}
