package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperchat/internal/model"
)

func TestBuildPromptShape(t *testing.T) {
	history := []model.Message{
		{Text: "What is the paper about?", IsUserMessage: true},
		{Text: "It studies migratory birds.", IsUserMessage: false},
	}
	excerpts := []string{"first excerpt", "second excerpt"}

	prompt := BuildPrompt(history, excerpts, "Where do they winter?")
	require.Len(t, prompt, 4)

	assert.Equal(t, "system", prompt[0].Role)
	assert.Equal(t, "user", prompt[1].Role)
	assert.Equal(t, "What is the paper about?", prompt[1].Content)
	assert.Equal(t, "assistant", prompt[2].Role)

	final := prompt[3]
	assert.Equal(t, "user", final.Role)
	assert.Equal(t, "CONTEXT:\nfirst excerpt\n\nsecond excerpt\n\nQUESTION: Where do they winter?", final.Content)
}

func TestBuildPromptIsDeterministic(t *testing.T) {
	history := []model.Message{{Text: "hello", IsUserMessage: true}}
	excerpts := []string{"an excerpt"}

	first := BuildPrompt(history, excerpts, "a question")
	second := BuildPrompt(history, excerpts, "a question")
	assert.Equal(t, first, second)
}

func TestBuildPromptEmptyExcerpts(t *testing.T) {
	prompt := BuildPrompt(nil, nil, "anything indexed?")
	require.Len(t, prompt, 2)
	assert.Equal(t, "CONTEXT:\n\n\nQUESTION: anything indexed?", prompt[1].Content)
}

func TestChronologicalReversesWindow(t *testing.T) {
	newestFirst := []model.Message{{ID: "3"}, {ID: "2"}, {ID: "1"}}
	ordered := chronological(newestFirst)

	require.Len(t, ordered, 3)
	assert.Equal(t, "1", ordered[0].ID)
	assert.Equal(t, "3", ordered[2].ID)
	// Input is left untouched.
	assert.Equal(t, "3", newestFirst[0].ID)
}
