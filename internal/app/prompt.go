package app

import (
	"strings"

	"paperchat/internal/ai"
	"paperchat/internal/model"
)

const answerInstructions = "You are a helpful assistant answering questions about an uploaded document. " +
	"Use the following pieces of context, and the previous conversation if relevant, to answer the " +
	"user's question in markdown format. Answer only from the given context; if the context does not " +
	"contain the answer, say that you don't know. Do not make up facts."

// BuildPrompt deterministically renders the completion request: the fixed
// instruction block, the prior turns oldest first with their roles, and a
// final user message holding the retrieved excerpts (similarity-ranked,
// blank-line separated) plus the current question. An empty excerpt list is
// legal; the context block is simply empty.
func BuildPrompt(history []model.Message, excerpts []string, question string) []ai.ChatMessage {
	messages := make([]ai.ChatMessage, 0, len(history)+2)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: answerInstructions})

	for _, m := range history {
		messages = append(messages, ai.ChatMessage{Role: m.Role(), Content: m.Text})
	}

	var b strings.Builder
	b.WriteString("CONTEXT:\n")
	b.WriteString(strings.Join(excerpts, "\n\n"))
	b.WriteString("\n\nQUESTION: ")
	b.WriteString(question)

	messages = append(messages, ai.ChatMessage{Role: "user", Content: b.String()})
	return messages
}

// chronological reverses a newest-first window in place-safe fashion.
func chronological(newestFirst []model.Message) []model.Message {
	out := make([]model.Message, len(newestFirst))
	for i, m := range newestFirst {
		out[len(newestFirst)-1-i] = m
	}
	return out
}
