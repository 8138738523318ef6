package rag

import (
	"fmt"
	"strings"

	"github.com/farmrag/backend/internal/vector/milvus"
)

// Turn is one message of the client-held conversation. The server keeps no
// session state; the full history arrives with every request and only a
// bounded suffix of it is rendered into the prompt.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const defaultHistoryWindow = 6

const instructions = `Instructions:
- Answer ONLY from the context above. If the context does not cover the question, say so plainly and suggest the farmer contact their local agriculture office.
- Keep the tone warm and practical. Avoid jargon; explain any scheme terms in simple words.
- When the context names amounts, deadlines or eligibility rules, repeat them exactly as written.`

// Assembler builds the generation prompt from retrieved chunks, a bounded
// history window and the current question. Assembly is deterministic string
// concatenation; prompt size is bounded by construction (topK retrieval
// limit plus the history window), not by post-hoc trimming.
type Assembler struct {
	historyWindow int
}

func NewAssembler(historyWindow int) *Assembler {
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	return &Assembler{historyWindow: historyWindow}
}

func (a *Assembler) Assemble(retrieved []milvus.Result, history []Turn, message string) string {
	var b strings.Builder

	b.WriteString("Context:\n")
	if len(retrieved) == 0 {
		b.WriteString("(no relevant documents found)\n")
	}
	for i, r := range retrieved {
		b.WriteString(fmt.Sprintf("[%d] %s\n", i+1, r.Text))
	}

	window := a.window(history)
	if len(window) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, turn := range window {
			b.WriteString(fmt.Sprintf("%s: %s\n", roleName(turn.Role), turn.Content))
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(message)
	b.WriteString("\n\n")
	b.WriteString(instructions)

	return b.String()
}

func (a *Assembler) window(history []Turn) []Turn {
	if len(history) <= a.historyWindow {
		return history
	}
	return history[len(history)-a.historyWindow:]
}

func roleName(role string) string {
	if strings.EqualFold(role, "assistant") {
		return "Assistant"
	}
	return "User"
}
