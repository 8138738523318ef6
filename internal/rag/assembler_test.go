package rag

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/farmrag/backend/internal/vector/milvus"
)

func TestAssemble_RankedContextOrder(t *testing.T) {
	assembler := NewAssembler(6)

	retrieved := []milvus.Result{
		{Text: "PM-KISAN pays 6000 rupees per year."},
		{Text: "Installments arrive every four months."},
		{Text: "Registration happens at the local CSC."},
	}

	prompt := assembler.Assemble(retrieved, nil, "How much does PM-KISAN pay?")

	first := strings.Index(prompt, "[1] PM-KISAN pays")
	second := strings.Index(prompt, "[2] Installments arrive")
	third := strings.Index(prompt, "[3] Registration happens")
	require.Greater(t, first, -1)
	require.Greater(t, second, first)
	require.Greater(t, third, second)
}

func TestAssemble_EmptyRetrievalPlaceholder(t *testing.T) {
	assembler := NewAssembler(6)

	prompt := assembler.Assemble(nil, nil, "anything?")

	require.Contains(t, prompt, "(no relevant documents found)")
	require.Contains(t, prompt, "Question: anything?")
}

func TestAssemble_HistoryWindowKeepsLastTurns(t *testing.T) {
	assembler := NewAssembler(6)

	history := make([]Turn, 10)
	for i := range history {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history[i] = Turn{Role: role, Content: fmt.Sprintf("turn %d", i)}
	}

	prompt := assembler.Assemble(nil, history, "next question")

	for i := 0; i < 4; i++ {
		require.NotContains(t, prompt, fmt.Sprintf("turn %d\n", i))
	}
	for i := 4; i < 10; i++ {
		require.Contains(t, prompt, fmt.Sprintf("turn %d", i))
	}
}

func TestAssemble_ShortHistoryKeptWhole(t *testing.T) {
	assembler := NewAssembler(6)

	history := []Turn{
		{Role: "user", Content: "What is drip irrigation?"},
		{Role: "assistant", Content: "A slow watering method."},
	}

	prompt := assembler.Assemble(nil, history, "Is it subsidised?")

	require.Contains(t, prompt, "User: What is drip irrigation?")
	require.Contains(t, prompt, "Assistant: A slow watering method.")
}

func TestAssemble_NoHistorySectionWhenEmpty(t *testing.T) {
	assembler := NewAssembler(6)

	prompt := assembler.Assemble(nil, nil, "hello")

	require.NotContains(t, prompt, "Conversation so far:")
}

func TestAssemble_SectionOrder(t *testing.T) {
	assembler := NewAssembler(6)

	retrieved := []milvus.Result{{Text: "some context"}}
	history := []Turn{{Role: "user", Content: "earlier question"}}

	prompt := assembler.Assemble(retrieved, history, "current question")

	ctx := strings.Index(prompt, "Context:")
	conv := strings.Index(prompt, "Conversation so far:")
	question := strings.Index(prompt, "Question: current question")
	instr := strings.Index(prompt, "Instructions:")

	require.Equal(t, 0, ctx)
	require.Greater(t, conv, ctx)
	require.Greater(t, question, conv)
	require.Greater(t, instr, question)
}

func TestNewAssembler_DefaultWindow(t *testing.T) {
	assembler := NewAssembler(0)
	require.Equal(t, defaultHistoryWindow, assembler.historyWindow)
}
