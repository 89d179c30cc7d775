package ai

import (
	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestToGeminiContents(t *testing.T) {
	system, history, last := toGeminiContents([]Message{
		{Role: RoleSystem, Content: "You are the cook."},
		{Role: RoleUser, Content: "Who ate the pie?"},
		{Role: RoleAssistant, Content: "Not me."},
		{Role: RoleSystem, Content: "Answer in JSON."},
		{Role: RoleUser, Content: "Are you sure?"},
	})
	require.NotNil(t, system)
	require.Equal(t, []genai.Part{genai.Text("You are the cook."), genai.Text("Answer in JSON.")}, system.Parts)
	require.Len(t, history, 2)
	require.Equal(t, "user", history[0].Role)
	require.Equal(t, "model", history[1].Role)
	require.NotNil(t, last)
	require.Equal(t, []genai.Part{genai.Text("Are you sure?")}, last.Parts)
}

func TestToGeminiContents_noUserMessage(t *testing.T) {
	system, history, last := toGeminiContents([]Message{{Role: RoleSystem, Content: "Only instructions."}})
	require.NotNil(t, system)
	require.Empty(t, history)
	require.Nil(t, last)
}
