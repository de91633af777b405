// AngelaMos | 2026
// service_test.go

package aichat

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siliconforge/eda-backend/internal/core"
)

type stubGenerator struct {
	reply  string
	err    error
	prompt string
}

func (s *stubGenerator) Generate(
	_ context.Context,
	system, prompt string,
) (string, error) {
	s.prompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type stubMeter struct {
	err   error
	calls int
}

func (s *stubMeter) ConsumeAIUse(_ context.Context, userID string) error {
	s.calls++
	return s.err
}

func TestChatMetersBeforeGenerating(t *testing.T) {
	gen := &stubGenerator{reply: "use the pcbDesignTool"}
	meter := &stubMeter{}
	svc := NewService(gen, meter)

	resp, err := svc.Chat(context.Background(), "u1", ChatRequest{
		Message: "how do I route a 4-layer board?",
	})
	require.NoError(t, err)

	assert.Equal(t, "use the pcbDesignTool", resp.Reply)
	assert.Equal(t, 1, meter.calls)
}

func TestChatExhaustedCounterBlocksGeneration(t *testing.T) {
	gen := &stubGenerator{reply: "never returned"}
	meter := &stubMeter{err: core.ErrUsageExhausted}
	svc := NewService(gen, meter)

	_, err := svc.Chat(context.Background(), "u1", ChatRequest{
		Message: "hello",
	})
	require.ErrorIs(t, err, core.ErrUsageExhausted)
	assert.Empty(t, gen.prompt, "provider must not be called")
}

func TestChatRendersHistoryTranscript(t *testing.T) {
	gen := &stubGenerator{reply: "ok"}
	svc := NewService(gen, &stubMeter{})

	_, err := svc.Chat(context.Background(), "u1", ChatRequest{
		Message: "and timing closure?",
		History: []ChatMessage{
			{Role: "user", Content: "what is synthesis?"},
			{Role: "assistant", Content: "mapping RTL to gates."},
		},
	})
	require.NoError(t, err)

	lines := strings.Split(gen.prompt, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "user: what is synthesis?", lines[0])
	assert.Equal(t, "assistant: mapping RTL to gates.", lines[1])
	assert.Equal(t, "user: and timing closure?", lines[2])
}

func TestChatValidatesInput(t *testing.T) {
	svc := NewService(&stubGenerator{}, &stubMeter{})

	_, err := svc.Chat(context.Background(), "u1", ChatRequest{})
	require.Error(t, err)

	_, err = svc.Chat(context.Background(), "u1", ChatRequest{
		Message: "hi",
		History: []ChatMessage{{Role: "system", Content: "x"}},
	})
	require.Error(t, err, "unknown role rejected")
}
