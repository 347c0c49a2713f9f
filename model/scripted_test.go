package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitesmith/core"
)

func drain(t *testing.T, respCh <-chan Response, errCh <-chan error) ([]Response, error) {
	t.Helper()
	var responses []Response
	for {
		select {
		case resp, ok := <-respCh:
			if !ok {
				select {
				case err := <-errCh:
					return responses, err
				default:
					return responses, nil
				}
			}
			responses = append(responses, resp)
		case err := <-errCh:
			if err != nil {
				return responses, err
			}
		}
	}
}

func TestScriptedModelFinalText(t *testing.T) {
	m := NewScriptedModel("test", ScriptedTurn{Text: "All done."})

	respCh, errCh := m.Generate(context.Background(), Request{
		Messages: []core.Message{core.NewUserMessage("hi")},
	})
	responses, err := drain(t, respCh, errCh)
	require.NoError(t, err)
	require.Len(t, responses, 1)

	final := responses[len(responses)-1]
	assert.False(t, final.Partial)
	assert.Equal(t, "All done.", final.Text)
	assert.Equal(t, "stop", final.FinishReason)
	require.NotNil(t, final.Usage)
	assert.NotEmpty(t, final.Raw)
}

func TestScriptedModelStreaming(t *testing.T) {
	m := NewScriptedModel("test", ScriptedTurn{Text: "hey"})

	respCh, errCh := m.Generate(context.Background(), Request{
		Messages: []core.Message{core.NewUserMessage("hi")},
		Stream:   true,
	})
	responses, err := drain(t, respCh, errCh)
	require.NoError(t, err)
	require.Len(t, responses, 4) // 3 rune fragments + final

	var text string
	for _, r := range responses {
		text += r.Text
	}
	assert.Equal(t, "hey", text)
	assert.False(t, responses[len(responses)-1].Partial)
}

func TestScriptedModelRepeatsLastTurn(t *testing.T) {
	call := core.ToolCall{ID: "c1", Name: "read_file", Arguments: `{"path":"index.html"}`}
	m := NewScriptedModel("test", ScriptedTurn{ToolCalls: []core.ToolCall{call}})

	for i := 0; i < 3; i++ {
		respCh, errCh := m.Generate(context.Background(), Request{
			Messages: []core.Message{core.NewUserMessage("loop")},
		})
		responses, err := drain(t, respCh, errCh)
		require.NoError(t, err)
		final := responses[len(responses)-1]
		assert.Equal(t, "tool_calls", final.FinishReason)
		require.Len(t, final.ToolCalls, 1)
	}
	assert.Equal(t, 3, m.Calls())
}

func TestScriptedModelError(t *testing.T) {
	m := NewScriptedModel("test", ScriptedTurn{Err: assert.AnError})
	respCh, errCh := m.Generate(context.Background(), Request{})
	_, err := drain(t, respCh, errCh)
	assert.ErrorIs(t, err, assert.AnError)
}
