package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"sitesmith/core"
)

// ScriptedTurn is one canned model exchange used by ScriptedModel.
type ScriptedTurn struct {
	Text      string
	ToolCalls []core.ToolCall
	Err       error
}

// ScriptedModel is a lightweight in-memory Model useful for tests & examples.
// Each Generate call consumes the next scripted turn; when the script is
// exhausted the last turn repeats, which makes it easy to simulate a model
// that keeps requesting tools forever.
type ScriptedModel struct {
	info  Info
	mu    sync.Mutex
	turns []ScriptedTurn
	next  int
}

// NewScriptedModel constructs a ScriptedModel with basic tool support enabled.
func NewScriptedModel(name string, turns ...ScriptedTurn) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: name, Provider: "scripted", SupportsTools: true},
		turns: turns,
	}
}

// Enqueue appends further scripted turns.
func (m *ScriptedModel) Enqueue(turns ...ScriptedTurn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
}

// Calls returns how many Generate calls have been consumed.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next
}

func (m *ScriptedModel) take() (ScriptedTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.turns) == 0 {
		return ScriptedTurn{}, fmt.Errorf("scripted model has no turns")
	}
	idx := m.next
	if idx >= len(m.turns) {
		idx = len(m.turns) - 1
	}
	m.next++
	return m.turns[idx], nil
}

// Generate implements Model; emits optional streaming rune chunks then the
// final response with synthetic usage and a raw record of the exchange.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		turn, err := m.take()
		if err != nil {
			errCh <- err
			return
		}
		if turn.Err != nil {
			errCh <- turn.Err
			return
		}

		if req.Stream {
			for _, r := range turn.Text {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}

		raw, _ := json.Marshal(map[string]any{
			"messages":   len(req.Messages),
			"text":       turn.Text,
			"tool_calls": turn.ToolCalls,
		})

		final := Response{
			Partial:      false,
			ToolCalls:    turn.ToolCalls,
			FinishReason: "stop",
			Usage: &TokenUsage{
				InputTokens:  10 + len(req.Messages),
				OutputTokens: len(turn.Text) + len(turn.ToolCalls),
			},
			Raw: core.RawTurn(raw),
		}
		if !req.Stream {
			final.Text = turn.Text
		}
		if len(turn.ToolCalls) > 0 {
			final.FinishReason = "tool_calls"
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- final:
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }
