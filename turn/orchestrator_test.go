package turn

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitesmith/core"
	"sitesmith/model"
)

// stubExecutor answers every tool call from a fixed function.
type stubExecutor struct {
	mu    sync.Mutex
	calls []core.ToolCall
	fn    func(call core.ToolCall) core.ToolResult
}

func newStubExecutor(fn func(call core.ToolCall) core.ToolResult) *stubExecutor {
	if fn == nil {
		fn = func(call core.ToolCall) core.ToolResult {
			return core.ToolResult{Summary: "ok: " + call.Name, Success: true}
		}
	}
	return &stubExecutor{fn: fn}
}

func (e *stubExecutor) Execute(_ context.Context, call core.ToolCall) core.ToolResult {
	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.mu.Unlock()
	return e.fn(call)
}

func (e *stubExecutor) ExecuteBatch(ctx context.Context, calls []core.ToolCall, onDone func(core.ToolCall, core.ToolResult)) []core.ToolResult {
	results := make([]core.ToolResult, len(calls))
	for i, call := range calls {
		results[i] = e.Execute(ctx, call)
		if onDone != nil {
			onDone(call, results[i])
		}
	}
	return results
}

func (e *stubExecutor) Definitions() []model.ToolDefinition {
	return []model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:       "create_file",
			Parameters: map[string]any{"type": "object"},
		},
	}}
}

func (e *stubExecutor) executed() []core.ToolCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.ToolCall(nil), e.calls...)
}

func toolCall(t *testing.T, name string, args map[string]any) core.ToolCall {
	t.Helper()
	payload, err := json.Marshal(args)
	require.NoError(t, err)
	return core.ToolCall{ID: core.NewID(), Name: name, Arguments: string(payload)}
}

// collector records progress events in emission order.
type collector struct {
	mu     sync.Mutex
	events []core.Progress
}

func (c *collector) sink() core.Sink {
	return func(ev core.Progress) {
		c.mu.Lock()
		c.events = append(c.events, ev)
		c.mu.Unlock()
	}
}

func (c *collector) all() []core.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Progress(nil), c.events...)
}

func TestRunDirectAnswer(t *testing.T) {
	m := model.NewScriptedModel("test", model.ScriptedTurn{Text: "Hello there."})
	var streamed strings.Builder
	events := &collector{}

	result, err := New().Run(context.Background(), Request{
		Instruction: "say hello",
		Model:       m,
		Executor:    newStubExecutor(nil),
		Sink:        events.sink(),
		OnText:      func(s string) { streamed.WriteString(s) },
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello there.", result.FinalText)
	assert.Equal(t, "Hello there.", streamed.String())
	assert.Equal(t, 1, result.ModelCalls)
	assert.Positive(t, result.InputTokens)
	assert.Positive(t, result.FirstToken)

	all := events.all()
	require.NotEmpty(t, all)
	assert.IsType(t, core.Thinking{}, all[0])
	assert.IsType(t, core.FinalText{}, all[len(all)-1])
}

func TestRunToolLoop(t *testing.T) {
	call := toolCall(t, "create_file", map[string]any{"path": "index.html"})
	m := model.NewScriptedModel("test",
		model.ScriptedTurn{Text: "Creating the page.", ToolCalls: []core.ToolCall{call}},
		model.ScriptedTurn{Text: "Done, the page is ready."},
	)
	exec := newStubExecutor(nil)
	events := &collector{}

	result, err := New().Run(context.Background(), Request{
		Instruction: "build a page",
		Model:       m,
		Executor:    exec,
		Sink:        events.sink(),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.ModelCalls)
	assert.Contains(t, result.FinalText, "the page is ready")
	require.Len(t, exec.executed(), 1)
	assert.Equal(t, "create_file", exec.executed()[0].Name)

	var sawStart, sawDone bool
	for _, ev := range events.all() {
		switch e := ev.(type) {
		case core.ToolStart:
			sawStart = true
			assert.Equal(t, "create_file", e.Tool)
		case core.ToolDone:
			sawDone = true
			assert.True(t, e.Success)
		}
	}
	assert.True(t, sawStart)
	assert.True(t, sawDone)
}

func TestRunToolFailureIsNotFatal(t *testing.T) {
	call := toolCall(t, "create_file", map[string]any{"path": "x"})
	m := model.NewScriptedModel("test",
		model.ScriptedTurn{ToolCalls: []core.ToolCall{call}},
		model.ScriptedTurn{Text: "I could not write the file, sorry."},
	)
	exec := newStubExecutor(func(core.ToolCall) core.ToolResult {
		return core.FailedResult(errors.New("disk full"))
	})

	result, err := New().Run(context.Background(), Request{
		Instruction: "build",
		Model:       m,
		Executor:    exec,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.ModelCalls)
	assert.Contains(t, result.FinalText, "could not write")
}

func TestRunIterationLimit(t *testing.T) {
	call := toolCall(t, "create_file", map[string]any{"path": "x"})
	// A single tool-requesting turn repeats forever once the script runs out.
	m := model.NewScriptedModel("test", model.ScriptedTurn{ToolCalls: []core.ToolCall{call}})
	events := &collector{}

	result, err := New(func(o *Options) { o.MaxToolIterations = 3 }).Run(context.Background(), Request{
		Instruction: "build",
		Model:       m,
		Executor:    newStubExecutor(nil),
		Sink:        events.sink(),
	})

	require.ErrorIs(t, err, ErrIterationLimit)
	assert.Equal(t, 3, result.ModelCalls)
	// The bound surfaces as readable text in the assistant message, like any
	// other stream failure.
	assert.Contains(t, result.FinalText, "[Error: exceeded max tool iterations: 3]")

	var sawError bool
	for _, ev := range events.all() {
		if _, ok := ev.(core.ErrorEvent); ok {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestRunStreamErrorAnnotatesInline(t *testing.T) {
	m := model.NewScriptedModel("test", model.ScriptedTurn{Err: errors.New("connection reset")})
	var streamed strings.Builder

	result, err := New().Run(context.Background(), Request{
		Instruction: "build",
		Model:       m,
		Executor:    newStubExecutor(nil),
		OnText:      func(s string) { streamed.WriteString(s) },
	})

	require.NoError(t, err)
	assert.Contains(t, result.FinalText, "[Error: connection reset]")
	assert.Contains(t, streamed.String(), "[Error: connection reset]")
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	call := toolCall(t, "create_file", map[string]any{"path": "x"})
	m := model.NewScriptedModel("test", model.ScriptedTurn{ToolCalls: []core.ToolCall{call}})

	// Cancel from inside the first tool execution; the loop must stop at the
	// next suspension point without another model call.
	exec := newStubExecutor(func(core.ToolCall) core.ToolResult {
		cancel()
		return core.ToolResult{Summary: "done", Success: true}
	})
	events := &collector{}

	_, err := New().Run(ctx, Request{
		Instruction: "build",
		Model:       m,
		Executor:    exec,
		Sink:        events.sink(),
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, m.Calls())

	for _, ev := range events.all() {
		_, isFinal := ev.(core.FinalText)
		assert.False(t, isFinal, "no final text after cancellation")
	}
}

func TestRunAggregatesToolResultTokens(t *testing.T) {
	call := toolCall(t, "create_file", map[string]any{"path": "x"})
	m := model.NewScriptedModel("test",
		model.ScriptedTurn{ToolCalls: []core.ToolCall{call}},
		model.ScriptedTurn{Text: "done"},
	)
	exec := newStubExecutor(func(core.ToolCall) core.ToolResult {
		return core.ToolResult{Summary: "delegated", Success: true, InputTokens: 100, OutputTokens: 50}
	})

	result, err := New().Run(context.Background(), Request{
		Instruction: "build",
		Model:       m,
		Executor:    exec,
	})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.InputTokens, 100)
	assert.GreaterOrEqual(t, result.OutputTokens, 50)
}

func TestRunExtendsRawHistory(t *testing.T) {
	m := model.NewScriptedModel("test", model.ScriptedTurn{Text: "hi"})
	prior := []core.RawTurn{core.RawTurn(`{"prior":true}`)}

	result, err := New().Run(context.Background(), Request{
		Instruction: "hello",
		RawHistory:  prior,
		Model:       m,
		Executor:    newStubExecutor(nil),
	})

	require.NoError(t, err)
	require.Len(t, result.RawHistory, 2)
	assert.JSONEq(t, `{"prior":true}`, string(result.RawHistory[0]))
}
