// Package turn implements the orchestrator: the bounded model-call loop at
// the heart of a run. Each iteration sends the working history to the model,
// streams text deltas outward, dispatches any requested tool calls, folds the
// results back into the history, and repeats until the model answers without
// tools, the iteration bound trips, or the context is canceled.
package turn

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"sitesmith/core"
	"sitesmith/logging"
	"sitesmith/model"
	"sitesmith/tool"
)

// ErrIterationLimit reports a run terminated because the model kept requesting
// tools past the configured bound.
var ErrIterationLimit = errors.New("turn: tool iteration limit exceeded")

// Options configures an Orchestrator.
type Options struct {
	// MaxToolIterations bounds the model-call loop. 0 means unlimited.
	MaxToolIterations int

	// Logger receives structured loop records.
	Logger logging.Logger
}

// Request carries everything one run needs. History and RawHistory are the
// prior conversation state; the run never mutates them, it works on copies and
// returns the extended raw sequence in the result.
type Request struct {
	// Instruction is the user input starting this run. Appended to the
	// working history as a user message when non-empty.
	Instruction string

	// SystemPrompt is sent as the system message of every model call.
	SystemPrompt string

	// History is the model-visible prior conversation.
	History []core.Message

	// RawHistory is the provider-shaped raw record of prior exchanges,
	// forwarded to the model adapter for cache-prefix reuse.
	RawHistory []core.RawTurn

	// CacheKey names the active provider-side cache prefix, if any.
	CacheKey string

	// Model generates completions.
	Model model.Model

	// Executor dispatches requested tool calls.
	Executor tool.Executor

	// Sink observes progress events. May be nil.
	Sink core.Sink

	// OnText receives streamed text fragments in order. May be nil.
	OnText func(text string)
}

// Orchestrator runs the turn loop. Safe for concurrent use; each Run carries
// its own state.
type Orchestrator struct {
	opts Options
}

// New creates an Orchestrator.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MaxToolIterations: 25,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Orchestrator{opts: opts}
}

// Run executes one turn to completion. The returned result is non-nil even on
// error so partial progress (text streamed so far, tokens spent) is never
// lost. Cancellation is honored between model calls, between stream elements
// and between tool dispatches; after cancellation no further events are
// emitted.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*core.TurnResult, error) {
	if req.Model == nil {
		return &core.TurnResult{}, errors.New("turn: model is required")
	}
	if req.Executor == nil {
		return &core.TurnResult{}, errors.New("turn: executor is required")
	}

	start := time.Now()
	result := &core.TurnResult{
		RawHistory: append([]core.RawTurn(nil), req.RawHistory...),
	}
	finish := func() *core.TurnResult {
		result.Elapsed = time.Since(start)
		return result
	}

	limiter := core.NewCallLimiter(o.opts.MaxToolIterations)
	info := req.Model.Info()
	messages := append([]core.Message(nil), req.History...)
	if req.Instruction != "" {
		messages = append(messages, core.NewUserMessage(req.Instruction))
	}
	defs := req.Executor.Definitions()

	req.Sink.Emit(core.Thinking{})

	// text accumulates the whole run's streamed output; iterText only the
	// current iteration's, for the assistant message that precedes its tool
	// results in the working history.
	var text, iterText strings.Builder
	emitText := func(fragment string) {
		if fragment == "" {
			return
		}
		if result.FirstToken == 0 {
			result.FirstToken = time.Since(start)
		}
		text.WriteString(fragment)
		iterText.WriteString(fragment)
		if req.OnText != nil {
			req.OnText(fragment)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			result.FinalText = text.String()
			return finish(), err
		}
		iteration, err := limiter.Take()
		if err != nil {
			// The bound surfaces the same way stream failures do: as readable
			// text inside the assistant message.
			o.opts.Logger.Warn("turn.iteration_limit", "max", o.opts.MaxToolIterations)
			emitText("\n[Error: " + err.Error() + "]")
			req.Sink.Emit(core.ErrorEvent{Message: err.Error()})
			result.FinalText = text.String()
			return finish(), ErrIterationLimit
		}

		iterText.Reset()
		callStart := time.Now()
		respCh, errCh := req.Model.Generate(ctx, model.Request{
			System:   req.SystemPrompt,
			Messages: messages,
			Tools:    defs,
			Raw:      result.RawHistory,
			CacheKey: req.CacheKey,
			Stream:   true,
		})
		result.ModelCalls = iteration

		final, streamErr, canceled := o.drain(ctx, respCh, errCh, emitText)
		if canceled {
			result.FinalText = text.String()
			return finish(), ctx.Err()
		}
		if streamErr != nil && ctx.Err() != nil {
			// Cancellation can surface through the stream's error channel.
			result.FinalText = text.String()
			return finish(), ctx.Err()
		}
		if streamErr != nil {
			// Surface stream failures inline and end the run with whatever
			// text already arrived.
			logging.ModelCall(o.opts.Logger, info.Provider, info.Name, 0, 0, time.Since(callStart), streamErr)
			emitText("\n[Error: " + streamErr.Error() + "]")
			req.Sink.Emit(core.ErrorEvent{Message: streamErr.Error()})
			result.FinalText = text.String()
			req.Sink.Emit(core.FinalText{Text: result.FinalText})
			return finish(), nil
		}

		var inTokens, outTokens int
		if final.Usage != nil {
			inTokens, outTokens = final.Usage.InputTokens, final.Usage.OutputTokens
			result.InputTokens += inTokens
			result.OutputTokens += outTokens
			req.Sink.Emit(core.APIResponse{
				InputTokens:  inTokens,
				OutputTokens: outTokens,
			})
		}
		if len(final.Raw) > 0 {
			result.RawHistory = append(result.RawHistory, final.Raw)
		}
		logging.ModelCall(o.opts.Logger, info.Provider, info.Name, inTokens, outTokens, time.Since(callStart), nil)

		if len(final.ToolCalls) == 0 {
			result.FinalText = text.String()
			req.Sink.Emit(core.FinalText{Text: result.FinalText})
			return finish(), nil
		}

		if err := ctx.Err(); err != nil {
			result.FinalText = text.String()
			return finish(), err
		}

		for _, call := range final.ToolCalls {
			req.Sink.Emit(core.ToolStart{Tool: call.Name, Args: decodedArgs(call.Arguments)})
		}
		results := req.Executor.ExecuteBatch(ctx, final.ToolCalls, func(call core.ToolCall, r core.ToolResult) {
			req.Sink.Emit(core.ToolDone{Tool: call.Name, Summary: r.Summary, Success: r.Success})
		})

		assistant := core.NewAssistantMessage(iterText.String())
		assistant.ToolCalls = final.ToolCalls
		messages = append(messages, assistant)
		for i, call := range final.ToolCalls {
			r := results[i]
			// Delegated runs report their own usage through the result.
			result.InputTokens += r.InputTokens
			result.OutputTokens += r.OutputTokens
			messages = append(messages, core.NewToolMessage(call.ID, call.Name, r.Summary))
		}
	}
}

// drain consumes one generation stream. It returns the final response, a
// stream error if one arrived, and whether the context was canceled while
// draining.
func (o *Orchestrator) drain(
	ctx context.Context,
	respCh <-chan model.Response,
	errCh <-chan error,
	emitText func(string),
) (final model.Response, streamErr error, canceled bool) {
	for {
		select {
		case <-ctx.Done():
			return model.Response{}, nil, true
		case err, ok := <-errCh:
			if ok && err != nil {
				return model.Response{}, err, false
			}
			// The error channel closed without an error; keep draining
			// responses until their channel closes too.
			errCh = nil
		case resp, ok := <-respCh:
			if !ok {
				// The response channel can close while an error is still
				// buffered; check before treating the stream as clean.
				if errCh != nil {
					select {
					case err, ok := <-errCh:
						if ok && err != nil {
							return model.Response{}, err, false
						}
					default:
					}
				}
				return final, nil, false
			}
			if resp.Partial {
				emitText(resp.Text)
				continue
			}
			final = resp
			emitText(resp.Text)
		}
	}
}

func decodedArgs(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil
	}
	return args
}
