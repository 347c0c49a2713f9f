package tool

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"sitesmith/core"
	"sitesmith/internal/util"
	"sitesmith/logging"
	"sitesmith/model"
)

// Executor is the dispatch surface the turn orchestrator drives. Execute
// never returns an error: every failure mode (unknown identifier, argument
// validation, handler error, panic) is folded into a failed ToolResult so the
// turn can continue and the model may recover.
type Executor interface {
	// Execute runs a single tool call.
	Execute(ctx context.Context, call core.ToolCall) core.ToolResult

	// ExecuteBatch runs a batch of tool calls, possibly in parallel, invoking
	// onDone as each call completes. Results are returned in call order.
	ExecuteBatch(ctx context.Context, calls []core.ToolCall, onDone func(core.ToolCall, core.ToolResult)) []core.ToolResult

	// Definitions exposes the available capabilities as model tool definitions.
	Definitions() []model.ToolDefinition
}

// Mode selects the capability surface of a StandardExecutor.
type Mode int

const (
	// ModePlain restricts the executor to file operations plus version
	// builds on an existing project. No create_project, no delegation.
	ModePlain Mode = iota
	// ModeBoss enables the full capability set. Selected when a privileged
	// boss capability key is configured.
	ModeBoss
)

// Options configures a StandardExecutor.
type Options struct {
	// Mode selects plain or boss capability surface.
	Mode Mode

	// MaxParallel bounds concurrent handler executions in a batch.
	// 0 or less means no explicit limit beyond the batch size.
	MaxParallel int

	// Logger receives structured execution records.
	Logger logging.Logger

	// Extra handlers are registered on top of the mode's builtin set. Used
	// by the delegation coordinator to contribute delegate_task in boss mode.
	Extra []Handler
}

// StandardExecutor dispatches tool calls against a closed registry with
// bounded parallel batch execution and panic containment.
type StandardExecutor struct {
	env         *Env
	registry    *Registry
	mode        Mode
	maxParallel int
	logger      logging.Logger
}

// NewExecutor builds an executor around the capability environment. The
// registry contents depend on the mode; see Mode.
func NewExecutor(env *Env, optFns ...func(o *Options)) *StandardExecutor {
	opts := Options{
		Mode:        ModePlain,
		MaxParallel: 4,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	registry := NewRegistry()
	registry.MustRegister(
		newListFilesHandler(env),
		newReadFileHandler(env),
		newCreateFileHandler(env),
		newEditFileHandler(env),
		newDeleteFileHandler(env),
		newBuildVersionHandler(env),
		newChecklistHandler(env),
	)
	if opts.Mode == ModeBoss {
		registry.MustRegister(
			newCreateProjectHandler(env),
			newWebSearchHandler(env),
			newTakeScreenshotHandler(env),
			newReviewScreenshotHandler(env),
			newGenerateImageHandler(env),
			newRestyleImageHandler(env),
			newDownloadImageHandler(env),
		)
	}
	registry.MustRegister(opts.Extra...)

	return &StandardExecutor{
		env:         env,
		registry:    registry,
		mode:        opts.Mode,
		maxParallel: opts.MaxParallel,
		logger:      opts.Logger,
	}
}

// Mode returns the executor's capability mode.
func (e *StandardExecutor) Mode() Mode { return e.mode }

// Definitions implements Executor.
func (e *StandardExecutor) Definitions() []model.ToolDefinition { return e.registry.Definitions() }

// Execute implements Executor. Handler errors become failed results;
// side-effect notification for mutating capabilities fires on success.
func (e *StandardExecutor) Execute(ctx context.Context, call core.ToolCall) core.ToolResult {
	start := time.Now()
	result, err := e.dispatch(ctx, call)
	if err != nil {
		result = core.FailedResult(err)
	}
	logging.ToolCall(e.logger, call.Name, time.Since(start), result.Success, err)
	return result
}

func (e *StandardExecutor) dispatch(ctx context.Context, call core.ToolCall) (result core.ToolResult, err error) {
	handler, err := e.registry.Lookup(call.Name)
	if err != nil {
		return core.ToolResult{}, err
	}

	// Plain mode operates strictly on an existing project.
	if e.mode == ModePlain {
		project := e.env.Project()
		if project == "" || !e.env.Workspace.ProjectExists(ctx, project) {
			return core.ToolResult{}, NewError(handler.Name(), "requires an existing project", "NO_PROJECT")
		}
	}

	args, err := decodeArgs(call.Arguments)
	if err != nil {
		return core.ToolResult{}, NewError(handler.Name(), "malformed arguments: "+err.Error(), "VALIDATION_ERROR")
	}
	if err := util.ValidateParameters(args, handler.Parameters()); err != nil {
		return core.ToolResult{}, NewError(handler.Name(), err.Error(), "VALIDATION_ERROR")
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool.panic", "tool", call.Name, "recover", r, "stack", string(debug.Stack()))
			err = NewError(handler.Name(), "panic during execution", "EXECUTION_ERROR")
		}
	}()

	result, err = handler.Call(ctx, args)
	if err != nil {
		return core.ToolResult{}, err
	}

	if Name(call.Name).Mutating() && result.Success && result.SideEffects {
		e.env.notifyFileChanged(e.env.Project(), summaryPath(args))
	}

	return result, nil
}

// summaryPath extracts the path argument for change notifications when present.
func summaryPath(args map[string]any) string {
	if p, ok := args["path"].(string); ok {
		return p
	}
	return ""
}

// ExecuteBatch implements Executor with bounded parallelism. Results are
// buffered and returned in the original call order; onDone fires per call in
// completion order. Cancellation is honored between dispatches; calls not
// started after cancellation report a failed result.
func (e *StandardExecutor) ExecuteBatch(
	ctx context.Context,
	calls []core.ToolCall,
	onDone func(core.ToolCall, core.ToolResult),
) []core.ToolResult {
	n := len(calls)
	if n == 0 {
		return nil
	}

	// Fast path: single call, execute inline.
	if n == 1 {
		result := e.Execute(ctx, calls[0])
		if onDone != nil {
			onDone(calls[0], result)
		}
		return []core.ToolResult{result}
	}

	maxPar := e.maxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	results := make([]core.ToolResult, n)
	var wg sync.WaitGroup
	var mu sync.Mutex // serializes onDone callbacks
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range calls {
		if ctx.Err() != nil {
			results[i] = core.FailedResult(ctx.Err())
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, call core.ToolCall) {
			defer wg.Done()
			defer func() { <-sem }()

			result := e.Execute(ctx, call)
			results[idx] = result

			if onDone != nil {
				mu.Lock()
				onDone(call, result)
				mu.Unlock()
			}
		}(i, calls[i])
	}
	wg.Wait()

	e.logger.Debug(
		"tool.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}
