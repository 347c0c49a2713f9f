// Package delegate implements fan-out to sub-agents: the delegate_task
// capability the boss agent uses to hand whole build tasks to role-scoped
// workers. Each worker runs its own bounded turn loop against a version-scoped
// sub-project so parallel workers never write into the same tree.
package delegate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"sitesmith/core"
	"sitesmith/logging"
	"sitesmith/model"
	"sitesmith/tool"
	"sitesmith/turn"
)

// Role describes one delegated worker persona.
type Role struct {
	// Name identifies the role in delegate_task calls and event tags.
	Name string `yaml:"name"`

	// SystemPrompt is the worker's system message.
	SystemPrompt string `yaml:"system_prompt"`

	// Model is the preferred model hint passed to the resolver. Empty means
	// the resolver's default.
	Model string `yaml:"model"`
}

// Options configures a Coordinator.
type Options struct {
	// MaxParallel bounds concurrently running workers.
	MaxParallel int

	// MaxToolIterations bounds each worker's turn loop.
	MaxToolIterations int

	// Logger receives structured delegation records.
	Logger logging.Logger

	// OnFirstCompletion is invoked once per delegate_task call with the
	// sub-project of the first worker that finishes successfully, so a live
	// preview can switch to it immediately. Later completions are announced
	// through the Notifier instead.
	OnFirstCompletion func(subProject string)
}

// Coordinator implements the delegate_task capability. It is handed to the
// boss executor as an extra handler; plain executors never see it, which keeps
// delegation non-recursive.
type Coordinator struct {
	workspace core.Workspace
	resolver  model.Resolver
	notifier  core.Notifier
	roles     map[string]Role
	sink      core.Sink
	project   func() string
	opts      Options
}

// NewCoordinator wires a delegation coordinator. project resolves the active
// base project at call time; sink receives the workers' progress events
// wrapped with their role names.
func NewCoordinator(
	workspace core.Workspace,
	resolver model.Resolver,
	notifier core.Notifier,
	roles []Role,
	project func() string,
	sink core.Sink,
	optFns ...func(o *Options),
) *Coordinator {
	opts := Options{
		MaxParallel:       3,
		MaxToolIterations: 25,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	byName := make(map[string]Role, len(roles))
	for _, r := range roles {
		byName[r.Name] = r
	}
	if notifier == nil {
		notifier = core.NoOpNotifier{}
	}
	return &Coordinator{
		workspace: workspace,
		resolver:  resolver,
		notifier:  notifier,
		roles:     byName,
		sink:      sink,
		project:   project,
		opts:      opts,
	}
}

type delegateTaskArg struct {
	Role        string `json:"role" jsonschema:"description=Name of the worker role to delegate to"`
	Instruction string `json:"instruction" jsonschema:"description=Complete self-contained task description for the worker"`
}

type delegateTaskArgs struct {
	Tasks []delegateTaskArg `json:"tasks" jsonschema:"description=Tasks to run in parallel; one sub-project version is created per task"`
}

// Name implements tool.Handler.
func (c *Coordinator) Name() tool.Name { return tool.DelegateTask }

// Description implements tool.Handler.
func (c *Coordinator) Description() string {
	return "Delegate build tasks to specialized worker agents running in parallel. Each worker builds its own version of the active project."
}

// Parameters implements tool.Handler.
func (c *Coordinator) Parameters() map[string]any { return tool.SchemaFor(&delegateTaskArgs{}) }

type workerOutcome struct {
	role       string
	subProject string
	finalText  string
	in, out    int
	err        error
}

// Call implements tool.Handler. Workers run concurrently with a bounded
// limit; a failing worker is reported inline and does not cancel its
// siblings. Usage of all workers is aggregated into the returned result so
// the parent turn accounts for it.
func (c *Coordinator) Call(ctx context.Context, args map[string]any) (core.ToolResult, error) {
	base := c.project()
	if base == "" {
		return core.ToolResult{}, tool.NewError(tool.DelegateTask, "no active project to delegate from", "NO_PROJECT")
	}

	tasks, err := parseTasks(args)
	if err != nil {
		return core.ToolResult{}, err
	}

	count, err := c.workspace.VersionCount(ctx, base)
	if err != nil {
		return core.ToolResult{}, tool.NewError(tool.DelegateTask, err.Error(), "EXECUTION_ERROR")
	}

	outcomes := make([]workerOutcome, len(tasks))
	var first sync.Once

	g := new(errgroup.Group)
	g.SetLimit(c.opts.MaxParallel)
	for i, task := range tasks {
		sub := core.SubProjectName(base, count+i+1)
		g.Go(func() error {
			outcomes[i] = c.runWorker(ctx, task, sub, &first)
			return nil
		})
	}
	g.Wait()

	return c.summarize(outcomes), nil
}

func (c *Coordinator) runWorker(ctx context.Context, task delegateTaskArg, sub string, first *sync.Once) workerOutcome {
	outcome := workerOutcome{role: task.Role, subProject: sub}

	role, ok := c.roles[task.Role]
	if !ok {
		outcome.err = fmt.Errorf("unknown role %q", task.Role)
		c.emitFailure(task.Role, outcome.err)
		return outcome
	}

	if err := c.workspace.CreateProject(ctx, sub); err != nil {
		outcome.err = fmt.Errorf("create sub-project %s: %w", sub, err)
		c.emitFailure(role.Name, outcome.err)
		return outcome
	}

	env := tool.NewEnv(c.workspace)
	env.Logger = c.opts.Logger
	env.SelectProject(sub)
	exec := tool.NewExecutor(env, func(o *tool.Options) {
		o.Logger = c.opts.Logger
	})

	wrapped := core.Sink(func(ev core.Progress) {
		c.sink.Emit(core.Delegated{Role: role.Name, Event: ev})
	})

	orchestrator := turn.New(func(o *turn.Options) {
		o.MaxToolIterations = c.opts.MaxToolIterations
		o.Logger = c.opts.Logger
	})
	result, err := orchestrator.Run(ctx, turn.Request{
		Instruction:  task.Instruction,
		SystemPrompt: role.SystemPrompt,
		Model:        c.resolver.Resolve(role.Model),
		Executor:     exec,
		Sink:         wrapped,
	})
	if result != nil {
		outcome.in = result.InputTokens
		outcome.out = result.OutputTokens
		outcome.finalText = result.FinalText
	}
	if err != nil {
		outcome.err = err
		c.emitFailure(role.Name, err)
		return outcome
	}

	c.opts.Logger.Info("delegate.worker_done", "role", role.Name, "sub_project", sub)
	advanced := false
	first.Do(func() {
		advanced = true
		if c.opts.OnFirstCompletion != nil {
			c.opts.OnFirstCompletion(sub)
		}
	})
	if !advanced {
		// A sibling already won the preview; just refresh the listing.
		c.notifier.ProjectsChanged()
	}
	return outcome
}

func (c *Coordinator) emitFailure(role string, err error) {
	c.opts.Logger.Warn("delegate.worker_failed", "role", role, "error", err.Error())
	c.sink.Emit(core.Delegated{Role: role, Event: core.ErrorEvent{Message: err.Error()}})
}

func (c *Coordinator) summarize(outcomes []workerOutcome) core.ToolResult {
	var sb strings.Builder
	var in, out, succeeded int
	for _, o := range outcomes {
		in += o.in
		out += o.out
		if o.err != nil {
			fmt.Fprintf(&sb, "[%s] failed: %v\n", o.role, o.err)
			continue
		}
		succeeded++
		fmt.Fprintf(&sb, "[%s] built %s: %s\n", o.role, o.subProject, firstLine(o.finalText))
	}
	return core.ToolResult{
		Summary:      strings.TrimRight(sb.String(), "\n"),
		Success:      succeeded > 0,
		SideEffects:  succeeded > 0,
		InputTokens:  in,
		OutputTokens: out,
	}
}

func parseTasks(args map[string]any) ([]delegateTaskArg, error) {
	rawTasks, _ := args["tasks"].([]any)
	if len(rawTasks) == 0 {
		return nil, tool.NewError(tool.DelegateTask, "tasks must not be empty", "VALIDATION_ERROR")
	}
	tasks := make([]delegateTaskArg, 0, len(rawTasks))
	for _, raw := range rawTasks {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, tool.NewError(tool.DelegateTask, "tasks must be objects", "VALIDATION_ERROR")
		}
		role, _ := m["role"].(string)
		instruction, _ := m["instruction"].(string)
		if role == "" || instruction == "" {
			return nil, tool.NewError(tool.DelegateTask, "each task needs a role and an instruction", "VALIDATION_ERROR")
		}
		tasks = append(tasks, delegateTaskArg{Role: role, Instruction: instruction})
	}
	return tasks, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
