// Package sitesmith is the orchestration core of an AI-assisted website
// builder. The Studio façade owns one project session at a time: it runs
// bounded turn loops against a model, dispatches the model's tool calls into
// the workspace, fans progress out to the side panel and audit logs, persists
// session state between restarts, and keeps provider-side context cache
// bookkeeping honest across project switches.
package sitesmith

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"sitesmith/audit"
	"sitesmith/config"
	"sitesmith/contextcache"
	"sitesmith/conversation"
	"sitesmith/core"
	"sitesmith/delegate"
	"sitesmith/logging"
	"sitesmith/model"
	"sitesmith/panel"
	"sitesmith/persist"
	"sitesmith/tool"
	"sitesmith/turn"
	"sitesmith/workspace"
)

// DefaultSystemPrompt instructs the primary agent.
const DefaultSystemPrompt = `You are a website builder. You create and edit small static websites
consisting of HTML, CSS and JavaScript files. Work in small steps, keep the
checklist up to date, and call build_version once a coherent set of changes is
complete.`

// Options configures a Studio beyond its Config.
type Options struct {
	// Logger receives structured records from every component.
	Logger logging.Logger

	// Workspace overrides the default local workspace, mainly for tests.
	Workspace core.Workspace

	// Notifier receives preview and project notifications.
	Notifier core.Notifier

	// Searcher backs the web_search capability. Nil disables it.
	Searcher core.Searcher

	// Screens backs take_screenshot. Nil disables it.
	Screens core.Screenshotter

	// Images backs generate_image and restyle_image. Nil disables them.
	Images model.ImageModel

	// Reviewer backs review_screenshot. Nil disables it.
	Reviewer tool.ImageReviewer

	// Resolver maps delegated role model hints to models. Defaults to the
	// primary model for every hint.
	Resolver model.Resolver

	// CacheProvider receives raw-history deltas for provider-side prompt
	// caching. Nil disables pushing; bookkeeping still runs.
	CacheProvider contextcache.Provider

	// SystemPrompt overrides DefaultSystemPrompt.
	SystemPrompt string
}

// Studio is the single entry point callers drive. One run is in flight at a
// time; a Send while another run is active cancels and replaces it. All
// methods are safe for concurrent use.
type Studio struct {
	cfg          config.Config
	primary      model.Model
	resolver     model.Resolver
	workspace    core.Workspace
	env          *tool.Env
	conv         *conversation.Store
	panel        *panel.Panel
	store        *persist.Store
	buildLog     *audit.BuildLog
	requestLog   *audit.RequestLog
	cache        *contextcache.Coordinator
	orchestrator *turn.Orchestrator
	notifier     core.Notifier
	logger       logging.Logger
	systemPrompt string
	boss         bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New wires a Studio from configuration and a primary model. The full
// capability surface (project creation, delegation, search, screenshots,
// images) is unlocked by a configured boss key; without one the studio runs
// in plain mode and only edits the already selected project.
func New(cfg config.Config, primary model.Model, optFns ...func(o *Options)) (*Studio, error) {
	if primary == nil {
		return nil, errors.New("sitesmith: primary model is required")
	}
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Notifier == nil {
		opts.Notifier = core.NoOpNotifier{}
	}
	if opts.Resolver == nil {
		opts.Resolver = model.ResolverFunc(func(string) model.Model { return primary })
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}

	ws := opts.Workspace
	if ws == nil {
		local, err := workspace.NewLocal(cfg.WorkspaceRoot, func(o *workspace.Options) {
			o.PreviewBaseURL = cfg.PreviewBaseURL
			o.Logger = opts.Logger
		})
		if err != nil {
			return nil, err
		}
		ws = local
	}

	store, err := persist.NewStore(cfg.StateDir, func(o *persist.Options) { o.Logger = opts.Logger })
	if err != nil {
		return nil, err
	}
	buildLog, err := audit.NewBuildLog(cfg.StateDir, opts.Logger)
	if err != nil {
		return nil, err
	}
	requestLog, err := audit.NewRequestLog(filepath.Join(cfg.StateDir, "requests.log"), opts.Logger)
	if err != nil {
		return nil, err
	}

	p := panel.New()
	env := tool.NewEnv(ws)
	env.Notifier = opts.Notifier
	env.Searcher = opts.Searcher
	env.Screens = opts.Screens
	env.Images = opts.Images
	env.Reviewer = opts.Reviewer
	env.Checklist = p
	env.Logger = opts.Logger

	s := &Studio{
		cfg:        cfg,
		primary:    primary,
		resolver:   opts.Resolver,
		workspace:  ws,
		env:        env,
		conv:       conversation.NewStore(),
		panel:      p,
		store:      store,
		buildLog:   buildLog,
		requestLog: requestLog,
		cache:      contextcache.NewCoordinator(opts.CacheProvider, opts.Logger),
		orchestrator: turn.New(func(o *turn.Options) {
			o.MaxToolIterations = cfg.MaxToolIterations
			o.Logger = opts.Logger
		}),
		notifier:     opts.Notifier,
		logger:       opts.Logger,
		systemPrompt: opts.SystemPrompt,
		boss:         cfg.BossKey != "",
	}
	return s, nil
}

// Panel exposes the side panel state.
func (s *Studio) Panel() *panel.Panel { return s.panel }

// Messages returns the current conversation transcript.
func (s *Studio) Messages() []core.Message { return s.conv.Messages() }

// Project returns the active project, empty when none is selected.
func (s *Studio) Project() string { return s.env.Project() }

// CacheTurns reports how many raw turns the provider-side context cache
// currently covers.
func (s *Studio) CacheTurns() int { return s.cache.CachedTurns() }

// IsStreaming reports whether a run is in flight.
func (s *Studio) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Cancel stops the in-flight run, if any, and waits for it to wind down.
func (s *Studio) Cancel() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// OpenProject cancels any active run, switches the session to the named
// project, restores its persisted conversation and panel state, and
// invalidates the context cache since the provider-side prefix belongs to the
// previous conversation.
func (s *Studio) OpenProject(ctx context.Context, name string) error {
	if !s.workspace.ProjectExists(ctx, name) {
		return fmt.Errorf("sitesmith: unknown project %q", name)
	}
	s.Cancel()

	s.env.SelectProject(name)

	s.store.SetRestoring(true)
	defer s.store.SetRestoring(false)

	messages, err := s.store.LoadChat(name)
	if err != nil {
		return fmt.Errorf("restore chat: %w", err)
	}
	raw, err := s.store.LoadRaw(name)
	if err != nil {
		return fmt.Errorf("restore raw history: %w", err)
	}
	panelState, err := s.store.LoadPanel(name)
	if err != nil {
		return fmt.Errorf("restore panel: %w", err)
	}

	if err := s.conv.Restore(messages); err != nil {
		return err
	}
	s.conv.SetRawHistory(raw)
	s.panel.Restore(panelState)
	s.cache.Invalidate()

	s.notifier.ProjectSelected(name, core.IsSubProject(name))
	s.logger.Info("studio.project_opened", "project", name, "messages", len(messages))
	return nil
}

// NewConversation cancels any active run and starts the current project's
// conversation over: history, panel, persisted state and cache bookkeeping
// are all dropped.
func (s *Studio) NewConversation() {
	s.Cancel()
	project := s.env.Project()
	s.conv.Clear()
	s.panel.Reset()
	s.cache.Invalidate()
	if project != "" {
		if err := s.store.Clear(project); err != nil {
			s.logger.Warn("studio.clear_failed", "project", project, "error", err.Error())
		}
	}
	s.logger.Info("studio.new_conversation", "project", project)
}

// Send runs one turn for the user instruction, blocking until it finishes.
// An in-flight run is canceled and replaced first. The optional sink observes
// progress; onText receives assistant text fragments as they stream.
func (s *Studio) Send(ctx context.Context, instruction string, sink core.Sink, onText func(string)) (*core.TurnResult, error) {
	if instruction == "" {
		return nil, errors.New("sitesmith: instruction must not be empty")
	}
	if !s.boss && s.env.Project() == "" {
		return nil, errors.New("sitesmith: no project selected")
	}

	// Cancel-then-replace: the newest instruction wins.
	s.Cancel()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		s.cancel = nil
		s.done = nil
		s.mu.Unlock()
		close(done)
	}()

	history := s.conv.Messages()
	rawHistory := s.conv.RawHistory()

	draft, err := s.conv.Begin(instruction)
	if err != nil {
		return nil, err
	}

	// Only boss runs start a fresh panel; plain follow-up runs keep the
	// checklist and activity log accumulated so far.
	if s.boss {
		s.panel.Reset()
	}
	startProject := s.env.Project()
	if startProject != "" {
		s.buildLog.Begin(startProject, instruction)
	}

	fanout := s.fanoutSink(sink)
	executor := s.newExecutor(fanout)

	result, runErr := s.orchestrator.Run(runCtx, turn.Request{
		Instruction:  instruction,
		SystemPrompt: s.systemPrompt,
		History:      history,
		RawHistory:   rawHistory,
		CacheKey:     s.cache.ActiveKey(),
		Model:        s.primary,
		Executor:     executor,
		Sink:         fanout,
		OnText: func(fragment string) {
			draft.Append(fragment)
			if onText != nil {
				onText(fragment)
			}
		},
	})
	draft.End(s.primary.Info().Provider)

	project := s.env.Project()
	if result != nil {
		s.conv.SetRawHistory(result.RawHistory)
		if project != "" {
			s.buildLog.Complete(project, result)
			info := s.primary.Info()
			s.requestLog.Record(audit.RequestEntry{
				Time:         time.Now(),
				Provider:     info.Provider,
				Model:        info.Name,
				Project:      project,
				Prompt:       instruction,
				FirstToken:   result.FirstToken,
				Elapsed:      result.Elapsed,
				InputTokens:  result.InputTokens,
				OutputTokens: result.OutputTokens,
			})
		}
		s.persistSession(project, result)
	}

	// The cache prefix only advances after a clean turn; failed or canceled
	// runs leave the bookkeeping where it was.
	if runErr == nil && project != "" {
		if err := s.cache.Sync(runCtx, s.systemPrompt, s.conv.RawHistory()); err != nil {
			s.logger.Warn("studio.cache_sync_failed", "error", err.Error())
		}
	}
	return result, runErr
}

// persistSession writes the session state after a turn, best effort.
func (s *Studio) persistSession(project string, result *core.TurnResult) {
	if project == "" {
		return
	}
	if err := s.store.SaveChat(project, s.conv.Messages()); err != nil && !errors.Is(err, persist.ErrRestoring) {
		s.logger.Warn("studio.persist_failed", "project", project, "file", "chat", "error", err.Error())
	}
	if err := s.store.SaveRaw(project, result.RawHistory); err != nil && !errors.Is(err, persist.ErrRestoring) {
		s.logger.Warn("studio.persist_failed", "project", project, "file", "raw", "error", err.Error())
	}
	if err := s.store.SavePanel(project, s.panel.Snapshot()); err != nil && !errors.Is(err, persist.ErrRestoring) {
		s.logger.Warn("studio.persist_failed", "project", project, "file", "panel", "error", err.Error())
	}
}

// fanoutSink distributes progress events to the panel, the build log and the
// caller's sink.
func (s *Studio) fanoutSink(caller core.Sink) core.Sink {
	return func(ev core.Progress) {
		s.panel.Apply(ev)
		if entry, ok := panel.Entry(ev); ok {
			if project := s.env.Project(); project != "" {
				s.buildLog.Record(project, entry)
			}
		}
		caller.Emit(ev)
	}
}

// newExecutor builds the per-run tool executor. Boss mode additionally gets
// the delegation coordinator wired against the same sink so delegated events
// surface with their role tags.
func (s *Studio) newExecutor(sink core.Sink) tool.Executor {
	var extra []tool.Handler
	if s.boss {
		roles := make([]delegate.Role, 0, len(s.cfg.Roles))
		for _, r := range s.cfg.Roles {
			roles = append(roles, delegate.Role{Name: r.Name, SystemPrompt: r.SystemPrompt, Model: r.Model})
		}
		if len(roles) > 0 {
			coordinator := delegate.NewCoordinator(
				s.workspace, s.resolver, s.notifier, roles, s.env.Project, sink,
				func(o *delegate.Options) {
					o.MaxParallel = s.cfg.MaxParallelTools
					o.MaxToolIterations = s.cfg.MaxToolIterations
					o.Logger = s.logger
					o.OnFirstCompletion = func(sub string) {
						s.notifier.ProjectSelected(sub, true)
					}
				},
			)
			extra = append(extra, coordinator)
		}
	}

	return tool.NewExecutor(s.env, func(o *tool.Options) {
		if s.boss {
			o.Mode = tool.ModeBoss
		}
		o.MaxParallel = s.cfg.MaxParallelTools
		o.Logger = s.logger
		o.Extra = extra
	})
}
