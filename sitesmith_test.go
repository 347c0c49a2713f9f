package sitesmith

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitesmith/config"
	"sitesmith/contextcache"
	"sitesmith/core"
	"sitesmith/model"
)

// memWorkspace is the in-memory Workspace used across the scenario tests.
type memWorkspace struct {
	mu       sync.Mutex
	files    map[string]map[string]string
	versions map[string]int
}

func newMemWorkspace() *memWorkspace {
	return &memWorkspace{
		files:    make(map[string]map[string]string),
		versions: make(map[string]int),
	}
}

func (w *memWorkspace) CreateProject(_ context.Context, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[name]; ok {
		return fmt.Errorf("project %q already exists", name)
	}
	w.files[name] = make(map[string]string)
	return nil
}

func (w *memWorkspace) ListProjects(_ context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var names []string
	for name := range w.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (w *memWorkspace) ProjectExists(_ context.Context, name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[name]
	return ok
}

func (w *memWorkspace) ListFiles(_ context.Context, project string) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var paths []string
	for p := range w.files[project] {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (w *memWorkspace) ReadFile(_ context.Context, project, path string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	content, ok := w.files[project][path]
	if !ok {
		return "", fmt.Errorf("file %q not found", path)
	}
	return content, nil
}

func (w *memWorkspace) WriteFile(_ context.Context, project, path, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	proj, ok := w.files[project]
	if !ok {
		return fmt.Errorf("unknown project %q", project)
	}
	proj[path] = content
	return nil
}

func (w *memWorkspace) DeleteFile(_ context.Context, project, path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.files[project], path)
	return nil
}

func (w *memWorkspace) CommitVersion(_ context.Context, project, message string) (core.Version, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.versions[project]++
	return core.Version{Number: w.versions[project], Instruction: message, Timestamp: time.Now()}, nil
}

func (w *memWorkspace) VersionCount(_ context.Context, project string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.versions[project], nil
}

func (w *memWorkspace) PreviewURL(project string) string { return "http://localhost:8080/" + project }

func call(name, args string) core.ToolCall {
	return core.ToolCall{ID: core.NewID(), Name: name, Arguments: args}
}

func bossConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.StateDir = t.TempDir()
	cfg.BossKey = "test-key"
	return cfg
}

func plainConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.StateDir = t.TempDir()
	return cfg
}

func TestScenarioNewProjectBuild(t *testing.T) {
	ws := newMemWorkspace()
	m := model.NewScriptedModel("scripted",
		model.ScriptedTurn{ToolCalls: []core.ToolCall{call("create_project", `{"name":"bakery"}`)}},
		model.ScriptedTurn{ToolCalls: []core.ToolCall{call("create_file", `{"path":"index.html","content":"<h1>Bakery</h1>"}`)}},
		model.ScriptedTurn{ToolCalls: []core.ToolCall{call("build_version", `{"message":"initial site"}`)}},
		model.ScriptedTurn{Text: "Your bakery site is ready."},
	)
	s, err := New(bossConfig(t), m, func(o *Options) { o.Workspace = ws })
	require.NoError(t, err)

	result, err := s.Send(context.Background(), "build a bakery site", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "bakery", s.Project())
	assert.True(t, ws.ProjectExists(context.Background(), "bakery"))
	content, err := ws.ReadFile(context.Background(), "bakery", "index.html")
	require.NoError(t, err)
	assert.Equal(t, "<h1>Bakery</h1>", content)

	count, err := ws.VersionCount(context.Background(), "bakery")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, "Your bakery site is ready.", result.FinalText)
	messages := s.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, core.RoleUser, messages[0].Role)
	assert.Equal(t, "Your bakery site is ready.", messages[1].Content)
	assert.NotEmpty(t, s.Panel().Entries())
}

func TestScenarioFollowUpEdit(t *testing.T) {
	ws := newMemWorkspace()
	ctx := context.Background()
	require.NoError(t, ws.CreateProject(ctx, "bakery"))
	require.NoError(t, ws.WriteFile(ctx, "bakery", "index.html", "<h1>Bakery</h1>"))
	ws.versions["bakery"] = 1

	edit := `{"path":"index.html","content":"<<<<<<< SEARCH\n<h1>Bakery</h1>\n=======\n<h1>Corner Bakery</h1>\n>>>>>>> REPLACE"}`
	m := model.NewScriptedModel("scripted",
		model.ScriptedTurn{ToolCalls: []core.ToolCall{call("edit_file", edit)}},
		model.ScriptedTurn{ToolCalls: []core.ToolCall{call("build_version", `{"message":"rename"}`)}},
		model.ScriptedTurn{Text: "Renamed the bakery."},
	)
	s, err := New(plainConfig(t), m, func(o *Options) { o.Workspace = ws })
	require.NoError(t, err)
	require.NoError(t, s.OpenProject(ctx, "bakery"))

	before := len(s.Messages())
	_, err = s.Send(ctx, "rename it to Corner Bakery", nil, nil)
	require.NoError(t, err)

	content, err := ws.ReadFile(ctx, "bakery", "index.html")
	require.NoError(t, err)
	assert.Equal(t, "<h1>Corner Bakery</h1>", content)

	count, err := ws.VersionCount(ctx, "bakery")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.Equal(t, before+2, len(s.Messages()))
}

func TestPlainRunPreservesPanelState(t *testing.T) {
	ws := newMemWorkspace()
	ctx := context.Background()
	require.NoError(t, ws.CreateProject(ctx, "bakery"))

	m := model.NewScriptedModel("scripted",
		model.ScriptedTurn{ToolCalls: []core.ToolCall{
			call("update_checklist", `{"items":[{"id":"hero","description":"Build the hero section","status":"in_progress"}]}`),
		}},
		model.ScriptedTurn{Text: "Checklist is up."},
	)
	s, err := New(plainConfig(t), m, func(o *Options) { o.Workspace = ws })
	require.NoError(t, err)
	require.NoError(t, s.OpenProject(ctx, "bakery"))

	_, err = s.Send(ctx, "start the hero section", nil, nil)
	require.NoError(t, err)
	require.Len(t, s.Panel().Checklist(), 1)
	entries := len(s.Panel().Entries())
	require.Positive(t, entries)

	// A follow-up plain run must not wipe the checklist or the activity log.
	_, err = s.Send(ctx, "keep going", nil, nil)
	require.NoError(t, err)
	assert.Len(t, s.Panel().Checklist(), 1)
	assert.GreaterOrEqual(t, len(s.Panel().Entries()), entries)
}

func TestBossRunResetsPanelState(t *testing.T) {
	ws := newMemWorkspace()
	ctx := context.Background()
	require.NoError(t, ws.CreateProject(ctx, "bakery"))

	m := model.NewScriptedModel("scripted",
		model.ScriptedTurn{ToolCalls: []core.ToolCall{
			call("update_checklist", `{"items":[{"id":"hero","description":"Build the hero section","status":"done"}]}`),
		}},
		model.ScriptedTurn{Text: "Done."},
	)
	s, err := New(bossConfig(t), m, func(o *Options) { o.Workspace = ws })
	require.NoError(t, err)
	require.NoError(t, s.OpenProject(ctx, "bakery"))

	_, err = s.Send(ctx, "build the hero section", nil, nil)
	require.NoError(t, err)
	require.Len(t, s.Panel().Checklist(), 1)

	// The repeated last scripted turn answers without tools, so a fresh boss
	// run leaves the checklist empty after its reset.
	_, err = s.Send(ctx, "something new", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, s.Panel().Checklist())
}

func TestPlainModeRequiresProject(t *testing.T) {
	s, err := New(plainConfig(t), model.NewScriptedModel("scripted", model.ScriptedTurn{Text: "hi"}),
		func(o *Options) { o.Workspace = newMemWorkspace() })
	require.NoError(t, err)

	_, err = s.Send(context.Background(), "do something", nil, nil)
	assert.Error(t, err)
}

func TestScenarioCacheInvalidationOnProjectSwitch(t *testing.T) {
	ws := newMemWorkspace()
	ctx := context.Background()
	require.NoError(t, ws.CreateProject(ctx, "bakery"))
	require.NoError(t, ws.CreateProject(ctx, "florist"))

	var pushes int
	var mu sync.Mutex
	m := model.NewScriptedModel("scripted", model.ScriptedTurn{Text: "hello"})
	s, err := New(plainConfig(t), m,
		func(o *Options) {
			o.Workspace = ws
			o.CacheProvider = contextcache.ProviderFunc(func(context.Context, string, []core.RawTurn) error {
				mu.Lock()
				pushes++
				mu.Unlock()
				return nil
			})
		},
	)
	require.NoError(t, err)
	require.NoError(t, s.OpenProject(ctx, "bakery"))

	_, err = s.Send(ctx, "say hello", nil, nil)
	require.NoError(t, err)
	assert.Positive(t, s.CacheTurns())
	mu.Lock()
	assert.Equal(t, 1, pushes)
	mu.Unlock()

	require.NoError(t, s.OpenProject(ctx, "florist"))
	assert.Zero(t, s.CacheTurns())
}

func TestScenarioSessionRoundTrip(t *testing.T) {
	ws := newMemWorkspace()
	ctx := context.Background()
	require.NoError(t, ws.CreateProject(ctx, "bakery"))
	stateDir := t.TempDir()

	cfg := config.Default()
	cfg.StateDir = stateDir

	m := model.NewScriptedModel("scripted", model.ScriptedTurn{Text: "The site is ready."})
	s1, err := New(cfg, m, func(o *Options) { o.Workspace = ws })
	require.NoError(t, err)
	require.NoError(t, s1.OpenProject(ctx, "bakery"))
	_, err = s1.Send(ctx, "build something", nil, nil)
	require.NoError(t, err)
	transcript := s1.Messages()

	// A fresh studio over the same state dir restores the session.
	s2, err := New(cfg, m, func(o *Options) { o.Workspace = ws })
	require.NoError(t, err)
	require.NoError(t, s2.OpenProject(ctx, "bakery"))

	restored := s2.Messages()
	require.Len(t, restored, len(transcript))
	assert.Equal(t, transcript[0].Content, restored[0].Content)
	assert.Equal(t, transcript[1].Content, restored[1].Content)
}

func TestCancellationPreservesPartialDraft(t *testing.T) {
	ws := newMemWorkspace()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ws.CreateProject(ctx, "bakery"))

	m := model.NewScriptedModel("scripted",
		model.ScriptedTurn{Text: "Working on it", ToolCalls: []core.ToolCall{
			call("create_file", `{"path":"a.html","content":"x"}`),
		}},
		model.ScriptedTurn{Text: "never reached"},
	)
	s, err := New(plainConfig(t), m, func(o *Options) { o.Workspace = ws })
	require.NoError(t, err)
	require.NoError(t, s.OpenProject(ctx, "bakery"))

	// Cancel once streaming starts.
	var once sync.Once
	_, err = s.Send(ctx, "build", nil, func(string) {
		once.Do(cancel)
	})
	require.Error(t, err)
	assert.False(t, s.IsStreaming())

	// The partial assistant message survives sealed in the transcript.
	messages := s.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, core.RoleAssistant, messages[1].Role)
}

func TestNewConversationClearsState(t *testing.T) {
	ws := newMemWorkspace()
	ctx := context.Background()
	require.NoError(t, ws.CreateProject(ctx, "bakery"))

	m := model.NewScriptedModel("scripted", model.ScriptedTurn{Text: "done"})
	s, err := New(plainConfig(t), m, func(o *Options) { o.Workspace = ws })
	require.NoError(t, err)
	require.NoError(t, s.OpenProject(ctx, "bakery"))
	_, err = s.Send(ctx, "build", nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, s.Messages())

	s.NewConversation()

	assert.Empty(t, s.Messages())
	assert.Empty(t, s.Panel().Entries())
	assert.Zero(t, s.CacheTurns())
}

func TestScenarioDelegationBuildsVariants(t *testing.T) {
	ws := newMemWorkspace()
	ctx := context.Background()
	require.NoError(t, ws.CreateProject(ctx, "bakery"))

	workerFactory := func() model.Model {
		return model.NewScriptedModel("worker",
			model.ScriptedTurn{ToolCalls: []core.ToolCall{
				call("create_file", `{"path":"index.html","content":"<h1>variant</h1>"}`),
			}},
			model.ScriptedTurn{Text: "Variant built."},
		)
	}
	boss := model.NewScriptedModel("boss",
		model.ScriptedTurn{ToolCalls: []core.ToolCall{
			call("delegate_task", `{"tasks":[{"role":"builder-a","instruction":"build a variant"},{"role":"builder-b","instruction":"build a variant"}]}`),
		}},
		model.ScriptedTurn{Text: "Two variants are ready."},
	)

	cfg := bossConfig(t)
	cfg.Roles = []config.RoleConfig{
		{Name: "builder-a", SystemPrompt: "You build websites."},
		{Name: "builder-b", SystemPrompt: "You build websites."},
	}
	s, err := New(cfg, boss, func(o *Options) {
		o.Workspace = ws
		o.Resolver = model.ResolverFunc(func(string) model.Model { return workerFactory() })
	})
	require.NoError(t, err)
	require.NoError(t, s.OpenProject(ctx, "bakery"))

	var delegatedRoles []string
	var mu sync.Mutex
	result, err := s.Send(ctx, "build two variants", func(ev core.Progress) {
		if _, role := core.Unwrap(ev); role != "" {
			mu.Lock()
			delegatedRoles = append(delegatedRoles, role)
			mu.Unlock()
		}
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Two variants are ready.", result.FinalText)
	assert.True(t, ws.ProjectExists(ctx, "bakery/v1"))
	assert.True(t, ws.ProjectExists(ctx, "bakery/v2"))
	mu.Lock()
	assert.NotEmpty(t, delegatedRoles)
	mu.Unlock()
}
