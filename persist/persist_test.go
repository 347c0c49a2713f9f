package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitesmith/core"
	"sitesmith/panel"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestChatRoundTrip(t *testing.T) {
	s := newTestStore(t)
	messages := []core.Message{
		core.NewUserMessage("build a bakery site"),
		core.NewAssistantMessage("Done, the site is ready."),
	}

	require.NoError(t, s.SaveChat("bakery", messages))
	loaded, err := s.LoadChat("bakery")
	require.NoError(t, err)

	require.Len(t, loaded, 2)
	assert.Equal(t, core.RoleUser, loaded[0].Role)
	assert.Equal(t, "build a bakery site", loaded[0].Content)
	assert.Equal(t, "Done, the site is ready.", loaded[1].Content)
}

func TestRawRoundTripIsOpaque(t *testing.T) {
	s := newTestStore(t)
	raw := []core.RawTurn{
		core.RawTurn(`{"provider":"openai","messages":3}`),
		core.RawTurn(`{"provider":"openai","messages":5}`),
	}

	require.NoError(t, s.SaveRaw("bakery", raw))
	loaded, err := s.LoadRaw("bakery")
	require.NoError(t, err)

	require.Len(t, loaded, 2)
	assert.JSONEq(t, string(raw[0]), string(loaded[0]))
	assert.JSONEq(t, string(raw[1]), string(loaded[1]))
}

func TestPanelRoundTrip(t *testing.T) {
	s := newTestStore(t)
	state := panel.State{
		Activity:  []core.ActivityEntry{{Icon: "📝", Text: "create file: index.html"}},
		Checklist: []core.ChecklistItem{{ID: "1", Description: "layout", Status: core.ChecklistDone}},
	}

	require.NoError(t, s.SavePanel("bakery", state))
	loaded, err := s.LoadPanel("bakery")
	require.NoError(t, err)

	assert.Equal(t, state.Checklist, loaded.Checklist)
	require.Len(t, loaded.Activity, 1)
	assert.Equal(t, "create file: index.html", loaded.Activity[0].Text)
}

func TestLoadMissingProjectIsEmpty(t *testing.T) {
	s := newTestStore(t)

	messages, err := s.LoadChat("unknown")
	require.NoError(t, err)
	assert.Empty(t, messages)

	raw, err := s.LoadRaw("unknown")
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestRestoringSuppressesWrites(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveChat("bakery", []core.Message{core.NewUserMessage("original")}))

	s.SetRestoring(true)
	err := s.SaveChat("bakery", []core.Message{core.NewUserMessage("clobber")})
	assert.ErrorIs(t, err, ErrRestoring)

	s.SetRestoring(false)
	loaded, err := s.LoadChat("bakery")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "original", loaded[0].Content)
}

func TestSubProjectStateIsSeparate(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveChat("bakery", []core.Message{core.NewUserMessage("base")}))
	require.NoError(t, s.SaveChat("bakery/v1", []core.Message{core.NewUserMessage("variant")}))

	base, err := s.LoadChat("bakery")
	require.NoError(t, err)
	variant, err := s.LoadChat("bakery/v1")
	require.NoError(t, err)

	require.Len(t, base, 1)
	require.Len(t, variant, 1)
	assert.Equal(t, "base", base[0].Content)
	assert.Equal(t, "variant", variant[0].Content)
}

func TestClearRemovesState(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveChat("bakery", []core.Message{core.NewUserMessage("hello")}))
	require.NoError(t, s.SaveRaw("bakery", []core.RawTurn{core.RawTurn(`{}`)}))

	require.NoError(t, s.Clear("bakery"))

	messages, err := s.LoadChat("bakery")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestRejectsPathTraversal(t *testing.T) {
	s := newTestStore(t)

	err := s.SaveChat("../outside", nil)
	assert.Error(t, err)
}
