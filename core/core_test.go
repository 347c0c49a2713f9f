package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawTurnRoundTrip(t *testing.T) {
	raw := RawTurn(`{"role":"assistant","content":[{"type":"text","text":"hi"}]}`)

	data, err := json.Marshal([]RawTurn{raw})
	require.NoError(t, err)

	var back []RawTurn
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, 1)
	assert.JSONEq(t, string(raw), string(back[0]))
}

func TestUnwrapDelegated(t *testing.T) {
	inner := ToolDone{Tool: "create_file", Summary: "wrote index.html", Success: true}

	ev, role := Unwrap(inner)
	assert.Equal(t, inner, ev)
	assert.Empty(t, role)

	ev, role = Unwrap(Delegated{Role: "builder-a", Event: inner})
	assert.Equal(t, inner, ev)
	assert.Equal(t, "builder-a", role)

	ev, role = Unwrap(Delegated{Role: "boss", Event: Delegated{Role: "builder-b", Event: inner}})
	assert.Equal(t, inner, ev)
	assert.Equal(t, "boss/builder-b", role)
}

func TestSinkNilSafe(t *testing.T) {
	var s Sink
	s.Emit(Thinking{}) // must not panic

	var got []Progress
	s = func(p Progress) { got = append(got, p) }
	s.Emit(Thinking{})
	s.Emit(FinalText{Text: "done"})
	require.Len(t, got, 2)
}

func TestCallLimiter(t *testing.T) {
	cl := NewCallLimiter(2)

	n, err := cl.Take()
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = cl.Take()
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = cl.Take()
	assert.Error(t, err)

	unlimited := NewCallLimiter(0)
	for i := 0; i < 100; i++ {
		_, err := unlimited.Take()
		assert.NoError(t, err)
	}
}

func TestIsSubProject(t *testing.T) {
	assert.True(t, IsSubProject("bakery/v1"))
	assert.True(t, IsSubProject("bakery/v12/extra"))
	assert.False(t, IsSubProject("bakery"))
	assert.False(t, IsSubProject("version-notes"))
	assert.False(t, IsSubProject("bakery/vnext"))

	assert.Equal(t, "bakery/v3", SubProjectName("bakery", 3))
}

func TestFailedResult(t *testing.T) {
	res := FailedResult(assert.AnError)
	assert.False(t, res.Success)
	assert.Contains(t, res.Summary, assert.AnError.Error())
}
