package panel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitesmith/core"
)

func TestApplyRecordsRoleTaggedEntries(t *testing.T) {
	p := New()

	p.Apply(core.Thinking{})
	p.Apply(core.ToolStart{Tool: "create_file", Args: map[string]any{"path": "index.html"}})
	p.Apply(core.Delegated{Role: "builder-a", Event: core.ToolDone{Tool: "create_file", Summary: "Created index.html", Success: true}})

	entries := p.Entries()
	require.Len(t, entries, 3)
	assert.Empty(t, entries[0].Role)
	assert.Contains(t, entries[1].Text, "index.html")
	assert.Equal(t, "builder-a", entries[2].Role)
}

func TestApplyIgnoresInvisibleEvents(t *testing.T) {
	p := New()

	p.Apply(core.APIResponse{InputTokens: 100, OutputTokens: 50})
	p.Apply(core.FinalText{Text: "done"})

	assert.Empty(t, p.Entries())
}

func TestApplyFailedToolGetsWarningIcon(t *testing.T) {
	p := New()

	p.Apply(core.ToolDone{Tool: "edit_file", Summary: "Error: search text not found", Success: false})

	entries := p.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "⚠️", entries[0].Icon)
}

func TestEntriesHonorsDisplayLimit(t *testing.T) {
	p := New()
	for i := 0; i < DefaultDisplayLimit+10; i++ {
		p.Apply(core.ToolStart{Tool: "create_file", Args: map[string]any{"path": fmt.Sprintf("f%d.html", i)}})
	}

	entries := p.Entries()
	assert.Len(t, entries, DefaultDisplayLimit)
	// The full log survives for persistence.
	assert.Len(t, p.Snapshot().Activity, DefaultDisplayLimit+10)
	// The oldest displayed entry is the tenth recorded one.
	assert.Contains(t, entries[0].Text, "f10.html")
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	p := New()
	p.Apply(core.ToolStart{Tool: "web_search", Args: map[string]any{"query": "bakery sites"}})
	p.SetChecklist([]core.ChecklistItem{
		{ID: "1", Description: "layout", Status: core.ChecklistDone},
		{ID: "2", Description: "content", Status: core.ChecklistInProgress},
	})

	snap := p.Snapshot()

	restored := New()
	restored.Restore(snap)
	assert.Equal(t, p.Entries(), restored.Entries())
	assert.Equal(t, p.Checklist(), restored.Checklist())
}

func TestResetClearsEverything(t *testing.T) {
	p := New()
	p.Apply(core.Thinking{})
	p.SetChecklist([]core.ChecklistItem{{ID: "1", Description: "x", Status: core.ChecklistPending}})

	p.Reset()

	assert.Empty(t, p.Entries())
	assert.Empty(t, p.Checklist())
}
