// Package panel maintains the caller-visible side panel state of a session:
// the task checklist and the role-tagged activity log. The panel is a pure
// consumer of progress events; it never feeds anything back into a run.
package panel

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"sitesmith/core"
)

// DefaultDisplayLimit bounds how many recent activity entries Entries returns.
// The full log is retained for persistence regardless.
const DefaultDisplayLimit = 50

// State is the serializable snapshot of a panel, used by the persistence
// layer to survive restarts.
type State struct {
	Activity  []core.ActivityEntry `json:"activity"`
	Checklist []core.ChecklistItem `json:"checklist"`
}

// Panel accumulates activity and checklist state from progress events. Safe
// for concurrent use; a turn's sink and a UI reader may touch it at once.
type Panel struct {
	mu           sync.RWMutex
	activity     []core.ActivityEntry
	checklist    []core.ChecklistItem
	displayLimit int
}

// New creates an empty Panel.
func New() *Panel {
	return &Panel{displayLimit: DefaultDisplayLimit}
}

// Entry translates one progress event into an activity entry. Delegated
// wrappers are unwrapped and their role recorded. The second return is false
// for events that carry no user-visible information (token usage, final
// answer text, raw deltas).
func Entry(ev core.Progress) (core.ActivityEntry, bool) {
	inner, role := core.Unwrap(ev)

	var entry core.ActivityEntry
	switch e := inner.(type) {
	case core.Thinking:
		entry = core.ActivityEntry{Icon: "⏳", Text: "Thinking..."}
	case core.ToolStart:
		entry = core.ActivityEntry{Icon: iconFor(e.Tool), Text: describeStart(e)}
	case core.ToolDone:
		if !e.Success {
			entry = core.ActivityEntry{Icon: "⚠️", Text: firstLine(e.Summary)}
			break
		}
		entry = core.ActivityEntry{Icon: "✅", Text: describeDone(e)}
	case core.ErrorEvent:
		entry = core.ActivityEntry{Icon: "❌", Text: e.Message}
	default:
		// The transcript shows the final answer; activity does not repeat it.
		return core.ActivityEntry{}, false
	}

	entry.Role = role
	entry.Timestamp = time.Now().UTC()
	return entry, true
}

// Apply folds one progress event into the panel.
func (p *Panel) Apply(ev core.Progress) {
	entry, ok := Entry(ev)
	if !ok {
		return
	}
	p.mu.Lock()
	p.activity = append(p.activity, entry)
	p.mu.Unlock()
}

// SetChecklist replaces the checklist wholesale. Implements the sink the
// update_checklist capability writes through.
func (p *Panel) SetChecklist(items []core.ChecklistItem) {
	p.mu.Lock()
	p.checklist = append([]core.ChecklistItem(nil), items...)
	p.mu.Unlock()
}

// Checklist returns a copy of the current checklist.
func (p *Panel) Checklist() []core.ChecklistItem {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]core.ChecklistItem(nil), p.checklist...)
}

// Entries returns the most recent activity entries up to the display limit.
func (p *Panel) Entries() []core.ActivityEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entries := p.activity
	if len(entries) > p.displayLimit {
		entries = entries[len(entries)-p.displayLimit:]
	}
	return append([]core.ActivityEntry(nil), entries...)
}

// Reset clears activity and checklist, for a new conversation.
func (p *Panel) Reset() {
	p.mu.Lock()
	p.activity = nil
	p.checklist = nil
	p.mu.Unlock()
}

// Snapshot captures the full panel state including activity beyond the
// display limit.
func (p *Panel) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return State{
		Activity:  append([]core.ActivityEntry(nil), p.activity...),
		Checklist: append([]core.ChecklistItem(nil), p.checklist...),
	}
}

// Restore replaces the panel state from a snapshot.
func (p *Panel) Restore(s State) {
	p.mu.Lock()
	p.activity = append([]core.ActivityEntry(nil), s.Activity...)
	p.checklist = append([]core.ChecklistItem(nil), s.Checklist...)
	p.mu.Unlock()
}

func iconFor(toolName string) string {
	switch toolName {
	case "create_file", "edit_file":
		return "📝"
	case "delete_file":
		return "🗑️"
	case "list_files", "read_file":
		return "📄"
	case "web_search":
		return "🔍"
	case "create_project":
		return "📁"
	case "build_version":
		return "🔨"
	case "take_screenshot", "review_screenshot":
		return "📸"
	case "generate_image", "restyle_image", "download_image":
		return "🎨"
	case "update_checklist":
		return "📋"
	case "delegate_task":
		return "🤝"
	default:
		return "🔧"
	}
}

func describeStart(e core.ToolStart) string {
	if path, ok := e.Args["path"].(string); ok && path != "" {
		return fmt.Sprintf("%s: %s", humanize(e.Tool), path)
	}
	if query, ok := e.Args["query"].(string); ok && query != "" {
		return fmt.Sprintf("%s: %s", humanize(e.Tool), query)
	}
	if name, ok := e.Args["name"].(string); ok && name != "" {
		return fmt.Sprintf("%s: %s", humanize(e.Tool), name)
	}
	return humanize(e.Tool) + "..."
}

func describeDone(e core.ToolDone) string {
	line := firstLine(e.Summary)
	const maxLen = 120
	if len(line) > maxLen {
		line = line[:maxLen] + "..."
	}
	return line
}

func humanize(toolName string) string {
	return strings.ReplaceAll(toolName, "_", " ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
