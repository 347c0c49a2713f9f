// Package conversation implements the per-project conversation store: the
// ordered user/assistant message list shown in the chat surface plus the
// parallel raw turn history kept for context-cache reuse. The store also owns
// the single in-flight assistant draft a running turn mutates in place.
package conversation

import (
	"fmt"
	"strings"
	"sync"

	"sitesmith/core"
)

// Store holds one conversation. It is safe for concurrent access, though the
// expected usage is a single cooperative caller context per conversation with
// nested runs communicating only via progress events.
type Store struct {
	mu       sync.RWMutex
	messages []core.Message
	raw      []core.RawTurn
	draft    *Draft
}

// NewStore constructs an empty conversation store.
func NewStore() *Store {
	return &Store{}
}

// Messages returns a copy of the message list. The in-flight draft, if any,
// is reflected with its current accumulated content.
func (s *Store) Messages() []core.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// RawHistory returns a copy of the raw turn sequence.
func (s *Store) RawHistory() []core.RawTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.RawTurn, len(s.raw))
	copy(out, s.raw)
	return out
}

// Len returns the number of messages including any in-flight draft.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// SetRawHistory replaces the raw turn sequence wholesale. Used when a turn
// completes (the orchestrator returns the updated sequence) and on restore.
func (s *Store) SetRawHistory(raw []core.RawTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = make([]core.RawTurn, len(raw))
	copy(s.raw, raw)
}

// Restore replaces the message list wholesale, used when loading a persisted
// conversation. Fails if a turn is in flight.
func (s *Store) Restore(messages []core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft != nil {
		return fmt.Errorf("cannot restore while a turn is in flight")
	}
	s.messages = make([]core.Message, len(messages))
	copy(s.messages, messages)
	return nil
}

// Clear empties both the message list and the raw history. Used on "new
// conversation" and "switch project" actions.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.raw = nil
	s.draft = nil
}

// Begin appends the user instruction and an empty assistant placeholder,
// returning the draft handle the running turn mutates. At most one draft may
// be active per store; a second Begin before End fails, enforcing that no two
// runs mutate the same placeholder concurrently.
func (s *Store) Begin(instruction string) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft != nil {
		return nil, fmt.Errorf("a turn is already in flight")
	}
	s.messages = append(s.messages, core.NewUserMessage(instruction))
	s.messages = append(s.messages, core.NewAssistantMessage(""))
	d := &Draft{store: s, index: len(s.messages) - 1}
	s.draft = d
	return d, nil
}

// Draft is the handle to the single in-flight assistant message. Append and
// SetContent mutate the placeholder in place; End seals it.
type Draft struct {
	store *Store
	index int
	done  bool
	mu    sync.Mutex
}

// Append adds a text fragment to the draft content.
func (d *Draft) Append(fragment string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return
	}
	d.store.mu.Lock()
	d.store.messages[d.index].Content += fragment
	d.store.mu.Unlock()
}

// SetContent replaces the draft content wholesale (used for inline error
// annotations and tool status strings).
func (d *Draft) SetContent(content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return
	}
	d.store.mu.Lock()
	d.store.messages[d.index].Content = content
	d.store.mu.Unlock()
}

// Content returns the accumulated draft content.
func (d *Draft) Content() string {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()
	return d.store.messages[d.index].Content
}

// End seals the draft, optionally tagging the provider that produced it, and
// releases the store for the next turn. Partial content is retained as-is,
// which is what cancellation requires. Calling End twice is a no-op.
func (d *Draft) End(provider string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return
	}
	d.done = true
	d.store.mu.Lock()
	d.store.messages[d.index].Provider = provider
	d.store.draft = nil
	d.store.mu.Unlock()
}

// AppendRaw appends provider-shaped turn records to the raw history. The
// sequence length is monotonically non-decreasing between Clear calls.
func (s *Store) AppendRaw(turns ...core.RawTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = append(s.raw, turns...)
}

// Transcript renders the conversation as plain text, one "role: content" line
// per message. Intended for prompt previews and debugging.
func (s *Store) Transcript() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var b strings.Builder
	for _, m := range s.messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
