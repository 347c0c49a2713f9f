package core

// Progress is the closed set of events a running turn streams to its caller.
// Concrete variants implement the unexported isProgress marker so the set
// cannot be extended outside this package; consumers switch over the variants
// exhaustively instead of inspecting tags.
type Progress interface{ isProgress() }

// Thinking signals that a model call has been dispatched and the orchestrator
// is waiting for the first token. Emitted exactly once at the start of a run.
type Thinking struct{}

func (Thinking) isProgress() {}

// ToolStart signals that a tool execution is about to be dispatched.
type ToolStart struct {
	Tool string
	Args map[string]any
}

func (ToolStart) isProgress() {}

// ToolDone reports a completed tool execution with a short human-readable
// summary of what happened.
type ToolDone struct {
	Tool    string
	Summary string
	Success bool
}

func (ToolDone) isProgress() {}

// APIResponse reports token usage for one completed model call.
type APIResponse struct {
	InputTokens  int
	OutputTokens int
}

func (APIResponse) isProgress() {}

// ErrorEvent reports a terminal or delegated failure in readable form.
type ErrorEvent struct{ Message string }

func (ErrorEvent) isProgress() {}

// FinalText carries the terminal assistant answer of a run.
type FinalText struct{ Text string }

func (FinalText) isProgress() {}

// Delegated wraps a nested run's event with the delegated role name so
// observers can distinguish "[builder-a] writing file..." from the primary
// agent's own activity.
type Delegated struct {
	Role  string
	Event Progress
}

func (Delegated) isProgress() {}

// Sink receives progress events in emission order. A nil Sink is valid and
// discards events. Sinks must not block for long; the orchestrator calls them
// inline on its run goroutine.
type Sink func(Progress)

// Emit sends an event to the sink if one is attached.
func (s Sink) Emit(ev Progress) {
	if s != nil {
		s(ev)
	}
}

// Unwrap peels Delegated wrappers off an event returning the innermost event
// and the role path joined from the outside in. An empty role means the event
// originated from the primary run.
func Unwrap(ev Progress) (Progress, string) {
	role := ""
	for {
		d, ok := ev.(Delegated)
		if !ok {
			return ev, role
		}
		if role == "" {
			role = d.Role
		} else {
			role = role + "/" + d.Role
		}
		ev = d.Event
	}
}
