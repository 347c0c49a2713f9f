package core

import "time"

// TurnResult is the terminal output of one orchestrator run. Token totals
// include usage aggregated from any delegated sub-runs. RawHistory is the
// updated raw turn sequence including the exchanges of this run, suitable for
// context-cache reuse on the next turn.
type TurnResult struct {
	FinalText    string        `json:"final_text"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	RawHistory   []RawTurn     `json:"raw_history,omitempty"`
	ModelCalls   int           `json:"model_calls"`
	FirstToken   time.Duration `json:"first_token_ns"`
	Elapsed      time.Duration `json:"elapsed_ns"`
}

// ChecklistStatus enumerates the lifecycle of a checklist item.
type ChecklistStatus string

const (
	// ChecklistPending marks work not yet started.
	ChecklistPending ChecklistStatus = "pending"
	// ChecklistInProgress marks work currently underway.
	ChecklistInProgress ChecklistStatus = "in_progress"
	// ChecklistDone marks completed work.
	ChecklistDone ChecklistStatus = "done"
)

// ChecklistItem is one caller-visible sub-task status line. Items are mutated
// only through the update_checklist tool result path.
type ChecklistItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Status      ChecklistStatus `json:"status"`
}

// ActivityEntry is one ordered, role-tagged line of the activity log. Role is
// empty for the primary agent and carries the delegated role name otherwise.
type ActivityEntry struct {
	Icon      string    `json:"icon"`
	Text      string    `json:"text"`
	Role      string    `json:"role,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
