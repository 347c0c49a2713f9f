package core

// ToolCall is a request by the model to invoke a named capability. Arguments
// is the serialized JSON argument payload exactly as the provider produced it;
// parsing and validation happen at the tool-layer boundary.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolResult is the outcome of one tool execution. Summary is the text fed
// back to the model; Success distinguishes a recoverable tool failure (the
// turn continues) from a normal completion. SideEffects reports whether the
// execution mutated the workspace.
//
// InputTokens and OutputTokens are non-zero only for delegation results, where
// they carry the nested run's usage upward for cost aggregation.
type ToolResult struct {
	Summary      string `json:"summary"`
	Success      bool   `json:"success"`
	SideEffects  bool   `json:"side_effects,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
}

// FailedResult builds a ToolResult describing a recoverable tool failure.
func FailedResult(err error) ToolResult {
	return ToolResult{Summary: "Error: " + err.Error(), Success: false}
}
