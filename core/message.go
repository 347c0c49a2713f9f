package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks a message authored by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a message authored by the model.
	RoleAssistant Role = "assistant"
	// RoleTool marks a tool result fed back into the model-visible history.
	RoleTool Role = "tool"
	// RoleSystem marks system prompt material when represented inline.
	RoleSystem Role = "system"
)

// Message is one entry of the conversation history. The chat store persists
// only user and assistant messages; tool and system roles appear solely in the
// model-visible working history assembled during a turn.
//
// Assistant messages that requested tool executions carry the originating
// ToolCalls so provider adapters can replay them verbatim. Tool messages carry
// the ToolCallID they answer, satisfying the ordering contract that a result
// is visible to the model strictly after its call and strictly before the next
// model invocation.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Provider   string     `json:"provider,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// NewUserMessage creates a user message stamped with the current UTC time.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now().UTC()}
}

// NewAssistantMessage creates an assistant message stamped with the current UTC time.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: time.Now().UTC()}
}

// NewToolMessage creates a tool-result message answering the given call.
func NewToolMessage(callID, toolName, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		Timestamp:  time.Now().UTC(),
		ToolCallID: callID,
		ToolName:   toolName,
	}
}

// RawTurn is an opaque, provider-shaped record of a single exchange. The
// orchestrator stores and forwards these verbatim for context-cache prefix
// reuse; it never interprets their contents.
type RawTurn json.RawMessage

// MarshalJSON implements json.Marshaler passing the payload through unchanged.
func (r RawTurn) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// UnmarshalJSON implements json.Unmarshaler capturing the payload verbatim.
func (r *RawTurn) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

// NewID generates a unique identifier used for tool calls, runs and log
// correlation throughout the module.
func NewID() string { return uuid.NewString() }
