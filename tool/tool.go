// Package tool implements the tool execution layer: a closed registry of
// named capabilities (file I/O, project lifecycle, checklist updates,
// screenshots, image generation, web search, delegation) invoked by name plus
// serialized arguments, with schema validated arguments, consistent error
// handling and parallel batch dispatch.
package tool

import (
	"context"
	"fmt"

	"sitesmith/core"
)

// Name identifies one capability in the closed tool set. The set is part of
// the public surface consumed by the model; unknown names are rejected at the
// registry boundary rather than falling through to a default case.
type Name string

// The complete capability set.
const (
	ListFiles        Name = "list_files"
	ReadFile         Name = "read_file"
	CreateFile       Name = "create_file"
	EditFile         Name = "edit_file"
	DeleteFile       Name = "delete_file"
	WebSearch        Name = "web_search"
	UpdateChecklist  Name = "update_checklist"
	CreateProject    Name = "create_project"
	BuildVersion     Name = "build_version"
	TakeScreenshot   Name = "take_screenshot"
	ReviewScreenshot Name = "review_screenshot"
	GenerateImage    Name = "generate_image"
	RestyleImage     Name = "restyle_image"
	DownloadImage    Name = "download_image"
	DelegateTask     Name = "delegate_task"
)

// All returns the full capability set in a stable order.
func All() []Name {
	return []Name{
		ListFiles, ReadFile, CreateFile, EditFile, DeleteFile,
		WebSearch, UpdateChecklist, CreateProject, BuildVersion,
		TakeScreenshot, ReviewScreenshot,
		GenerateImage, RestyleImage, DownloadImage,
		DelegateTask,
	}
}

// IsValid reports whether n belongs to the closed capability set.
func (n Name) IsValid() bool {
	switch n {
	case ListFiles, ReadFile, CreateFile, EditFile, DeleteFile,
		WebSearch, UpdateChecklist, CreateProject, BuildVersion,
		TakeScreenshot, ReviewScreenshot,
		GenerateImage, RestyleImage, DownloadImage,
		DelegateTask:
		return true
	}
	return false
}

// Mutating reports whether the capability performs workspace side effects that
// should trigger a file-changed notification on success.
func (n Name) Mutating() bool {
	switch n {
	case CreateFile, EditFile, DeleteFile, BuildVersion:
		return true
	}
	return false
}

// Handler executes one capability. Implementations receive already decoded
// and schema-validated arguments and return a result whose Summary is fed
// back to the model. Returning an error marks the execution failed without
// terminating the turn; the executor converts it into a failed ToolResult.
//
// Handlers must be safe for concurrent use: batches of tool calls may be
// dispatched in parallel.
type Handler interface {
	// Name returns the capability identifier this handler serves.
	Name() Name

	// Description returns the natural language description exposed to models.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the capability.
	Call(ctx context.Context, args map[string]any) (core.ToolResult, error)
}

// Error represents a failure during tool execution with a code for
// categorization (VALIDATION_ERROR, EXECUTION_ERROR, UNKNOWN_TOOL, or a
// handler-specific code passed through unchanged).
type Error struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewError creates a new Error with the specified details.
func NewError(tool Name, message, code string) *Error {
	return &Error{Tool: string(tool), Message: message, Code: code}
}

// funcHandler adapts a plain function plus static metadata to Handler.
type funcHandler struct {
	name        Name
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (core.ToolResult, error)
}

// NewFuncHandler constructs a Handler from explicit schema and function.
func NewFuncHandler(
	name Name,
	description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (core.ToolResult, error),
) Handler {
	return &funcHandler{name: name, description: description, parameters: parameters, fn: fn}
}

func (h *funcHandler) Name() Name { return h.name }

func (h *funcHandler) Description() string { return h.description }

func (h *funcHandler) Parameters() map[string]any { return h.parameters }

func (h *funcHandler) Call(ctx context.Context, args map[string]any) (core.ToolResult, error) {
	return h.fn(ctx, args)
}
