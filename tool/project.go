package tool

import (
	"context"
	"fmt"

	"sitesmith/core"
)

type createProjectArgs struct {
	Name string `json:"name" jsonschema:"description=Name of the project; lowercase with hyphens"`
}

type createProjectHandler struct{ env *Env }

func newCreateProjectHandler(env *Env) Handler { return &createProjectHandler{env: env} }

func (h *createProjectHandler) Name() Name { return CreateProject }

func (h *createProjectHandler) Description() string {
	return "Create a new project and make it the active project. Call this exactly once before creating any files."
}

func (h *createProjectHandler) Parameters() map[string]any { return SchemaFor(&createProjectArgs{}) }

func (h *createProjectHandler) Call(ctx context.Context, args map[string]any) (core.ToolResult, error) {
	name, _ := args["name"].(string)
	if name == "" {
		return core.ToolResult{}, NewError(CreateProject, "project name must not be empty", "VALIDATION_ERROR")
	}
	if h.env.Workspace.ProjectExists(ctx, name) {
		return core.ToolResult{}, NewError(CreateProject, fmt.Sprintf("project %q already exists", name), "PROJECT_EXISTS")
	}
	if err := h.env.Workspace.CreateProject(ctx, name); err != nil {
		return core.ToolResult{}, NewError(CreateProject, err.Error(), "EXECUTION_ERROR")
	}
	h.env.SelectProject(name)
	h.env.Notifier.ProjectSelected(name, core.IsSubProject(name))
	return core.ToolResult{
		Summary: fmt.Sprintf("Created project %s and made it active.", name),
		Success: true,
	}, nil
}
