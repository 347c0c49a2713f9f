package tool

import (
	"context"
	"fmt"
	"strings"

	"sitesmith/core"
)

type listFilesArgs struct{}

type readFileArgs struct {
	Path string `json:"path" jsonschema:"description=Path of the file relative to the project root"`
}

type createFileArgs struct {
	Path    string `json:"path" jsonschema:"description=Path of the file relative to the project root"`
	Content string `json:"content" jsonschema:"description=Complete content of the file"`
}

type editFileArgs struct {
	Path    string `json:"path" jsonschema:"description=Path of the file relative to the project root"`
	Content string `json:"content" jsonschema:"description=Either one or more SEARCH/REPLACE blocks or the complete new content of the file"`
}

type deleteFileArgs struct {
	Path string `json:"path" jsonschema:"description=Path of the file relative to the project root"`
}

type buildVersionArgs struct {
	Message string `json:"message,omitempty" jsonschema:"description=Short summary of the changes in this version"`
}

type listFilesHandler struct{ env *Env }

func newListFilesHandler(env *Env) Handler { return &listFilesHandler{env: env} }

func (h *listFilesHandler) Name() Name { return ListFiles }

func (h *listFilesHandler) Description() string {
	return "List all files in the active project."
}

func (h *listFilesHandler) Parameters() map[string]any { return SchemaFor(&listFilesArgs{}) }

func (h *listFilesHandler) Call(ctx context.Context, _ map[string]any) (core.ToolResult, error) {
	project, err := h.env.requireProject(ListFiles)
	if err != nil {
		return core.ToolResult{}, err
	}
	files, err := h.env.Workspace.ListFiles(ctx, project)
	if err != nil {
		return core.ToolResult{}, NewError(ListFiles, err.Error(), "EXECUTION_ERROR")
	}
	if len(files) == 0 {
		return core.ToolResult{Summary: "The project has no files yet.", Success: true}, nil
	}
	return core.ToolResult{
		Summary: fmt.Sprintf("Files in %s:\n%s", project, strings.Join(files, "\n")),
		Success: true,
	}, nil
}

type readFileHandler struct{ env *Env }

func newReadFileHandler(env *Env) Handler { return &readFileHandler{env: env} }

func (h *readFileHandler) Name() Name { return ReadFile }

func (h *readFileHandler) Description() string {
	return "Read the content of a file in the active project."
}

func (h *readFileHandler) Parameters() map[string]any { return SchemaFor(&readFileArgs{}) }

func (h *readFileHandler) Call(ctx context.Context, args map[string]any) (core.ToolResult, error) {
	project, err := h.env.requireProject(ReadFile)
	if err != nil {
		return core.ToolResult{}, err
	}
	path, _ := args["path"].(string)
	content, err := h.env.Workspace.ReadFile(ctx, project, path)
	if err != nil {
		return core.ToolResult{}, NewError(ReadFile, err.Error(), "FILE_NOT_FOUND")
	}
	return core.ToolResult{Summary: content, Success: true}, nil
}

type createFileHandler struct{ env *Env }

func newCreateFileHandler(env *Env) Handler { return &createFileHandler{env: env} }

func (h *createFileHandler) Name() Name { return CreateFile }

func (h *createFileHandler) Description() string {
	return "Create a new file in the active project with the given content. Overwrites an existing file at the same path."
}

func (h *createFileHandler) Parameters() map[string]any { return SchemaFor(&createFileArgs{}) }

func (h *createFileHandler) Call(ctx context.Context, args map[string]any) (core.ToolResult, error) {
	project, err := h.env.requireProject(CreateFile)
	if err != nil {
		return core.ToolResult{}, err
	}
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if err := h.env.Workspace.WriteFile(ctx, project, path, content); err != nil {
		return core.ToolResult{}, NewError(CreateFile, err.Error(), "EXECUTION_ERROR")
	}
	return core.ToolResult{
		Summary:     fmt.Sprintf("Created %s (%d bytes).", path, len(content)),
		Success:     true,
		SideEffects: true,
	}, nil
}

type editFileHandler struct{ env *Env }

func newEditFileHandler(env *Env) Handler { return &editFileHandler{env: env} }

func (h *editFileHandler) Name() Name { return EditFile }

func (h *editFileHandler) Description() string {
	return "Edit a file in the active project. Provide SEARCH/REPLACE blocks for targeted edits, or the complete new content to replace the whole file."
}

func (h *editFileHandler) Parameters() map[string]any { return SchemaFor(&editFileArgs{}) }

func (h *editFileHandler) Call(ctx context.Context, args map[string]any) (core.ToolResult, error) {
	project, err := h.env.requireProject(EditFile)
	if err != nil {
		return core.ToolResult{}, err
	}
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)

	current, err := h.env.Workspace.ReadFile(ctx, project, path)
	if err != nil {
		return core.ToolResult{}, NewError(EditFile, err.Error(), "FILE_NOT_FOUND")
	}

	updated := content
	applied := 0
	if blocks := parseSearchReplace(content); len(blocks) > 0 {
		updated = current
		for _, b := range blocks {
			if !strings.Contains(updated, b.search) {
				return core.ToolResult{}, NewError(
					EditFile,
					fmt.Sprintf("search text not found in %s: %q", path, truncate(b.search, 80)),
					"SEARCH_NOT_FOUND",
				)
			}
			updated = strings.Replace(updated, b.search, b.replace, 1)
			applied++
		}
	}

	if err := h.env.Workspace.WriteFile(ctx, project, path, updated); err != nil {
		return core.ToolResult{}, NewError(EditFile, err.Error(), "EXECUTION_ERROR")
	}

	summary := fmt.Sprintf("Replaced the content of %s.", path)
	if applied > 0 {
		summary = fmt.Sprintf("Applied %d edit(s) to %s.", applied, path)
	}
	return core.ToolResult{Summary: summary, Success: true, SideEffects: true}, nil
}

type deleteFileHandler struct{ env *Env }

func newDeleteFileHandler(env *Env) Handler { return &deleteFileHandler{env: env} }

func (h *deleteFileHandler) Name() Name { return DeleteFile }

func (h *deleteFileHandler) Description() string {
	return "Delete a file from the active project."
}

func (h *deleteFileHandler) Parameters() map[string]any { return SchemaFor(&deleteFileArgs{}) }

func (h *deleteFileHandler) Call(ctx context.Context, args map[string]any) (core.ToolResult, error) {
	project, err := h.env.requireProject(DeleteFile)
	if err != nil {
		return core.ToolResult{}, err
	}
	path, _ := args["path"].(string)
	if err := h.env.Workspace.DeleteFile(ctx, project, path); err != nil {
		return core.ToolResult{}, NewError(DeleteFile, err.Error(), "EXECUTION_ERROR")
	}
	return core.ToolResult{
		Summary:     fmt.Sprintf("Deleted %s.", path),
		Success:     true,
		SideEffects: true,
	}, nil
}

type buildVersionHandler struct{ env *Env }

func newBuildVersionHandler(env *Env) Handler { return &buildVersionHandler{env: env} }

func (h *buildVersionHandler) Name() Name { return BuildVersion }

func (h *buildVersionHandler) Description() string {
	return "Snapshot the active project as a new version. Call this once the current set of changes is complete."
}

func (h *buildVersionHandler) Parameters() map[string]any { return SchemaFor(&buildVersionArgs{}) }

func (h *buildVersionHandler) Call(ctx context.Context, args map[string]any) (core.ToolResult, error) {
	project, err := h.env.requireProject(BuildVersion)
	if err != nil {
		return core.ToolResult{}, err
	}
	message, _ := args["message"].(string)
	if message == "" {
		message = "New version"
	}
	version, err := h.env.Workspace.CommitVersion(ctx, project, message)
	if err != nil {
		return core.ToolResult{}, NewError(BuildVersion, err.Error(), "EXECUTION_ERROR")
	}
	return core.ToolResult{
		Summary:     fmt.Sprintf("Built version %d of %s.", version.Number, project),
		Success:     true,
		SideEffects: true,
	}, nil
}

const (
	searchMarker  = "<<<<<<< SEARCH"
	divideMarker  = "======="
	replaceMarker = ">>>>>>> REPLACE"
)

type editBlock struct {
	search  string
	replace string
}

// parseSearchReplace extracts SEARCH/REPLACE blocks from an edit payload.
// Returns nil when the payload contains no well formed block, in which case
// the payload is treated as full file content.
func parseSearchReplace(content string) []editBlock {
	if !strings.Contains(content, searchMarker) {
		return nil
	}
	var blocks []editBlock
	lines := strings.Split(content, "\n")
	for i := 0; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != searchMarker {
			continue
		}
		var search, replace []string
		j := i + 1
		for ; j < len(lines) && strings.TrimSpace(lines[j]) != divideMarker; j++ {
			search = append(search, lines[j])
		}
		if j >= len(lines) {
			return nil
		}
		j++
		for ; j < len(lines) && strings.TrimSpace(lines[j]) != replaceMarker; j++ {
			replace = append(replace, lines[j])
		}
		if j >= len(lines) {
			return nil
		}
		blocks = append(blocks, editBlock{
			search:  strings.Join(search, "\n"),
			replace: strings.Join(replace, "\n"),
		})
		i = j
	}
	return blocks
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
