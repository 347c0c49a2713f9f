package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"sitesmith/core"
)

// maxImageDownload bounds the body size accepted by download_image.
const maxImageDownload = 16 << 20

type generateImageArgs struct {
	Prompt string `json:"prompt" jsonschema:"description=Detailed description of the image to generate"`
	Path   string `json:"path" jsonschema:"description=Destination path in the project; for example assets/hero.png"`
}

type generateImageHandler struct{ env *Env }

func newGenerateImageHandler(env *Env) Handler { return &generateImageHandler{env: env} }

func (h *generateImageHandler) Name() Name { return GenerateImage }

func (h *generateImageHandler) Description() string {
	return "Generate an image from a text prompt and save it into the active project."
}

func (h *generateImageHandler) Parameters() map[string]any { return SchemaFor(&generateImageArgs{}) }

func (h *generateImageHandler) Call(ctx context.Context, args map[string]any) (core.ToolResult, error) {
	if h.env.Images == nil {
		return core.ToolResult{}, NewError(GenerateImage, "image generation is not configured", "NOT_CONFIGURED")
	}
	project, err := h.env.requireProject(GenerateImage)
	if err != nil {
		return core.ToolResult{}, err
	}
	prompt, _ := args["prompt"].(string)
	path, _ := args["path"].(string)

	data, err := h.env.Images.GenerateImage(ctx, prompt)
	if err != nil {
		return core.ToolResult{}, NewError(GenerateImage, err.Error(), "EXECUTION_ERROR")
	}
	if err := h.env.Workspace.WriteFile(ctx, project, path, string(data)); err != nil {
		return core.ToolResult{}, NewError(GenerateImage, err.Error(), "EXECUTION_ERROR")
	}
	h.env.notifyFileChanged(project, path)
	return core.ToolResult{
		Summary:     fmt.Sprintf("Generated image saved to %s (%d bytes).", path, len(data)),
		Success:     true,
		SideEffects: true,
	}, nil
}

type restyleImageArgs struct {
	Path   string `json:"path" jsonschema:"description=Path of the existing image in the project"`
	Prompt string `json:"prompt" jsonschema:"description=Description of the desired style change"`
}

type restyleImageHandler struct{ env *Env }

func newRestyleImageHandler(env *Env) Handler { return &restyleImageHandler{env: env} }

func (h *restyleImageHandler) Name() Name { return RestyleImage }

func (h *restyleImageHandler) Description() string {
	return "Restyle an existing project image according to a text prompt, overwriting it in place."
}

func (h *restyleImageHandler) Parameters() map[string]any { return SchemaFor(&restyleImageArgs{}) }

func (h *restyleImageHandler) Call(ctx context.Context, args map[string]any) (core.ToolResult, error) {
	if h.env.Images == nil {
		return core.ToolResult{}, NewError(RestyleImage, "image generation is not configured", "NOT_CONFIGURED")
	}
	project, err := h.env.requireProject(RestyleImage)
	if err != nil {
		return core.ToolResult{}, err
	}
	path, _ := args["path"].(string)
	prompt, _ := args["prompt"].(string)

	current, err := h.env.Workspace.ReadFile(ctx, project, path)
	if err != nil {
		return core.ToolResult{}, NewError(RestyleImage, err.Error(), "FILE_NOT_FOUND")
	}
	data, err := h.env.Images.RestyleImage(ctx, []byte(current), prompt)
	if err != nil {
		return core.ToolResult{}, NewError(RestyleImage, err.Error(), "EXECUTION_ERROR")
	}
	if err := h.env.Workspace.WriteFile(ctx, project, path, string(data)); err != nil {
		return core.ToolResult{}, NewError(RestyleImage, err.Error(), "EXECUTION_ERROR")
	}
	h.env.notifyFileChanged(project, path)
	return core.ToolResult{
		Summary:     fmt.Sprintf("Restyled %s (%d bytes).", path, len(data)),
		Success:     true,
		SideEffects: true,
	}, nil
}

type downloadImageArgs struct {
	URL  string `json:"url" jsonschema:"description=Source URL of the image"`
	Path string `json:"path" jsonschema:"description=Destination path in the project; for example assets/logo.png"`
}

type downloadImageHandler struct{ env *Env }

func newDownloadImageHandler(env *Env) Handler { return &downloadImageHandler{env: env} }

func (h *downloadImageHandler) Name() Name { return DownloadImage }

func (h *downloadImageHandler) Description() string {
	return "Download an image from a URL into the active project."
}

func (h *downloadImageHandler) Parameters() map[string]any { return SchemaFor(&downloadImageArgs{}) }

func (h *downloadImageHandler) Call(ctx context.Context, args map[string]any) (core.ToolResult, error) {
	project, err := h.env.requireProject(DownloadImage)
	if err != nil {
		return core.ToolResult{}, err
	}
	url, _ := args["url"].(string)
	path, _ := args["path"].(string)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return core.ToolResult{}, NewError(DownloadImage, err.Error(), "VALIDATION_ERROR")
	}
	resp, err := h.env.HTTPClient.Do(req)
	if err != nil {
		return core.ToolResult{}, NewError(DownloadImage, err.Error(), "EXECUTION_ERROR")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return core.ToolResult{}, NewError(DownloadImage, fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, url), "EXECUTION_ERROR")
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageDownload))
	if err != nil {
		return core.ToolResult{}, NewError(DownloadImage, err.Error(), "EXECUTION_ERROR")
	}
	if err := h.env.Workspace.WriteFile(ctx, project, path, string(data)); err != nil {
		return core.ToolResult{}, NewError(DownloadImage, err.Error(), "EXECUTION_ERROR")
	}
	h.env.notifyFileChanged(project, path)
	return core.ToolResult{
		Summary:     fmt.Sprintf("Downloaded %s to %s (%d bytes).", url, path, len(data)),
		Success:     true,
		SideEffects: true,
	}, nil
}
