package tool

import (
	"context"
	"fmt"
	"strings"

	"sitesmith/core"
)

type webSearchArgs struct {
	Query string `json:"query" jsonschema:"description=The search query"`
}

type webSearchHandler struct{ env *Env }

func newWebSearchHandler(env *Env) Handler { return &webSearchHandler{env: env} }

func (h *webSearchHandler) Name() Name { return WebSearch }

func (h *webSearchHandler) Description() string {
	return "Search the web for current information, for example reference sites or content for the page being built."
}

func (h *webSearchHandler) Parameters() map[string]any { return SchemaFor(&webSearchArgs{}) }

func (h *webSearchHandler) Call(ctx context.Context, args map[string]any) (core.ToolResult, error) {
	if h.env.Searcher == nil {
		return core.ToolResult{}, NewError(WebSearch, "web search is not configured", "NOT_CONFIGURED")
	}
	query, _ := args["query"].(string)
	results, err := h.env.Searcher.Search(ctx, query)
	if err != nil {
		return core.ToolResult{}, NewError(WebSearch, err.Error(), "EXECUTION_ERROR")
	}
	if len(results) == 0 {
		return core.ToolResult{Summary: "No results found.", Success: true}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d result(s):\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return core.ToolResult{Summary: sb.String(), Success: true}, nil
}

type takeScreenshotArgs struct{}

type takeScreenshotHandler struct{ env *Env }

func newTakeScreenshotHandler(env *Env) Handler { return &takeScreenshotHandler{env: env} }

func (h *takeScreenshotHandler) Name() Name { return TakeScreenshot }

func (h *takeScreenshotHandler) Description() string {
	return "Capture a screenshot of the active project's live preview. Returns a reference to pass to review_screenshot."
}

func (h *takeScreenshotHandler) Parameters() map[string]any { return SchemaFor(&takeScreenshotArgs{}) }

func (h *takeScreenshotHandler) Call(ctx context.Context, _ map[string]any) (core.ToolResult, error) {
	if h.env.Screens == nil {
		return core.ToolResult{}, NewError(TakeScreenshot, "screenshot capture is not configured", "NOT_CONFIGURED")
	}
	project, err := h.env.requireProject(TakeScreenshot)
	if err != nil {
		return core.ToolResult{}, err
	}
	url := h.env.Workspace.PreviewURL(project)
	data, err := h.env.Screens.Capture(ctx, url)
	if err != nil {
		return core.ToolResult{}, NewError(TakeScreenshot, err.Error(), "EXECUTION_ERROR")
	}
	ref := h.env.storeScreenshot(data)
	return core.ToolResult{
		Summary: fmt.Sprintf("Captured screenshot of %s. Reference: %s", url, ref),
		Success: true,
	}, nil
}

type reviewScreenshotArgs struct {
	Ref   string `json:"ref" jsonschema:"description=Reference returned by take_screenshot"`
	Query string `json:"query" jsonschema:"description=What to evaluate in the screenshot"`
}

type reviewScreenshotHandler struct{ env *Env }

func newReviewScreenshotHandler(env *Env) Handler { return &reviewScreenshotHandler{env: env} }

func (h *reviewScreenshotHandler) Name() Name { return ReviewScreenshot }

func (h *reviewScreenshotHandler) Description() string {
	return "Have a previously captured screenshot reviewed for visual issues such as layout, contrast or overlap."
}

func (h *reviewScreenshotHandler) Parameters() map[string]any {
	return SchemaFor(&reviewScreenshotArgs{})
}

func (h *reviewScreenshotHandler) Call(ctx context.Context, args map[string]any) (core.ToolResult, error) {
	if h.env.Reviewer == nil {
		return core.ToolResult{}, NewError(ReviewScreenshot, "screenshot review is not configured", "NOT_CONFIGURED")
	}
	ref, _ := args["ref"].(string)
	query, _ := args["query"].(string)
	image, ok := h.env.screenshot(ref)
	if !ok {
		return core.ToolResult{}, NewError(ReviewScreenshot, fmt.Sprintf("unknown screenshot reference %q", ref), "VALIDATION_ERROR")
	}
	review, err := h.env.Reviewer.Review(ctx, image, query)
	if err != nil {
		return core.ToolResult{}, NewError(ReviewScreenshot, err.Error(), "EXECUTION_ERROR")
	}
	return core.ToolResult{Summary: review, Success: true}, nil
}
