package tool

import (
	"context"
	"fmt"

	"sitesmith/core"
)

type checklistItemArg struct {
	ID          string `json:"id" jsonschema:"description=Stable identifier of the item"`
	Description string `json:"description" jsonschema:"description=Short description of the step"`
	Status      string `json:"status" jsonschema:"description=One of pending; in_progress; done"`
}

type updateChecklistArgs struct {
	Items []checklistItemArg `json:"items" jsonschema:"description=The complete checklist; replaces the previous one"`
}

type checklistHandler struct{ env *Env }

func newChecklistHandler(env *Env) Handler { return &checklistHandler{env: env} }

func (h *checklistHandler) Name() Name { return UpdateChecklist }

func (h *checklistHandler) Description() string {
	return "Replace the visible task checklist. Send the full list every time, updating statuses as work progresses."
}

func (h *checklistHandler) Parameters() map[string]any { return SchemaFor(&updateChecklistArgs{}) }

func (h *checklistHandler) Call(_ context.Context, args map[string]any) (core.ToolResult, error) {
	rawItems, _ := args["items"].([]any)
	items := make([]core.ChecklistItem, 0, len(rawItems))
	done := 0
	for _, raw := range rawItems {
		m, ok := raw.(map[string]any)
		if !ok {
			return core.ToolResult{}, NewError(UpdateChecklist, "items must be objects", "VALIDATION_ERROR")
		}
		item := core.ChecklistItem{
			ID:          stringField(m, "id"),
			Description: stringField(m, "description"),
			Status:      core.ChecklistStatus(stringField(m, "status")),
		}
		switch item.Status {
		case core.ChecklistPending, core.ChecklistInProgress, core.ChecklistDone:
		case "":
			item.Status = core.ChecklistPending
		default:
			return core.ToolResult{}, NewError(
				UpdateChecklist,
				fmt.Sprintf("invalid status %q for item %q", item.Status, item.ID),
				"VALIDATION_ERROR",
			)
		}
		if item.Status == core.ChecklistDone {
			done++
		}
		items = append(items, item)
	}

	if h.env.Checklist != nil {
		h.env.Checklist.SetChecklist(items)
	}
	return core.ToolResult{
		Summary: fmt.Sprintf("Checklist updated: %d item(s), %d done.", len(items), done),
		Success: true,
	}, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
