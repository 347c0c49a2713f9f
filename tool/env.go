package tool

import (
	"context"
	"net/http"
	"sync"

	"sitesmith/core"
	"sitesmith/logging"
	"sitesmith/model"
)

// ChecklistSink receives checklist replacements produced by the
// update_checklist capability. Implemented by panel.Panel.
type ChecklistSink interface {
	SetChecklist(items []core.ChecklistItem)
}

// ImageReviewer critiques a rendered screenshot. Optional capability; when it
// is absent review_screenshot reports a failed result instead of guessing.
type ImageReviewer interface {
	Review(ctx context.Context, image []byte, query string) (string, error)
}

// Env is the explicit capability struct handed to the tool layer. It carries
// only the collaborators the handlers need: the workspace, notification sink,
// search and image backends, and the mutable active-project selection. Nil
// optional capabilities cause the corresponding tools to fail cleanly.
type Env struct {
	Workspace core.Workspace
	Notifier  core.Notifier
	Searcher  core.Searcher
	Screens   core.Screenshotter
	Images    model.ImageModel
	Reviewer  ImageReviewer
	Checklist ChecklistSink
	Logger    logging.Logger

	// HTTPClient is used by download_image; defaults to http.DefaultClient.
	HTTPClient *http.Client

	mu      sync.RWMutex
	project string

	screenshots struct {
		sync.Mutex
		byRef map[string][]byte
	}
}

// NewEnv constructs an Env around the mandatory workspace collaborator.
// Remaining capabilities are optional and set directly on the struct.
func NewEnv(ws core.Workspace) *Env {
	e := &Env{
		Workspace:  ws,
		Notifier:   core.NoOpNotifier{},
		Logger:     logging.NoOpLogger{},
		HTTPClient: http.DefaultClient,
	}
	e.screenshots.byRef = make(map[string][]byte)
	return e
}

// Project returns the active project name, empty when none is selected.
func (e *Env) Project() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.project
}

// SelectProject sets the active project.
func (e *Env) SelectProject(name string) {
	e.mu.Lock()
	e.project = name
	e.mu.Unlock()
}

// requireProject returns the active project or an Error when none is selected.
func (e *Env) requireProject(tool Name) (string, error) {
	p := e.Project()
	if p == "" {
		return "", NewError(tool, "no active project; create one first", "NO_PROJECT")
	}
	return p, nil
}

// storeScreenshot keeps captured bytes addressable by reference for a later
// review_screenshot call and returns the reference.
func (e *Env) storeScreenshot(data []byte) string {
	ref := core.NewID()
	e.screenshots.Lock()
	e.screenshots.byRef[ref] = data
	e.screenshots.Unlock()
	return ref
}

// screenshot resolves a previously stored capture.
func (e *Env) screenshot(ref string) ([]byte, bool) {
	e.screenshots.Lock()
	defer e.screenshots.Unlock()
	data, ok := e.screenshots.byRef[ref]
	return data, ok
}

// notifyFileChanged reports a workspace mutation for preview refresh.
func (e *Env) notifyFileChanged(project, path string) {
	if e.Notifier != nil {
		e.Notifier.FileChanged(project, path)
	}
}
