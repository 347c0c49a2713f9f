package core

import (
	"context"
	"regexp"
	"strconv"
	"time"
)

// Version identifies one committed project state. Number is monotonically
// increasing per project; Instruction is the user instruction that produced it
// and doubles as the commit message.
type Version struct {
	Number      int       `json:"number"`
	Instruction string    `json:"instruction"`
	Timestamp   time.Time `json:"timestamp"`
}

// Workspace is the external per-project file and version-control collaborator
// the tool layer mutates. Implementations perform real I/O; all methods accept
// a context because file writes and git operations may block.
type Workspace interface {
	CreateProject(ctx context.Context, name string) error
	ListProjects(ctx context.Context) ([]string, error)
	ProjectExists(ctx context.Context, name string) bool

	ListFiles(ctx context.Context, project string) ([]string, error)
	ReadFile(ctx context.Context, project, path string) (string, error)
	WriteFile(ctx context.Context, project, path, content string) error
	DeleteFile(ctx context.Context, project, path string) error

	// CommitVersion snapshots the project under version control and returns
	// the resulting version record. The message is the user instruction the
	// orchestrator supplies.
	CommitVersion(ctx context.Context, project, message string) (Version, error)
	VersionCount(ctx context.Context, project string) (int, error)

	// PreviewURL resolves the address a live preview of the project is served
	// from, used for screenshot capture and preview refresh.
	PreviewURL(project string) string
}

// Screenshotter captures a rendered image of a project preview.
type Screenshotter interface {
	Capture(ctx context.Context, url string) ([]byte, error)
}

// Searcher is the web search collaborator behind the web_search capability.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Notifier receives one-way side-effect notifications from the tool layer.
// FileChanged is fired after any successful file-mutating capability so a live
// preview can refresh; ProjectSelected is fired once when create_project
// succeeds; ProjectsChanged is fired when the project listing should be
// re-read (for example after a late delegated completion).
//
// All methods must be non-blocking; implementations typically post to a UI
// event loop. A nil-safe NoOpNotifier is provided for tests and headless use.
type Notifier interface {
	FileChanged(project, path string)
	ProjectSelected(project string, subProject bool)
	ProjectsChanged()
}

// NoOpNotifier discards all notifications.
type NoOpNotifier struct{}

// FileChanged implements Notifier.
func (NoOpNotifier) FileChanged(string, string) {}

// ProjectSelected implements Notifier.
func (NoOpNotifier) ProjectSelected(string, bool) {}

// ProjectsChanged implements Notifier.
func (NoOpNotifier) ProjectsChanged() {}

var versionSegment = regexp.MustCompile(`(^|/)v[0-9]+($|/)`)

// IsSubProject reports whether a project name is version-scoped, i.e. contains
// a version path segment such as "bakery/v2". Delegated sub-runs write into
// such paths to avoid collisions with the base project.
func IsSubProject(name string) bool { return versionSegment.MatchString(name) }

// SubProjectName builds the version-scoped sub-project path for the given base
// project and version number.
func SubProjectName(base string, n int) string {
	return base + "/v" + strconv.Itoa(n)
}
