package workspace

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"sitesmith/core"
	"sitesmith/logging"
)

// Watcher observes the workspace tree with fsnotify and reports file changes
// through a Notifier, attributing each event to the project that owns the
// changed path. It exists so out-of-band edits (a human touching files while
// the studio runs) still refresh the preview.
type Watcher struct {
	local    *Local
	notifier core.Notifier
	logger   logging.Logger
	fsw      *fsnotify.Watcher
}

// NewWatcher creates a watcher over the given workspace.
func NewWatcher(local *Local, notifier core.Notifier, logger logging.Logger) (*Watcher, error) {
	if notifier == nil {
		notifier = core.NoOpNotifier{}
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{local: local, notifier: notifier, logger: logger, fsw: fsw}, nil
}

// Run watches until the context is canceled. Directories added while running
// are picked up so newly created projects are covered without a restart.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	if err := w.addTree(w.local.Root()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher.error", "error", err.Error())
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.local.Root(), event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || isGitPath(rel) {
		return
	}

	if event.Has(fsnotify.Create) {
		// New directories (projects, asset folders) need their own watch.
		if err := w.addTree(event.Name); err != nil {
			w.logger.Debug("watcher.add_failed", "path", rel, "error", err.Error())
		}
	}

	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		project, path := splitProjectPath(rel)
		if project == "" || path == "" {
			return
		}
		w.logger.Debug("watcher.file_changed", "project", project, "path", path)
		w.notifier.FileChanged(project, path)
	}
}

// addTree recursively registers a directory and its subdirectories. Paths
// that vanished between the event and the walk are skipped silently.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Debug("watcher.add_failed", "path", path, "error", err.Error())
		}
		return nil
	})
}

func isGitPath(rel string) bool {
	return rel == ".git" || strings.Contains(rel, "/.git/") || strings.HasSuffix(rel, "/.git")
}

// splitProjectPath attributes a workspace-relative path to its owning
// project. Sub-project paths like bakery/v2/index.html belong to bakery/v2,
// not to bakery.
func splitProjectPath(rel string) (project, path string) {
	segments := strings.Split(rel, "/")
	if len(segments) < 2 {
		return "", ""
	}
	// A version segment extends the project boundary: bakery/v2/index.html
	// belongs to bakery/v2.
	split := 1
	for i := 2; i <= len(segments)-1; i++ {
		if core.IsSubProject(segments[i-1]) {
			split = i
		}
	}
	return strings.Join(segments[:split], "/"), strings.Join(segments[split:], "/")
}
