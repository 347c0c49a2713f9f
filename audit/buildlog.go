// Package audit writes the human-readable operational records of the studio:
// a per-project build log narrating each run, and a global request log with
// one fixed-width row per model call including an estimated cost.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sitesmith/core"
	"sitesmith/logging"
)

const buildLogFile = "build.log"

// BuildLog appends a narrated record of every run to one log file per
// project. Entries are plain text so the file reads like a story of the
// build; it is never parsed back.
type BuildLog struct {
	mu     sync.Mutex
	root   string
	logger logging.Logger
}

// NewBuildLog creates a build log rooted at dir.
func NewBuildLog(dir string, logger logging.Logger) (*BuildLog, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &BuildLog{root: dir, logger: logger}, nil
}

// Begin records the start of a run with the user instruction that triggered it.
func (b *BuildLog) Begin(project, instruction string) {
	b.append(project, fmt.Sprintf(
		"\n=== %s ===\n>>> %s\n",
		time.Now().UTC().Format(time.RFC3339),
		strings.TrimSpace(instruction),
	))
}

// Record appends one activity line. Delegated entries are prefixed with their
// role so interleaved worker output stays attributable.
func (b *BuildLog) Record(project string, entry core.ActivityEntry) {
	prefix := ""
	if entry.Role != "" {
		prefix = "[" + entry.Role + "] "
	}
	b.append(project, fmt.Sprintf("%s %s%s\n", entry.Icon, prefix, entry.Text))
}

// Complete records the terminal stats of a run.
func (b *BuildLog) Complete(project string, result *core.TurnResult) {
	if result == nil {
		return
	}
	b.append(project, fmt.Sprintf(
		"<<< done: %d model call(s), %d in / %d out tokens, %s\n",
		result.ModelCalls,
		result.InputTokens,
		result.OutputTokens,
		result.Elapsed.Round(time.Millisecond),
	))
}

func (b *BuildLog) append(project, line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dir := filepath.Join(b.root, filepath.FromSlash(project))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.logger.Warn("audit.buildlog_failed", "project", project, "error", err.Error())
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, buildLogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		b.logger.Warn("audit.buildlog_failed", "project", project, "error", err.Error())
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		b.logger.Warn("audit.buildlog_failed", "project", project, "error", err.Error())
	}
}

// Path returns the build log location for a project.
func (b *BuildLog) Path(project string) string {
	return filepath.Join(b.root, filepath.FromSlash(project), buildLogFile)
}
