// Package workspace provides the on-disk project store behind the tool
// layer: rooted per-project directories versioned with git, a change watcher
// feeding preview refreshes, and a headless-browser screenshotter.
package workspace

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"sitesmith/core"
	"sitesmith/logging"
)

// Options configures a Local workspace.
type Options struct {
	// PreviewBaseURL is the address the preview server serves projects
	// under; PreviewURL appends the project path to it.
	PreviewBaseURL string

	// GitTimeout bounds every git invocation.
	GitTimeout time.Duration

	// Logger receives structured workspace records.
	Logger logging.Logger
}

// Local implements core.Workspace on a rooted directory tree. Each project is
// a directory (sub-projects nest under their base) holding its own git
// repository; a version is one commit, and the version count is the commit
// count.
type Local struct {
	root           string
	previewBaseURL string
	gitTimeout     time.Duration
	logger         logging.Logger
}

var _ core.Workspace = (*Local)(nil)

// NewLocal creates a workspace rooted at dir, creating it if needed.
func NewLocal(dir string, optFns ...func(o *Options)) (*Local, error) {
	opts := Options{
		PreviewBaseURL: "http://localhost:8080",
		GitTimeout:     30 * time.Second,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Local{
		root:           abs,
		previewBaseURL: strings.TrimRight(opts.PreviewBaseURL, "/"),
		gitTimeout:     opts.GitTimeout,
		logger:         opts.Logger,
	}, nil
}

// Root returns the absolute workspace root directory.
func (l *Local) Root() string { return l.root }

// CreateProject implements core.Workspace. The new project directory gets its
// own git repository so versions are tracked independently, including for
// version-scoped sub-projects.
func (l *Local) CreateProject(ctx context.Context, name string) error {
	dir, err := l.projectDir(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("project %q already exists", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	if _, err := l.git(ctx, dir, "init", "-q"); err != nil {
		l.logger.Warn("workspace.git_init_failed", "project", name, "error", err.Error())
	}
	l.logger.Info("workspace.project_created", "project", name)
	return nil
}

// ListProjects implements core.Workspace. Sub-projects are listed alongside
// their base using slash-separated names.
func (l *Local) ListProjects(ctx context.Context) ([]string, error) {
	var projects []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == l.root {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		if _, statErr := os.Stat(filepath.Join(path, ".git")); statErr == nil {
			projects = append(projects, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Strings(projects)
	return projects, nil
}

// ProjectExists implements core.Workspace.
func (l *Local) ProjectExists(_ context.Context, name string) bool {
	dir, err := l.projectDir(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// ListFiles implements core.Workspace, returning slash-separated paths
// relative to the project root. Git internals and nested sub-projects are
// excluded.
func (l *Local) ListFiles(ctx context.Context, project string) ([]string, error) {
	dir, err := l.projectDir(project)
	if err != nil {
		return nil, err
	}
	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if path != dir {
				// A nested git repository is a sub-project, not a file tree
				// of this project.
				if _, statErr := os.Stat(filepath.Join(path, ".git")); statErr == nil {
					return filepath.SkipDir
				}
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile implements core.Workspace.
func (l *Local) ReadFile(_ context.Context, project, path string) (string, error) {
	full, err := l.filePath(project, path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteFile implements core.Workspace, creating parent directories as needed.
func (l *Local) WriteFile(_ context.Context, project, path, content string) error {
	full, err := l.filePath(project, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// DeleteFile implements core.Workspace.
func (l *Local) DeleteFile(_ context.Context, project, path string) error {
	full, err := l.filePath(project, path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// CommitVersion implements core.Workspace by staging everything and
// committing with the instruction as message.
func (l *Local) CommitVersion(ctx context.Context, project, message string) (core.Version, error) {
	dir, err := l.projectDir(project)
	if err != nil {
		return core.Version{}, err
	}
	if _, err := l.git(ctx, dir, "add", "-A"); err != nil {
		return core.Version{}, fmt.Errorf("stage changes: %w", err)
	}
	if message == "" {
		message = "New version"
	}
	if _, err := l.git(ctx, dir,
		"-c", "user.name=sitesmith",
		"-c", "user.email=sitesmith@localhost",
		"commit", "-q", "--allow-empty", "-m", message,
	); err != nil {
		return core.Version{}, fmt.Errorf("commit version: %w", err)
	}
	count, err := l.VersionCount(ctx, project)
	if err != nil {
		return core.Version{}, err
	}
	l.logger.Info("workspace.version_built", "project", project, "version", count)
	return core.Version{Number: count, Instruction: message, Timestamp: time.Now().UTC()}, nil
}

// VersionCount implements core.Workspace as the commit count of the project
// repository; a project with no commits yet has zero versions.
func (l *Local) VersionCount(ctx context.Context, project string) (int, error) {
	dir, err := l.projectDir(project)
	if err != nil {
		return 0, err
	}
	out, err := l.git(ctx, dir, "rev-list", "--count", "HEAD")
	if err != nil {
		// HEAD does not exist before the first commit.
		return 0, nil
	}
	count, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("parse commit count: %w", err)
	}
	return count, nil
}

// PreviewURL implements core.Workspace.
func (l *Local) PreviewURL(project string) string {
	return l.previewBaseURL + "/" + project + "/"
}

func (l *Local) git(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func (l *Local) projectDir(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("project name must not be empty")
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid project name %q", name)
	}
	return filepath.Join(l.root, clean), nil
}

func (l *Local) filePath(project, path string) (string, error) {
	dir, err := l.projectDir(project)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("file path must not be empty")
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid file path %q", path)
	}
	full := filepath.Join(dir, clean)
	if !strings.HasPrefix(full, dir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid file path %q", path)
	}
	return full, nil
}
