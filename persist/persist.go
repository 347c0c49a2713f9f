// Package persist stores per-project session state on disk: the chat
// transcript, the provider-shaped raw history, and the side panel snapshot.
// Persistence is best effort; a failed write must never take down a run, so
// callers log and continue.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"sitesmith/core"
	"sitesmith/logging"
	"sitesmith/panel"
)

const (
	chatFile  = "chat.json"
	rawFile   = "raw.json"
	panelFile = "panel.json"
)

// ErrRestoring reports a write suppressed because a restore was in flight.
var ErrRestoring = errors.New("persist: store is restoring")

// Options configures a Store.
type Options struct {
	// Logger receives structured persistence records.
	Logger logging.Logger
}

// Store persists session state under a root directory, one subdirectory per
// project. While a restore is in flight all writes are suppressed so loading
// saved state can never clobber the files it is loading from.
type Store struct {
	root      string
	logger    logging.Logger
	restoring atomic.Bool
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{root: dir, logger: opts.Logger}, nil
}

// SetRestoring toggles the restore guard.
func (s *Store) SetRestoring(v bool) { s.restoring.Store(v) }

// IsRestoring reports whether the restore guard is up.
func (s *Store) IsRestoring() bool { return s.restoring.Load() }

// SaveChat writes the chat transcript of a project.
func (s *Store) SaveChat(project string, messages []core.Message) error {
	return s.write(project, chatFile, messages)
}

// LoadChat reads the chat transcript of a project. A missing file yields an
// empty transcript, not an error.
func (s *Store) LoadChat(project string) ([]core.Message, error) {
	var messages []core.Message
	if err := s.read(project, chatFile, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SaveRaw writes the provider-shaped raw history of a project.
func (s *Store) SaveRaw(project string, raw []core.RawTurn) error {
	return s.write(project, rawFile, raw)
}

// LoadRaw reads the raw history of a project.
func (s *Store) LoadRaw(project string) ([]core.RawTurn, error) {
	var raw []core.RawTurn
	if err := s.read(project, rawFile, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// SavePanel writes the side panel snapshot of a project.
func (s *Store) SavePanel(project string, state panel.State) error {
	return s.write(project, panelFile, state)
}

// LoadPanel reads the side panel snapshot of a project.
func (s *Store) LoadPanel(project string) (panel.State, error) {
	var state panel.State
	if err := s.read(project, panelFile, &state); err != nil {
		return panel.State{}, err
	}
	return state, nil
}

// Clear removes all persisted state of a project, for a new conversation.
func (s *Store) Clear(project string) error {
	dir, err := s.projectDir(project)
	if err != nil {
		return err
	}
	for _, name := range []string{chatFile, rawFile, panelFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (s *Store) write(project, name string, v any) error {
	if s.restoring.Load() {
		s.logger.Debug("persist.write_suppressed", "project", project, "file", name)
		return ErrRestoring
	}
	dir, err := s.projectDir(project)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	// Write-then-rename keeps a crash from leaving a truncated file behind.
	tmp := filepath.Join(dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, name))
}

func (s *Store) read(project, name string, v any) error {
	dir, err := s.projectDir(project)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *Store) projectDir(project string) (string, error) {
	if project == "" {
		return "", errors.New("persist: project must not be empty")
	}
	if strings.Contains(project, "..") || filepath.IsAbs(project) {
		return "", fmt.Errorf("persist: invalid project name %q", project)
	}
	return filepath.Join(s.root, filepath.FromSlash(project)), nil
}
