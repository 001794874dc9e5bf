// Package sessionstore persists the session state of the dw CLI between
// invocations.
package sessionstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/hashicorp-forge/dwclient/pkg/session"
)

// FileName is the session file inside the config directory.
const FileName = "session.json"

// Store reads and writes one session blob. The file holds a live session
// token, so it is only ever readable by its owner.
type Store struct {
	fs     afero.Fs
	dir    string
	logger hclog.Logger

	mu sync.Mutex
}

// New creates a Store for dir.
func New(fs afero.Fs, dir string, logger hclog.Logger) *Store {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Store{fs: fs, dir: dir, logger: logger.Named("sessionstore")}
}

// Path returns the session file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Load returns the persisted state, or nil when there is none. A corrupt
// file is reported and treated as absent.
func (s *Store) Load() (*session.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	state, err := session.UnmarshalState(data)
	if err != nil {
		s.logger.Warn("ignoring unreadable session file", "path", s.Path(), "error", err)
		return nil, nil
	}
	return state, nil
}

// Save persists state, replacing any previous one.
func (s *Store) Save(state session.State) error {
	data, err := state.Marshal()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	// Write then rename so a crash never leaves a truncated blob.
	tmp := s.Path() + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := s.fs.Rename(tmp, s.Path()); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	s.logger.Debug("session saved", "scheme", state.Scheme)
	return nil
}

// Remove deletes the persisted state. A missing file is not an error.
func (s *Store) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(s.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
