package library

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"
)

// selectionFile is the on-disk shape of the user-selection state.
type selectionFile struct {
	SelectedUsers []string `json:"selected_users"`
	Initialized   bool     `json:"initialized"`
}

// selection tracks which media-server users feed the scrobbler. Until the
// first toggle it stays uninitialized and every user counts as selected; the
// first toggle snapshots the then-current user set as the selection.
type selection struct {
	fs   afero.Fs
	path string

	mu          sync.Mutex
	selected    map[string]struct{}
	initialized bool
}

func newSelection(fs afero.Fs, path string) *selection {
	s := &selection{
		fs:       fs,
		path:     path,
		selected: make(map[string]struct{}),
	}
	s.load()
	return s
}

func (s *selection) load() {
	info, err := s.fs.Stat(s.path)
	if err != nil {
		return
	}
	if info.IsDir() {
		slog.Warn("library.selection.state_path_is_dir", "path", s.path)
		return
	}
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		slog.Warn("library.selection.read_failed", "path", s.path, "error", err)
		return
	}
	var file selectionFile
	if err := json.Unmarshal(data, &file); err != nil {
		slog.Warn("library.selection.parse_failed", "path", s.path, "error", err)
		return
	}
	for _, id := range file.SelectedUsers {
		if id != "" {
			s.selected[id] = struct{}{}
		}
	}
	s.initialized = file.Initialized
}

// save persists the selection. Callers hold s.mu.
func (s *selection) save() error {
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	data, err := json.MarshalIndent(selectionFile{
		SelectedUsers: ids,
		Initialized:   s.initialized,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode selection state: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create selection state dir: %w", err)
		}
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o644); err != nil {
		return fmt.Errorf("write selection state: %w", err)
	}
	return nil
}

// isSelected reports whether a user's history feeds the scrobbler.
func (s *selection) isSelected(userID string) bool {
	if userID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return true
	}
	_, ok := s.selected[userID]
	return ok
}

// setEnabled toggles a user. On the first toggle ever, all of currentUsers
// become the selected set before the toggle applies.
func (s *selection) setEnabled(userID string, enabled bool, currentUsers []string) ([]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		s.selected = make(map[string]struct{}, len(currentUsers))
		for _, id := range currentUsers {
			s.selected[id] = struct{}{}
		}
		s.initialized = true
	}
	if enabled {
		s.selected[userID] = struct{}{}
	} else {
		delete(s.selected, userID)
	}
	if err := s.save(); err != nil {
		return nil, s.initialized, err
	}
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, s.initialized, nil
}

// pruneMissing drops selections for users that no longer exist on the server.
func (s *selection) pruneMissing(current map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return
	}
	changed := false
	for id := range s.selected {
		if _, ok := current[id]; !ok {
			delete(s.selected, id)
			changed = true
		}
	}
	if changed {
		if err := s.save(); err != nil {
			slog.Warn("library.selection.save_failed", "path", s.path, "error", err)
		}
	}
}

func (s *selection) isInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}
