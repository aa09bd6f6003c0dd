package sync

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// State is the persisted record of the most recent pass, consumed by the
// status command and the dashboard. Concurrent writers are not supported;
// the single-flight guard on the driver makes that a non-issue in practice.
type State struct {
	// LastSync is the completion time of the last successful pass.
	LastSync time.Time `json:"last_sync"`
	// LastMessage is the summary of the last successful pass.
	LastMessage string `json:"last_message,omitempty"`
	// LastError is the failure message of the last pass, empty when the
	// last pass succeeded.
	LastError string `json:"last_error,omitempty"`
}

// LoadState loads pass state from file. A missing or corrupt file yields an
// empty state rather than an error.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return &State{}, nil
	}
	return &st, nil
}

// SaveState saves pass state atomically via write-to-temp-then-rename.
func SaveState(path string, st *State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// saveState records a pass outcome when a state path is configured.
func (s *Syncer) saveState(res *Result, passErr error) {
	if s.statePath == "" {
		return
	}
	st, err := LoadState(s.statePath)
	if err != nil {
		s.log.Warnf("failed to load state file: %v", err)
		st = &State{}
	}
	if passErr != nil {
		st.LastError = passErr.Error()
	} else {
		st.LastSync = res.CompletedAt
		st.LastMessage = res.Message
		st.LastError = ""
	}
	if err := SaveState(s.statePath, st); err != nil {
		s.log.Warnf("failed to save state file: %v", err)
	}
}
