package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otaflow/ota-agent/api"
)

var currentStateVersion = 1

// MaxHistory is the number of outcome records kept on disk.
const MaxHistory = 20

// ErrNewerState is returned when the state file was written by a newer agent.
var ErrNewerState = errors.New("state file is from a newer version")

// State represents the on-disk persistent state.
type State struct {
	path string
	mu   sync.Mutex

	StateVersion int                 `yaml:"version"`
	LastCheck    time.Time           `yaml:"last_check,omitempty"`
	LastOutcome  *api.OutcomeRecord  `yaml:"last_outcome,omitempty"`
	History      []api.OutcomeRecord `yaml:"history,omitempty"`
}

// LoadOrCreate parses the on-disk state file and returns a State struct.
// If no file exists, a new empty one is created.
func LoadOrCreate(path string) (*State, error) {
	s := State{
		path: path,

		StateVersion: currentStateVersion,
	}

	body, err := os.ReadFile(s.path)
	if err == nil {
		decoder := yaml.NewDecoder(bytes.NewReader(body))
		decoder.KnownFields(true)

		err = decoder.Decode(&s)
		if err != nil {
			return nil, fmt.Errorf("failed to parse state file %q: %w", path, err)
		}

		if s.StateVersion > currentStateVersion {
			return nil, fmt.Errorf("%w (%d)", ErrNewerState, s.StateVersion)
		}

		s.StateVersion = currentStateVersion

		return &s, nil
	}

	if os.IsNotExist(err) {
		// State file doesn't exist, create it and return it.
		err = s.Save()
		if err != nil {
			return nil, err
		}

		return &s, nil
	}

	return nil, err
}

// Save writes out the current state struct into its on-disk storage.
func (s *State) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save()
}

func (s *State) save() error {
	body, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(s.path), 0o700)
	if err != nil {
		return err
	}

	// Replace the file in one step so a crash never leaves a truncated state behind.
	tmp := s.path + ".tmp"

	err = os.WriteFile(tmp, body, 0o600)
	if err != nil {
		return err
	}

	return os.Rename(tmp, s.path)
}

// PublishOutcome records the outcome of a cycle and persists it.
func (s *State) PublishOutcome(_ context.Context, record api.OutcomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastCheck = record.Timestamp
	s.LastOutcome = &record

	s.History = append(s.History, record)
	if len(s.History) > MaxHistory {
		s.History = s.History[len(s.History)-MaxHistory:]
	}

	return s.save()
}

// UpdateState returns the persisted part of the update state.
func (s *State) UpdateState() api.UpdateState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := api.UpdateState{
		LastCheck: s.LastCheck,
		Status:    "Never checked",
	}

	if s.LastOutcome != nil {
		last := *s.LastOutcome
		st.LastOutcome = &last

		switch last.Outcome {
		case api.OutcomeApplied:
			st.Status = "Applied " + last.CandidateVersion
		case api.OutcomeFailed:
			st.Status = "Failed: " + string(last.Reason)
		default:
			st.Status = "Up to date"
		}
	}

	return st
}

// Outcomes returns a copy of the recorded outcome history, oldest first.
func (s *State) Outcomes() []api.OutcomeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]api.OutcomeRecord(nil), s.History...)
}
