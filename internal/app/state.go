package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
)

const StateSchemaVersion = "1.0"

// Container kinds recorded in the state file.
const (
	KindPostgres  = "postgres"
	KindContainer = "container"
)

// TrackedContainer is a container started by dockertester that has not been removed yet.
type TrackedContainer struct {
	ID        string    `json:"id"`
	Stage     string    `json:"stage"`
	Kind      string    `json:"kind"`
	Image     string    `json:"image"`
	Host      string    `json:"host"`
	Port      uint16    `json:"port"`
	URL       string    `json:"url,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// SessionState is the content of the state file: the containers to remove on `down`.
type SessionState struct {
	SchemaVersion string             `json:"schema_version"`
	RunID         string             `json:"run_id"`
	ProfilePath   string             `json:"profile_path,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	LastUpdatedAt time.Time          `json:"last_updated_at"`
	Containers    []TrackedContainer `json:"containers"`
}

// LoadState reads the state file at path. It returns nil when the file doesn't exist.
func LoadState(path string) (*SessionState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if state.SchemaVersion != StateSchemaVersion {
		return nil, fmt.Errorf("unsupported state file schema version %q", state.SchemaVersion)
	}
	return &state, nil
}

// SaveState writes state to path. The file holds database passwords, so it is private.
func SaveState(path string, state *SessionState) error {
	state.LastUpdatedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// RemoveStateFile deletes the state file; a missing file is not an error.
func RemoveStateFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// NewState creates the state of a fresh run.
func NewState(profilePath string) *SessionState {
	now := time.Now()
	return &SessionState{
		SchemaVersion: StateSchemaVersion,
		RunID:         uuid.NewString(),
		ProfilePath:   profilePath,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
}

// Track records a started container.
func (s *SessionState) Track(c TrackedContainer) {
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now()
	}
	s.Containers = append(s.Containers, c)
}

// Untrack forgets the container with the given id and reports whether it was tracked.
func (s *SessionState) Untrack(id string) bool {
	n := len(s.Containers)
	s.Containers = slices.DeleteFunc(s.Containers, func(c TrackedContainer) bool {
		return c.ID == id
	})
	return len(s.Containers) != n
}

// hasStage reports whether the stage already started its container in this run.
func (s *SessionState) hasStage(stage string) bool {
	if s == nil {
		return false
	}
	return slices.ContainsFunc(s.Containers, func(c TrackedContainer) bool {
		return c.Stage == stage
	})
}
