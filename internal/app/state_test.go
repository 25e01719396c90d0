package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadState_Missing(t *testing.T) {
	state, err := LoadState(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Expected no error for a missing state file, got: %v", err)
	}
	if state != nil {
		t.Errorf("Expected nil state, got %+v", state)
	}
}

func TestSaveAndLoadState(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".dockertester.state.json")

	state := NewState("dockertester.yaml")
	state.Track(TrackedContainer{ID: "abc", Stage: "postgres", Kind: KindPostgres, Host: "127.0.0.1", Port: 49153})

	if err := SaveState(path, state); err != nil {
		t.Fatalf("Failed to save state: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected state file mode 0600, got %v", info.Mode().Perm())
	}

	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("Failed to load state: %v", err)
	}
	if loaded.RunID != state.RunID {
		t.Errorf("Expected run id %s, got %s", state.RunID, loaded.RunID)
	}
	if len(loaded.Containers) != 1 || loaded.Containers[0].Port != 49153 {
		t.Errorf("Unexpected containers: %+v", loaded.Containers)
	}
	if loaded.Containers[0].StartedAt.IsZero() {
		t.Error("Expected StartedAt to be set by Track")
	}
}

func TestLoadState_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{name: "corrupted", content: "{not json", errMsg: "failed to parse state file"},
		{name: "unknown schema", content: `{"schema_version":"9.9"}`, errMsg: "unsupported state file schema version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}

			_, err := LoadState(path)
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got: %v", tt.errMsg, err)
			}
		})
	}
}

func TestSessionState_Untrack(t *testing.T) {
	state := NewState("")
	state.Track(TrackedContainer{ID: "a", Stage: "postgres"})
	state.Track(TrackedContainer{ID: "b", Stage: "container:cache"})

	if !state.Untrack("a") {
		t.Error("Expected container a to be untracked")
	}
	if state.Untrack("a") {
		t.Error("Expected second untrack of a to report false")
	}
	if state.hasStage("postgres") {
		t.Error("Expected postgres stage to be gone")
	}
	if !state.hasStage("container:cache") {
		t.Error("Expected cache stage to remain")
	}

	var nilState *SessionState
	if nilState.hasStage("postgres") {
		t.Error("Expected nil state to have no stages")
	}
}

func TestRemoveStateFile_Missing(t *testing.T) {
	if err := RemoveStateFile(filepath.Join(t.TempDir(), "missing.json")); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
}
