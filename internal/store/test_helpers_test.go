package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/flowdoc/internal/spec"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// chainFlow describes flow uuid with jobs A -> B (B depends on A).
func chainFlow(uuid string) spec.FlowSpec {
	return spec.FlowSpec{
		UUID: uuid,
		Name: "chain",
		Jobs: []spec.JobSpec{
			{UUID: uuid + "-A", Index: 1, Name: "a", Function: "tasks.a"},
			{UUID: uuid + "-B", Index: 1, Name: "b", Function: "tasks.b", Parents: []string{uuid + "-A"}},
		},
	}
}
