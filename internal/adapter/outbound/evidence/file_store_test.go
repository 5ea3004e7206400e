package evidence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/proofgate/proofgate/internal/domain/evidence"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ev := evidence.Evidence{
		RunID:            "run-1",
		InputDescription: "run the api tests",
		Decision:         "PASS",
		Summary:          evidence.Summary{Total: 2, Succeeded: 2},
		CollectedAt:      time.Now().UTC(),
	}

	if err := store.Save(ev); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load("run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.RunID != ev.RunID || got.Decision != ev.Decision || got.Summary != ev.Summary {
		t.Errorf("Load() = %+v, want round-trip of saved bundle", got)
	}
}

func TestArtifactDir_CreatesNestedLayout(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	dir, err := store.ArtifactDir("run-1", "run_pytest")
	if err != nil {
		t.Fatalf("ArtifactDir: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("artifact dir missing: %v", err)
	}
	if filepath.Base(dir) != "run_pytest" || filepath.Base(filepath.Dir(dir)) != "run-1" {
		t.Errorf("unexpected layout: %s", dir)
	}
}

func TestResolve_RejectsEscapes(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	if _, err := store.Resolve("run-1", "/etc/passwd"); !errors.Is(err, ErrUnsafePath) {
		t.Errorf("Resolve(absolute) error = %v, want ErrUnsafePath", err)
	}
	if _, err := store.Resolve("run-1", "../other-run/evidence.json"); !errors.Is(err, ErrUnsafePath) {
		t.Errorf("Resolve(traversal) error = %v, want ErrUnsafePath", err)
	}
	if _, err := store.Resolve("run-1", "run_pytest/../../x"); !errors.Is(err, ErrUnsafePath) {
		t.Errorf("Resolve(nested traversal) error = %v, want ErrUnsafePath", err)
	}

	path, err := store.Resolve("run-1", "run_pytest/junit.xml")
	if err != nil {
		t.Fatalf("Resolve(valid): %v", err)
	}
	if filepath.Base(path) != "junit.xml" {
		t.Errorf("Resolve() = %s", path)
	}
}

func TestRunID_Validated(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	for _, bad := range []string{"", "..", "a/b", `a\b`} {
		if _, err := store.ArtifactDir(bad, "run_pytest"); !errors.Is(err, ErrUnsafePath) {
			t.Errorf("ArtifactDir(%q) error = %v, want ErrUnsafePath", bad, err)
		}
	}
}
