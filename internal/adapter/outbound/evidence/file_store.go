// Package evidence persists evidence bundles and tool artifacts on the
// local filesystem, one directory per run.
package evidence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/proofgate/proofgate/internal/domain/evidence"
)

// ErrUnsafePath is returned when a run or artifact path would escape
// the store root.
var ErrUnsafePath = errors.New("unsafe path")

const (
	runsDirName  = "runs"
	evidenceFile = "evidence.json"
)

// FileStore lays out evidence as:
//
//	<root>/runs/<runId>/evidence.json
//	<root>/runs/<runId>/<tool>/<artifact files>
type FileStore struct {
	root string
}

// NewFileStore creates the store rooted at root, creating the runs
// directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(root, runsDirName), 0o700); err != nil {
		return nil, fmt.Errorf("create evidence root: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Save writes the evidence bundle for its run.
func (s *FileStore) Save(ev evidence.Evidence) error {
	runDir, err := s.runDir(ev.RunID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(runDir, 0o700); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}

	data, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return fmt.Errorf("encode evidence: %w", err)
	}
	path := filepath.Join(runDir, evidenceFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write evidence: %w", err)
	}
	return nil
}

// Load reads the evidence bundle for runID.
func (s *FileStore) Load(runID string) (evidence.Evidence, error) {
	runDir, err := s.runDir(runID)
	if err != nil {
		return evidence.Evidence{}, err
	}
	data, err := os.ReadFile(filepath.Join(runDir, evidenceFile))
	if err != nil {
		return evidence.Evidence{}, fmt.Errorf("read evidence for run %s: %w", runID, err)
	}
	var ev evidence.Evidence
	if err := json.Unmarshal(data, &ev); err != nil {
		return evidence.Evidence{}, fmt.Errorf("decode evidence for run %s: %w", runID, err)
	}
	return ev, nil
}

// ArtifactDir returns (creating if needed) the artifact directory for
// one tool invocation within a run.
func (s *FileStore) ArtifactDir(runID, toolName string) (string, error) {
	runDir, err := s.runDir(runID)
	if err != nil {
		return "", err
	}
	if err := validateSegment(toolName); err != nil {
		return "", err
	}
	dir := filepath.Join(runDir, toolName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}
	return dir, nil
}

// Resolve maps an artifact reference (relative to the run directory,
// as recorded in evidence) to an absolute path, rejecting references
// that would escape the run directory.
func (s *FileStore) Resolve(runID, ref string) (string, error) {
	runDir, err := s.runDir(runID)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(ref) {
		return "", fmt.Errorf("%w: absolute artifact ref %q", ErrUnsafePath, ref)
	}
	cleaned := filepath.Clean(ref)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: artifact ref %q escapes run directory", ErrUnsafePath, ref)
	}
	return filepath.Join(runDir, cleaned), nil
}

// runDir validates runID and returns its directory path.
func (s *FileStore) runDir(runID string) (string, error) {
	if err := validateSegment(runID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, runsDirName, runID), nil
}

// validateSegment rejects path segments that could traverse outside
// their parent directory.
func validateSegment(segment string) error {
	if segment == "" || segment == "." || segment == ".." {
		return fmt.Errorf("%w: empty or dot segment", ErrUnsafePath)
	}
	if strings.ContainsAny(segment, "/\\") {
		return fmt.Errorf("%w: segment %q contains a separator", ErrUnsafePath, segment)
	}
	return nil
}
