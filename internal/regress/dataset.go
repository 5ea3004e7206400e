// Package regress replays a golden dataset through the run pipeline
// and diffs the rendered decisions against a stored baseline.
package regress

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/proofgate/proofgate/internal/domain/evidence"
)

// ErrDataset is the sentinel wrapped by dataset load failures.
var ErrDataset = errors.New("dataset load failed")

// CaseOptions are the explicit run options of a golden case. Empty
// options fall back to the pipeline's intent heuristic.
type CaseOptions struct {
	ToolName       string         `yaml:"toolName"`
	Args           map[string]any `yaml:"args"`
	TimeoutSeconds int            `yaml:"timeoutSeconds"`
	// Review injects a canned AI review opinion for cases exercising
	// the confidence branches.
	Review *evidence.AIReview `yaml:"review"`
}

// SummaryExpectation pins the expected evidence summary counts.
type SummaryExpectation struct {
	Total     int `yaml:"total"`
	Succeeded int `yaml:"succeeded"`
	Failed    int `yaml:"failed"`
}

// Expectation is what a golden case must produce.
type Expectation struct {
	Decision string              `yaml:"decision"`
	Summary  *SummaryExpectation `yaml:"summary"`
}

// GoldenCase is one replayable scenario.
type GoldenCase struct {
	ID       string      `yaml:"id"`
	Input    string      `yaml:"input"`
	Options  CaseOptions `yaml:"options"`
	Expected Expectation `yaml:"expected"`
}

// Dataset is a named collection of golden cases.
type Dataset struct {
	Name  string       `yaml:"name"`
	Cases []GoldenCase `yaml:"cases"`
}

// LoadDataset reads and validates a golden dataset from a YAML file.
func LoadDataset(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("%w: read %s: %w", ErrDataset, path, err)
	}

	var ds Dataset
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil {
		return Dataset{}, fmt.Errorf("%w: parse yaml: %w", ErrDataset, err)
	}

	if len(ds.Cases) == 0 {
		return Dataset{}, fmt.Errorf("%w: dataset has no cases", ErrDataset)
	}
	seen := make(map[string]bool, len(ds.Cases))
	for i, c := range ds.Cases {
		if c.ID == "" {
			return Dataset{}, fmt.Errorf("%w: case %d has no id", ErrDataset, i)
		}
		if seen[c.ID] {
			return Dataset{}, fmt.Errorf("%w: duplicate case id %q", ErrDataset, c.ID)
		}
		seen[c.ID] = true
		switch c.Expected.Decision {
		case "PASS", "FAIL", "NEED_HITL":
		default:
			return Dataset{}, fmt.Errorf("%w: case %q has invalid expected decision %q", ErrDataset, c.ID, c.Expected.Decision)
		}
	}
	return ds, nil
}
