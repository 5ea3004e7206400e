package regress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Baseline is a named, git-sha-stamped snapshot of case results used
// as the regression comparison point.
type Baseline struct {
	Name      string       `json:"name"`
	GitSHA    string       `json:"gitSha"`
	CreatedAt time.Time    `json:"createdAt"`
	Results   []CaseResult `json:"results"`
}

// NewBaseline stamps the results with a name and revision.
func NewBaseline(name, gitSHA string, results []CaseResult) Baseline {
	return Baseline{
		Name:      name,
		GitSHA:    gitSHA,
		CreatedAt: time.Now().UTC(),
		Results:   results,
	}
}

// Save writes the baseline as JSON at path.
func (b Baseline) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create baseline directory: %w", err)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write baseline: %w", err)
	}
	return nil
}

// LoadBaseline reads a baseline from path.
func LoadBaseline(path string) (Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Baseline{}, fmt.Errorf("read baseline %s: %w", path, err)
	}
	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return Baseline{}, fmt.Errorf("decode baseline %s: %w", path, err)
	}
	return b, nil
}
