package regress

import "sort"

// Diff classifications.
const (
	// ClassUnchanged: same pass/fail state on both sides.
	ClassUnchanged = "unchanged"
	// ClassRegression: was passing in the baseline, now failing.
	ClassRegression = "REGRESSION"
	// ClassImproved: was failing in the baseline, now passing.
	ClassImproved = "IMPROVED"
	// ClassAdded: present only in the current results.
	ClassAdded = "ADDED"
	// ClassRemoved: present only in the baseline.
	ClassRemoved = "REMOVED"
)

// DiffEntry classifies one case id.
type DiffEntry struct {
	CaseID string `json:"caseId"`
	Class  string `json:"class"`
	// BaselinePassed / CurrentPassed are nil for sides where the case
	// is absent.
	BaselinePassed *bool `json:"baselinePassed,omitempty"`
	CurrentPassed  *bool `json:"currentPassed,omitempty"`
}

// DiffReport is the outer join of baseline and current case results.
type DiffReport struct {
	Entries      []DiffEntry `json:"entries"`
	Regressions  int         `json:"regressions"`
	Improvements int         `json:"improvements"`
	Added        int         `json:"added"`
	Removed      int         `json:"removed"`
	Unchanged    int         `json:"unchanged"`
}

// GenerateDiff outer-joins case ids between baseline and current and
// classifies each. Entries are sorted by case id for stable output.
func GenerateDiff(baseline, current []CaseResult) DiffReport {
	base := make(map[string]CaseResult, len(baseline))
	for _, r := range baseline {
		base[r.CaseID] = r
	}
	cur := make(map[string]CaseResult, len(current))
	for _, r := range current {
		cur[r.CaseID] = r
	}

	ids := make(map[string]bool, len(base)+len(cur))
	for id := range base {
		ids[id] = true
	}
	for id := range cur {
		ids[id] = true
	}

	var report DiffReport
	for id := range ids {
		b, inBase := base[id]
		c, inCur := cur[id]

		entry := DiffEntry{CaseID: id}
		switch {
		case inBase && !inCur:
			entry.Class = ClassRemoved
			entry.BaselinePassed = boolPtr(b.Passed)
			report.Removed++
		case !inBase && inCur:
			entry.Class = ClassAdded
			entry.CurrentPassed = boolPtr(c.Passed)
			report.Added++
		case b.Passed && !c.Passed:
			entry.Class = ClassRegression
			entry.BaselinePassed = boolPtr(true)
			entry.CurrentPassed = boolPtr(false)
			report.Regressions++
		case !b.Passed && c.Passed:
			entry.Class = ClassImproved
			entry.BaselinePassed = boolPtr(false)
			entry.CurrentPassed = boolPtr(true)
			report.Improvements++
		default:
			entry.Class = ClassUnchanged
			entry.BaselinePassed = boolPtr(b.Passed)
			entry.CurrentPassed = boolPtr(c.Passed)
			report.Unchanged++
		}
		report.Entries = append(report.Entries, entry)
	}

	sort.Slice(report.Entries, func(i, j int) bool {
		return report.Entries[i].CaseID < report.Entries[j].CaseID
	})
	return report
}

func boolPtr(b bool) *bool { return &b }
