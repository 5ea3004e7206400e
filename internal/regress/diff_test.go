package regress

import "testing"

func TestGenerateDiff_Classification(t *testing.T) {
	t.Parallel()

	baseline := []CaseResult{
		{CaseID: "A", Passed: true},
		{CaseID: "B", Passed: false},
	}
	current := []CaseResult{
		{CaseID: "A", Passed: false},
		{CaseID: "B", Passed: true},
		{CaseID: "C", Passed: true},
	}

	report := GenerateDiff(baseline, current)

	if report.Regressions != 1 || report.Improvements != 1 || report.Added != 1 || report.Removed != 0 {
		t.Errorf("totals = %d/%d/%d/%d, want 1/1/1/0",
			report.Regressions, report.Improvements, report.Added, report.Removed)
	}

	byID := make(map[string]DiffEntry, len(report.Entries))
	for _, e := range report.Entries {
		byID[e.CaseID] = e
	}
	if byID["A"].Class != ClassRegression {
		t.Errorf("A classified %q, want REGRESSION", byID["A"].Class)
	}
	if byID["B"].Class != ClassImproved {
		t.Errorf("B classified %q, want IMPROVED", byID["B"].Class)
	}
	if byID["C"].Class != ClassAdded {
		t.Errorf("C classified %q, want ADDED", byID["C"].Class)
	}
}

func TestGenerateDiff_RemovedAndUnchanged(t *testing.T) {
	t.Parallel()

	baseline := []CaseResult{
		{CaseID: "A", Passed: true},
		{CaseID: "B", Passed: true},
		{CaseID: "C", Passed: false},
	}
	current := []CaseResult{
		{CaseID: "A", Passed: true},
		{CaseID: "C", Passed: false},
	}

	report := GenerateDiff(baseline, current)
	if report.Removed != 1 || report.Unchanged != 2 || report.Regressions != 0 {
		t.Errorf("totals = removed %d, unchanged %d, regressions %d",
			report.Removed, report.Unchanged, report.Regressions)
	}

	// Entries sorted by id for stable output.
	for i := 1; i < len(report.Entries); i++ {
		if report.Entries[i-1].CaseID > report.Entries[i].CaseID {
			t.Errorf("entries not sorted: %s before %s", report.Entries[i-1].CaseID, report.Entries[i].CaseID)
		}
	}
}

func TestGenerateDiff_Deterministic(t *testing.T) {
	t.Parallel()

	baseline := []CaseResult{{CaseID: "x", Passed: true}, {CaseID: "y", Passed: false}}
	current := []CaseResult{{CaseID: "y", Passed: true}, {CaseID: "x", Passed: true}}

	first := GenerateDiff(baseline, current)
	for i := 0; i < 10; i++ {
		again := GenerateDiff(baseline, current)
		if len(again.Entries) != len(first.Entries) {
			t.Fatal("entry count varies")
		}
		for j := range again.Entries {
			if again.Entries[j].CaseID != first.Entries[j].CaseID || again.Entries[j].Class != first.Entries[j].Class {
				t.Fatalf("diff not deterministic at %d", j)
			}
		}
	}
}
