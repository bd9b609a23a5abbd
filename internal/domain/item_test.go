package domain

import (
	"testing"
	"time"
)

func TestRunOutcome_Record(t *testing.T) {
	o := NewRunOutcome("run-1")
	o.Record(ItemResult{Line: 1, URL: "a", Status: StatusSucceeded, Path: "/out/a.txt"})
	o.Record(ItemResult{Line: 2, URL: "b", Status: StatusFailed, Category: CategoryInvalidURL})
	o.Record(ItemResult{Line: 3, URL: "c", Category: CategoryTranscriptsDisabled})

	if o.Attempted != 3 || o.Succeeded != 1 || o.Failed != 2 {
		t.Errorf("counters = %d/%d/%d, want 3/1/2", o.Attempted, o.Succeeded, o.Failed)
	}
	if o.Attempted != o.Succeeded+o.Failed || len(o.Items) != o.Attempted {
		t.Error("counters inconsistent with items")
	}
	if o.Items[2].Status != StatusFailed {
		t.Errorf("unset status recorded as %q, want %q", o.Items[2].Status, StatusFailed)
	}
	if o.RunID != "run-1" {
		t.Errorf("RunID = %q", o.RunID)
	}
}

func TestRunOutcome_FailuresByCategory(t *testing.T) {
	o := NewRunOutcome("")
	o.Record(ItemResult{Status: StatusFailed, Category: CategoryRateLimited})
	o.Record(ItemResult{Status: StatusFailed, Category: CategoryRateLimited})
	o.Record(ItemResult{Status: StatusFailed, Category: CategoryInvalidURL})
	o.Record(ItemResult{Status: StatusSucceeded})

	got := o.FailuresByCategory()
	if got[CategoryRateLimited] != 2 || got[CategoryInvalidURL] != 1 || len(got) != 2 {
		t.Errorf("FailuresByCategory() = %v", got)
	}
}

func TestItemStatus_Values(t *testing.T) {
	// Verify status strings used in log output
	if StatusSucceeded != "succeeded" {
		t.Errorf("StatusSucceeded = %q, want %q", StatusSucceeded, "succeeded")
	}
	if StatusFailed != "failed" {
		t.Errorf("StatusFailed = %q, want %q", StatusFailed, "failed")
	}
}

func TestTranscript_Text(t *testing.T) {
	tr := &Transcript{
		Segments: []Segment{
			{Text: "first line", Start: 0, Duration: time.Second},
			{Text: "  second  ", Start: time.Second, Duration: time.Second},
			{Text: "   "},
			{Text: "third", Start: 2 * time.Second},
		},
	}

	want := "first line\nsecond\nthird\n"
	if got := tr.Text(); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestTranscript_TextEmpty(t *testing.T) {
	tr := &Transcript{}
	if got := tr.Text(); got != "" {
		t.Errorf("Text() = %q, want empty", got)
	}
}
