package domain

// ItemStatus is the terminal state of one input line.
type ItemStatus string

const (
	StatusSucceeded ItemStatus = "succeeded"
	StatusFailed    ItemStatus = "failed"
)

// ItemResult records what happened to one input URL.
type ItemResult struct {
	Line int
	URL  string
	// Playlist is set for videos that came from expanding a playlist line.
	Playlist string
	VideoID  string
	Status   ItemStatus
	Category Category
	Reason   string
	Attempts int
	Path     string
}

// RunOutcome accumulates item results for one batch run.
type RunOutcome struct {
	RunID     string
	Attempted int
	Succeeded int
	Failed    int
	Items     []ItemResult
}

// NewRunOutcome creates an empty outcome for the given run.
func NewRunOutcome(runID string) *RunOutcome {
	return &RunOutcome{RunID: runID}
}

// Record appends a terminal item result and updates the counters. Any
// status other than StatusSucceeded is recorded as a failure.
func (o *RunOutcome) Record(item ItemResult) {
	o.Attempted++
	if item.Status == StatusSucceeded {
		o.Succeeded++
	} else {
		item.Status = StatusFailed
		o.Failed++
	}
	o.Items = append(o.Items, item)
}

// FailuresByCategory counts failed items per category.
func (o *RunOutcome) FailuresByCategory() map[Category]int {
	counts := make(map[Category]int)
	for _, item := range o.Items {
		if item.Status == StatusFailed {
			counts[item.Category]++
		}
	}
	return counts
}
