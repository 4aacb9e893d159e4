package pipeline

import (
	"math"
	"sync"

	"storyreel-server/modules/common/model"
)

// Percent - whole-number progress for the synchronous stages
func Percent(current, total int) int {
	if total < 1 {
		total = 1
	}
	return int(math.Round(100 * float64(current) / float64(total)))
}

// VideoSubmitPercent - submission phase occupies the first half of the bar
func VideoSubmitPercent(current, total int) int {
	if total < 1 {
		total = 1
	}
	return int(math.Round(50 * float64(current) / float64(total)))
}

// VideoPollPercent - polling phase occupies the second half of the bar.
// With nothing outstanding the result is 100.
func VideoPollPercent(completed, pending int) int {
	denom := completed + pending
	if denom == 0 {
		return 100
	}
	return 50 + int(math.Round(50*float64(completed)/float64(denom)))
}

// Snapshot - latest aggregated progress for one project, served over HTTP so
// clients that missed stream events can catch up.
type Snapshot struct {
	Stage       model.Stage `json:"stage"`
	Phase       string      `json:"phase,omitempty"`
	CurrentItem string      `json:"current_item,omitempty"`
	Current     int         `json:"current"`
	Total       int         `json:"total"`
	Percent     int         `json:"percent"`
	Running     bool        `json:"running"`
}

// Tracker - folds the event stream into per-project snapshots
type Tracker struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{snapshots: make(map[string]Snapshot)}
}

// Observe - update the project snapshot from one stream event
func (t *Tracker) Observe(ev StreamEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.snapshots[ev.ProjectID]
	snap.Stage = ev.Stage

	switch ev.Type {
	case EventStart:
		snap = Snapshot{Stage: ev.Stage, Total: ev.Total, Running: true}
	case EventGenerating, EventSubmitting:
		snap.Running = true
		snap.Phase = ev.Phase
		snap.CurrentItem = firstNonEmpty(ev.ElementID, ev.ShotID)
		snap.Current = ev.Current
		snap.Percent = ev.Percent
	case EventSkip, EventComplete, EventError, EventSubmitted, EventTimeout:
		snap.Current = ev.Current
		if ev.Percent > 0 {
			snap.Percent = ev.Percent
		}
	case EventPollingStart:
		snap.Phase = "polling"
		snap.CurrentItem = ""
	case EventPolling:
		snap.Phase = "polling"
		snap.Percent = ev.Percent
	case EventDone:
		snap.Phase = ""
		snap.CurrentItem = ""
		snap.Percent = 100
		snap.Running = false
	}

	t.snapshots[ev.ProjectID] = snap
}

// Snapshot - latest progress for a project, zero value when none recorded
func (t *Tracker) Snapshot(projectID string) Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshots[projectID]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
