package pipeline

import (
	"testing"

	"storyreel-server/modules/common/model"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		name    string
		current int
		total   int
		want    int
	}{
		{"zero of zero", 0, 0, 0},
		{"half", 1, 2, 50},
		{"complete", 3, 3, 100},
		{"rounds", 1, 3, 33},
		{"rounds up", 2, 3, 67},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percent(tt.current, tt.total); got != tt.want {
				t.Errorf("Percent(%d, %d) = %d, want %d", tt.current, tt.total, got, tt.want)
			}
		})
	}
}

func TestVideoSubmitPercent(t *testing.T) {
	if got := VideoSubmitPercent(0, 4); got != 0 {
		t.Errorf("VideoSubmitPercent(0, 4) = %d, want 0", got)
	}
	if got := VideoSubmitPercent(4, 4); got != 50 {
		t.Errorf("VideoSubmitPercent(4, 4) = %d, want 50", got)
	}
	if got := VideoSubmitPercent(1, 3); got != 17 {
		t.Errorf("VideoSubmitPercent(1, 3) = %d, want 17", got)
	}
}

func TestVideoPollPercent(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		pending   int
		want      int
	}{
		{"nothing resolved", 0, 4, 50},
		{"half resolved", 2, 2, 75},
		{"all resolved", 4, 0, 100},
		{"no tasks at all", 0, 0, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VideoPollPercent(tt.completed, tt.pending); got != tt.want {
				t.Errorf("VideoPollPercent(%d, %d) = %d, want %d", tt.completed, tt.pending, got, tt.want)
			}
		})
	}
}

func TestTrackerFoldsEvents(t *testing.T) {
	tracker := NewTracker()

	tracker.Observe(StreamEvent{Type: EventStart, ProjectID: "p1", Stage: model.StageElements, Total: 3})
	snap := tracker.Snapshot("p1")
	if !snap.Running || snap.Total != 3 || snap.Stage != model.StageElements {
		t.Fatalf("after start: %+v", snap)
	}

	tracker.Observe(StreamEvent{Type: EventGenerating, ProjectID: "p1", Stage: model.StageElements, ElementID: "el_a", Current: 1, Total: 3, Percent: 0})
	snap = tracker.Snapshot("p1")
	if snap.CurrentItem != "el_a" || snap.Current != 1 {
		t.Fatalf("after generating: %+v", snap)
	}

	tracker.Observe(StreamEvent{Type: EventComplete, ProjectID: "p1", Stage: model.StageElements, ElementID: "el_a", Current: 1, Total: 3, Percent: 33})
	if snap = tracker.Snapshot("p1"); snap.Percent != 33 {
		t.Fatalf("after complete: %+v", snap)
	}

	tracker.Observe(StreamEvent{Type: EventDone, ProjectID: "p1", Stage: model.StageElements, Total: 3, Percent: 100})
	snap = tracker.Snapshot("p1")
	if snap.Running || snap.Percent != 100 {
		t.Fatalf("after done: %+v", snap)
	}

	if other := tracker.Snapshot("unknown"); other.Running || other.Total != 0 {
		t.Fatalf("unknown project should have zero snapshot: %+v", other)
	}
}
