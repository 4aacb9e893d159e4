package pipeline

import "storyreel-server/modules/common/model"

// EventType - discriminator for stream events emitted during a stage run
type EventType string

const (
	EventStart      EventType = "start"
	EventGenerating EventType = "generating"
	EventSkip       EventType = "skip"
	EventComplete   EventType = "complete"
	EventError      EventType = "error"
	EventDone       EventType = "done"

	// video stage only
	EventSubmitting   EventType = "submitting"
	EventSubmitted    EventType = "submitted"
	EventPollingStart EventType = "polling_start"
	EventPolling      EventType = "polling"
	EventTimeout      EventType = "timeout"
)

// Skip reasons carried on EventSkip
const (
	SkipAlreadyHasAsset = "already_has_asset"
	SkipExcluded        = "excluded"
	SkipNoStartFrame    = "no_start_frame"
)

// RunCounts - final tally attached to the done event.
// Generated is used by the synchronous stages, Completed by the video stage.
type RunCounts struct {
	Generated int `json:"generated"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Total     int `json:"total"`
}

// StreamEvent - single wire shape for every event type. Consumers switch on
// Type; fields not meaningful for a given type are zero and omitted from JSON.
type StreamEvent struct {
	Type      EventType   `json:"type"`
	Stage     model.Stage `json:"stage"`
	ProjectID string      `json:"project_id"`
	RunID     string      `json:"run_id"`

	ElementID string `json:"element_id,omitempty"`
	ShotID    string `json:"shot_id,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	URL       string `json:"url,omitempty"`

	Phase   string `json:"phase,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`

	Current int `json:"current,omitempty"`
	Total   int `json:"total"`
	Percent int `json:"percent"`

	Completed  int `json:"completed,omitempty"`
	Pending    int `json:"pending,omitempty"`
	ElapsedSec int `json:"elapsed_sec,omitempty"`

	Counts *RunCounts `json:"counts,omitempty"`
}
