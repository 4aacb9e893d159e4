package patch

import "storyreel-server/modules/common/model"

// Action types the applier will execute. Anything else rejects the batch.
const (
	ActionUpdateShot          = "update_shot"
	ActionUpdateElement       = "update_element"
	ActionRegenerateShotFrame = "regenerate_shot_frame"
)

// Action - one targeted edit within a batch
type Action struct {
	Type     string                 `json:"type"`
	TargetID string                 `json:"target_id"`
	Fields   map[string]interface{} `json:"fields,omitempty"`
}

// PlanPatch - additive plan changes produced by the planner. Merging is
// idempotent: applying the same patch twice leaves the project unchanged.
type PlanPatch struct {
	Brief    map[string]string `json:"brief,omitempty"`
	Elements []*model.Element  `json:"elements,omitempty"`
	Segments []model.Segment   `json:"segments,omitempty"`
}

// Request - a patch batch: targeted actions, a plan patch, or both
type Request struct {
	Actions []Action   `json:"actions,omitempty"`
	Plan    *PlanPatch `json:"plan,omitempty"`
}

// AppliedAction - record of one executed action
type AppliedAction struct {
	Type     string `json:"type"`
	TargetID string `json:"target_id"`
}

// SkippedAction - record of one action skipped over a missing target. The
// hint helps the caller (usually an AI planner) correct its ids.
type SkippedAction struct {
	Type     string `json:"type"`
	TargetID string `json:"target_id"`
	Reason   string `json:"reason"`
	Hint     string `json:"hint,omitempty"`
}

// Result - outcome of one Apply call, including the document as it stands
// after the batch
type Result struct {
	Applied []AppliedAction `json:"applied"`
	Skipped []SkippedAction `json:"skipped"`
	RunIDs  []string        `json:"run_ids,omitempty"`
	Project *model.Project  `json:"project,omitempty"`
}
