package patch

import (
	"encoding/json"

	"storyreel-server/modules/common/fallback"
	"storyreel-server/modules/common/model"
)

// Normalize - shape a loose payload into a Request. Patch batches usually
// come from AI output, so action keys and target id keys accept every alias
// seen in practice. Unknown action types are kept as-is for the validator to
// reject rather than silently dropped.
func Normalize(payload map[string]interface{}) Request {
	var req Request

	actions, _ := fallback.FirstValue(payload, "actions", "operations", "changes")
	for _, raw := range fallback.SafeSlice(actions) {
		m := fallback.SafeMap(raw)
		if m == nil {
			continue
		}
		action := Action{
			Type:     fallback.FirstString(m, "type", "action", "op"),
			TargetID: fallback.FirstString(m, "target_id", "targetId", "shot_id", "shotId", "element_id", "elementId", "id"),
		}
		if fields, ok := fallback.FirstValue(m, "fields", "updates", "values"); ok {
			action.Fields = fallback.SafeMap(fields)
		}
		req.Actions = append(req.Actions, action)
	}

	if plan, ok := fallback.FirstValue(payload, "plan", "patch", "plan_patch"); ok {
		if m := fallback.SafeMap(plan); m != nil {
			req.Plan = normalizePlan(m)
		}
	}

	return req
}

// normalizePlan decodes the plan portion through a JSON round-trip: the model
// structs already tolerate missing fields, and unknown keys fall away.
func normalizePlan(m map[string]interface{}) *PlanPatch {
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	var plan PlanPatch
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil
	}

	for _, el := range plan.Elements {
		if el.Type == "" {
			el.Type = model.ElementCharacter
		}
	}
	if len(plan.Brief) == 0 && len(plan.Elements) == 0 && len(plan.Segments) == 0 {
		return nil
	}
	return &plan
}
