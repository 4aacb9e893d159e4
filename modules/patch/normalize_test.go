package patch

import (
	"encoding/json"
	"testing"
)

func decodePayload(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatal(err)
	}
	return payload
}

func TestNormalizeAliasKeys(t *testing.T) {
	payload := decodePayload(t, `{
		"operations": [
			{"action": "update_shot", "shotId": "shot1", "updates": {"prompt": "revised"}},
			{"type": "regenerate_shot_frame", "target_id": "shot2"}
		]
	}`)

	req := Normalize(payload)
	if len(req.Actions) != 2 {
		t.Fatalf("actions = %d, want 2", len(req.Actions))
	}
	if req.Actions[0].Type != ActionUpdateShot || req.Actions[0].TargetID != "shot1" {
		t.Errorf("action 0 = %+v", req.Actions[0])
	}
	if req.Actions[0].Fields["prompt"] != "revised" {
		t.Errorf("action 0 fields = %v", req.Actions[0].Fields)
	}
	if req.Actions[1].Type != ActionRegenerateShotFrame || req.Actions[1].TargetID != "shot2" {
		t.Errorf("action 1 = %+v", req.Actions[1])
	}
}

func TestNormalizeKeepsUnknownTypesForValidation(t *testing.T) {
	payload := decodePayload(t, `{
		"actions": [{"type": "drop_table", "id": "shot1"}]
	}`)

	req := Normalize(payload)
	if len(req.Actions) != 1 || req.Actions[0].Type != "drop_table" {
		t.Fatalf("unknown action should survive normalization: %+v", req.Actions)
	}
	if err := NewValidator([]string{"prompt"}).Validate(req); err == nil {
		t.Fatal("unknown action must fail validation")
	}
}

func TestNormalizePlanPortion(t *testing.T) {
	payload := decodePayload(t, `{
		"plan": {
			"elements": [{"id": "el_new", "name": "New", "description": "fresh"}],
			"segments": [{"id": "seg9", "name": "Epilogue", "shots": [{"id": "shot9", "prompt": "sunset"}]}]
		}
	}`)

	req := Normalize(payload)
	if req.Plan == nil {
		t.Fatal("plan missing")
	}
	if len(req.Plan.Elements) != 1 || req.Plan.Elements[0].ID != "el_new" {
		t.Errorf("plan elements = %+v", req.Plan.Elements)
	}
	// Elements without an explicit type default to character
	if req.Plan.Elements[0].Type == "" {
		t.Error("element type should be defaulted")
	}
	if len(req.Plan.Segments) != 1 || len(req.Plan.Segments[0].Shots) != 1 {
		t.Errorf("plan segments = %+v", req.Plan.Segments)
	}
}

func TestNormalizeEmptyPayload(t *testing.T) {
	req := Normalize(map[string]interface{}{})
	if len(req.Actions) != 0 || req.Plan != nil {
		t.Fatalf("empty payload should normalize to empty request: %+v", req)
	}
}
