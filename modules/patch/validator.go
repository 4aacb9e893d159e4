package patch

import "fmt"

// Validator - batch safety policy. A batch that touches more than one target
// is only allowed when every action is an update_shot restricted to the
// configured bulk-safe fields; everything wider must come as single-target
// batches the user confirms one at a time.
type Validator struct {
	bulkFields map[string]bool
}

// NewValidator - bulkFields lists the shot fields a multi-target batch may
// touch (typically just "prompt").
func NewValidator(bulkFields []string) *Validator {
	allowed := make(map[string]bool, len(bulkFields))
	for _, f := range bulkFields {
		allowed[f] = true
	}
	return &Validator{bulkFields: allowed}
}

// Validate - reject the whole batch on any violation. Partial application of
// an unsafe batch is worse than refusing it outright.
func (v *Validator) Validate(req Request) error {
	targets := make(map[string]bool)

	for _, action := range req.Actions {
		switch action.Type {
		case ActionUpdateShot, ActionUpdateElement, ActionRegenerateShotFrame:
		default:
			return fmt.Errorf("unsupported action type %q", action.Type)
		}
		if action.TargetID == "" {
			return fmt.Errorf("action %q is missing a target id", action.Type)
		}
		// Shot and element ids live in separate namespaces; a shot and an
		// element sharing an id are still two targets.
		if action.Type == ActionUpdateElement {
			targets["element:"+action.TargetID] = true
		} else {
			targets["shot:"+action.TargetID] = true
		}
	}

	if len(targets) <= 1 {
		return nil
	}

	for _, action := range req.Actions {
		if action.Type != ActionUpdateShot {
			return fmt.Errorf("multi-target batch contains %q; only %s is allowed across targets", action.Type, ActionUpdateShot)
		}
		for field := range action.Fields {
			if !v.bulkFields[field] {
				return fmt.Errorf("multi-target batch touches field %q, which is not bulk-safe", field)
			}
		}
	}
	return nil
}
