package patch

import "storyreel-server/modules/common/model"

// MergePlan - fold a plan patch into the project document. The merge is
// additive and idempotent: new ids are appended, known ids are updated in
// place from non-empty patch fields, and generated assets (image urls,
// histories, video fields, statuses) are never cleared by it. Returns whether
// anything changed.
func MergePlan(project *model.Project, plan *PlanPatch) bool {
	if plan == nil {
		return false
	}
	changed := false

	for key, value := range plan.Brief {
		if value == "" || project.Brief[key] == value {
			continue
		}
		if project.Brief == nil {
			project.Brief = make(map[string]string)
		}
		project.Brief[key] = value
		changed = true
	}

	for _, patched := range plan.Elements {
		if patched.ID == "" {
			continue
		}
		existing := project.FindElement(patched.ID)
		if existing == nil {
			if project.Elements == nil {
				project.Elements = make(map[string]*model.Element)
			}
			clone := *patched
			project.Elements[clone.ID] = &clone
			changed = true
			continue
		}
		changed = mergeElement(existing, patched) || changed
	}

	for _, patched := range plan.Segments {
		if patched.ID == "" {
			continue
		}
		existing := findSegment(project, patched.ID)
		if existing == nil {
			project.Segments = append(project.Segments, patched)
			changed = true
			continue
		}
		changed = mergeSegment(existing, &patched) || changed
	}

	return changed
}

func findSegment(project *model.Project, id string) *model.Segment {
	for i := range project.Segments {
		if project.Segments[i].ID == id {
			return &project.Segments[i]
		}
	}
	return nil
}

func mergeElement(existing, patched *model.Element) bool {
	changed := false
	changed = setString(&existing.Name, patched.Name) || changed
	changed = setString(&existing.Description, patched.Description) || changed
	changed = setString(&existing.VoiceProfile, patched.VoiceProfile) || changed
	if patched.Type != "" && patched.Type != existing.Type {
		existing.Type = patched.Type
		changed = true
	}
	changed = unionHistory(&existing.ImageHistory, patched.ImageHistory) || changed
	return changed
}

func mergeSegment(existing *model.Segment, patched *model.Segment) bool {
	changed := false
	changed = setString(&existing.Name, patched.Name) || changed
	changed = setString(&existing.Description, patched.Description) || changed

	for _, shot := range patched.Shots {
		if shot.ID == "" {
			continue
		}
		target := findShotIn(existing, shot.ID)
		if target == nil {
			if shot.Status == "" {
				shot.Status = model.ShotPending
			}
			existing.Shots = append(existing.Shots, shot)
			changed = true
			continue
		}
		changed = mergeShot(target, &shot) || changed
	}
	return changed
}

func findShotIn(segment *model.Segment, id string) *model.Shot {
	for i := range segment.Shots {
		if segment.Shots[i].ID == id {
			return &segment.Shots[i]
		}
	}
	return nil
}

func mergeShot(existing, patched *model.Shot) bool {
	changed := false
	changed = setString(&existing.Name, patched.Name) || changed
	changed = setString(&existing.Type, patched.Type) || changed
	changed = setString(&existing.Description, patched.Description) || changed
	changed = setString(&existing.Prompt, patched.Prompt) || changed
	changed = setString(&existing.VideoPrompt, patched.VideoPrompt) || changed
	changed = setString(&existing.Narration, patched.Narration) || changed
	changed = setString(&existing.DialogueScript, patched.DialogueScript) || changed
	if patched.Duration > 0 && patched.Duration != existing.Duration {
		existing.Duration = patched.Duration
		changed = true
	}
	changed = unionStrings(&existing.ReferenceImages, patched.ReferenceImages) || changed
	changed = unionHistory(&existing.StartImageHistory, patched.StartImageHistory) || changed
	return changed
}

func setString(dst *string, value string) bool {
	if value == "" || value == *dst {
		return false
	}
	*dst = value
	return true
}

func unionStrings(dst *[]string, values []string) bool {
	changed := false
	seen := make(map[string]bool, len(*dst))
	for _, v := range *dst {
		seen[v] = true
	}
	for _, v := range values {
		if v != "" && !seen[v] {
			*dst = append(*dst, v)
			seen[v] = true
			changed = true
		}
	}
	return changed
}

func unionHistory(dst *[]model.ImageRecord, records []model.ImageRecord) bool {
	changed := false
	seen := make(map[string]bool, len(*dst))
	for _, rec := range *dst {
		seen[rec.ID] = true
	}
	for _, rec := range records {
		if rec.ID != "" && !seen[rec.ID] {
			*dst = append(*dst, rec)
			seen[rec.ID] = true
			changed = true
		}
	}
	return changed
}
