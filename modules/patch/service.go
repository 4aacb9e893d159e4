package patch

import (
	"context"
	"fmt"
	"log"
	"strings"

	"storyreel-server/modules/common/fallback"
	"storyreel-server/modules/common/model"
)

// ProjectStore - persistence needed by the applier
type ProjectStore interface {
	Get(ctx context.Context, projectID string) (*model.Project, error)
	Update(ctx context.Context, projectID string, fields map[string]interface{}) (*model.Project, error)
}

// FrameRegenerator - triggers a targeted frame regeneration run
type FrameRegenerator interface {
	RegenerateShotFrame(projectID, shotID string) (string, error)
}

// StageReporter - reports the stage currently running for a project
type StageReporter interface {
	StageFor(projectID string) model.Stage
}

// Service - validates and applies patch batches against the project document
type Service struct {
	store     ProjectStore
	regen     FrameRegenerator
	stages    StageReporter
	validator *Validator
}

func NewService(store ProjectStore, regen FrameRegenerator, stages StageReporter, validator *Validator) *Service {
	return &Service{store: store, regen: regen, stages: stages, validator: validator}
}

// Apply - execute one patch batch. The whole batch is validated up front and
// rejected on any violation; individual actions whose target id does not
// exist are skipped with a hint rather than failing the rest. Regeneration
// runs start only after all edits are persisted so they see the fresh
// document.
func (s *Service) Apply(ctx context.Context, projectID string, req Request) (*Result, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if s.stages != nil {
		if stage := s.stages.StageFor(projectID); stage != model.StageIdle {
			return nil, fmt.Errorf("project %s has a %s run in progress", projectID, stage)
		}
	}

	project, err := s.store.Get(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	result := &Result{}
	changed := MergePlan(project, req.Plan)
	var regenShots []string

	for _, action := range req.Actions {
		switch action.Type {
		case ActionUpdateShot:
			shot := project.FindShot(action.TargetID)
			if shot == nil {
				result.Skipped = append(result.Skipped, SkippedAction{
					Type: action.Type, TargetID: action.TargetID,
					Reason: "shot_not_found", Hint: shotHint(project),
				})
				continue
			}
			if applyShotFields(shot, action.Fields) {
				changed = true
			}
			result.Applied = append(result.Applied, AppliedAction{Type: action.Type, TargetID: action.TargetID})

		case ActionUpdateElement:
			el := project.FindElement(action.TargetID)
			if el == nil {
				result.Skipped = append(result.Skipped, SkippedAction{
					Type: action.Type, TargetID: action.TargetID,
					Reason: "element_not_found", Hint: elementHint(project),
				})
				continue
			}
			if applyElementFields(el, action.Fields) {
				changed = true
			}
			result.Applied = append(result.Applied, AppliedAction{Type: action.Type, TargetID: action.TargetID})

		case ActionRegenerateShotFrame:
			if project.FindShot(action.TargetID) == nil {
				result.Skipped = append(result.Skipped, SkippedAction{
					Type: action.Type, TargetID: action.TargetID,
					Reason: "shot_not_found", Hint: shotHint(project),
				})
				continue
			}
			regenShots = append(regenShots, action.TargetID)
			result.Applied = append(result.Applied, AppliedAction{Type: action.Type, TargetID: action.TargetID})
		}
	}

	result.Project = project
	if changed {
		fresh, err := s.store.Update(ctx, project.ID, map[string]interface{}{
			"brief":    project.Brief,
			"elements": project.Elements,
			"segments": project.Segments,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to persist patch: %w", err)
		}
		result.Project = fresh
	}

	for _, shotID := range regenShots {
		if s.regen == nil {
			break
		}
		runID, err := s.regen.RegenerateShotFrame(projectID, shotID)
		if err != nil {
			log.Printf("❌ Failed to start frame regeneration for shot %s: %v", shotID, err)
			continue
		}
		result.RunIDs = append(result.RunIDs, runID)
	}

	log.Printf("✅ Patch applied to project %s: %d applied, %d skipped", projectID, len(result.Applied), len(result.Skipped))
	return result, nil
}

func applyShotFields(shot *model.Shot, fields map[string]interface{}) bool {
	changed := false
	if v, ok := fallback.FirstValue(fields, "prompt"); ok {
		changed = setString(&shot.Prompt, fallback.SafeString(v, shot.Prompt)) || changed
	}
	if v, ok := fallback.FirstValue(fields, "video_prompt", "videoPrompt"); ok {
		changed = setString(&shot.VideoPrompt, fallback.SafeString(v, shot.VideoPrompt)) || changed
	}
	if v, ok := fallback.FirstValue(fields, "name"); ok {
		changed = setString(&shot.Name, fallback.SafeString(v, shot.Name)) || changed
	}
	if v, ok := fallback.FirstValue(fields, "description"); ok {
		changed = setString(&shot.Description, fallback.SafeString(v, shot.Description)) || changed
	}
	if v, ok := fallback.FirstValue(fields, "narration"); ok {
		changed = setString(&shot.Narration, fallback.SafeString(v, shot.Narration)) || changed
	}
	if v, ok := fallback.FirstValue(fields, "dialogue_script", "dialogueScript", "dialogue"); ok {
		changed = setString(&shot.DialogueScript, fallback.SafeString(v, shot.DialogueScript)) || changed
	}
	if v, ok := fallback.FirstValue(fields, "duration"); ok {
		if d := fallback.SafeFloat(v, shot.Duration); d != shot.Duration {
			shot.Duration = d
			changed = true
		}
	}
	if v, ok := fallback.FirstValue(fields, "reference_images", "referenceImages"); ok {
		changed = unionStrings(&shot.ReferenceImages, fallback.SafeStringSlice(v)) || changed
	}
	return changed
}

func applyElementFields(el *model.Element, fields map[string]interface{}) bool {
	changed := false
	if v, ok := fallback.FirstValue(fields, "name"); ok {
		changed = setString(&el.Name, fallback.SafeString(v, el.Name)) || changed
	}
	if v, ok := fallback.FirstValue(fields, "description"); ok {
		changed = setString(&el.Description, fallback.SafeString(v, el.Description)) || changed
	}
	if v, ok := fallback.FirstValue(fields, "voice_profile", "voiceProfile", "voice"); ok {
		changed = setString(&el.VoiceProfile, fallback.SafeString(v, el.VoiceProfile)) || changed
	}
	if v, ok := fallback.FirstValue(fields, "type"); ok {
		if t := model.ElementType(fallback.SafeString(v, string(el.Type))); t != el.Type {
			el.Type = t
			changed = true
		}
	}
	return changed
}

const hintLimit = 5

func shotHint(project *model.Project) string {
	var ids []string
	for _, shot := range project.AllShots() {
		ids = append(ids, shot.ID)
		if len(ids) == hintLimit {
			break
		}
	}
	if len(ids) == 0 {
		return "project has no shots"
	}
	return "known shot ids include: " + strings.Join(ids, ", ")
}

func elementHint(project *model.Project) string {
	var ids []string
	for _, el := range project.OrderedElements() {
		ids = append(ids, el.ID)
		if len(ids) == hintLimit {
			break
		}
	}
	if len(ids) == 0 {
		return "project has no elements"
	}
	return "known element ids include: " + strings.Join(ids, ", ")
}
