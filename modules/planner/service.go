package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"

	"storyreel-server/modules/common/config"
	"storyreel-server/modules/common/fallback"
	"storyreel-server/modules/common/gemini"
	"storyreel-server/modules/common/model"
	"storyreel-server/modules/patch"
)

// ProjectStore - read access to the project being planned
type ProjectStore interface {
	Get(ctx context.Context, projectID string) (*model.Project, error)
}

// PlanApplier - applies the generated plan through the patch policy, so the
// planner cannot bypass the single-writer rule.
type PlanApplier interface {
	Apply(ctx context.Context, projectID string, req patch.Request) (*patch.Result, error)
}

// Service - generates a production plan from the project brief and merges it
// into the document
type Service struct {
	store   ProjectStore
	applier PlanApplier
	apiKeys []string
	model   string
}

func NewService(store ProjectStore, applier PlanApplier) *Service {
	cfg := config.GetConfig()
	return &Service{
		store:   store,
		applier: applier,
		apiKeys: cfg.GeminiAPIKeys,
		model:   cfg.GeminiModel,
	}
}

// Plan - generate and apply a plan patch for the project
func (s *Service) Plan(ctx context.Context, projectID, instructions string) (*patch.Result, error) {
	project, err := s.store.Get(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	log.Printf("🎬 Generating plan for project %s", projectID)

	contents := []*genai.Content{
		genai.NewContentFromText(buildPlanPrompt(project, instructions), genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(planSystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}

	resp, err := gemini.GenerateContentWithRetry(ctx, s.apiKeys, s.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("plan generation failed: %w", err)
	}

	plan, err := parsePlan(resp.Text())
	if err != nil {
		return nil, err
	}

	result, err := s.applier.Apply(ctx, projectID, patch.Request{Plan: plan})
	if err != nil {
		return nil, fmt.Errorf("failed to apply plan: %w", err)
	}

	log.Printf("✅ Plan applied to project %s: %d elements, %d segments", projectID, len(plan.Elements), len(plan.Segments))
	return result, nil
}

// parsePlan - tolerant decode of the model's JSON. Field names and number
// shapes drift between model versions, so every value goes through the
// fallback helpers instead of strict unmarshalling.
func parsePlan(text string) (*patch.PlanPatch, error) {
	text = stripCodeFences(text)

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("plan response is not valid JSON: %w", err)
	}

	plan := &patch.PlanPatch{}

	for _, item := range fallback.SafeSlice(raw["elements"]) {
		m := fallback.SafeMap(item)
		if m == nil {
			continue
		}
		id := fallback.FirstString(m, "id", "element_id", "elementId")
		if id == "" {
			continue
		}
		elType := model.ElementType(fallback.FirstString(m, "type", "kind"))
		switch elType {
		case model.ElementCharacter, model.ElementScene, model.ElementObject:
		default:
			elType = model.ElementCharacter
		}
		plan.Elements = append(plan.Elements, &model.Element{
			ID:           id,
			Name:         fallback.FirstString(m, "name", "title"),
			Type:         elType,
			Description:  fallback.FirstString(m, "description", "desc"),
			VoiceProfile: fallback.FirstString(m, "voice_profile", "voiceProfile", "voice"),
		})
	}

	for _, item := range fallback.SafeSlice(raw["segments"]) {
		m := fallback.SafeMap(item)
		if m == nil {
			continue
		}
		id := fallback.FirstString(m, "id", "segment_id", "segmentId")
		if id == "" {
			continue
		}
		segment := model.Segment{
			ID:          id,
			Name:        fallback.FirstString(m, "name", "title"),
			Description: fallback.FirstString(m, "description", "desc"),
		}
		shotsValue, _ := fallback.FirstValue(m, "shots", "scenes")
		for _, shotItem := range fallback.SafeSlice(shotsValue) {
			sm := fallback.SafeMap(shotItem)
			if sm == nil {
				continue
			}
			shotID := fallback.FirstString(sm, "id", "shot_id", "shotId")
			if shotID == "" {
				continue
			}
			segment.Shots = append(segment.Shots, model.Shot{
				ID:              shotID,
				Name:            fallback.FirstString(sm, "name", "title"),
				Description:     fallback.FirstString(sm, "description", "desc"),
				Prompt:          fallback.FirstString(sm, "prompt", "image_prompt", "imagePrompt"),
				VideoPrompt:     fallback.FirstString(sm, "video_prompt", "videoPrompt", "motion"),
				Narration:       fallback.FirstString(sm, "narration"),
				DialogueScript:  fallback.FirstString(sm, "dialogue_script", "dialogueScript", "dialogue"),
				Duration:        fallback.SafeFloat(sm["duration"], 5),
				ReferenceImages: fallback.SafeStringSlice(sm["reference_images"]),
				Status:          model.ShotPending,
			})
		}
		plan.Segments = append(plan.Segments, segment)
	}

	if len(plan.Elements) == 0 && len(plan.Segments) == 0 {
		return nil, fmt.Errorf("plan response contained no elements or segments")
	}
	return plan, nil
}

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx != -1 {
			text = text[idx+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}
