package planner

import (
	"fmt"
	"strings"

	"storyreel-server/modules/common/model"
)

const planSystemPrompt = `You are a video pre-production planner. Given a project brief you produce a production plan as JSON with this exact shape:

{
  "elements": [
    {"id": "el_<slug>", "name": "...", "type": "character|scene|object", "description": "...", "voice_profile": "..."}
  ],
  "segments": [
    {"id": "seg_<slug>", "name": "...", "description": "...", "shots": [
      {"id": "shot_<slug>", "name": "...", "description": "...", "prompt": "...", "video_prompt": "...", "narration": "...", "dialogue_script": "...", "duration": 5, "reference_images": ["el_<slug>"]}
    ]}
  ]
}

Rules:
- ids must be stable slugs derived from names, lowercase with underscores
- reference_images entries must be element ids that appear in "elements"
- prompt describes the still start frame; video_prompt describes the motion
- duration is seconds, between 3 and 10
- respond with JSON only, no markdown fences, no commentary`

func buildPlanPrompt(project *model.Project, instructions string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Project: %s\n", project.Name))
	for key, value := range project.Brief {
		sb.WriteString(fmt.Sprintf("%s: %s\n", key, value))
	}

	if len(project.Elements) > 0 || len(project.Segments) > 0 {
		sb.WriteString("\nThe project already has a plan. Reuse existing ids; only add or refine. Existing element ids: ")
		for _, el := range project.OrderedElements() {
			sb.WriteString(el.ID + " ")
		}
		sb.WriteString("\nExisting shot ids: ")
		for _, shot := range project.AllShots() {
			sb.WriteString(shot.ID + " ")
		}
		sb.WriteString("\n")
	}

	if instructions != "" {
		sb.WriteString("\nAdditional instructions: " + instructions + "\n")
	}

	return sb.String()
}
