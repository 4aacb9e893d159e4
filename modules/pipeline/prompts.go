package pipeline

import (
	"fmt"
	"strings"

	"storyreel-server/modules/common/model"
)

func buildElementPrompt(project *model.Project, el *model.Element) string {
	var sb strings.Builder

	switch el.Type {
	case model.ElementScene:
		sb.WriteString("Wide establishing shot of a location. ")
	case model.ElementObject:
		sb.WriteString("Studio product shot of a single object on a neutral background. ")
	default:
		sb.WriteString("Full-body character reference sheet, neutral pose, plain background. ")
	}

	sb.WriteString(el.Description)

	if style := project.Brief["style"]; style != "" {
		sb.WriteString(fmt.Sprintf("\nVisual style: %s", style))
	}
	if tone := project.Brief["tone"]; tone != "" {
		sb.WriteString(fmt.Sprintf("\nTone: %s", tone))
	}
	sb.WriteString("\nNo text, no watermarks, no captions.")

	return sb.String()
}

func buildFramePrompt(project *model.Project, shot *model.Shot) string {
	prompt := shot.Prompt
	if prompt == "" {
		prompt = shot.Description
	}

	var sb strings.Builder
	sb.WriteString("Cinematic still frame, 16:9. ")
	sb.WriteString(prompt)

	if len(shot.ReferenceImages) > 0 {
		sb.WriteString("\nKeep the appearance of the referenced characters and locations consistent with the attached images.")
	}
	if style := project.Brief["style"]; style != "" {
		sb.WriteString(fmt.Sprintf("\nVisual style: %s", style))
	}
	sb.WriteString("\nNo text, no watermarks, no captions.")

	return sb.String()
}
