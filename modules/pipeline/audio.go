package pipeline

import (
	"log"
	"time"

	"storyreel-server/modules/common/model"
	"storyreel-server/modules/generate"
)

// runAudio - synthesize narration and dialogue tracks for every shot that has
// script text. A shot with both tracks fails as a unit if either synthesis
// fails, so a retry regenerates the pair together.
func (r *Runner) runAudio(run *Run, opts StageOptions) {
	project, err := r.store.Get(run.ctx, run.ProjectID)
	if err != nil {
		log.Printf("❌ Audio stage: failed to load project %s: %v", run.ProjectID, err)
		r.emit(run, StreamEvent{Type: EventError, Message: "failed to load project: " + err.Error()})
		r.emit(run, StreamEvent{Type: EventDone, Counts: &RunCounts{}, Percent: 100})
		return
	}

	var candidates []*model.Shot
	for _, shot := range project.AllShots() {
		if shot.Narration != "" || shot.DialogueScript != "" {
			candidates = append(candidates, shot)
		}
	}
	total := len(candidates)
	counts := RunCounts{Total: total}

	r.emit(run, StreamEvent{Type: EventStart, Total: total})

	if project.AudioAssets == nil {
		project.AudioAssets = make(map[string]model.AudioAsset)
	}

	current := 0
	for _, shot := range candidates {
		if r.isCancelled(run) {
			log.Printf("🛑 Audio stage aborted for project %s", project.ID)
			return
		}
		current++

		if reason := audioSkipReason(project, shot, opts.Filter); reason != "" {
			counts.Skipped++
			r.emit(run, StreamEvent{
				Type: EventSkip, ShotID: shot.ID, Reason: reason,
				Current: current, Total: total, Percent: Percent(current, total),
			})
			continue
		}

		r.emit(run, StreamEvent{
			Type: EventGenerating, ShotID: shot.ID, Phase: "audio",
			Current: current, Total: total, Percent: Percent(current-1, total),
		})

		asset := model.AudioAsset{ShotID: shot.ID, CreatedAt: time.Now().UTC()}
		var synthErr error

		if shot.Narration != "" {
			asset.NarrationURL, synthErr = r.audio.Synthesize(run.ctx, generate.AudioRequest{
				ProjectID: project.ID,
				ShotID:    shot.ID,
				Text:      shot.Narration,
			})
		}
		if synthErr == nil && shot.DialogueScript != "" {
			asset.DialogueURL, synthErr = r.audio.Synthesize(run.ctx, generate.AudioRequest{
				ProjectID: project.ID,
				ShotID:    shot.ID,
				Text:      shot.DialogueScript,
				Voice:     dialogueVoice(project, shot),
			})
		}
		if synthErr != nil {
			if run.ctx.Err() != nil {
				return
			}
			counts.Failed++
			log.Printf("❌ Audio for shot %s failed: %v", shot.ID, synthErr)
			r.emit(run, StreamEvent{
				Type: EventError, ShotID: shot.ID, Message: synthErr.Error(),
				Current: current, Total: total, Percent: Percent(current, total),
			})
			continue
		}

		project.AudioAssets[shot.ID] = asset
		r.persist(run.ctx, project.ID, map[string]interface{}{"audio_assets": project.AudioAssets})

		counts.Generated++
		log.Printf("✅ Audio for shot %s generated (%d/%d)", shot.ID, current, total)
		r.emit(run, StreamEvent{
			Type: EventComplete, ShotID: shot.ID, URL: firstNonEmpty(asset.NarrationURL, asset.DialogueURL),
			Current: current, Total: total, Percent: Percent(current, total),
		})
	}

	log.Printf("✅ Audio stage finished for project %s: %d generated, %d failed, %d skipped", project.ID, counts.Generated, counts.Failed, counts.Skipped)
	r.emit(run, StreamEvent{Type: EventDone, Total: total, Percent: 100, Counts: &counts})
}

// dialogueVoice - the voice profile of the first referenced character that
// has one, empty otherwise (provider default applies)
func dialogueVoice(project *model.Project, shot *model.Shot) string {
	for _, ref := range shot.ReferenceImages {
		if el := project.FindElement(ref); el != nil && el.VoiceProfile != "" {
			return el.VoiceProfile
		}
	}
	return ""
}

func audioSkipReason(project *model.Project, shot *model.Shot, f StageFilter) string {
	if f.excluded(shot.ID) {
		return SkipExcluded
	}
	asset, ok := project.AudioAssets[shot.ID]
	if !ok || f.forced(shot.ID) {
		return ""
	}
	// Existing asset only counts when it covers every track the script asks for.
	if shot.Narration != "" && asset.NarrationURL == "" {
		return ""
	}
	if shot.DialogueScript != "" && asset.DialogueURL == "" {
		return ""
	}
	return SkipAlreadyHasAsset
}
