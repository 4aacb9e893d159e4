package pipeline

import (
	"log"
	"time"

	"github.com/google/uuid"

	"storyreel-server/modules/common/model"
	"storyreel-server/modules/generate"
)

// runFrames - generate a start frame for each shot, passing the referenced
// elements' current images along for visual consistency. A reference whose
// element has no image yet is simply omitted rather than failing the shot.
func (r *Runner) runFrames(run *Run, opts StageOptions) {
	project, err := r.store.Get(run.ctx, run.ProjectID)
	if err != nil {
		log.Printf("❌ Frames stage: failed to load project %s: %v", run.ProjectID, err)
		r.emit(run, StreamEvent{Type: EventError, Message: "failed to load project: " + err.Error()})
		r.emit(run, StreamEvent{Type: EventDone, Counts: &RunCounts{}, Percent: 100})
		return
	}

	shots := project.AllShots()
	total := len(shots)
	counts := RunCounts{Total: total}

	r.emit(run, StreamEvent{Type: EventStart, Total: total})

	current := 0
	for _, shot := range shots {
		if r.isCancelled(run) {
			log.Printf("🛑 Frames stage aborted for project %s", project.ID)
			return
		}
		current++

		if reason := frameSkipReason(shot, opts.Filter); reason != "" {
			counts.Skipped++
			r.emit(run, StreamEvent{
				Type: EventSkip, ShotID: shot.ID, Reason: reason,
				Current: current, Total: total, Percent: Percent(current, total),
			})
			continue
		}

		r.emit(run, StreamEvent{
			Type: EventGenerating, ShotID: shot.ID, Phase: "frame",
			Current: current, Total: total, Percent: Percent(current-1, total),
		})

		url, err := r.images.Generate(run.ctx, generate.ImageRequest{
			ProjectID:     project.ID,
			Prompt:        buildFramePrompt(project, shot),
			Style:         opts.Style,
			Quality:       opts.Quality,
			ReferenceURLs: referenceImageURLs(project, shot),
		})
		if err != nil {
			if run.ctx.Err() != nil {
				return
			}
			shot.Status = model.ShotFrameFailed
			r.persist(run.ctx, project.ID, map[string]interface{}{"segments": project.Segments})
			counts.Failed++
			log.Printf("❌ Frame for shot %s failed: %v", shot.ID, err)
			r.emit(run, StreamEvent{
				Type: EventError, ShotID: shot.ID, Message: err.Error(),
				Current: current, Total: total, Percent: Percent(current, total),
			})
			continue
		}

		shot.StartImageHistory = append(shot.StartImageHistory, model.ImageRecord{
			ID:        uuid.New().String(),
			URL:       url,
			CreatedAt: time.Now().UTC(),
		})
		shot.StartImageURL = url
		shot.Status = model.ShotFrameReady
		r.persist(run.ctx, project.ID, map[string]interface{}{"segments": project.Segments})

		counts.Generated++
		log.Printf("✅ Frame for shot %s generated (%d/%d)", shot.ID, current, total)
		r.emit(run, StreamEvent{
			Type: EventComplete, ShotID: shot.ID, URL: url,
			Current: current, Total: total, Percent: Percent(current, total),
		})
	}

	log.Printf("✅ Frames stage finished for project %s: %d generated, %d failed, %d skipped", project.ID, counts.Generated, counts.Failed, counts.Skipped)
	r.emit(run, StreamEvent{Type: EventDone, Total: total, Percent: 100, Counts: &counts})
}

func frameSkipReason(shot *model.Shot, f StageFilter) string {
	if f.excluded(shot.ID) {
		return SkipExcluded
	}
	if shot.StartImageURL != "" && !f.forced(shot.ID) {
		return SkipAlreadyHasAsset
	}
	return ""
}

func referenceImageURLs(project *model.Project, shot *model.Shot) []string {
	var urls []string
	for _, ref := range shot.ReferenceImages {
		if el := project.FindElement(ref); el != nil && el.ImageURL != "" {
			urls = append(urls, el.ImageURL)
		}
	}
	return urls
}
