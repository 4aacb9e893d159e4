package pipeline

import (
	"log"
	"time"

	"github.com/google/uuid"

	"storyreel-server/modules/common/model"
	"storyreel-server/modules/generate"
)

// runElements - generate a reference image for each element, in deterministic
// order. Item failures are tolerated; done is always the last event unless
// the run is cancelled.
func (r *Runner) runElements(run *Run, opts StageOptions) {
	project, err := r.store.Get(run.ctx, run.ProjectID)
	if err != nil {
		log.Printf("❌ Elements stage: failed to load project %s: %v", run.ProjectID, err)
		r.emit(run, StreamEvent{Type: EventError, Message: "failed to load project: " + err.Error()})
		r.emit(run, StreamEvent{Type: EventDone, Counts: &RunCounts{}, Percent: 100})
		return
	}

	elements := project.OrderedElements()
	total := len(elements)
	counts := RunCounts{Total: total}

	r.emit(run, StreamEvent{Type: EventStart, Total: total})

	current := 0
	for _, el := range elements {
		if r.isCancelled(run) {
			log.Printf("🛑 Elements stage aborted for project %s", project.ID)
			return
		}
		current++

		if reason := elementSkipReason(el, opts.Filter); reason != "" {
			counts.Skipped++
			r.emit(run, StreamEvent{
				Type: EventSkip, ElementID: el.ID, Reason: reason,
				Current: current, Total: total, Percent: Percent(current, total),
			})
			continue
		}

		r.emit(run, StreamEvent{
			Type: EventGenerating, ElementID: el.ID, Phase: "image",
			Current: current, Total: total, Percent: Percent(current-1, total),
		})

		url, err := r.images.Generate(run.ctx, generate.ImageRequest{
			ProjectID: project.ID,
			Prompt:    buildElementPrompt(project, el),
			Style:     opts.Style,
			Quality:   opts.Quality,
		})
		if err != nil {
			if run.ctx.Err() != nil {
				return
			}
			counts.Failed++
			log.Printf("❌ Element %s generation failed: %v", el.ID, err)
			r.emit(run, StreamEvent{
				Type: EventError, ElementID: el.ID, Message: err.Error(),
				Current: current, Total: total, Percent: Percent(current, total),
			})
			continue
		}

		el.ImageHistory = append(el.ImageHistory, model.ImageRecord{
			ID:        uuid.New().String(),
			URL:       url,
			CreatedAt: time.Now().UTC(),
		})
		// A pinned favorite stays the active image; regeneration only grows
		// the history behind it.
		if el.FavoriteRecord() == nil {
			el.ImageURL = url
		}
		r.persist(run.ctx, project.ID, map[string]interface{}{"elements": project.Elements})

		counts.Generated++
		log.Printf("✅ Element %s image generated (%d/%d)", el.ID, current, total)
		r.emit(run, StreamEvent{
			Type: EventComplete, ElementID: el.ID, URL: url,
			Current: current, Total: total, Percent: Percent(current, total),
		})
	}

	log.Printf("✅ Elements stage finished for project %s: %d generated, %d failed, %d skipped", project.ID, counts.Generated, counts.Failed, counts.Skipped)
	r.emit(run, StreamEvent{Type: EventDone, Total: total, Percent: 100, Counts: &counts})
}

func elementSkipReason(el *model.Element, f StageFilter) string {
	if f.excluded(el.ID) {
		return SkipExcluded
	}
	if el.ImageURL != "" && !f.forced(el.ID) {
		return SkipAlreadyHasAsset
	}
	return ""
}
