package pipeline

import (
	"log"
	"time"

	"storyreel-server/modules/common/model"
	"storyreel-server/modules/generate"
)

type videoTask struct {
	taskID string
	shotID string
}

// runVideos - two-phase stage. Phase one submits every eligible shot and maps
// to the first half of the progress bar; phase two polls the outstanding
// tasks in a single batched status call per sweep and maps to the second
// half. Tasks still pending at the ceiling get a timeout event and keep their
// processing status so the background poller can resolve them later.
func (r *Runner) runVideos(run *Run, opts StageOptions) {
	project, err := r.store.Get(run.ctx, run.ProjectID)
	if err != nil {
		log.Printf("❌ Videos stage: failed to load project %s: %v", run.ProjectID, err)
		r.emit(run, StreamEvent{Type: EventError, Message: "failed to load project: " + err.Error()})
		r.emit(run, StreamEvent{Type: EventDone, Counts: &RunCounts{}, Percent: 100})
		return
	}

	shots := project.AllShots()
	total := len(shots)
	counts := RunCounts{Total: total}

	r.emit(run, StreamEvent{Type: EventStart, Total: total})

	var outstanding []videoTask
	current := 0
	for _, shot := range shots {
		if r.isCancelled(run) {
			log.Printf("🛑 Videos stage aborted for project %s during submission", project.ID)
			return
		}
		current++

		if reason := videoSkipReason(shot, opts.Filter); reason != "" {
			counts.Skipped++
			r.emit(run, StreamEvent{
				Type: EventSkip, ShotID: shot.ID, Reason: reason,
				Current: current, Total: total, Percent: VideoSubmitPercent(current, total),
			})
			continue
		}

		r.emit(run, StreamEvent{
			Type: EventSubmitting, ShotID: shot.ID, Phase: "submit",
			Current: current, Total: total, Percent: VideoSubmitPercent(current-1, total),
		})

		prompt := shot.VideoPrompt
		if prompt == "" {
			prompt = shot.Prompt
		}
		taskID, err := r.videos.Submit(run.ctx, generate.VideoSubmitRequest{
			ProjectID:     project.ID,
			ShotID:        shot.ID,
			StartImageURL: shot.StartImageURL,
			Prompt:        prompt,
			Duration:      shot.Duration,
		})
		if err != nil {
			if run.ctx.Err() != nil {
				return
			}
			shot.Status = model.ShotVideoFailed
			r.persist(run.ctx, project.ID, map[string]interface{}{"segments": project.Segments})
			counts.Failed++
			log.Printf("❌ Video submission for shot %s failed: %v", shot.ID, err)
			r.emit(run, StreamEvent{
				Type: EventError, ShotID: shot.ID, Message: err.Error(),
				Current: current, Total: total, Percent: VideoSubmitPercent(current, total),
			})
			continue
		}

		shot.Status = model.ShotVideoProcessing
		shot.VideoTaskID = taskID
		shot.VideoURL = ""
		r.persist(run.ctx, project.ID, map[string]interface{}{"segments": project.Segments})

		outstanding = append(outstanding, videoTask{taskID: taskID, shotID: shot.ID})
		log.Printf("📤 Video task %s submitted for shot %s (%d/%d)", taskID, shot.ID, current, total)
		r.emit(run, StreamEvent{
			Type: EventSubmitted, ShotID: shot.ID, TaskID: taskID,
			Current: current, Total: total, Percent: VideoSubmitPercent(current, total),
		})
	}

	if len(outstanding) == 0 {
		log.Printf("✅ Videos stage finished for project %s with nothing to poll", project.ID)
		r.emit(run, StreamEvent{Type: EventDone, Total: total, Percent: 100, Counts: &counts})
		return
	}

	submitted := len(outstanding)
	r.emit(run, StreamEvent{
		Type: EventPollingStart, Total: total,
		Pending: submitted, Percent: VideoPollPercent(0, submitted),
	})

	started := time.Now()
	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	for len(outstanding) > 0 {
		select {
		case <-run.ctx.Done():
			log.Printf("🛑 Videos stage aborted for project %s during polling", project.ID)
			return
		case <-ticker.C:
		}
		if r.isCancelled(run) {
			return
		}

		ids := make([]string, len(outstanding))
		for i, task := range outstanding {
			ids[i] = task.taskID
		}
		statuses, err := r.videos.Status(run.ctx, ids)
		if err != nil {
			if run.ctx.Err() != nil {
				return
			}
			log.Printf("⚠️ Video status sweep failed for project %s: %v", project.ID, err)
		}

		var remaining []videoTask
		resolved := submitted - len(outstanding)
		for _, task := range outstanding {
			status, ok := statuses[task.taskID]
			if !ok {
				remaining = append(remaining, task)
				continue
			}
			switch status.Status {
			case generate.VideoTaskCompleted:
				shot := project.FindShot(task.shotID)
				if shot != nil {
					shot.VideoURL = status.VideoURL
					shot.Status = model.ShotVideoReady
					shot.VideoTaskID = ""
					r.persist(run.ctx, project.ID, map[string]interface{}{"segments": project.Segments})
				}
				counts.Completed++
				resolved++
				log.Printf("✅ Video task %s completed for shot %s", task.taskID, task.shotID)
				r.emit(run, StreamEvent{
					Type: EventComplete, ShotID: task.shotID, TaskID: task.taskID, URL: status.VideoURL,
					Total: total, Percent: VideoPollPercent(counts.Completed, submitted-resolved),
				})
			case generate.VideoTaskFailed:
				shot := project.FindShot(task.shotID)
				if shot != nil {
					shot.Status = model.ShotVideoFailed
					shot.VideoTaskID = ""
					r.persist(run.ctx, project.ID, map[string]interface{}{"segments": project.Segments})
				}
				counts.Failed++
				resolved++
				log.Printf("❌ Video task %s failed for shot %s: %s", task.taskID, task.shotID, status.Message)
				r.emit(run, StreamEvent{
					Type: EventError, ShotID: task.shotID, TaskID: task.taskID, Message: status.Message,
					Total: total, Percent: VideoPollPercent(counts.Completed, submitted-resolved),
				})
			default:
				remaining = append(remaining, task)
			}
		}
		outstanding = remaining

		elapsed := time.Since(started)
		r.emit(run, StreamEvent{
			Type:       EventPolling,
			Total:      total,
			Completed:  counts.Completed,
			Pending:    len(outstanding),
			ElapsedSec: int(elapsed.Seconds()),
			Percent:    VideoPollPercent(counts.Completed, len(outstanding)),
		})

		if len(outstanding) > 0 && elapsed >= r.PollCeiling {
			for _, task := range outstanding {
				// Not a failure: the shot keeps its processing status and
				// task id so a later sweep can still resolve it.
				log.Printf("⚠️ Video task %s for shot %s still pending at ceiling", task.taskID, task.shotID)
				r.emit(run, StreamEvent{
					Type: EventTimeout, ShotID: task.shotID, TaskID: task.taskID,
					Total: total, Percent: VideoPollPercent(counts.Completed, len(outstanding)),
				})
			}
			outstanding = nil
		}
	}

	log.Printf("✅ Videos stage finished for project %s: %d completed, %d failed, %d skipped", project.ID, counts.Completed, counts.Failed, counts.Skipped)
	r.emit(run, StreamEvent{Type: EventDone, Total: total, Percent: 100, Counts: &counts})
}

func videoSkipReason(shot *model.Shot, f StageFilter) string {
	if f.excluded(shot.ID) {
		return SkipExcluded
	}
	if shot.VideoURL != "" && !f.forced(shot.ID) {
		return SkipAlreadyHasAsset
	}
	if shot.StartImageURL == "" {
		return SkipNoStartFrame
	}
	return ""
}
