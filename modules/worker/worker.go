package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"storyreel-server/modules/common/model"
	redisutil "storyreel-server/modules/common/redis"
	"storyreel-server/modules/pipeline"
)

// pipelineRequest - queued full-pipeline run request
type pipelineRequest struct {
	ProjectID string                `json:"project_id"`
	Options   pipeline.StageOptions `json:"options"`
}

// Stage order for a full pipeline run
var stageSequence = []model.Stage{
	model.StageElements,
	model.StageFrames,
	model.StageVideos,
	model.StageAudio,
}

// Worker - consumes queued pipeline requests and runs the stages in order,
// one request at a time. Cancelling the active stage run aborts the rest of
// the sequence.
type Worker struct {
	rdb    *goredis.Client
	runner *pipeline.Runner
}

func NewWorker(rdb *goredis.Client, runner *pipeline.Runner) *Worker {
	return &Worker{rdb: rdb, runner: runner}
}

// Start - blocking consume loop; returns when ctx is cancelled
func (w *Worker) Start(ctx context.Context) {
	log.Printf("👷 Pipeline worker started, watching %s", redisutil.PipelineQueueKey)

	for {
		if ctx.Err() != nil {
			log.Printf("👷 Pipeline worker stopped")
			return
		}

		result, err := w.rdb.BRPop(ctx, 5*time.Second, redisutil.PipelineQueueKey).Result()
		if err == goredis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("👷 Pipeline worker stopped")
				return
			}
			log.Printf("⚠️ Pipeline queue read failed: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var req pipelineRequest
		if err := json.Unmarshal([]byte(result[1]), &req); err != nil {
			log.Printf("❌ Dropping malformed pipeline request: %v", err)
			continue
		}
		if req.ProjectID == "" {
			log.Printf("❌ Dropping pipeline request without project id")
			continue
		}

		w.process(ctx, req)
	}
}

func (w *Worker) process(ctx context.Context, req pipelineRequest) {
	log.Printf("🔄 Running full pipeline for project %s", req.ProjectID)

	for _, stage := range stageSequence {
		run, err := w.runner.StartStage(req.ProjectID, stage, req.Options)
		if err != nil {
			log.Printf("❌ Failed to start %s stage for project %s: %v", stage, req.ProjectID, err)
			return
		}

		cancelled := w.await(ctx, run)
		if cancelled {
			log.Printf("🛑 Pipeline for project %s aborted during %s stage", req.ProjectID, stage)
			return
		}
	}

	log.Printf("✅ Full pipeline finished for project %s", req.ProjectID)
}

// await - drain the run's event stream until it settles. Returns true when
// the run was cancelled (no done event observed) or the worker is shutting
// down.
func (w *Worker) await(ctx context.Context, run *pipeline.Run) bool {
	sawDone := false
	for {
		select {
		case <-ctx.Done():
			run.Cancel()
			return true
		case ev, ok := <-run.Events:
			if !ok {
				return !sawDone
			}
			if ev.Type == pipeline.EventDone {
				sawDone = true
			}
		}
	}
}
