package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"storyreel-server/modules/common/model"
	redisutil "storyreel-server/modules/common/redis"
)

// Generation modes for a stage run
const (
	ModeMissing    = "missing"    // only items without an asset
	ModeRegenerate = "regenerate" // every item, replacing existing assets
)

// StageFilter - narrows which items a stage run touches
type StageFilter struct {
	Mode          string   `json:"mode,omitempty"`
	OnlyIDs       []string `json:"only_ids,omitempty"`
	ExcludeIDs    []string `json:"exclude_ids,omitempty"`
	RegenerateIDs []string `json:"regenerate_ids,omitempty"`
}

func (f StageFilter) excluded(id string) bool {
	if len(f.OnlyIDs) > 0 && !contains(f.OnlyIDs, id) {
		return true
	}
	return contains(f.ExcludeIDs, id)
}

func (f StageFilter) forced(id string) bool {
	return f.Mode == ModeRegenerate || contains(f.RegenerateIDs, id)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// StageOptions - caller knobs for a stage run
type StageOptions struct {
	Style   string      `json:"style,omitempty"`
	Quality string      `json:"quality,omitempty"`
	Filter  StageFilter `json:"filter"`
}

// Run - handle for one in-flight stage run. Events carries the typed stream;
// the channel closes after the run settles. Cancel is cooperative: the
// executor checks between items, so one in-flight item may still finish.
type Run struct {
	ID        string
	ProjectID string
	Stage     model.Stage
	Events    chan StreamEvent

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	cancelled atomic.Bool
}

// Cancel - stop the run. No further events are emitted once called.
func (r *Run) Cancel() {
	r.cancelled.Store(true)
	r.cancel()
}

// Done - closed when the run goroutine has settled
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Runner - owns stage execution. At most one run per project: starting a new
// run cancels the existing one and discards its handle.
type Runner struct {
	store  ProjectStore
	images ImageGenerator
	videos VideoGenerator
	audio  AudioGenerator
	rdb    *goredis.Client

	tracker *Tracker
	onEvent func(StreamEvent)

	PollInterval time.Duration
	PollCeiling  time.Duration

	mu     sync.Mutex
	byProj map[string]*Run
	byID   map[string]*Run
}

// NewRunner - onEvent receives every emitted event (websocket broadcast) and
// may be nil.
func NewRunner(store ProjectStore, images ImageGenerator, videos VideoGenerator, audio AudioGenerator, rdb *goredis.Client, onEvent func(StreamEvent)) *Runner {
	return &Runner{
		store:        store,
		images:       images,
		videos:       videos,
		audio:        audio,
		rdb:          rdb,
		tracker:      NewTracker(),
		onEvent:      onEvent,
		PollInterval: 5 * time.Second,
		PollCeiling:  5 * time.Minute,
		byProj:       make(map[string]*Run),
		byID:         make(map[string]*Run),
	}
}

// Tracker - progress aggregator fed by every run
func (r *Runner) Tracker() *Tracker {
	return r.tracker
}

// StartStage - begin a stage run for a project. Any active run for the same
// project is cancelled first and its handle discarded.
func (r *Runner) StartStage(projectID string, stage model.Stage, opts StageOptions) (*Run, error) {
	switch stage {
	case model.StageElements, model.StageFrames, model.StageVideos, model.StageAudio:
	default:
		return nil, fmt.Errorf("stage %q cannot be started directly", stage)
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &Run{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Stage:     stage,
		Events:    make(chan StreamEvent, 256),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	if prev := r.byProj[projectID]; prev != nil {
		log.Printf("🛑 Cancelling run %s before starting %s stage for project %s", prev.ID, stage, projectID)
		prev.Cancel()
		delete(r.byID, prev.ID)
	}
	r.byProj[projectID] = run
	r.byID[run.ID] = run
	r.mu.Unlock()

	log.Printf("🚀 Starting %s stage run %s for project %s", stage, run.ID, projectID)
	go r.execute(run, opts)
	return run, nil
}

// Cancel - cancel a run by id, both locally and via the shared redis flag so
// a run owned by another process stops too.
func (r *Runner) Cancel(runID string) error {
	if err := redisutil.SetRunCancelled(r.rdb, runID); err != nil {
		log.Printf("⚠️ Failed to set cancel flag for run %s: %v", runID, err)
	}

	r.mu.Lock()
	run := r.byID[runID]
	r.mu.Unlock()

	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	run.Cancel()
	log.Printf("🛑 Run %s cancelled", runID)
	return nil
}

// ActiveRun - the current run for a project, nil when idle
func (r *Runner) ActiveRun(projectID string) *Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byProj[projectID]
}

// StageFor - the stage currently running for a project, idle when none
func (r *Runner) StageFor(projectID string) model.Stage {
	if run := r.ActiveRun(projectID); run != nil {
		return run.Stage
	}
	return model.StageIdle
}

// RegenerateShotFrame - targeted frame regeneration for one shot, used by the
// patch applier. Returns the run id.
func (r *Runner) RegenerateShotFrame(projectID, shotID string) (string, error) {
	run, err := r.StartStage(projectID, model.StageFrames, StageOptions{
		Filter: StageFilter{Mode: ModeRegenerate, OnlyIDs: []string{shotID}},
	})
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

func (r *Runner) execute(run *Run, opts StageOptions) {
	defer func() {
		r.mu.Lock()
		if r.byProj[run.ProjectID] == run {
			delete(r.byProj, run.ProjectID)
		}
		delete(r.byID, run.ID)
		r.mu.Unlock()
		close(run.Events)
		close(run.done)
	}()

	switch run.Stage {
	case model.StageElements:
		r.runElements(run, opts)
	case model.StageFrames:
		r.runFrames(run, opts)
	case model.StageVideos:
		r.runVideos(run, opts)
	case model.StageAudio:
		r.runAudio(run, opts)
	}
}

// emit - stamp, record, and fan out one event. Suppressed entirely after
// cancellation. Slow handle consumers get events dropped rather than
// blocking the run.
func (r *Runner) emit(run *Run, ev StreamEvent) {
	if run.cancelled.Load() {
		return
	}
	ev.Stage = run.Stage
	ev.ProjectID = run.ProjectID
	ev.RunID = run.ID

	r.tracker.Observe(ev)

	select {
	case run.Events <- ev:
	default:
		log.Printf("⚠️ Dropping %s event for run %s: handle consumer too slow", ev.Type, run.ID)
	}

	if r.onEvent != nil {
		r.onEvent(ev)
	}
}

// isCancelled - cooperative cancellation check, consulted between items. The
// redis flag catches cancellations requested through another process.
func (r *Runner) isCancelled(run *Run) bool {
	select {
	case <-run.ctx.Done():
		run.cancelled.Store(true)
		return true
	default:
	}
	if redisutil.IsRunCancelled(r.rdb, run.ID) {
		log.Printf("🛑 Run %s cancelled via redis flag", run.ID)
		run.Cancel()
		return true
	}
	return false
}

// persist - write a column snapshot, logging instead of failing the run when
// the store is briefly unavailable. The next item's write carries the same
// accumulated state.
func (r *Runner) persist(ctx context.Context, projectID string, fields map[string]interface{}) {
	if _, err := r.store.Update(ctx, projectID, fields); err != nil {
		log.Printf("⚠️ Failed to persist project %s: %v", projectID, err)
	}
}
