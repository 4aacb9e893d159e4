package pipeline

import (
	"fmt"
	"testing"
	"time"

	"storyreel-server/modules/common/model"
	"storyreel-server/modules/generate"
)

func videosProject() *model.Project {
	return &model.Project{
		ID: "p1",
		Segments: []model.Segment{
			{
				ID: "seg1", Name: "Act One",
				Shots: []model.Shot{
					{ID: "shot1", Name: "Opening", Prompt: "opening", StartImageURL: "https://cdn.test/f1.webp", Status: model.ShotFrameReady, Duration: 5},
					{ID: "shot2", Name: "Middle", Prompt: "middle", StartImageURL: "https://cdn.test/f2.webp", Status: model.ShotFrameReady, Duration: 5},
					{ID: "shot3", Name: "Closing", Prompt: "closing", StartImageURL: "https://cdn.test/f3.webp", Status: model.ShotFrameReady, Duration: 5},
					{ID: "shot4", Name: "Unframed", Prompt: "no frame yet", Status: model.ShotPending, Duration: 5},
				},
			},
		},
	}
}

func TestVideosStageResolvesAndTimesOut(t *testing.T) {
	project := videosProject()
	store := &fakeStore{project: project}
	videos := &fakeVideoGen{
		submitFn: func(req generate.VideoSubmitRequest) (string, error) {
			return "task_" + req.ShotID, nil
		},
		// First two tasks resolve on the first sweep; the third never does.
		statusFn: func(call int, taskIDs []string) map[string]generate.VideoTaskStatus {
			return map[string]generate.VideoTaskStatus{
				"task_shot1": {TaskID: "task_shot1", Status: generate.VideoTaskCompleted, VideoURL: "https://cdn.test/v1.mp4"},
				"task_shot2": {TaskID: "task_shot2", Status: generate.VideoTaskCompleted, VideoURL: "https://cdn.test/v2.mp4"},
			}
		},
	}
	runner := NewRunner(store, nil, videos, nil, nil, nil)
	runner.PollInterval = 5 * time.Millisecond
	runner.PollCeiling = 40 * time.Millisecond

	run, err := runner.StartStage("p1", model.StageVideos, StageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, run)

	if events[0].Type != EventStart || events[0].Total != 4 {
		t.Fatalf("start event = %+v", events[0])
	}
	last := events[len(events)-1]
	if last.Type != EventDone {
		t.Fatalf("last event = %s, want done; sequence %v", last.Type, eventTypes(events))
	}
	if last.Counts.Completed != 2 || last.Counts.Failed != 0 || last.Counts.Skipped != 1 || last.Counts.Total != 4 {
		t.Errorf("done counts = %+v", *last.Counts)
	}

	var sawPollingStart, sawTimeout bool
	completes := 0
	for _, ev := range events {
		switch ev.Type {
		case EventPollingStart:
			sawPollingStart = true
		case EventComplete:
			completes++
		case EventTimeout:
			sawTimeout = true
			if ev.ShotID != "shot3" {
				t.Errorf("timeout for shot %s, want shot3", ev.ShotID)
			}
		case EventSkip:
			if ev.ShotID != "shot4" || ev.Reason != SkipNoStartFrame {
				t.Errorf("skip event = %+v", ev)
			}
		}
	}
	if !sawPollingStart {
		t.Error("missing polling_start event")
	}
	if completes != 2 {
		t.Errorf("complete events = %d, want 2", completes)
	}
	if !sawTimeout {
		t.Error("missing timeout event")
	}

	if shot := project.FindShot("shot1"); shot.Status != model.ShotVideoReady || shot.VideoURL != "https://cdn.test/v1.mp4" || shot.VideoTaskID != "" {
		t.Errorf("shot1 = %+v", shot)
	}
	if shot := project.FindShot("shot2"); shot.Status != model.ShotVideoReady {
		t.Errorf("shot2 status = %s", shot.Status)
	}
	// A timed-out task is not a failure: it stays processing with its task
	// id so the background poller can still resolve it.
	if shot := project.FindShot("shot3"); shot.Status != model.ShotVideoProcessing || shot.VideoTaskID != "task_shot3" {
		t.Errorf("shot3 = %+v", shot)
	}
}

func TestVideosStagePollingPercentHalfResolved(t *testing.T) {
	project := &model.Project{
		ID: "p1",
		Segments: []model.Segment{
			{ID: "seg1", Shots: []model.Shot{
				{ID: "shot1", Prompt: "a", StartImageURL: "https://cdn.test/f1.webp", Status: model.ShotFrameReady, Duration: 5},
				{ID: "shot2", Prompt: "b", StartImageURL: "https://cdn.test/f2.webp", Status: model.ShotFrameReady, Duration: 5},
				{ID: "shot3", Prompt: "c", StartImageURL: "https://cdn.test/f3.webp", Status: model.ShotFrameReady, Duration: 5},
				{ID: "shot4", Prompt: "d", StartImageURL: "https://cdn.test/f4.webp", Status: model.ShotFrameReady, Duration: 5},
			}},
		},
	}
	store := &fakeStore{project: project}
	videos := &fakeVideoGen{
		submitFn: func(req generate.VideoSubmitRequest) (string, error) {
			return "task_" + req.ShotID, nil
		},
		// Half the tasks resolve on the first sweep, the rest never do.
		statusFn: func(call int, taskIDs []string) map[string]generate.VideoTaskStatus {
			return map[string]generate.VideoTaskStatus{
				"task_shot1": {TaskID: "task_shot1", Status: generate.VideoTaskCompleted, VideoURL: "https://cdn.test/v1.mp4"},
				"task_shot2": {TaskID: "task_shot2", Status: generate.VideoTaskCompleted, VideoURL: "https://cdn.test/v2.mp4"},
			}
		},
	}
	runner := NewRunner(store, nil, videos, nil, nil, nil)
	runner.PollInterval = 5 * time.Millisecond
	runner.PollCeiling = 40 * time.Millisecond

	run, err := runner.StartStage("p1", model.StageVideos, StageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, run)

	// 2 of 4 completed, 2 still pending: the poll phase maps to the second
	// half of the bar, so the sweep reports 50 + round(100*2/4*0.5) = 75.
	sawHalfResolved := false
	for _, ev := range events {
		if ev.Type != EventPolling || ev.Completed != 2 || ev.Pending != 2 {
			continue
		}
		sawHalfResolved = true
		if ev.Percent != 75 {
			t.Errorf("polling percent with 2 of 4 completed = %d, want 75", ev.Percent)
		}
	}
	if !sawHalfResolved {
		t.Fatalf("no polling event with completed=2 pending=2; sequence %v", eventTypes(events))
	}

	for _, ev := range events {
		if ev.Type == EventComplete && ev.ShotID == "shot2" && ev.Percent != 75 {
			t.Errorf("second complete percent = %d, want 75", ev.Percent)
		}
	}
}

func TestVideosStageSubmissionFailure(t *testing.T) {
	project := videosProject()
	store := &fakeStore{project: project}
	videos := &fakeVideoGen{
		submitFn: func(req generate.VideoSubmitRequest) (string, error) {
			if req.ShotID == "shot2" {
				return "", fmt.Errorf("rejected by upstream")
			}
			return "task_" + req.ShotID, nil
		},
		statusFn: func(call int, taskIDs []string) map[string]generate.VideoTaskStatus {
			out := make(map[string]generate.VideoTaskStatus, len(taskIDs))
			for _, id := range taskIDs {
				out[id] = generate.VideoTaskStatus{TaskID: id, Status: generate.VideoTaskCompleted, VideoURL: "https://cdn.test/v.mp4"}
			}
			return out
		},
	}
	runner := NewRunner(store, nil, videos, nil, nil, nil)
	runner.PollInterval = 5 * time.Millisecond
	runner.PollCeiling = 200 * time.Millisecond

	run, err := runner.StartStage("p1", model.StageVideos, StageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, run)

	last := events[len(events)-1]
	if last.Type != EventDone {
		t.Fatalf("last event = %s, want done", last.Type)
	}
	if last.Counts.Completed != 2 || last.Counts.Failed != 1 {
		t.Errorf("done counts = %+v", *last.Counts)
	}
	if shot := project.FindShot("shot2"); shot.Status != model.ShotVideoFailed {
		t.Errorf("shot2 status = %s, want video_failed", shot.Status)
	}
}

func TestVideosStageNothingToSubmit(t *testing.T) {
	project := &model.Project{
		ID: "p1",
		Segments: []model.Segment{
			{ID: "seg1", Shots: []model.Shot{
				{ID: "shot1", Prompt: "done already", StartImageURL: "https://cdn.test/f.webp", VideoURL: "https://cdn.test/v.mp4", Status: model.ShotVideoReady},
			}},
		},
	}
	store := &fakeStore{project: project}
	videos := &fakeVideoGen{
		submitFn: func(req generate.VideoSubmitRequest) (string, error) {
			t.Error("submit should not be called")
			return "", nil
		},
		statusFn: func(call int, taskIDs []string) map[string]generate.VideoTaskStatus {
			return nil
		},
	}
	runner := NewRunner(store, nil, videos, nil, nil, nil)
	runner.PollInterval = 5 * time.Millisecond

	run, err := runner.StartStage("p1", model.StageVideos, StageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, run)

	got := eventTypes(events)
	if len(got) != 3 || got[0] != EventStart || got[1] != EventSkip || got[2] != EventDone {
		t.Fatalf("expected start, skip, done; got %v", got)
	}
	if events[1].Reason != SkipAlreadyHasAsset {
		t.Errorf("skip reason = %s", events[1].Reason)
	}
}
