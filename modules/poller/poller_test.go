package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"storyreel-server/modules/common/model"
	"storyreel-server/modules/generate"
)

type fakeStore struct {
	mu      sync.Mutex
	project *model.Project
	updates int
}

func (s *fakeStore) Get(ctx context.Context, projectID string) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project, nil
}

func (s *fakeStore) Update(ctx context.Context, projectID string, fields map[string]interface{}) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	return s.project, nil
}

type fakeChecker struct {
	mu       sync.Mutex
	statusFn func(call int, taskIDs []string) map[string]generate.VideoTaskStatus
	calls    int
}

func (c *fakeChecker) Status(ctx context.Context, taskIDs []string) (map[string]generate.VideoTaskStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.statusFn(c.calls, taskIDs), nil
}

func processingProject() *model.Project {
	return &model.Project{
		ID: "p1",
		Segments: []model.Segment{
			{ID: "seg1", Shots: []model.Shot{
				{ID: "shot1", Status: model.ShotVideoProcessing, VideoTaskID: "task1"},
				{ID: "shot2", Status: model.ShotVideoProcessing, VideoTaskID: "task2"},
			}},
		},
	}
}

func TestPollerResolvesTasksAndRetires(t *testing.T) {
	project := processingProject()
	store := &fakeStore{project: project}
	checker := &fakeChecker{
		// task1 resolves on the first sweep, task2 on a later one
		statusFn: func(call int, taskIDs []string) map[string]generate.VideoTaskStatus {
			if call == 1 {
				return map[string]generate.VideoTaskStatus{
					"task1": {TaskID: "task1", Status: generate.VideoTaskCompleted, VideoURL: "https://cdn.test/v1.mp4"},
				}
			}
			return map[string]generate.VideoTaskStatus{
				"task2": {TaskID: "task2", Status: generate.VideoTaskFailed, Message: "render error"},
			}
		},
	}

	reloads := make(chan *model.Project, 8)
	manager := NewManager(store, checker, 5*time.Millisecond, func(p *model.Project) {
		reloads <- p
	})
	defer manager.StopAll()

	manager.EnsureFor("p1")

	// Two resolving sweeps, each ending in a reload broadcast.
	for i := 0; i < 2; i++ {
		select {
		case <-reloads:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for reload %d", i+1)
		}
	}

	if shot := project.FindShot("shot1"); shot.Status != model.ShotVideoReady || shot.VideoURL != "https://cdn.test/v1.mp4" || shot.VideoTaskID != "" {
		t.Errorf("shot1 = %+v", shot)
	}
	if shot := project.FindShot("shot2"); shot.Status != model.ShotVideoFailed || shot.VideoTaskID != "" {
		t.Errorf("shot2 = %+v", shot)
	}

	// With nothing left processing the poller retires; EnsureFor may then
	// start a fresh one without tripping over a stale entry.
	deadline := time.After(2 * time.Second)
	for {
		manager.mu.Lock()
		remaining := len(manager.pollers)
		manager.mu.Unlock()
		if remaining == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("poller did not retire after resolving everything")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPollerIdleProjectRetiresWithoutWrites(t *testing.T) {
	project := &model.Project{
		ID: "p1",
		Segments: []model.Segment{
			{ID: "seg1", Shots: []model.Shot{
				{ID: "shot1", Status: model.ShotVideoReady, VideoURL: "https://cdn.test/v.mp4"},
			}},
		},
	}
	store := &fakeStore{project: project}
	checker := &fakeChecker{
		statusFn: func(call int, taskIDs []string) map[string]generate.VideoTaskStatus {
			t.Error("status should not be called for an idle project")
			return nil
		},
	}

	manager := NewManager(store, checker, 5*time.Millisecond, nil)
	defer manager.StopAll()
	manager.EnsureFor("p1")

	deadline := time.After(2 * time.Second)
	for {
		manager.mu.Lock()
		remaining := len(manager.pollers)
		manager.mu.Unlock()
		if remaining == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("idle poller did not retire")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if store.updates != 0 {
		t.Errorf("updates = %d, want 0", store.updates)
	}
}

func TestEnsureForIsIdempotent(t *testing.T) {
	project := processingProject()
	store := &fakeStore{project: project}
	checker := &fakeChecker{
		statusFn: func(call int, taskIDs []string) map[string]generate.VideoTaskStatus {
			return nil // nothing ever resolves
		},
	}

	manager := NewManager(store, checker, 10*time.Millisecond, nil)
	defer manager.StopAll()

	manager.EnsureFor("p1")
	manager.EnsureFor("p1")
	manager.EnsureFor("p1")

	manager.mu.Lock()
	count := len(manager.pollers)
	manager.mu.Unlock()
	if count != 1 {
		t.Errorf("pollers = %d, want 1", count)
	}
}
