package poller

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"storyreel-server/modules/common/model"
	"storyreel-server/modules/generate"
)

// ProjectStore - persistence needed by the poller
type ProjectStore interface {
	Get(ctx context.Context, projectID string) (*model.Project, error)
	Update(ctx context.Context, projectID string, fields map[string]interface{}) (*model.Project, error)
}

// VideoStatusChecker - batched task status lookup
type VideoStatusChecker interface {
	Status(ctx context.Context, taskIDs []string) (map[string]generate.VideoTaskStatus, error)
}

// Manager - one background poller per project with processing shots. Pollers
// sweep until nothing is left to resolve, then retire themselves; EnsureFor
// is cheap to call on every websocket connect.
type Manager struct {
	store    ProjectStore
	videos   VideoStatusChecker
	interval time.Duration
	onReload func(*model.Project)

	mu      sync.Mutex
	pollers map[string]*Poller
}

// NewManager - onReload receives the freshly reloaded document after any
// sweep that resolved a task, and may be nil.
func NewManager(store ProjectStore, videos VideoStatusChecker, interval time.Duration, onReload func(*model.Project)) *Manager {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Manager{
		store:    store,
		videos:   videos,
		interval: interval,
		onReload: onReload,
		pollers:  make(map[string]*Poller),
	}
}

// EnsureFor - start a poller for the project unless one is already running
func (m *Manager) EnsureFor(projectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pollers[projectID]; ok {
		return
	}
	p := &Poller{
		projectID: projectID,
		store:     m.store,
		videos:    m.videos,
		interval:  m.interval,
		onReload:  m.onReload,
		onRetire:  func() { m.remove(projectID) },
		stop:      make(chan struct{}),
	}
	m.pollers[projectID] = p
	log.Printf("🔄 Starting video task poller for project %s", projectID)
	go p.run()
}

// StopAll - shut down every poller, used on server shutdown
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pollers {
		p.Stop()
	}
	m.pollers = make(map[string]*Poller)
}

func (m *Manager) remove(projectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pollers, projectID)
}

// Poller - periodic sweeper for one project's outstanding video tasks. The
// task set is reconstructed from the document on every sweep, so tasks
// submitted by a run that later timed out or crashed are still resolved.
type Poller struct {
	projectID string
	store     ProjectStore
	videos    VideoStatusChecker
	interval  time.Duration
	onReload  func(*model.Project)
	onRetire  func()

	inFlight atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

// Stop - halt the sweep loop
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *Poller) run() {
	defer p.onRetire()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}

		// A slow upstream must not stack sweeps on top of each other.
		if !p.inFlight.CompareAndSwap(false, true) {
			continue
		}
		retire := p.sweep()
		p.inFlight.Store(false)

		if retire {
			log.Printf("✅ Video task poller for project %s has nothing left to resolve", p.projectID)
			return
		}
	}
}

// sweep - one pass: reload the document, check every outstanding task in a
// single batched call, persist resolutions. Returns true when no processing
// shots remain.
func (p *Poller) sweep() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	project, err := p.store.Get(ctx, p.projectID)
	if err != nil {
		log.Printf("⚠️ Poller failed to load project %s: %v", p.projectID, err)
		return false
	}

	processing := project.ProcessingShots()
	if len(processing) == 0 {
		return true
	}

	taskIDs := make([]string, len(processing))
	byTask := make(map[string]*model.Shot, len(processing))
	for i, shot := range processing {
		taskIDs[i] = shot.VideoTaskID
		byTask[shot.VideoTaskID] = shot
	}

	statuses, err := p.videos.Status(ctx, taskIDs)
	if err != nil {
		log.Printf("⚠️ Poller status sweep failed for project %s: %v", p.projectID, err)
		return false
	}

	resolved := 0
	for taskID, status := range statuses {
		shot := byTask[taskID]
		if shot == nil {
			continue
		}
		switch status.Status {
		case generate.VideoTaskCompleted:
			shot.VideoURL = status.VideoURL
			shot.Status = model.ShotVideoReady
			shot.VideoTaskID = ""
			resolved++
			log.Printf("✅ Poller resolved video task %s for shot %s", taskID, shot.ID)
		case generate.VideoTaskFailed:
			shot.Status = model.ShotVideoFailed
			shot.VideoTaskID = ""
			resolved++
			log.Printf("❌ Poller: video task %s for shot %s failed: %s", taskID, shot.ID, status.Message)
		}
	}

	if resolved == 0 {
		return false
	}

	fresh, err := p.store.Update(ctx, project.ID, map[string]interface{}{"segments": project.Segments})
	if err != nil {
		log.Printf("⚠️ Poller failed to persist project %s: %v", p.projectID, err)
		return false
	}
	if p.onReload != nil {
		p.onReload(fresh)
	}

	return len(fresh.ProcessingShots()) == 0
}
