package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"storyreel-server/modules/common/config"
	"storyreel-server/modules/common/database"
	"storyreel-server/modules/common/model"
	redisutil "storyreel-server/modules/common/redis"
	"storyreel-server/modules/common/storage"
	"storyreel-server/modules/generate"
	"storyreel-server/modules/patch"
	"storyreel-server/modules/pipeline"
	"storyreel-server/modules/planner"
	"storyreel-server/modules/poller"
	"storyreel-server/modules/worker"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Clients connect from the app origin; tighten before exposing publicly
		return true
	},
}

// Client - one websocket subscriber for a project's event stream
type Client struct {
	conn      *websocket.Conn
	projectID string
	send      chan []byte
}

// Room - all subscribers watching one project
type Room struct {
	projectID string
	clients   map[*Client]bool
	mutex     sync.RWMutex
}

// Hub - rooms keyed by project id
type Hub struct {
	rooms map[string]*Room
	mutex sync.RWMutex
}

var hub = &Hub{rooms: make(map[string]*Room)}

func (h *Hub) getOrCreateRoom(projectID string) *Room {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, exists := h.rooms[projectID]
	if !exists {
		room = &Room{
			projectID: projectID,
			clients:   make(map[*Client]bool),
		}
		h.rooms[projectID] = room
		log.Printf("✅ Created room for project: %s", projectID)
	}
	return room
}

// Broadcast - send a JSON payload to every subscriber of a project
func (h *Hub) Broadcast(projectID string, payload interface{}) {
	h.mutex.RLock()
	room := h.rooms[projectID]
	h.mutex.RUnlock()
	if room == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("⚠️ Failed to encode broadcast: %v", err)
		return
	}

	room.mutex.RLock()
	defer room.mutex.RUnlock()
	for client := range room.clients {
		select {
		case client.send <- data:
		default:
			// Slow consumer, drop rather than block the broadcast
		}
	}
}

func (r *Room) addClient(client *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.clients[client] = true
	log.Printf("📡 Client joined project %s (%d connected)", r.projectID, len(r.clients))
}

func (r *Room) removeClient(client *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.clients[client] {
		delete(r.clients, client)
		close(client.send)
		log.Printf("📡 Client left project %s (%d connected)", r.projectID, len(r.clients))
	}
}

func (c *Client) readPump(room *Room) {
	defer func() {
		room.removeClient(c)
		c.conn.Close()
	}()

	// The stream is one-way; reads only detect disconnects
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func handleWebSocket(pollers *poller.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := r.URL.Query().Get("project")
		if projectID == "" {
			http.Error(w, "missing project parameter", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		client := &Client{
			conn:      conn,
			projectID: projectID,
			send:      make(chan []byte, 256),
		}

		room := hub.getOrCreateRoom(projectID)
		room.addClient(client)

		// A reconnecting client may have shots stuck in video_processing
		// from a run that timed out or crashed; make sure someone is
		// sweeping them.
		pollers.EnsureFor(projectID)

		go client.writePump()
		go client.readPump(room)
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	rdb := redisutil.Connect(cfg)
	if rdb == nil {
		log.Fatalf("❌ Redis connection failed")
	}

	db := database.NewClient()
	storageClient := storage.NewClient()
	imageGen := generate.NewGeminiImageGenerator(storageClient)
	videoGen := generate.NewVideoClient()
	audioGen := generate.NewTTSClient()

	var pollers *poller.Manager

	runner := pipeline.NewRunner(db, imageGen, videoGen, audioGen, rdb, func(ev pipeline.StreamEvent) {
		hub.Broadcast(ev.ProjectID, ev)
		if ev.Type == pipeline.EventTimeout {
			// Tasks left pending past the run ceiling are handed to the
			// background poller.
			pollers.EnsureFor(ev.ProjectID)
		}
	})
	runner.PollInterval = time.Duration(cfg.VideoPollIntervalSec) * time.Second
	runner.PollCeiling = time.Duration(cfg.VideoPollCeilingSec) * time.Second

	pollers = poller.NewManager(db, videoGen, time.Duration(cfg.VideoPollIntervalSec)*time.Second, func(project *model.Project) {
		hub.Broadcast(project.ID, map[string]interface{}{
			"type":       "project_reload",
			"project_id": project.ID,
		})
	})

	patchService := patch.NewService(db, runner, runner, patch.NewValidator(cfg.BulkPatchFields))
	plannerService := planner.NewService(db, patchService)

	pipelineWorker := worker.NewWorker(rdb, runner)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pipelineWorker.Start(ctx)

	r := mux.NewRouter()
	r.Use(enableCORS)

	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/ws", handleWebSocket(pollers))

	pipeline.NewHandler(runner, rdb).RegisterRoutes(r)
	patch.NewHandler(patchService).RegisterRoutes(r)
	planner.NewHandler(plannerService).RegisterRoutes(r)

	log.Printf("🚀 StoryReel generation server starting on port %s", cfg.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost:%s/ws?project=<id>", cfg.Port)
	log.Printf("❤️  Health check: http://localhost:%s/health", cfg.Port)

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
