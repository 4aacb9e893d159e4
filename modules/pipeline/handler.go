package pipeline

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	goredis "github.com/redis/go-redis/v9"

	"storyreel-server/modules/common/model"
	redisutil "storyreel-server/modules/common/redis"
)

// Handler - HTTP surface for stage runs, cancellation, and progress
type Handler struct {
	runner *Runner
	rdb    *goredis.Client
}

func NewHandler(runner *Runner, rdb *goredis.Client) *Handler {
	return &Handler{runner: runner, rdb: rdb}
}

// RegisterRoutes - mount the pipeline endpoints on the router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/projects/{projectId}/stages/{stage}", h.StartStage).Methods("POST")
	r.HandleFunc("/api/projects/{projectId}/pipeline", h.EnqueuePipeline).Methods("POST")
	r.HandleFunc("/api/projects/{projectId}/progress", h.Progress).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/stage", h.CurrentStage).Methods("GET")
	r.HandleFunc("/api/runs/{runId}/cancel", h.CancelRun).Methods("POST")
}

// StartStage - kick off one generation stage. Responds immediately with the
// run id; progress flows over the websocket and the progress endpoint.
func (h *Handler) StartStage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID := vars["projectId"]
	stage := model.Stage(vars["stage"])

	var opts StageOptions
	if r.Body != nil {
		// Empty body means default options
		_ = json.NewDecoder(r.Body).Decode(&opts)
	}

	run, err := h.runner.StartStage(projectID, stage, opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The handle's channel is drained here so the run never blocks on it;
	// clients follow the websocket broadcast instead.
	go func() {
		for range run.Events {
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id":     run.ID,
		"project_id": projectID,
		"stage":      stage,
	})
}

// EnqueuePipeline - queue a full pipeline run (all stages in order) for the
// background worker to pick up.
func (h *Handler) EnqueuePipeline(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	var opts StageOptions
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&opts)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"project_id": projectID,
		"options":    opts,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode request")
		return
	}
	if err := redisutil.PushPipelineRequest(h.rdb, payload); err != nil {
		log.Printf("❌ Failed to enqueue pipeline for project %s: %v", projectID, err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue pipeline run")
		return
	}

	log.Printf("📥 Pipeline run queued for project %s", projectID)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"project_id": projectID,
		"queued":     true,
	})
}

// Progress - latest aggregated progress snapshot for a project
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	writeJSON(w, http.StatusOK, h.runner.Tracker().Snapshot(projectID))
}

// CurrentStage - the stage currently running for a project, idle when none
func (h *Handler) CurrentStage(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"project_id": projectID,
		"stage":      h.runner.StageFor(projectID),
	})
}

// CancelRun - request cooperative cancellation of a run
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runId"]
	if err := h.runner.Cancel(runID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    runID,
		"cancelled": true,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("⚠️ Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
