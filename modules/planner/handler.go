package planner

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// Handler - HTTP surface for plan generation
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/projects/{projectId}/plan", h.GeneratePlan).Methods("POST")
}

// GeneratePlan - produce a plan from the project brief and merge it into the
// document. Synchronous; planning is a single model call.
func (h *Handler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	var body struct {
		Instructions string `json:"instructions"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	result, err := h.service.Plan(r.Context(), projectID, body.Instructions)
	if err != nil {
		log.Printf("❌ Plan generation failed for project %s: %v", projectID, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
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
