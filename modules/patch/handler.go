package patch

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// Handler - HTTP surface for the patch applier
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/projects/{projectId}/patch", h.ApplyPatch).Methods("POST")
}

// ApplyPatch - validate and apply a patch batch. Loose payloads are accepted
// and normalized; policy violations reject the whole batch with 422.
func (h *Handler) ApplyPatch(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req := Normalize(payload)
	if len(req.Actions) == 0 && req.Plan == nil {
		writeError(w, http.StatusBadRequest, "patch contains no actions or plan changes")
		return
	}

	result, err := h.service.Apply(r.Context(), projectID, req)
	if err != nil {
		log.Printf("⚠️ Patch rejected for project %s: %v", projectID, err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
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
