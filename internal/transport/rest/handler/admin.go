package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"cityforall/internal/repository"
	"cityforall/internal/service"
	"cityforall/internal/survey"
)

// AdminHandler serves the operator endpoints: raw data export, live
// session inspection, and the loaded survey graph summary.
type AdminHandler struct {
	export repository.ExportRepo
	flow   *service.FlowService
	graph  *survey.Graph
}

func NewAdminHandler(export repository.ExportRepo, flow *service.FlowService, graph *survey.Graph) *AdminHandler {
	return &AdminHandler{export: export, flow: flow, graph: graph}
}

// Export handles GET /v1/export
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	dump, err := h.export.Dump(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dump)
}

// Session handles GET /v1/sessions/{chatId}
func (h *AdminHandler) Session(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(mux.Vars(r)["chatId"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	sess, err := h.flow.Session(r.Context(), chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type moduleSummary struct {
	Name      string `json:"name"`
	Questions int    `json:"questions"`
}

// Graph handles GET /v1/graph
func (h *AdminHandler) Graph(w http.ResponseWriter, r *http.Request) {
	order := h.graph.ModuleOrder()
	modules := make([]moduleSummary, 0, len(order))
	for _, name := range order {
		m, ok := h.graph.Module(name)
		if !ok {
			continue
		}
		modules = append(modules, moduleSummary{Name: name, Questions: len(m.Order)})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"modules":       modules,
		"questionCount": h.graph.QuestionCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
