package api

import (
	"net/http"

	"github.com/okian/allot/internal/domain/model"
)

// ProjectHandler handles project requests.
type ProjectHandler struct {
	deps ProjectDependencies
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(deps ProjectDependencies) *ProjectHandler {
	return &ProjectHandler{deps: deps}
}

type closeResponse struct {
	Project  string   `json:"project"`
	Released []string `json:"released"`
}

// HandleList handles GET /projects requests.
func (h *ProjectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	projects, err := h.deps.ListProjects(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

// HandleGet handles GET /projects/{title} requests.
func (h *ProjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.GetProject(r.Context(), pathParam(r, "title"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleClose handles POST /projects/{title}/close requests.
func (h *ProjectHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	title := pathParam(r, "title")
	released, err := h.deps.CloseProject(r.Context(), title)
	if err != nil {
		writeError(w, err)
		return
	}
	if released == nil {
		released = []string{}
	}
	writeJSON(w, http.StatusOK, closeResponse{Project: title, Released: released})
}
