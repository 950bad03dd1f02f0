package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/allot/internal/app"
	"github.com/okian/allot/internal/domain/model"
)

const dateOnly = "2006-01-02"

// phaseRequest is the body of POST /phases.
type phaseRequest struct {
	Title        string         `json:"title"`
	Organisation string         `json:"organisation"`
	StartDate    string         `json:"start_date"`
	EndDate      string         `json:"end_date"`
	Threshold    int            `json:"threshold"`
	Active       bool           `json:"active"`
	Employees    []model.Member `json:"employees"`
	Projects     []string       `json:"projects"`
}

// input converts the request, reporting unparsable dates as field errors.
func (p phaseRequest) input() (service.PhaseInput, error) {
	in := service.PhaseInput{
		Title:        p.Title,
		Organisation: p.Organisation,
		EmployeeCap:  p.Threshold,
		Active:       p.Active,
		Employees:    p.Employees,
		Projects:     p.Projects,
	}
	var fields []string
	var err error
	if in.StartAt, err = parseDate(p.StartDate); err != nil {
		fields = append(fields, model.FieldStartDate)
	}
	if in.EndAt, err = parseDate(p.EndDate); err != nil {
		fields = append(fields, model.FieldEndDate)
	}
	if len(fields) > 0 {
		return service.PhaseInput{}, &model.ValidationError{
			Op:      "create phase",
			Message: "dates must be RFC 3339 or YYYY-MM-DD",
			Fields:  fields,
		}
	}
	return in, nil
}

// parseDate accepts RFC 3339 timestamps and bare dates. Empty is the zero time.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(dateOnly, s)
}

type activeRequest struct {
	Active *bool `json:"active"`
}

// PhaseHandler handles phase requests.
type PhaseHandler struct {
	deps PhaseDependencies
}

// NewPhaseHandler creates a new phase handler.
func NewPhaseHandler(deps PhaseDependencies) *PhaseHandler {
	return &PhaseHandler{deps: deps}
}

// HandleCreate handles POST /phases requests.
func (h *PhaseHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req phaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, err)
		return
	}
	phase, err := h.deps.CreatePhase(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, phase)
}

// HandleList handles GET /phases requests.
func (h *PhaseHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	phases, err := h.deps.ListPhases(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if phases == nil {
		phases = []model.Phase{}
	}
	writeJSON(w, http.StatusOK, phases)
}

// HandleGet handles GET /phases/{id} requests.
func (h *PhaseHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	phase, err := h.deps.GetPhase(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, phase)
}

// HandleDelete handles DELETE /phases/{id} requests.
func (h *PhaseHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeletePhase(r.Context(), pathParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetEmployees handles PUT /phases/{id}/employees requests.
func (h *PhaseHandler) HandleSetEmployees(w http.ResponseWriter, r *http.Request) {
	var members []model.Member
	if err := decodeJSON(r, &members); err != nil {
		writeError(w, err)
		return
	}
	phase, err := h.deps.SetPhaseEmployees(r.Context(), pathParam(r, "id"), members)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, phase)
}

// HandleSetProjects handles PUT /phases/{id}/projects requests.
func (h *PhaseHandler) HandleSetProjects(w http.ResponseWriter, r *http.Request) {
	var titles []string
	if err := decodeJSON(r, &titles); err != nil {
		writeError(w, err)
		return
	}
	phase, err := h.deps.SetPhaseProjects(r.Context(), pathParam(r, "id"), titles)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, phase)
}

// HandleSetActive handles PATCH /phases/{id}/active requests.
func (h *PhaseHandler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Active == nil {
		writeError(w, badRequest(errors.New("missing active")))
		return
	}
	phase, err := h.deps.SetActive(r.Context(), pathParam(r, "id"), *req.Active)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, phase)
}

// HandleAllocate handles POST /phases/{id}/allocate requests.
func (h *PhaseHandler) HandleAllocate(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.AllocatePhase(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleReset handles POST /phases/{id}/reset requests.
func (h *PhaseHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	phase, err := h.deps.ResetPhase(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, phase)
}

// HandleStats handles POST /phases/{id}/stats requests.
func (h *PhaseHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.RecomputeStats(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// pathParam returns the unescaped route parameter.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}
