package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/SFitz911/sfitz911-avatar-generator/internal/orchestrator"
)

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Orchestrator.GetStatus(r.Context(), jobID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

func (a *App) JobList(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", orchestrator.DefaultPageSize)

	jobs, total, err := a.Orchestrator.List(r.Context(), page, pageSize)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"jobs":      jobs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (a *App) JobCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	if err := a.Orchestrator.Cancel(r.Context(), jobID); err != nil {
		a.fail(w, err)
		return
	}
	// Cancellation of a running job lands at the next stage boundary, so
	// the response acknowledges the request rather than the final state.
	a.json(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "cancelling"})
}

func (a *App) JobDelete(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	force := r.URL.Query().Get("force") == "true"
	if err := a.Orchestrator.Delete(r.Context(), jobID, force); err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"job_id": jobID, "deleted": true})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 1 {
		return fallback
	}
	return i
}
