package handlers

import (
	"encoding/json"
	"net/http"
)

type resetRequest struct {
	Confirm string `json:"confirm"`
}

func (a *App) WorkspaceStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Workspace.Status(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	gate := a.Orchestrator.Gate()
	a.json(w, http.StatusOK, map[string]any{
		"workspace":       snap,
		"processing_jobs": gate.Occupancy(),
		"queued_jobs":     gate.Waiting(),
		"max_concurrent":  gate.Capacity(),
	})
}

func (a *App) WorkspaceClean(w http.ResponseWriter, r *http.Request) {
	if err := a.Workspace.Clean(r.Context()); err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "cleaned"})
}

func (a *App) WorkspaceReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}
	if err := a.Workspace.Reset(r.Context(), req.Confirm); err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "reset"})
}
