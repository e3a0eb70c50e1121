package handlers

import "net/http"

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	recordStore := "ok"
	status := "ok"
	code := http.StatusOK
	if err := a.Store.Ping(r.Context()); err != nil {
		recordStore = "down"
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	gate := a.Orchestrator.Gate()
	a.json(w, code, map[string]any{
		"status":          status,
		"record_store":    recordStore,
		"processing_jobs": gate.Occupancy(),
		"queued_jobs":     gate.Waiting(),
	})
}

// Root describes the service for anyone poking the base URL.
func (a *App) Root(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"service":           "avatar-generator",
		"max_video_seconds": a.Orchestrator.MaxDurationSeconds(),
		"max_concurrent":    a.Orchestrator.Gate().Capacity(),
		"endpoints": []string{
			"POST /generate",
			"GET /status/{job_id}",
			"GET /list",
			"GET /download/{job_id}",
			"POST /cancel/{job_id}",
			"DELETE /delete/{job_id}",
			"GET /workspace/status",
			"POST /workspace/clean",
			"POST /workspace/reset",
			"GET /health",
		},
	})
}
