package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Download streams a completed job's video. Anything without a produced
// artifact, whether the job is still running, failed, or never existed,
// answers 404; clients poll /status to tell those apart.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	rc, info, err := a.Files.OpenArtifact(jobID)
	if err != nil {
		a.fail(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=avatar_%s.mp4", jobID))
	if _, err := io.Copy(w, rc); err != nil {
		a.Logger.Warn().Err(err).Str("job_id", jobID).Msg("download interrupted")
	}
}
