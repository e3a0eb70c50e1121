package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/SFitz911/sfitz911-avatar-generator/internal/domain"
)

const maxUploadBytes = 10 << 20

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Generate accepts a generation request as either a JSON body or a
// multipart form. The multipart form may carry an avatar_image file; its
// storage key travels with the job so the pipeline can condition on it.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var params domain.Params

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		p, err := a.parseMultipart(r)
		if err != nil {
			a.fail(w, err)
			return
		}
		params = p
	} else {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid JSON payload")
			return
		}
	}

	job, err := a.Orchestrator.Submit(r.Context(), params)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, submitResponse{JobID: job.ID, Status: string(job.State)})
}

func (a *App) parseMultipart(r *http.Request) (domain.Params, error) {
	var params domain.Params
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return params, fmt.Errorf("%w: invalid multipart form", domain.ErrInvalidInput)
	}

	params.Text = r.FormValue("text")
	params.Language = r.FormValue("language")
	params.Resolution = r.FormValue("resolution")

	var err error
	if params.DurationSeconds, err = formInt(r, "duration"); err != nil {
		return params, err
	}
	if params.FPS, err = formInt(r, "fps"); err != nil {
		return params, err
	}
	if params.FidelityStrength, err = formFloat(r, "fidelity_strength"); err != nil {
		return params, err
	}
	if params.PlaybackSpeed, err = formFloat(r, "playback_speed"); err != nil {
		return params, err
	}

	file, header, err := r.FormFile("avatar_image")
	if err == http.ErrMissingFile {
		return params, nil
	}
	if err != nil {
		return params, fmt.Errorf("%w: invalid avatar_image upload", domain.ErrInvalidInput)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return params, fmt.Errorf("read avatar_image: %w", err)
	}
	if len(data) > maxUploadBytes {
		return params, fmt.Errorf("%w: avatar_image exceeds %d bytes", domain.ErrInvalidInput, maxUploadBytes)
	}

	key, err := a.Files.SaveReferenceImage(r.Context(), uuid.NewString(), filepath.Ext(header.Filename), data)
	if err != nil {
		return params, err
	}
	params.ReferenceImage = key
	return params, nil
}

func formInt(r *http.Request, field string) (int, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, field)
	}
	return i, nil
}

func formFloat(r *http.Request, field string) (float64, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidInput, field)
	}
	return f, nil
}
