package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/SFitz911/sfitz911-avatar-generator/internal/domain"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/infra"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/orchestrator"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/record"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/storage"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/workspace"
)

type App struct {
	Config       *infra.Config
	Logger       infra.Logger
	Orchestrator *orchestrator.Orchestrator
	Workspace    *workspace.Manager
	Files        *storage.FileStore
	Store        record.Store
}

func NewApp(cfg *infra.Config, logger infra.Logger, orch *orchestrator.Orchestrator, ws *workspace.Manager, files *storage.FileStore, store record.Store) *App {
	return &App{
		Config:       cfg,
		Logger:       logger,
		Orchestrator: orch,
		Workspace:    ws,
		Files:        files,
		Store:        store,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

// fail translates a domain error into the matching HTTP response.
func (a *App) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrTransient):
		a.error(w, http.StatusServiceUnavailable, "unavailable", "temporarily unavailable, retry shortly")
	default:
		a.Logger.Error().Err(err).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
