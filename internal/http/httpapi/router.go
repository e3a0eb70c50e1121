package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/SFitz911/sfitz911-avatar-generator/internal/http/handlers"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(splitOrigins(app.Config.CORSOrigins)),
		middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute),
	)

	r.Get("/", app.Root)
	r.Get("/health", app.Health)

	r.Post("/generate", app.Generate)
	r.Get("/status/{job_id}", app.JobStatus)
	r.Get("/list", app.JobList)
	r.Get("/download/{job_id}", app.Download)
	r.Post("/cancel/{job_id}", app.JobCancel)
	r.Delete("/delete/{job_id}", app.JobDelete)

	r.Route("/workspace", func(r chi.Router) {
		r.Get("/status", app.WorkspaceStatus)
		r.Post("/clean", app.WorkspaceClean)
		r.Post("/reset", app.WorkspaceReset)
	})

	return r
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
