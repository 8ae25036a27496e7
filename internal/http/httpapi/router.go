package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"storyteller/internal/http/handlers"
	"storyteller/internal/middleware"
)

// Options tunes the router middleware stack.
type Options struct {
	Logger          zerolog.Logger
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	RateLimitPerMin int
	AllowedOrigins  []string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.Logger(opts.Logger),
	)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(opts.AllowedOrigins))
	}
	r.Use(middleware.I18N(opts.DefaultLocale, opts.CountryLookup))

	r.Get("/healthz", app.Health)

	r.Group(func(r chi.Router) {
		if opts.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		}
		r.Post("/story", app.CreateStory)
	})

	r.Get("/metadata/{id}", app.GetStory)
	r.Get("/metadata", app.ListStories)
	r.Post("/url", app.SignURL)
	r.Get("/story/{id}/bundle", app.DownloadBundle)

	r.Get("/artifacts/*", app.GetArtifact)
	r.Put("/artifacts/*", app.PutArtifact)

	return r
}
