package server

import (
	"net/http"

	"github.com/cloo-solutions/studyforge/internal/api"
	"github.com/cloo-solutions/studyforge/internal/api/handlers"
	"github.com/cloo-solutions/studyforge/internal/api/middleware"
	"github.com/cloo-solutions/studyforge/internal/logger"
	"github.com/go-chi/chi/v5"
)

const (
	defaultMaxBodyBytes   int64 = 1 << 20
	defaultMaxUploadBytes int64 = 10 << 20
)

type RouterConfig struct {
	Logger *logger.Logger

	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64
	// MaxUploadBytes caps POST /documents, which carries whole notes files.
	MaxUploadBytes int64

	DocumentHandler *handlers.DocumentHandler
	SearchHandler   *handlers.SearchHandler
	ArtifactHandler *handlers.ArtifactHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	limitBody := middleware.MaxBodyBytes(maxBodyBytes)
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/documents", func(r chi.Router) {
		r.With(middleware.MaxBodyBytes(maxUploadBytes)).Post("/", cfg.DocumentHandler.Create)
		r.With(limitBody).Get("/", cfg.DocumentHandler.List)

		r.Route("/{documentID}", func(r chi.Router) {
			r.Use(limitBody)
			r.Get("/", cfg.DocumentHandler.Get)
			r.Delete("/", cfg.DocumentHandler.Delete)
			r.Get("/segments", cfg.DocumentHandler.Segments)
			r.Get("/search", cfg.SearchHandler.Search)
			r.Post("/artifacts", cfg.ArtifactHandler.Generate)
			r.Get("/artifacts", cfg.ArtifactHandler.List)
		})
	})

	r.Route("/artifacts/{id}", func(r chi.Router) {
		r.Use(limitBody)
		r.Get("/", cfg.ArtifactHandler.Get)
		r.Post("/answers", cfg.ArtifactHandler.AnswerQuiz)
		r.Get("/upcoming", cfg.ArtifactHandler.Upcoming)
	})

	return r
}
