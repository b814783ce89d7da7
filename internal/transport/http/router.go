package http

import (
	"net/http"
	"time"

	"certquiz-service/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// RouterConfig carries everything the HTTP surface depends on.
type RouterConfig struct {
	Quizzes        *app.QuizService
	Certificates   *app.CertificateService
	Auth           Authenticator
	Limiter        *RateLimiter
	Logger         zerolog.Logger
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Quizzes, cfg.Certificates)
	ws := NewWSHandler(cfg.Quizzes, cfg.AllowedOrigins, cfg.Logger)

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(5, time.Minute)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(hlog.NewHandler(cfg.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: len(cfg.AllowedOrigins) > 0,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/api/verify/{id}", handler.Verify)

	r.Group(func(pr chi.Router) {
		pr.Use(RequireIdentity(cfg.Auth))

		pr.With(limiter.Middleware).Post("/api/quizzes", handler.CreateQuiz)
		pr.Route("/api/sessions/{id}", func(sr chi.Router) {
			sr.Get("/", handler.GetSession)
			sr.Post("/answers", handler.SelectAnswer)
			sr.Post("/advance", handler.Advance)
			sr.Post("/retreat", handler.Retreat)
			sr.Post("/finish", handler.Finish)
		})
		pr.Get("/api/certificates", handler.ListCertificates)
		pr.Get("/api/answer-keys", handler.ListAnswerKeys)
		pr.Get("/ws/sessions/{id}", ws.ServeWS)
	})
	return r
}
