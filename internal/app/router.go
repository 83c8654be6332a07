package app

import (
	"context"
	"net/http"
	"time"

	"academy/internal/app/apiresp"
	"academy/internal/app/observability"
	"academy/internal/auth"
	internaldb "academy/internal/db"
	"academy/internal/exam"
	"academy/internal/report"
	"academy/internal/roster"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func NewRouter(cfg Config, h *internaldb.Handle, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	metrics := observability.NewCollector(h.DB, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", csrfHeaderName},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-Id"},
		MaxAge:         300,
	}))

	gate := auth.NewGate(auth.Config{Username: cfg.AdminUser, PasswordHash: cfg.AdminPassHash})
	if gate.Open() {
		log.Warn("admin gate is open; set ADMIN_PASS_HASH to protect mutating routes")
	}
	authHandler := auth.NewHandler(gate)

	rosterSvc := roster.NewService(h.DB)
	rosterHandler := roster.NewHandler(rosterSvc)

	examSvc := exam.NewService(h.DB, h.Driver)
	examHandler := exam.NewHandler(examSvc)

	reportHandler := report.NewHandler(report.NewService(examSvc, rosterSvc, metrics))

	limiter := NewClientRateLimiter(cfg.APIRateLimitPerMin, time.Minute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.PingContext(ctx); err != nil {
			apiresp.WriteError(w, r, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		apiresp.WriteOK(w, r, http.StatusOK, map[string]string{"status": "ok", "db_driver": string(h.Driver)})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/students", rosterHandler.List)
		api.Get("/students/{id}", rosterHandler.Get)
		api.Get("/students/{id}/history", reportHandler.StudentHistory)

		api.Get("/exams", examHandler.List)
		api.Get("/exams/{id}", examHandler.Get)
		api.Get("/exams/{id}/results", reportHandler.Results)
		api.Get("/exams/{id}/summary", reportHandler.Summary)
		api.Get("/exams/{id}/breakdown", reportHandler.Breakdown)
		api.Get("/exams/{id}/export.xlsx", reportHandler.Export)

		api.Group(func(admin chi.Router) {
			admin.Use(RateLimitMiddleware(limiter))
			admin.Use(authHandler.RequireAdmin)
			admin.Use(CSRFMiddleware(cfg.CSRFEnforced))

			admin.Get("/me", authHandler.Me)

			admin.Post("/students", rosterHandler.Create)
			admin.Post("/students/import", rosterHandler.Import)
			admin.Put("/students/{id}", rosterHandler.Update)
			admin.Delete("/students/{id}", rosterHandler.Delete)

			admin.Post("/exams", examHandler.Create)
			admin.Put("/exams/{id}", examHandler.Update)
			admin.Delete("/exams/{id}", examHandler.Delete)
			admin.Put("/exams/{id}/scores", examHandler.ReplaceScores)
			admin.Put("/exams/{id}/scores/{studentID}", examHandler.PutScore)
			admin.Delete("/exams/{id}/scores/{studentID}", examHandler.DeleteScore)
			admin.Post("/exams/{id}/scores/{studentID}/answers", examHandler.GradeAnswers)
		})
	})

	return r
}
