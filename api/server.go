/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     One structured slog line per request
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontends

ROUTE GROUPS:
  /api/employees/*      Employees, salaries, FTE, projection, concepts,
                        carry-overs, payslips
  /api/carry-overs/*    Carry-over deletion
  /api/settings/*       Payout month
  /api/audit            Audit log
  /api/scenarios/*      Demo scenarios
  /api/admin/*          Consistency sweep
  /healthz              Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter. Zero values are usable.
type RouterOptions struct {
	CORSOrigins []string
	Logger      *slog.Logger
	// Sweeper backs POST /api/admin/sweep; the route is absent when nil.
	Sweeper *ConsistencySweeper
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetEmployee)

				r.Get("/salaries", h.ListSalaries)
				r.Put("/salaries", h.UpsertSalary)
				r.Post("/salaries/recompute", h.RecomputeSalaries)

				r.Get("/fte", h.GetFTETimeline)
				r.Put("/fte", h.SetFTE)

				r.Get("/projection", h.GetProjection)

				r.Get("/concepts/{year}", h.GetYearConcepts)
				r.Put("/concepts/{year}", h.PutYearlyConcepts)
				r.Get("/concepts/{year}/{month}", h.GetMonthlyConcepts)
				r.Put("/concepts/{year}/{month}", h.PutMonthlyConcepts)

				r.Get("/carry-overs", h.ListCarryOvers)
				r.Post("/carry-overs", h.CreateCarryOvers)

				r.Get("/payslips/{year}/{month}", h.GetPayslip)
			})
		})

		r.Delete("/carry-overs/{id}", h.DeleteCarryOver)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/payout-month", h.GetPayoutMonth)
			r.Put("/payout-month", h.SetPayoutMonth)
		})

		r.Get("/audit", h.ListAudit)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})

		if opts.Sweeper != nil {
			r.Post("/admin/sweep", opts.Sweeper.HandleRunNow)
		}
	})

	return r
}

// =============================================================================
// REQUEST LOGGING
// =============================================================================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			level := slog.LevelInfo
			if recorder.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", recorder.status),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
