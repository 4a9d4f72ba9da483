package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/awnhealth/scheduling-engine/internal/appointment"
	"github.com/awnhealth/scheduling-engine/internal/therapist"
)

type RouterConfig struct {
	Service   *appointment.Service
	Directory therapist.Directory
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	JWTSecret string
	Env       string
	Version   string
	Logger    zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/appointments", func(r chi.Router) {
			r.Use(RequireAuth(cfg.JWTSecret))
			r.Get("/", listAppointmentsHandler(cfg.Service))
			r.Post("/", createAppointmentHandler(cfg.Service))
			r.Patch("/{id}/reschedule", rescheduleAppointmentHandler(cfg.Service))
			r.Patch("/{id}/cancel", cancelAppointmentHandler(cfg.Service))
			r.Post("/{id}/feedback", feedbackHandler(cfg.Service))
		})

		// Guest booking flow. /api/booking is the historical alias the
		// public booking form posts to.
		r.Post("/booking", createBookingHandler(cfg.Service))
		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", createBookingHandler(cfg.Service))
			r.Get("/availability", availabilityHandler(cfg.Service))
			r.Get("/patient/{email}", patientBookingsHandler(cfg.Service))
			r.Get("/therapist/{id}", therapistBookingsHandler(cfg.Service))
			r.Put("/{id}/confirm", confirmBookingHandler(cfg.Service))
			r.Put("/{id}/cancel", cancelBookingHandler(cfg.Service))
			r.Put("/{id}/reschedule", rescheduleBookingHandler(cfg.Service))
		})

		r.Route("/therapists", func(r chi.Router) {
			r.Get("/", listTherapistsHandler(cfg.Directory))
			r.Get("/{idOrSlug}", getTherapistHandler(cfg.Directory))
		})
	})

	return r
}
