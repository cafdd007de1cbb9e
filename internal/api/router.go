package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/auth"
	"github.com/hackgods/doctor-appointment-booking/internal/metrics"
)

type RouterConfig struct {
	Appointments AppointmentService
	Doctors      DoctorService
	Verifier     *auth.Verifier
	Health       *HealthHandler
	Logger       zerolog.Logger

	// Metrics is optional; when set it is served on MetricsPath.
	Metrics     *metrics.Metrics
	MetricsPath string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, cfg.Metrics.Handler())
	}

	h := &handlers{appointments: cfg.Appointments, doctors: cfg.Doctors}
	errWriter := auth.ErrorWriter(writeError)
	patient := auth.RequireRole(errWriter, auth.RolePatient)
	doc := auth.RequireRole(errWriter, auth.RoleDoctor)

	// Public catalogue
	r.Get("/doctors", h.listDoctors)
	r.Get("/doctors/{id}", h.getDoctor)
	r.Get("/doctors/{id}/slots", h.doctorSlots)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Verifier, errWriter))

		r.With(doc).Put("/doctors/{id}/availability", h.updateAvailability)

		r.With(patient).Post("/appointments", h.createAppointment)
		r.With(patient).Get("/appointments/patient", h.patientAppointments)
		r.With(doc).Get("/appointments/doctor", h.doctorAppointments)

		r.Get("/appointments/{id}", h.getAppointment)
		r.With(doc).Patch("/appointments/{id}/status", h.updateStatus)
		r.Patch("/appointments/{id}/schedule", h.reschedule)
		r.Delete("/appointments/{id}", h.cancel)
	})

	return r
}
