// Package metrics exposes booking and HTTP counters in Prometheus format.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
)

type Metrics struct {
	registry *prometheus.Registry

	bookings    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry, labelled with service.
func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: reg,
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "booking_attempts_total",
			Help:        "Booking requests by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "appointment_transitions_total",
			Help:        "Lifecycle actions by result.",
			ConstLabels: constLabels,
		}, []string{"action", "result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "HTTP requests by route, method and status.",
			ConstLabels: constLabels,
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency by route and method.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	reg.MustRegister(
		m.bookings,
		m.transitions,
		m.requests,
		m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) BookingAttempt(outcome string) {
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Transition(action appointment.Action, err error) {
	m.transitions.WithLabelValues(string(action), transitionResult(err)).Inc()
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records every request against its chi route pattern, so path
// parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.latency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func transitionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, appointment.ErrAlreadyCancelled):
		return "already_cancelled"
	case errors.Is(err, appointment.ErrTerminalState),
		errors.Is(err, appointment.ErrInvalidTransition),
		errors.Is(err, appointment.ErrFutureAppointment):
		return "rejected"
	case errors.Is(err, appointment.ErrConcurrentModification):
		return "conflict"
	case errors.Is(err, appointment.ErrAppointmentNotFound), errors.Is(err, appointment.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
