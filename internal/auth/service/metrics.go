package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Session actions used as the "action" label.
const (
	ActionRegister     = "register"
	ActionLogin        = "login"
	ActionRefresh      = "refresh"
	ActionLogout       = "logout"
	ActionAuthenticate = "authenticate"
)

// SessionTransitions counts session lifecycle calls by action and outcome.
// The outcome is "success" or the error kind.
// Use RegisterMetrics to register this with a Prometheus registry.
var SessionTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "yieldbook_auth_session_transitions_total",
		Help: "Total number of session lifecycle transitions",
	},
	[]string{"action", "outcome"},
)

// PasswordHashDuration observes bcrypt work by operation (hash or verify).
// Use RegisterMetrics to register this with a Prometheus registry.
var PasswordHashDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "yieldbook_auth_password_hash_seconds",
		Help:    "Time spent hashing or verifying passwords in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	},
	[]string{"op"},
)

// RegisterMetrics registers service metrics with the given registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(SessionTransitions)
	reg.MustRegister(PasswordHashDuration)
}

func recordTransition(action string, err error) {
	SessionTransitions.WithLabelValues(action, Kind(err)).Inc()
}

func observeHash(op string, start time.Time) {
	PasswordHashDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
