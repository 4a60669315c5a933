// Package metrics exports console session activity to Prometheus.
package metrics

import (
	"context"

	auth "github.com/flexmon/console-auth"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "flexmon"
	metricsSubsystem = "console"
)

var _ auth.ActivitySink = (*Sink)(nil)

// Sink is an auth.ActivitySink counting session events.
type Sink struct {
	events *prometheus.CounterVec
	logout *prometheus.CounterVec
}

// NewSink creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered.
func NewSink(reg prometheus.Registerer) (*Sink, error) {
	s := &Sink{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "session_events_total",
				Help:      "Session events by type.",
			},
			[]string{"event"},
		),
		logout: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "session_logouts_total",
				Help:      "Sessions ended, by reason.",
			},
			[]string{"reason"},
		),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{s.events, s.logout} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

// Record implements auth.ActivitySink
func (s *Sink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.events.WithLabelValues(string(event.EventType)).Inc()

	switch event.EventType {
	case auth.ActivityEventLogout, auth.ActivityEventSessionInvalidated:
		reason := string(event.Reason)
		if reason == "" {
			reason = "unknown"
		}
		s.logout.WithLabelValues(reason).Inc()
	}

	return nil
}

// Events exposes the event counter, mostly for tests
func (s *Sink) Events() *prometheus.CounterVec {
	return s.events
}

// Logouts exposes the logout counter, mostly for tests
func (s *Sink) Logouts() *prometheus.CounterVec {
	return s.logout
}
