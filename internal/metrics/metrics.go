package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Supervisor holds the beat supervisor's metrics
type Supervisor struct {
	registry   *prometheus.Registry
	restarts   *prometheus.CounterVec
	up         prometheus.Gauge
	lastReload prometheus.Gauge
	startTime  time.Time
}

// NewSupervisor creates a metrics set for a supervised service
func NewSupervisor(service string) *Supervisor {
	registry := prometheus.NewRegistry()

	s := &Supervisor{
		registry:  registry,
		startTime: time.Now(),
	}

	labels := prometheus.Labels{"service": service}

	s.restarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "finstack",
		Subsystem:   "supervisor",
		Name:        "restarts_total",
		Help:        "Number of supervised process restarts by cause",
		ConstLabels: labels,
	}, []string{"cause"})

	s.up = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "finstack",
		Subsystem:   "supervisor",
		Name:        "process_up",
		Help:        "Whether the supervised process is currently running",
		ConstLabels: labels,
	})

	s.lastReload = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "finstack",
		Subsystem:   "supervisor",
		Name:        "last_reload_timestamp_seconds",
		Help:        "Unix time of the last reload-triggered restart",
		ConstLabels: labels,
	})

	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "finstack",
		Subsystem:   "supervisor",
		Name:        "uptime_seconds",
		Help:        "Time since the supervisor started",
		ConstLabels: labels,
	}, func() float64 {
		return time.Since(s.startTime).Seconds()
	})

	registry.MustRegister(s.restarts, s.up, s.lastReload, uptime)
	return s
}

// Registry exposes the underlying registry for serving
func (s *Supervisor) Registry() *prometheus.Registry {
	return s.registry
}

// RecordRestart counts a restart by cause and marks reload time
func (s *Supervisor) RecordRestart(cause string) {
	s.restarts.WithLabelValues(cause).Inc()
	if cause == "reload" {
		s.lastReload.SetToCurrentTime()
	}
}

// SetProcessUp records whether the supervised process is running
func (s *Supervisor) SetProcessUp(up bool) {
	if up {
		s.up.Set(1)
	} else {
		s.up.Set(0)
	}
}
