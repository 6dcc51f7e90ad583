// Package metrics reports the fiber lifecycle of a runtime to Prometheus.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/cause"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	Namespace string
	Buckets   []float64 // default: prometheus.DefBuckets
}

// Supervisor counts started and completed fibers, tracks the fibers alive
// and observes how long fibers live, by exit kind.
type Supervisor struct {
	started   *prometheus.CounterVec
	completed *prometheus.CounterVec
	live      prometheus.Gauge
	duration  *prometheus.HistogramVec
}

var _ effects.Supervisor = (*Supervisor)(nil)

// NewSupervisor registers the fiber metrics with reg.
func NewSupervisor(reg prometheus.Registerer, cfg Config) (*Supervisor, error) {
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	s := &Supervisor{
		started: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "fibers_started_total",
				Help:      "Total number of fibers started",
			},
			[]string{"daemon"},
		),
		completed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "fibers_completed_total",
				Help:      "Total number of fibers completed",
			},
			[]string{"exit"},
		),
		live: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "fibers_live",
				Help:      "Current number of fibers started and not yet completed",
			},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "fiber_duration_seconds",
				Help:      "Lifetime of fibers in seconds",
				Buckets:   buckets,
			},
			[]string{"exit"},
		),
	}

	for _, c := range []prometheus.Collector{s.started, s.completed, s.live, s.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register fiber metrics: %w", err)
		}
	}
	return s, nil
}

func (s *Supervisor) OnStart(info effects.FiberInfo) {
	s.started.WithLabelValues(strconv.FormatBool(info.Daemon)).Inc()
	s.live.Inc()
}

func (s *Supervisor) OnEnd(info effects.FiberInfo, kind cause.Kind) {
	s.completed.WithLabelValues(kind.String()).Inc()
	s.live.Dec()
	s.duration.WithLabelValues(kind.String()).Observe(time.Since(info.StartedAt).Seconds())
}

// StartedCounter returns the started counter for the given daemon label.
func (s *Supervisor) StartedCounter(daemon string) prometheus.Counter {
	return s.started.WithLabelValues(daemon)
}

// CompletedCounter returns the completed counter for an exit kind.
func (s *Supervisor) CompletedCounter(exit string) prometheus.Counter {
	return s.completed.WithLabelValues(exit)
}

func (s *Supervisor) LiveGauge() prometheus.Gauge { return s.live }
