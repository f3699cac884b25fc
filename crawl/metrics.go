package crawl

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a crawl session.
type Metrics struct {
	Registry        *prometheus.Registry
	TargetsTotal    *prometheus.CounterVec
	TargetDuration  prometheus.Histogram
	CaptchasTotal   *prometheus.CounterVec
	DiscoveredTotal prometheus.Counter
	PauseSeconds    *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	targets := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazcrawl_targets_total",
			Help: "Product targets processed, by outcome and error code.",
		},
		[]string{"outcome", "code"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lazcrawl_target_duration_seconds",
			Help:    "Wall-clock time spent on a single product page.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
	captchas := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazcrawl_captcha_challenges_total",
			Help: "Anti-bot challenges encountered, by result.",
		},
		[]string{"result"},
	)
	discovered := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lazcrawl_links_discovered_total",
			Help: "Product links discovered on category listings.",
		},
	)
	pauses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazcrawl_pause_seconds_total",
			Help: "Seconds spent in randomized delays, by kind.",
		},
		[]string{"kind"},
	)

	registry.MustRegister(targets, duration, captchas, discovered, pauses)

	return &Metrics{
		Registry:        registry,
		TargetsTotal:    targets,
		TargetDuration:  duration,
		CaptchasTotal:   captchas,
		DiscoveredTotal: discovered,
		PauseSeconds:    pauses,
	}
}

// ObserveTarget records one finished product target.
func (m *Metrics) ObserveTarget(code string, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if code != "" {
		outcome = "failure"
	}
	m.TargetsTotal.WithLabelValues(outcome, code).Inc()
	m.TargetDuration.Observe(d.Seconds())
}

// IncCaptcha counts a challenge; result is "cleared" or "timeout".
func (m *Metrics) IncCaptcha(result string) {
	if m == nil {
		return
	}
	m.CaptchasTotal.WithLabelValues(result).Inc()
}

// AddDiscovered counts links returned by discovery.
func (m *Metrics) AddDiscovered(n int) {
	if m == nil {
		return
	}
	m.DiscoveredTotal.Add(float64(n))
}

// AddPause records time spent in a delay.
func (m *Metrics) AddPause(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.PauseSeconds.WithLabelValues(kind).Add(d.Seconds())
}
