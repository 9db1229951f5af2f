// Package metrics records cache, stage and request telemetry.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer receives pipeline and server events. Implementations must be
// safe for concurrent use.
type Observer interface {
	CacheHit(stage string)
	CacheMiss(stage string)
	StageDone(stage string, d time.Duration, err error)
	Request(route string, code int)
}

// Noop discards every event.
type Noop struct{}

func (Noop) CacheHit(string)                        {}
func (Noop) CacheMiss(string)                       {}
func (Noop) StageDone(string, time.Duration, error) {}
func (Noop) Request(string, int)                    {}

// Prometheus implements Observer with client_golang collectors.
type Prometheus struct {
	hits     *prometheus.CounterVec
	misses   *prometheus.CounterVec
	stages   *prometheus.HistogramVec
	requests *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fingerprint_cache_hits_total",
			Help: "Pipeline cache hits by stage",
		}, []string{"stage"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fingerprint_cache_misses_total",
			Help: "Pipeline cache misses by stage",
		}, []string{"stage"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fingerprint_stage_duration_seconds",
			Help:    "Duration of pipeline stage computations",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage", "status"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fingerprint_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(p.hits, p.misses, p.stages, p.requests)
	return p
}

func (p *Prometheus) CacheHit(stage string)  { p.hits.WithLabelValues(stage).Inc() }
func (p *Prometheus) CacheMiss(stage string) { p.misses.WithLabelValues(stage).Inc() }

func (p *Prometheus) StageDone(stage string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.stages.WithLabelValues(stage, status).Observe(d.Seconds())
}

func (p *Prometheus) Request(route string, code int) {
	p.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
