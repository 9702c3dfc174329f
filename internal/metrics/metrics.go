// Package metrics exposes bar activity to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"smart_bartender/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bartender"

// Prom records pours, refills and reservoir levels on its own registry.
type Prom struct {
	registry *prometheus.Registry

	pours          *prometheus.CounterVec
	pourDuration   prometheus.Histogram
	refills        *prometheus.CounterVec
	refillDuration prometheus.Histogram
	volume         *prometheus.GaugeVec
	pouring        prometheus.Gauge
}

func New() *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		pours: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pours_total",
			Help:      "Pours by recipe and outcome.",
		}, []string{"recipe", "outcome"}),
		pourDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pour_duration_seconds",
			Help:      "Wall time of a pour from acceptance to the last channel closing.",
			Buckets:   prometheus.LinearBuckets(2, 4, 8),
		}),
		refills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refills_total",
			Help:      "Refills by reservoir and outcome.",
		}, []string{"reservoir", "outcome"}),
		refillDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refill_duration_seconds",
			Help:      "Time the floor pump ran per refill.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		volume: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reservoir_volume_ml",
			Help:      "Estimated volume per reservoir.",
		}, []string{"reservoir"}),
		pouring: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pouring",
			Help:      "1 while a pour is running.",
		}),
	}
	p.registry.MustRegister(
		p.pours, p.pourDuration, p.refills, p.refillDuration, p.volume, p.pouring,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prom) ObservePour(recipe string, outcome models.Outcome, d time.Duration) {
	p.pours.WithLabelValues(recipe, string(outcome)).Inc()
	p.pourDuration.Observe(d.Seconds())
}

func (p *Prom) ObserveRefill(reservoir int, outcome models.Outcome, d time.Duration) {
	p.refills.WithLabelValues(strconv.Itoa(reservoir), string(outcome)).Inc()
	p.refillDuration.Observe(d.Seconds())
}

func (p *Prom) SetVolume(reservoir int, ml float64) {
	p.volume.WithLabelValues(strconv.Itoa(reservoir)).Set(ml)
}

func (p *Prom) SetPouring(active bool) {
	if active {
		p.pouring.Set(1)
		return
	}
	p.pouring.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
