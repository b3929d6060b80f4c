// Package metrics exposes reconciliation counters to Prometheus.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "medizone"

// Sync holds the reconciler's instruments.
type Sync struct {
	Passes       prometheus.Counter
	FailedPasses prometheus.Counter
	Promoted     prometheus.Counter
	Rejected     prometheus.Counter
	Pending      prometheus.Gauge
	PassDuration prometheus.Histogram
}

// NewSync creates the instruments and registers them on reg (skipped when reg is nil).
func NewSync(reg prometheus.Registerer) *Sync {
	s := &Sync{
		Passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sync", Name: "passes_total",
			Help: "Reconciliation passes started.",
		}),
		FailedPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sync", Name: "failed_passes_total",
			Help: "Passes stopped early by an unavailable remote or local storage error.",
		}),
		Promoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sync", Name: "promoted_total",
			Help: "Pending records promoted to permanent remote records.",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sync", Name: "rejected_total",
			Help: "Pending records permanently rejected by the remote store.",
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "sync", Name: "pending",
			Help: "Records waiting in the local queue.",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "sync", Name: "pass_duration_seconds",
			Help:    "Wall time of reconciliation passes.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(s.Passes, s.FailedPasses, s.Promoted, s.Rejected, s.Pending, s.PassDuration)
	}
	return s
}
