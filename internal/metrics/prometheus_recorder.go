package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// phaseOrder maps schedule phases to stable gauge values so dashboards can
// graph the phase as a step function.
var phaseOrder = map[string]float64{
	"idle":         0,
	"warning":      1,
	"break_active": 2,
	"break_ending": 3,
}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	phase            prom.Gauge
	breakOutcomes    *prom.CounterVec
	lockAcquire      *prom.HistogramVec
	lockFailures     *prom.CounterVec
	lockRetries      prom.Counter
	notifierFailures *prom.CounterVec
	configReloads    *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.phase = prom.NewGauge(prom.GaugeOpts{
			Namespace: "breaktimed",
			Name:      "schedule_phase",
			Help:      "Current schedule phase (0=idle 1=warning 2=break_active 3=break_ending)",
		})
		pr.breakOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "breaktimed",
			Name:      "breaks_total",
			Help:      "Break cycles by final outcome",
		}, []string{"outcome"})
		pr.lockAcquire = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "breaktimed",
			Name:      "lock_acquire_duration_seconds",
			Help:      "Time spent acquiring the session lock surface",
			Buckets:   prom.DefBuckets,
		}, []string{"result"})
		pr.lockFailures = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "breaktimed",
			Name:      "lock_failures_total",
			Help:      "Lock acquisition failures by kind",
		}, []string{"kind"})
		pr.lockRetries = prom.NewCounter(prom.CounterOpts{
			Namespace: "breaktimed",
			Name:      "lock_retries_total",
			Help:      "Lock acquisition retry attempts",
		})
		pr.notifierFailures = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "breaktimed",
			Name:      "notifier_failures_total",
			Help:      "Notification delivery failures by channel",
		}, []string{"channel"})
		pr.configReloads = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "breaktimed",
			Name:      "config_reloads_total",
			Help:      "Config reload attempts by result",
		}, []string{"result"})
		reg.MustRegister(pr.phase, pr.breakOutcomes, pr.lockAcquire, pr.lockFailures, pr.lockRetries, pr.notifierFailures, pr.configReloads)
	})
	return pr
}

func (p *PrometheusRecorder) SetPhase(phase string) {
	if p == nil || p.phase == nil {
		return
	}
	p.phase.Set(phaseOrder[phase])
}

func (p *PrometheusRecorder) IncBreakOutcome(outcome BreakOutcomeLabel) {
	if p == nil || p.breakOutcomes == nil {
		return
	}
	p.breakOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveLockAcquireDuration(d time.Duration, success bool) {
	if p == nil || p.lockAcquire == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.lockAcquire.WithLabelValues(res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncLockFailure(kind LockFailureKind) {
	if p == nil || p.lockFailures == nil {
		return
	}
	p.lockFailures.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusRecorder) IncLockRetry() {
	if p == nil || p.lockRetries == nil {
		return
	}
	p.lockRetries.Inc()
}

func (p *PrometheusRecorder) IncNotifierFailure(channel string) {
	if p == nil || p.notifierFailures == nil {
		return
	}
	p.notifierFailures.WithLabelValues(channel).Inc()
}

func (p *PrometheusRecorder) IncConfigReload(accepted bool) {
	if p == nil || p.configReloads == nil {
		return
	}
	res := "rejected"
	if accepted {
		res = "accepted"
	}
	p.configReloads.WithLabelValues(res).Inc()
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the
// provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
