// Package metrics exposes pool, cache and transaction counters as prometheus collectors.
package metrics

import (
	"github.com/Borislavv/go-ash-bes/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"time"
)

const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeBackend = "backend_error"

	ReasonTrouble     = "trouble"
	ReasonDead        = "dead"
	ReasonMaxCommands = "max_commands"
	ReasonReset       = "reset_failed"
	ReasonDrain       = "drain"
	ReasonRecycle     = "recycle"
)

type Recorder interface {
	ObserveCheckout(target string, wait time.Duration)
	ObserveDial(target string, err error)
	ObserveDiscard(target, reason string)
	SetPoolState(target string, inUse, idle int)
	ObserveCacheLookup(hit bool)
	ObserveCachePurge(n int)
	ObserveTransaction(product, outcome string, took time.Duration)
	Handler() http.Handler
}

// New returns a prometheus backed recorder, or a NoOp one when cfg is nil.
func New(cfg *config.MetricsCfg) Recorder {
	if !cfg.Enabled() {
		return NoOp{}
	}
	return NewPrometheus(prometheus.NewRegistry(), cfg.Namespace)
}

type Prometheus struct {
	registry *prometheus.Registry

	poolInUse    *prometheus.GaugeVec
	poolIdle     *prometheus.GaugeVec
	checkouts    *prometheus.CounterVec
	checkoutWait *prometheus.HistogramVec
	dials        *prometheus.CounterVec
	discards     *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	cachePurged  prometheus.Counter
	transactions *prometheus.HistogramVec
}

func NewPrometheus(registry *prometheus.Registry, namespace string) *Prometheus {
	if namespace == "" {
		namespace = "ashbes"
	}
	p := &Prometheus{
		registry: registry,
		poolInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool", Name: "in_use",
			Help: "Connections currently checked out.",
		}, []string{"target"}),
		poolIdle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool", Name: "idle",
			Help: "Live connections waiting in the pool.",
		}, []string{"target"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "checkouts_total",
			Help: "Successful connection checkouts.",
		}, []string{"target"}),
		checkoutWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pool", Name: "checkout_wait_seconds",
			Help:    "Time spent waiting for a pool permit.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"target"}),
		dials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "dials_total",
			Help: "Backend connection attempts by outcome.",
		}, []string{"target", "outcome"}),
		discards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "discards_total",
			Help: "Connections shut down instead of being reused, by reason.",
		}, []string{"target", "reason"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "response_cache", Name: "lookups_total",
			Help: "Response cache lookups by result.",
		}, []string{"result"}),
		cachePurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "response_cache", Name: "purged_total",
			Help: "Entries dropped by capacity purges.",
		}),
		transactions: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "transaction", Name: "duration_seconds",
			Help:    "Backend transaction duration by product and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"product", "outcome"}),
	}
	registry.MustRegister(
		p.poolInUse, p.poolIdle, p.checkouts, p.checkoutWait, p.dials,
		p.discards, p.cacheLookups, p.cachePurged, p.transactions,
	)
	return p
}

func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) ObserveCheckout(target string, wait time.Duration) {
	p.checkouts.WithLabelValues(target).Inc()
	p.checkoutWait.WithLabelValues(target).Observe(wait.Seconds())
}

func (p *Prometheus) ObserveDial(target string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	p.dials.WithLabelValues(target, outcome).Inc()
}

func (p *Prometheus) ObserveDiscard(target, reason string) {
	p.discards.WithLabelValues(target, reason).Inc()
}

func (p *Prometheus) SetPoolState(target string, inUse, idle int) {
	p.poolInUse.WithLabelValues(target).Set(float64(inUse))
	p.poolIdle.WithLabelValues(target).Set(float64(idle))
}

func (p *Prometheus) ObserveCacheLookup(hit bool) {
	if hit {
		p.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		p.cacheLookups.WithLabelValues("miss").Inc()
	}
}

func (p *Prometheus) ObserveCachePurge(n int) {
	p.cachePurged.Add(float64(n))
}

func (p *Prometheus) ObserveTransaction(product, outcome string, took time.Duration) {
	p.transactions.WithLabelValues(product, outcome).Observe(took.Seconds())
}
