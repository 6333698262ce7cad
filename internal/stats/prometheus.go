package stats

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/biodoia/agentmesh/internal/registry"
	"github.com/biodoia/agentmesh/pkg/resilience"
)

// PrometheusExporter espone le metriche di coordinamento in formato
// Prometheus. Le gauge per-agente vengono aggiornate periodicamente
// dallo snapshot del registry.
type PrometheusExporter struct {
	registry  *registry.Registry
	collector *Collector

	requestsTotal    *prometheus.CounterVec
	requestDuration  prometheus.Histogram
	agentCallsTotal  *prometheus.CounterVec
	agentHealth      *prometheus.GaugeVec
	agentLoad        *prometheus.GaugeVec
	agentLatency     *prometheus.GaugeVec
	agentSuccessRate *prometheus.GaugeVec
	qualityScore     prometheus.Histogram
	activeRequests   prometheus.Gauge
	cacheHitRate     prometheus.Gauge

	cacheHitRateFn func() float64

	updateInterval time.Duration
	ticker         *time.Ticker
	stopCh         chan struct{}
	wg             sync.WaitGroup
}

// NewPrometheusExporter crea un nuovo exporter
func NewPrometheusExporter(reg *registry.Registry, collector *Collector, namespace string, cacheHitRateFn func() float64) *PrometheusExporter {
	if namespace == "" {
		namespace = "agentmesh"
	}

	e := &PrometheusExporter{
		registry:       reg,
		collector:      collector,
		cacheHitRateFn: cacheHitRateFn,
		updateInterval: 15 * time.Second,
		stopCh:         make(chan struct{}),
	}

	e.requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordination_requests_total",
			Help:      "Total number of coordination requests by status",
		},
		[]string{"status"},
	)

	e.requestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "coordination_duration_seconds",
			Help:      "Coordination request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	e.agentCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_calls_total",
			Help:      "Total number of agent calls by agent and status",
		},
		[]string{"agent_id", "status"},
	)

	e.agentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_health_state",
			Help:      "Circuit state per agent (0=closed, 1=half-open, 2=open)",
		},
		[]string{"agent_id"},
	)

	e.agentLoad = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_load",
			Help:      "In-flight calls per agent",
		},
		[]string{"agent_id"},
	)

	e.agentLatency = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_avg_latency_seconds",
			Help:      "Average agent response latency in seconds",
		},
		[]string{"agent_id"},
	)

	e.agentSuccessRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_success_rate",
			Help:      "Agent success rate (0.0-1.0)",
		},
		[]string{"agent_id"},
	)

	e.qualityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_quality_score",
			Help:      "Quality score of synthesized responses (0.0-1.0)",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	e.activeRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Coordination requests currently being processed",
		},
	)

	e.cacheHitRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "knowledge_cache_hit_rate",
			Help:      "Knowledge tree cache hit rate (0.0-1.0)",
		},
	)

	return e
}

// Start avvia l'exporter
func (e *PrometheusExporter) Start() {
	e.ticker = time.NewTicker(e.updateInterval)
	e.wg.Add(1)

	go e.updateLoop()
	log.Info().
		Dur("update_interval", e.updateInterval).
		Msg("Prometheus exporter started")
}

// Stop ferma l'exporter
func (e *PrometheusExporter) Stop() {
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopCh)
	e.wg.Wait()

	log.Info().Msg("Prometheus exporter stopped")
}

func (e *PrometheusExporter) updateLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ticker.C:
			e.updateGauges()
		case <-e.stopCh:
			return
		}
	}
}

// updateGauges aggiorna le gauge per-agente dallo snapshot del registry
func (e *PrometheusExporter) updateGauges() {
	for agentID, status := range e.registry.Snapshot() {
		e.agentHealth.WithLabelValues(agentID).Set(stateValue(status.State))
		e.agentLoad.WithLabelValues(agentID).Set(float64(status.CurrentLoad))
		e.agentLatency.WithLabelValues(agentID).Set(status.AvgResponseTime.Seconds())
		e.agentSuccessRate.WithLabelValues(agentID).Set(status.SuccessRate)
	}

	e.activeRequests.Set(float64(e.registry.ActiveRequests()))

	if e.cacheHitRateFn != nil {
		e.cacheHitRate.Set(e.cacheHitRateFn())
	}
}

func stateValue(state string) float64 {
	switch state {
	case resilience.StateClosed.String():
		return 0
	case resilience.StateHalfOpen.String():
		return 1
	case resilience.StateOpen.String():
		return 2
	default:
		return -1
	}
}

// RecordCoordination registra l'esito di una richiesta coordinata
func (e *PrometheusExporter) RecordCoordination(status string, duration time.Duration, qualityScore float64) {
	e.requestsTotal.WithLabelValues(status).Inc()
	e.requestDuration.Observe(duration.Seconds())
	e.qualityScore.Observe(qualityScore)
}

// RecordAgentCall registra l'esito di una chiamata agente
func (e *PrometheusExporter) RecordAgentCall(agentID string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.agentCallsTotal.WithLabelValues(agentID, status).Inc()
}
