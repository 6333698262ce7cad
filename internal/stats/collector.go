package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/biodoia/agentmesh/pkg/models"
)

const sampleWindow = 2048

// Sample è l'esito registrato di una singola richiesta coordinata
type Sample struct {
	Timestamp     time.Time
	Duration      time.Duration
	QualityScore  float64
	Partial       bool
	Failed        bool
	AgentFailures int
}

// Collector raccoglie le metriche di qualità e performance delle
// richieste coordinate. Mantiene una finestra circolare degli esiti
// recenti per percentili e requests-per-minute.
type Collector struct {
	mu      sync.RWMutex
	samples []Sample
	next    int
	filled  bool

	totalRequests      int64
	totalErrors        int64
	totalPartial       int64
	totalAgentFailures int64
	qualitySum         float64

	startedAt time.Time
}

// NewCollector crea un nuovo collector
func NewCollector() *Collector {
	return &Collector{
		samples:   make([]Sample, sampleWindow),
		startedAt: time.Now(),
	}
}

// Record registra l'esito di una richiesta
func (c *Collector) Record(s Sample) {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples[c.next] = s
	c.next++
	if c.next == len(c.samples) {
		c.next = 0
		c.filled = true
	}

	c.totalRequests++
	c.qualitySum += s.QualityScore
	c.totalAgentFailures += int64(s.AgentFailures)
	if s.Failed {
		c.totalErrors++
	}
	if s.Partial {
		c.totalPartial++
	}
}

// Uptime restituisce i secondi trascorsi dall'avvio
func (c *Collector) Uptime() float64 {
	return time.Since(c.startedAt).Seconds()
}

// Quality restituisce le metriche di qualità aggregate
func (c *Collector) Quality() models.QualityMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m := models.QualityMetrics{}
	if c.totalRequests == 0 {
		return m
	}

	total := float64(c.totalRequests)
	m.AvgQualityScore = c.qualitySum / total
	m.PartialRate = float64(c.totalPartial) / total
	m.ErrorRate = float64(c.totalErrors) / total
	m.ResponseAccuracy = 1.0 - m.ErrorRate
	return m
}

// Performance restituisce le metriche di performance correnti.
// InFlight e cache hit rate vengono forniti dal chiamante perché
// appartengono al registry e alla cache, non al collector.
func (c *Collector) Performance(inFlight int, cacheHitRate float64) models.PerformanceMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m := models.PerformanceMetrics{
		Timestamp:          time.Now().UTC(),
		InFlightRequests:   inFlight,
		CacheHitRate:       cacheHitRate,
		TotalRequests:      c.totalRequests,
		TotalAgentFailures: c.totalAgentFailures,
	}

	window := c.window()
	if len(window) == 0 {
		return m
	}

	cutoff := time.Now().Add(-time.Minute)
	recentCount := 0
	var durSum time.Duration
	var errCount int
	durations := make([]time.Duration, 0, len(window))
	for _, s := range window {
		durations = append(durations, s.Duration)
		durSum += s.Duration
		if s.Failed {
			errCount++
		}
		if s.Timestamp.After(cutoff) {
			recentCount++
		}
	}

	m.RequestsPerMinute = float64(recentCount)
	m.AvgResponseTime = durSum.Seconds() / float64(len(window))
	m.ErrorRate = float64(errCount) / float64(len(window))

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	m.P95ResponseTime = percentile(durations, 0.95).Seconds()
	m.P99ResponseTime = percentile(durations, 0.99).Seconds()
	return m
}

// window restituisce i sample validi della finestra circolare.
// Chiamare con il lock acquisito.
func (c *Collector) window() []Sample {
	if c.filled {
		return c.samples
	}
	return c.samples[:c.next]
}

// percentile su durate già ordinate
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
