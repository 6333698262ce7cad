package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/biodoia/agentmesh/pkg/models"
	"github.com/biodoia/agentmesh/pkg/resilience"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUnknownAgent viene restituito per agenti mai registrati
	ErrUnknownAgent = errors.New("unknown agent")
)

// ewmaWeight peso del campione più recente nella media mobile della latenza
const ewmaWeight = 0.2

// Registry traccia lo stato di salute e il carico di ogni agente.
// È l'unico stato mutabile condiviso tra richieste concorrenti insieme
// alla cache del knowledge tree: ogni agente ha il proprio lock, così
// le transizioni di agenti diversi non si serializzano tra loro.
type Registry struct {
	breakerCfg resilience.BreakerConfig

	mu     sync.RWMutex
	agents map[string]*agentState
}

// agentState è lo stato runtime di un singolo agente
type agentState struct {
	descriptor models.AgentDescriptor
	breaker    *resilience.Breaker

	mu         sync.Mutex
	load       int
	avgLatency time.Duration
	successes  int64
	failures   int64
}

// New crea un nuovo registry con i descriptor statici configurati
func New(breakerCfg resilience.BreakerConfig, descriptors []models.AgentDescriptor) *Registry {
	r := &Registry{
		breakerCfg: breakerCfg,
		agents:     make(map[string]*agentState, len(descriptors)),
	}

	for _, d := range descriptors {
		r.agents[d.ID] = &agentState{
			descriptor: d,
			breaker:    resilience.NewBreaker(breakerCfg),
		}

		log.Debug().
			Str("agent", d.ID).
			Str("type", string(d.Type)).
			Str("endpoint", d.Endpoint).
			Msg("Agent registered")
	}

	return r
}

// get restituisce lo stato di un agente
func (r *Registry) get(agentID string) (*agentState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.agents[agentID]
	return st, ok
}

// Descriptors restituisce i descriptor di tutti gli agenti registrati
func (r *Registry) Descriptors() []models.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.AgentDescriptor, 0, len(r.agents))
	for _, st := range r.agents {
		out = append(out, st.descriptor)
	}
	return out
}

// Descriptor restituisce il descriptor di un singolo agente
func (r *Registry) Descriptor(agentID string) (models.AgentDescriptor, bool) {
	st, ok := r.get(agentID)
	if !ok {
		return models.AgentDescriptor{}, false
	}
	return st.descriptor, true
}

// Report registra l'esito di una chiamata verso un agente e aggiorna
// circuit breaker, contatori e latenza media.
func (r *Registry) Report(agentID string, success bool, latency time.Duration) {
	st, ok := r.get(agentID)
	if !ok {
		log.Warn().Str("agent", agentID).Msg("Report for unknown agent dropped")
		return
	}

	st.breaker.Record(success)

	st.mu.Lock()
	if success {
		st.successes++
	} else {
		st.failures++
	}
	if latency > 0 {
		if st.avgLatency == 0 {
			st.avgLatency = latency
		} else {
			st.avgLatency = time.Duration(float64(st.avgLatency)*(1-ewmaWeight) + float64(latency)*ewmaWeight)
		}
	}
	st.mu.Unlock()
}

// IsEligible verifica se un agente può ricevere traffico.
// Non consuma la probe half-open: quella viene consumata da Acquire.
func (r *Registry) IsEligible(agentID string) bool {
	st, ok := r.get(agentID)
	if !ok {
		return false
	}
	return st.breaker.Eligible()
}

// Acquire riserva uno slot di carico sull'agente e consuma l'eventuale
// probe half-open. Restituisce false se il circuito rifiuta la chiamata
// o se l'agente ha già raggiunto MaxCapacity.
func (r *Registry) Acquire(agentID string) bool {
	st, ok := r.get(agentID)
	if !ok {
		return false
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if max := st.descriptor.MaxCapacity; max > 0 && st.load >= max {
		return false
	}
	if !st.breaker.Allow() {
		return false
	}

	st.load++
	return true
}

// Release rilascia lo slot di carico riservato con Acquire
func (r *Registry) Release(agentID string) {
	st, ok := r.get(agentID)
	if !ok {
		return
	}

	st.mu.Lock()
	if st.load > 0 {
		st.load--
	}
	st.mu.Unlock()
}

// Load restituisce il carico corrente di un agente
func (r *Registry) Load(agentID string) int {
	st, ok := r.get(agentID)
	if !ok {
		return 0
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.load
}

// AvgLatency restituisce la latenza media mobile di un agente
func (r *Registry) AvgLatency(agentID string) time.Duration {
	st, ok := r.get(agentID)
	if !ok {
		return 0
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.avgLatency
}

// LastFailure restituisce il timestamp dell'ultimo fallimento.
// Zero value se l'agente non ha mai fallito.
func (r *Registry) LastFailure(agentID string) time.Time {
	st, ok := r.get(agentID)
	if !ok {
		return time.Time{}
	}
	return st.breaker.LastFailure()
}

// Reset riporta il circuit breaker di un agente allo stato iniziale
func (r *Registry) Reset(agentID string) error {
	st, ok := r.get(agentID)
	if !ok {
		return ErrUnknownAgent
	}

	st.breaker.Reset()
	log.Info().Str("agent", agentID).Msg("Agent breaker reset")
	return nil
}

// Status fotografa lo stato runtime di un singolo agente
func (r *Registry) Status(agentID string) (models.AgentStatus, error) {
	st, ok := r.get(agentID)
	if !ok {
		return models.AgentStatus{}, ErrUnknownAgent
	}
	return r.status(st), nil
}

// Snapshot fotografa lo stato di tutti gli agenti
func (r *Registry) Snapshot() map[string]models.AgentStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]models.AgentStatus, len(r.agents))
	for id, st := range r.agents {
		out[id] = r.status(st)
	}
	return out
}

func (r *Registry) status(st *agentState) models.AgentStatus {
	stats := st.breaker.Stats()

	st.mu.Lock()
	load := st.load
	avgLatency := st.avgLatency
	successes := st.successes
	failures := st.failures
	st.mu.Unlock()

	successRate := 1.0
	if total := successes + failures; total > 0 {
		successRate = float64(successes) / float64(total)
	}

	return models.AgentStatus{
		AgentID:         st.descriptor.ID,
		AgentType:       st.descriptor.Type,
		State:           stats.State,
		Eligible:        st.breaker.Eligible(),
		CurrentLoad:     load,
		MaxCapacity:     st.descriptor.MaxCapacity,
		AvgResponseTime: avgLatency,
		SuccessRate:     successRate,
		LastFailure:     stats.LastFailureTime,
		Endpoint:        st.descriptor.Endpoint,
	}
}

// ActiveRequests restituisce il totale delle chiamate agente in corso
func (r *Registry) ActiveRequests() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, st := range r.agents {
		st.mu.Lock()
		total += st.load
		st.mu.Unlock()
	}
	return total
}
