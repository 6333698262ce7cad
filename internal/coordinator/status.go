package coordinator

import (
	"context"
	"sort"
	"time"

	"github.com/biodoia/agentmesh/internal/knowledge"
	"github.com/biodoia/agentmesh/pkg/models"
)

// Health restituisce lo stato complessivo del sistema. Lo status è
// "healthy" se tutti gli agenti sono eleggibili, "degraded" se almeno
// uno lo è, "unhealthy" altrimenti.
func (c *Coordinator) Health() models.SystemHealth {
	snapshot := c.registry.Snapshot()

	agents := make([]models.AgentStatus, 0, len(snapshot))
	eligible := 0
	for _, st := range snapshot {
		agents = append(agents, st)
		if st.Eligible {
			eligible++
		}
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].AgentID < agents[j].AgentID })

	status := "healthy"
	switch {
	case len(agents) == 0 || eligible == 0:
		status = "unhealthy"
	case eligible < len(agents):
		status = "degraded"
	}

	return models.SystemHealth{
		Status:         status,
		Timestamp:      time.Now().UTC(),
		Agents:         agents,
		ActiveRequests: c.registry.ActiveRequests(),
		Uptime:         c.collector.Uptime(),
	}
}

// Quality restituisce le metriche di qualità aggregate
func (c *Coordinator) Quality() models.QualityMetrics {
	return c.collector.Quality()
}

// Performance restituisce le metriche di performance correnti
func (c *Coordinator) Performance() models.PerformanceMetrics {
	return c.collector.Performance(c.registry.ActiveRequests(), c.broker.CacheStats().HitRate())
}

// AgentStatus restituisce lo stato runtime di un singolo agente
func (c *Coordinator) AgentStatus(agentID string) (models.AgentStatus, error) {
	return c.registry.Status(agentID)
}

// ResetAgent riporta il breaker di un agente allo stato chiuso.
// Operazione amministrativa, da usare dopo un intervento manuale.
func (c *Coordinator) ResetAgent(agentID string) error {
	if err := c.registry.Reset(agentID); err != nil {
		return err
	}
	c.logger.Info().Str("agent_id", agentID).Msg("agent circuit manually reset")
	return nil
}

// Clients elenca i client id noti al knowledge store
func (c *Coordinator) Clients(ctx context.Context) ([]string, error) {
	return c.broker.ListClients(ctx)
}

// ClientContext restituisce l'anteprima di esposizione per un cliente:
// quali campi ogni agente configurato vedrebbe.
func (c *Coordinator) ClientContext(ctx context.Context, clientID string) (*knowledge.ExposurePreview, error) {
	return c.broker.Preview(ctx, clientID, c.registry.Descriptors())
}

// InvalidateClient scarta l'albero in cache di un cliente
func (c *Coordinator) InvalidateClient(clientID string) {
	c.broker.Invalidate(clientID)
}

// Close arresta il coordinator attendendo i feedback in corso
func (c *Coordinator) Close() error {
	c.feedback.Close()
	return c.broker.Close()
}
