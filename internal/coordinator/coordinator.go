package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/biodoia/agentmesh/internal/dispatch"
	"github.com/biodoia/agentmesh/internal/feedback"
	"github.com/biodoia/agentmesh/internal/knowledge"
	"github.com/biodoia/agentmesh/internal/optimizer"
	"github.com/biodoia/agentmesh/internal/registry"
	"github.com/biodoia/agentmesh/internal/router"
	"github.com/biodoia/agentmesh/internal/stats"
	"github.com/biodoia/agentmesh/internal/synthesis"
	"github.com/biodoia/agentmesh/pkg/models"
)

var (
	// ErrValidation indica una richiesta malformata, rifiutata prima del routing
	ErrValidation = errors.New("invalid coordination request")

	// ErrAllAgentsFailed indica che nessun agente ha prodotto contenuto
	// utilizzabile. È l'unico fallimento hard esposto al chiamante.
	ErrAllAgentsFailed = dispatch.ErrAllAgentsFailed
)

// Coordinator orchestra la pipeline di coordinamento: routing,
// contesto cliente, dispatch concorrente, sintesi e feedback asincrono.
type Coordinator struct {
	router      *router.Router
	broker      *knowledge.Broker
	optimizer   *optimizer.Optimizer
	dispatcher  *dispatch.Dispatcher
	synthesizer *synthesis.Synthesizer
	feedback    *feedback.Writer
	registry    *registry.Registry
	collector   *stats.Collector
	exporter    *stats.PrometheusExporter

	requestDeadline time.Duration
	logger          zerolog.Logger
}

// Deps raggruppa le dipendenze del coordinator
type Deps struct {
	Router      *router.Router
	Broker      *knowledge.Broker
	Optimizer   *optimizer.Optimizer
	Dispatcher  *dispatch.Dispatcher
	Synthesizer *synthesis.Synthesizer
	Feedback    *feedback.Writer
	Registry    *registry.Registry
	Collector   *stats.Collector
	Exporter    *stats.PrometheusExporter
}

// New crea un nuovo coordinator
func New(deps Deps, requestDeadline time.Duration, logger zerolog.Logger) *Coordinator {
	if requestDeadline <= 0 {
		requestDeadline = 30 * time.Second
	}
	return &Coordinator{
		router:          deps.Router,
		broker:          deps.Broker,
		optimizer:       deps.Optimizer,
		dispatcher:      deps.Dispatcher,
		synthesizer:     deps.Synthesizer,
		feedback:        deps.Feedback,
		registry:        deps.Registry,
		collector:       deps.Collector,
		exporter:        deps.Exporter,
		requestDeadline: requestDeadline,
		logger:          logger.With().Str("component", "coordinator").Logger(),
	}
}

// Coordinate esegue la pipeline completa per una richiesta.
// I fallimenti locali (singolo agente, singola fetch dello store)
// vengono assorbiti e degradati; solo l'assenza totale di contenuto
// utilizzabile viene restituita come errore.
func (c *Coordinator) Coordinate(ctx context.Context, req models.CoordinationRequest) (*models.CoordinationResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	ctx, cancel := c.withDeadline(ctx, req)
	defer cancel()

	start := time.Now()
	audit := c.logger.With().
		Str("request_id", req.RequestID).
		Str("client_id", req.ClientID).
		Logger()

	// 1. routing
	selected, decision := c.router.Route(req)
	audit.Info().
		Strs("selected_agents", decision.SelectedAgents).
		Bool("degraded", decision.Degraded).
		Str("reasoning", decision.Reasoning).
		Msg("request routed")

	// 2. contesto cliente per agente, best-effort
	payloads, tree, contextUsed := c.buildPayloads(ctx, req, selected, audit)

	// 3. dispatch concorrente
	responses, dispatchErr := c.dispatcher.Execute(ctx, req, selected, payloads)
	if c.exporter != nil {
		for _, r := range responses {
			c.exporter.RecordAgentCall(r.AgentID, r.Succeeded)
		}
	}

	// 4. sintesi
	answer := c.synthesizer.Synthesize(responses, tree)

	succeeded, failed := countOutcomes(responses)
	partial := failed > 0 && succeeded > 0
	quality := qualityScore(responses, partial, decision.Degraded)
	elapsed := time.Since(start)

	resp := &models.CoordinationResponse{
		RequestID:           req.RequestID,
		RoutingDecision:     decision,
		AgentResponses:      responses,
		SynthesizedResponse: answer,
		ProcessingTime:      elapsed.Seconds(),
		QualityScore:        quality,
		Partial:             partial,
		ClientContextUsed:   contextUsed,
	}

	c.collector.Record(stats.Sample{
		Duration:      elapsed,
		QualityScore:  quality,
		Partial:       partial,
		Failed:        dispatchErr != nil,
		AgentFailures: failed,
	})

	if dispatchErr != nil {
		c.recordCoordination("error", elapsed, quality)
		audit.Error().
			Err(dispatchErr).
			Dur("elapsed", elapsed).
			Msg("coordination failed, no usable agent responses")
		return resp, ErrAllAgentsFailed
	}

	status := "success"
	if partial {
		status = "partial"
	}
	c.recordCoordination(status, elapsed, quality)

	// 5. feedback asincrono, fuori dal percorso della risposta
	if req.UseClientContext && req.ClientID != "" {
		c.feedback.Record(req.ClientID, req, responses, answer, quality)
	}

	audit.Info().
		Dur("elapsed", elapsed).
		Float64("quality_score", quality).
		Bool("partial", partial).
		Msg("coordination completed")

	return resp, nil
}

func (c *Coordinator) recordCoordination(status string, elapsed time.Duration, quality float64) {
	if c.exporter != nil {
		c.exporter.RecordCoordination(status, elapsed, quality)
	}
}

// withDeadline applica la deadline complessiva: quella della richiesta
// se presente e più stretta, altrimenti quella configurata.
func (c *Coordinator) withDeadline(ctx context.Context, req models.CoordinationRequest) (context.Context, context.CancelFunc) {
	deadline := time.Now().Add(c.requestDeadline)
	if !req.Deadline.IsZero() && req.Deadline.Before(deadline) {
		deadline = req.Deadline
	}
	return context.WithDeadline(ctx, deadline)
}

// buildPayloads prepara il payload di contesto per ogni agente
// selezionato. Gli errori dello store degradano a contesto vuoto,
// non falliscono mai la richiesta.
func (c *Coordinator) buildPayloads(ctx context.Context, req models.CoordinationRequest, selected []models.AgentDescriptor, audit zerolog.Logger) (map[string]map[string]any, *models.ClientKnowledgeTree, bool) {
	if !req.UseClientContext || req.ClientID == "" {
		return nil, nil, false
	}

	tree, err := c.broker.Tree(ctx, req.ClientID)
	if err != nil {
		audit.Warn().
			Err(err).
			Msg("client knowledge unavailable, proceeding without context")
		return nil, nil, false
	}

	payloads := make(map[string]map[string]any, len(selected))
	used := false
	for _, desc := range selected {
		filtered, err := c.broker.FilteredContext(ctx, desc, req.ClientID, req.Sensitivity)
		if err != nil {
			audit.Warn().
				Err(err).
				Str("agent_id", desc.ID).
				Msg("context filtering failed for agent")
			continue
		}
		payload := c.optimizer.Format(desc.Type, filtered)
		if len(payload) > 0 {
			payloads[desc.ID] = payload
			used = true
		}
	}
	return payloads, tree, used
}

// qualityScore calcola il punteggio di qualità: media delle confidence
// pesata per il tasso di successo, con penalità per risposte parziali
// o routing degradato. Deterministico sugli stessi input.
func qualityScore(responses []models.AgentResponse, partial, degraded bool) float64 {
	if len(responses) == 0 {
		return 0
	}

	var confSum float64
	succeeded := 0
	for _, r := range responses {
		if r.Succeeded {
			confSum += r.Confidence
			succeeded++
		}
	}
	if succeeded == 0 {
		return 0
	}

	score := (confSum / float64(succeeded)) * (float64(succeeded) / float64(len(responses)))
	if partial {
		score *= 0.9
	}
	if degraded {
		score *= 0.9
	}
	if score > 1 {
		score = 1
	}
	return score
}

func countOutcomes(responses []models.AgentResponse) (succeeded, failed int) {
	for _, r := range responses {
		if r.Succeeded {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
