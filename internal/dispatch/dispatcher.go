package dispatch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/biodoia/agentmesh/internal/registry"
	"github.com/biodoia/agentmesh/pkg/models"
	"github.com/biodoia/agentmesh/pkg/resilience"
)

// ErrAllAgentsFailed viene restituito quando nessun agente ha prodotto
// una risposta valida. È l'unico fallimento hard del dispatcher.
var ErrAllAgentsFailed = errors.New("all agents failed")

// Config configura il dispatcher
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	DefaultTimeout time.Duration
}

// Dispatcher invia i payload agli agenti selezionati in parallelo,
// ognuno sotto timeout per-chiamata e retry limitato ai soli errori
// transienti. Ogni esito viene riportato al registry.
type Dispatcher struct {
	client   Client
	registry *registry.Registry
	config   Config
	logger   zerolog.Logger
}

// New crea un nuovo dispatcher
func New(client Client, reg *registry.Registry, cfg Config, logger zerolog.Logger) *Dispatcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 10 * time.Second
	}
	return &Dispatcher{
		client:   client,
		registry: reg,
		config:   cfg,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Execute chiama ogni agente selezionato in parallelo e raccoglie le
// risposte. Le risposte parziali sono un risultato valido: solo
// l'assenza totale di successi produce ErrAllAgentsFailed.
func (d *Dispatcher) Execute(ctx context.Context, req models.CoordinationRequest, selected []models.AgentDescriptor, payloads map[string]map[string]any) ([]models.AgentResponse, error) {
	if len(selected) == 0 {
		return nil, ErrAllAgentsFailed
	}

	var mu sync.Mutex
	responses := make([]models.AgentResponse, 0, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	for _, desc := range selected {
		desc := desc
		g.Go(func() error {
			resp := d.callAgent(gctx, req, desc, payloads[desc.ID])
			mu.Lock()
			responses = append(responses, resp)
			mu.Unlock()
			// individual failures never abort the group
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(responses, func(i, j int) bool {
		return responses[i].AgentID < responses[j].AgentID
	})

	anySuccess := false
	for _, r := range responses {
		if r.Succeeded {
			anySuccess = true
			break
		}
	}
	if !anySuccess {
		return responses, ErrAllAgentsFailed
	}
	return responses, nil
}

// callAgent esegue una singola chiamata con retry e timeout, e riporta
// l'esito al registry in ogni caso.
func (d *Dispatcher) callAgent(ctx context.Context, req models.CoordinationRequest, desc models.AgentDescriptor, contextPayload map[string]any) models.AgentResponse {
	resp := models.AgentResponse{
		AgentID:   desc.ID,
		AgentType: desc.Type,
	}

	if !d.registry.Acquire(desc.ID) {
		resp.ErrorKind = "circuit_open"
		d.logger.Warn().
			Str("agent_id", desc.ID).
			Str("request_id", req.RequestID).
			Msg("agent circuit open, skipping call")
		return resp
	}
	defer d.registry.Release(desc.ID)

	timeout := desc.Timeout
	if timeout <= 0 {
		timeout = d.config.DefaultTimeout
	}
	timeout = callTimeout(ctx, timeout)
	if timeout <= 0 {
		resp.ErrorKind = "timeout"
		d.registry.Report(desc.ID, false, 0)
		return resp
	}

	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxRetries:       d.config.MaxAttempts - 1,
		InitialBackoff:   d.config.InitialBackoff,
		MaxBackoff:       d.config.MaxBackoff,
		Jitter:           true,
		RetryableChecker: IsTransient,
	})

	call := AgentCall{
		RequestID: req.RequestID,
		Query:     req.Query,
		Context:   contextPayload,
		Priority:  req.Priority,
	}

	start := time.Now()
	var reply AgentReply
	err := retry.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var callErr error
		reply, callErr = d.client.Call(callCtx, desc, call)
		return callErr
	})
	latency := time.Since(start)

	resp.Latency = latency
	if err != nil {
		resp.ErrorKind = errorKind(err)
		d.registry.Report(desc.ID, false, latency)
		d.logger.Error().
			Err(err).
			Str("agent_id", desc.ID).
			Str("request_id", req.RequestID).
			Dur("latency", latency).
			Msg("agent call failed")
		return resp
	}

	resp.Succeeded = true
	resp.Payload = reply.Payload
	resp.Confidence = clampConfidence(reply.Confidence)
	d.registry.Report(desc.ID, true, latency)
	d.logger.Debug().
		Str("agent_id", desc.ID).
		Str("request_id", req.RequestID).
		Float64("confidence", resp.Confidence).
		Dur("latency", latency).
		Msg("agent call succeeded")
	return resp
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
