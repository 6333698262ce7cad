package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/biodoia/agentmesh/pkg/models"
)

var (
	// ErrAgentUnavailable indica un errore transiente (timeout, rete, 5xx)
	ErrAgentUnavailable = errors.New("agent unavailable")

	// ErrAgentRejected indica un rifiuto permanente (4xx), da non ritentare
	ErrAgentRejected = errors.New("agent rejected request")
)

// AgentCall è il payload inviato a un agente remoto
type AgentCall struct {
	RequestID string          `json:"request_id"`
	Query     string          `json:"query"`
	Context   map[string]any  `json:"context,omitempty"`
	Priority  models.Priority `json:"priority,omitempty"`
}

// AgentReply è la risposta attesa da un agente remoto.
// Confidence è riportata dall'agente stesso, mai sintetizzata.
type AgentReply struct {
	Payload    string  `json:"payload"`
	Confidence float64 `json:"confidence"`
}

// Client astrae la chiamata HTTP a un singolo agente
type Client interface {
	Call(ctx context.Context, desc models.AgentDescriptor, call AgentCall) (AgentReply, error)
}

// HTTPClient implementa Client via resty
type HTTPClient struct {
	client *resty.Client
}

// NewHTTPClient crea un client HTTP per gli agenti
func NewHTTPClient() *HTTPClient {
	c := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "agentmesh/1.0")
	// retry is handled by the dispatcher, not by resty
	c.SetRetryCount(0)
	return &HTTPClient{client: c}
}

// Call invia la richiesta all'endpoint dell'agente e classifica gli
// errori in transienti (ritentabili) o permanenti.
func (h *HTTPClient) Call(ctx context.Context, desc models.AgentDescriptor, call AgentCall) (AgentReply, error) {
	var reply AgentReply

	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(call).
		SetResult(&reply).
		Post(desc.Endpoint)
	if err != nil {
		return AgentReply{}, classifyTransportError(err)
	}

	switch {
	case resp.IsSuccess():
		return reply, nil
	case resp.StatusCode() >= 500:
		return AgentReply{}, fmt.Errorf("%w: status %d", ErrAgentUnavailable, resp.StatusCode())
	default:
		return AgentReply{}, fmt.Errorf("%w: status %d", ErrAgentRejected, resp.StatusCode())
	}
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}
	// connection refused, DNS errors and friends are transient too
	return fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
}

// IsTransient riporta se un errore di chiamata agente è ritentabile
func IsTransient(err error) bool {
	return errors.Is(err, ErrAgentUnavailable)
}

// errorKind traduce un errore nel campo ErrorKind della risposta
func errorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrAgentRejected):
		return "rejected"
	case errors.Is(err, ErrAgentUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// callTimeout limita il timeout per-agente al tempo rimanente della
// richiesta complessiva.
func callTimeout(ctx context.Context, agentTimeout time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining < agentTimeout {
			return remaining
		}
	}
	return agentTimeout
}
