package gateway

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/biodoia/agentmesh/internal/coordinator"
	"github.com/biodoia/agentmesh/internal/knowledge"
	"github.com/biodoia/agentmesh/internal/registry"
	"github.com/biodoia/agentmesh/pkg/middleware"
	"github.com/biodoia/agentmesh/pkg/models"
)

// coordinateRequest è il body di POST /coordinate
type coordinateRequest struct {
	Query       string `json:"query"`
	Priority    string `json:"priority,omitempty"`
	Sensitivity string `json:"sensitivity,omitempty"`
	DeadlineMs  int    `json:"deadline_ms,omitempty"`
}

// coordinateClientRequest è il body di POST /coordinate/client
type coordinateClientRequest struct {
	coordinateRequest
	ClientID         string `json:"client_id"`
	UseClientContext *bool  `json:"use_client_context,omitempty"`
}

// handleHealth liveness check, senza autenticazione
func (g *Gateway) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"version":   "1.0.0",
	})
}

// handleCoordinate gestisce una richiesta di coordinamento senza
// contesto cliente
func (g *Gateway) handleCoordinate(c fiber.Ctx) error {
	var body coordinateRequest
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	req := buildRequest(c, body, "", false)
	return g.coordinate(c, req)
}

// handleCoordinateClient gestisce una richiesta di coordinamento con
// contesto cliente. Se il principal non ha accesso al cliente il
// contesto viene omesso e la richiesta procede comunque.
func (g *Gateway) handleCoordinateClient(c fiber.Ctx) error {
	var body coordinateClientRequest
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if body.ClientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "client_id is required",
		})
	}

	useContext := true
	if body.UseClientContext != nil {
		useContext = *body.UseClientContext
	}

	if useContext {
		if claims, ok := middleware.Principal(c); !ok || !claims.CanAccessClient(body.ClientID) {
			log.Warn().
				Str("client_id", body.ClientID).
				Str("request_id", middleware.GetRequestID(c)).
				Msg("principal lacks client access, omitting context")
			useContext = false
		}
	}

	req := buildRequest(c, body.coordinateRequest, body.ClientID, useContext)
	return g.coordinate(c, req)
}

func buildRequest(c fiber.Ctx, body coordinateRequest, clientID string, useContext bool) models.CoordinationRequest {
	req := models.CoordinationRequest{
		RequestID:        middleware.GetRequestID(c),
		Query:            body.Query,
		ClientID:         clientID,
		UseClientContext: useContext,
		Priority:         models.Priority(body.Priority),
		Sensitivity:      models.Sensitivity(body.Sensitivity),
	}
	if body.DeadlineMs > 0 {
		req.Deadline = time.Now().Add(time.Duration(body.DeadlineMs) * time.Millisecond)
	}
	return req
}

func (g *Gateway) coordinate(c fiber.Ctx, req models.CoordinationRequest) error {
	resp, err := g.coordinator.Coordinate(c.Context(), req)
	switch {
	case errors.Is(err, coordinator.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, coordinator.ErrAllAgentsFailed):
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	case err != nil:
		return err
	default:
		return c.JSON(resp)
	}
}

// handleListClients elenca i clienti visibili al principal autenticato
func (g *Gateway) handleListClients(c fiber.Ctx) error {
	clients, err := g.coordinator.Clients(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "knowledge store unavailable",
		})
	}

	visible := make([]string, 0, len(clients))
	if claims, ok := middleware.Principal(c); ok {
		for _, id := range clients {
			if claims.CanAccessClient(id) {
				visible = append(visible, id)
			}
		}
	}

	return c.JSON(fiber.Map{
		"clients": visible,
		"count":   len(visible),
	})
}

// handleClientContext restituisce l'anteprima di esposizione per un cliente
func (g *Gateway) handleClientContext(c fiber.Ctx) error {
	clientID := c.Params("clientID")

	preview, err := g.coordinator.ClientContext(c.Context(), clientID)
	switch {
	case errors.Is(err, knowledge.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":     "client not found",
			"client_id": clientID,
		})
	case err != nil:
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "knowledge store unavailable",
		})
	default:
		return c.JSON(preview)
	}
}

// handleHealthDetailed stato completo di sistema e agenti
func (g *Gateway) handleHealthDetailed(c fiber.Ctx) error {
	health := g.coordinator.Health()

	status := fiber.StatusOK
	if health.Status == "unhealthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(health)
}

// handleQualityMetrics metriche di qualità aggregate
func (g *Gateway) handleQualityMetrics(c fiber.Ctx) error {
	return c.JSON(g.coordinator.Quality())
}

// handlePerformanceMetrics metriche di performance correnti
func (g *Gateway) handlePerformanceMetrics(c fiber.Ctx) error {
	return c.JSON(g.coordinator.Performance())
}

// handleAgentsStatus stato di tutti gli agenti
func (g *Gateway) handleAgentsStatus(c fiber.Ctx) error {
	health := g.coordinator.Health()
	return c.JSON(fiber.Map{
		"agents": health.Agents,
		"count":  len(health.Agents),
	})
}

// handleAgentStatus stato di un singolo agente
func (g *Gateway) handleAgentStatus(c fiber.Ctx) error {
	agentID := c.Params("agentID")

	status, err := g.coordinator.AgentStatus(agentID)
	if errors.Is(err, registry.ErrUnknownAgent) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":    "unknown agent",
			"agent_id": agentID,
		})
	}
	return c.JSON(status)
}

// handleResetAgent riporta manualmente il breaker di un agente a chiuso
func (g *Gateway) handleResetAgent(c fiber.Ctx) error {
	agentID := c.Params("agentID")

	if err := g.coordinator.ResetAgent(agentID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":    "unknown agent",
			"agent_id": agentID,
		})
	}
	return c.JSON(fiber.Map{
		"agent_id": agentID,
		"reset":    true,
	})
}

// handleInvalidateClient scarta l'albero in cache di un cliente
func (g *Gateway) handleInvalidateClient(c fiber.Ctx) error {
	clientID := c.Params("clientID")
	g.coordinator.InvalidateClient(clientID)
	return c.JSON(fiber.Map{
		"client_id":   clientID,
		"invalidated": true,
	})
}

// handleMaintenance abilita o disabilita la modalità manutenzione
func (g *Gateway) handleMaintenance(c fiber.Ctx) error {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	g.maintenance.set(body.Enabled)
	log.Info().Bool("enabled", body.Enabled).Msg("maintenance mode changed")

	return c.JSON(fiber.Map{
		"maintenance": body.Enabled,
	})
}
