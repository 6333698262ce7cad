package gateway

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/biodoia/agentmesh/internal/coordinator"
	"github.com/biodoia/agentmesh/pkg/auth"
	"github.com/biodoia/agentmesh/pkg/config"
	"github.com/biodoia/agentmesh/pkg/middleware"
)

// Gateway espone la superficie HTTP del coordinatore
type Gateway struct {
	config      *config.Config
	app         *fiber.App
	coordinator *coordinator.Coordinator
	jwtManager  *auth.JWTManager

	maintenance *maintenanceState
}

// New crea una nuova istanza del gateway
func New(cfg *config.Config, coord *coordinator.Coordinator) (*Gateway, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required")
	}

	app := fiber.New(fiber.Config{
		AppName:      "AgentMesh Coordinator",
		ServerHeader: "AgentMesh/1.0",
		ErrorHandler: customErrorHandler,
	})

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		SecretKey: cfg.Auth.JWTSecret,
		Issuer:    cfg.Auth.Issuer,
	})

	gw := &Gateway{
		config:      cfg,
		app:         app,
		coordinator: coord,
		jwtManager:  jwtManager,
		maintenance: &maintenanceState{},
	}

	gw.setupMiddlewares()
	gw.setupRoutes()

	return gw, nil
}

// customErrorHandler gestisce gli errori globali
func customErrorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":      message,
		"request_id": middleware.GetRequestID(c),
	})
}

// setupMiddlewares configura i middleware globali
func (g *Gateway) setupMiddlewares() {
	// Recovery per primo, per catturare tutti i panic
	g.app.Use(middleware.Recovery())

	g.app.Use(middleware.RequestID())

	g.app.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	g.app.Use(middleware.Logging(middleware.LoggingConfig{
		SkipPaths: []string{"/health", "/metrics"},
	}))

	g.app.Use(g.maintenance.middleware())
}

// setupRoutes configura le route HTTP
func (g *Gateway) setupRoutes() {
	// Public endpoints (no auth)
	g.app.Get("/health", g.handleHealth)

	if g.config.Monitoring.Prometheus.Enabled {
		g.app.Get("/metrics", middleware.PrometheusHandler())
	}

	authed := middleware.Auth(middleware.AuthConfig{
		JWTManager:         g.jwtManager,
		PrincipalRateLimit: g.config.Auth.UserRateLimit,
	})

	// Coordination endpoints
	g.app.Post("/coordinate", authed, g.handleCoordinate)
	g.app.Post("/coordinate/client", authed, g.handleCoordinateClient)

	// Client knowledge endpoints
	g.app.Get("/clients", authed, g.handleListClients)
	g.app.Get("/clients/:clientID/context", authed, middleware.RequireClientAccess("clientID"), g.handleClientContext)

	// Health and metrics
	g.app.Get("/health/detailed", authed, g.handleHealthDetailed)
	g.app.Get("/metrics/quality", authed, g.handleQualityMetrics)
	g.app.Get("/metrics/performance", authed, g.handlePerformanceMetrics)

	// Agent status
	g.app.Get("/agents/status", authed, g.handleAgentsStatus)
	g.app.Get("/agents/:agentID/status", authed, g.handleAgentStatus)

	// Admin endpoints (requires admin role)
	admin := g.app.Group("/admin", authed, middleware.RequireRole(auth.RoleAdmin))
	admin.Post("/agents/:agentID/reset", g.handleResetAgent)
	admin.Post("/maintenance", g.handleMaintenance)
	admin.Post("/clients/:clientID/invalidate", g.handleInvalidateClient)
}

// Start avvia il gateway
func (g *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.config.Server.Host, g.config.Server.Port)
	log.Info().Str("addr", addr).Msg("gateway listening")
	return g.app.Listen(addr)
}

// Shutdown esegue lo shutdown graceful del gateway
func (g *Gateway) Shutdown(ctx context.Context) error {
	if err := g.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	log.Info().Msg("gateway shutdown completed")
	return nil
}

// App espone l'app fiber, usato nei test
func (g *Gateway) App() *fiber.App {
	return g.app
}
