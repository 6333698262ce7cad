package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/biodoia/agentmesh/pkg/auth"
)

// PrincipalKey chiave Locals per i claims del principal autenticato
const PrincipalKey = "principal"

// AuthConfig configurazione del middleware di autenticazione
type AuthConfig struct {
	JWTManager *auth.JWTManager

	// Rate limiting per principal (richieste al minuto, 0 = disabilitato)
	PrincipalRateLimit int
}

// principalRateLimiter gestisce il rate limiting per principal
type principalRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	limit    rate.Limit
	burst    int
}

func newPrincipalRateLimiter(requestsPerMinute int) *principalRateLimiter {
	return &principalRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(requestsPerMinute) / 60.0,
		burst:    requestsPerMinute,
	}
}

func (rl *principalRateLimiter) getLimiter(principalID string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[principalID]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		if limiter, exists = rl.limiters[principalID]; !exists {
			limiter = rate.NewLimiter(rl.limit, rl.burst)
			rl.limiters[principalID] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter
}

// cleanup rimuove i limiters che hanno tutti i token (non usati di recente)
func (rl *principalRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for id, limiter := range rl.limiters {
		if limiter.Tokens() == float64(rl.burst) {
			delete(rl.limiters, id)
		}
	}
}

// Auth middleware per autenticazione bearer JWT con rate limiting
// per principal
func Auth(config AuthConfig) fiber.Handler {
	var limiter *principalRateLimiter
	if config.PrincipalRateLimit > 0 {
		limiter = newPrincipalRateLimiter(config.PrincipalRateLimit)

		ticker := time.NewTicker(5 * time.Minute)
		go func() {
			for range ticker.C {
				limiter.cleanup()
			}
		}()
	}

	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing authorization header",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid authorization format (use 'Bearer <token>')",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := config.JWTManager.ValidateToken(token)
		if err != nil {
			log.Debug().Err(err).Msg("JWT validation failed")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired token",
			})
		}

		if limiter != nil {
			if !limiter.getLimiter(claims.PrincipalID).Allow() {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "rate limit exceeded",
				})
			}
		}

		c.Locals(PrincipalKey, claims)
		c.Set("X-Principal-ID", claims.PrincipalID)

		return c.Next()
	}
}

// Principal estrae i claims del principal autenticato
func Principal(c fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals(PrincipalKey).(*auth.Claims)
	return claims, ok
}

// RequireRole verifica che il principal abbia uno dei ruoli indicati.
// Il ruolo admin passa sempre.
func RequireRole(roles ...string) fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, ok := Principal(c)
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient permissions",
			})
		}

		for _, role := range roles {
			if claims.Role == role || claims.IsAdmin() {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient permissions",
		})
	}
}

// RequireClientAccess verifica che il principal possa accedere al
// cliente indicato dal path param. L'accesso negato non blocca le
// route che sanno degradare: quelle usano Principal direttamente.
func RequireClientAccess(param string) fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, ok := Principal(c)
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient permissions",
			})
		}

		clientID := c.Params(param)
		if clientID != "" && !claims.CanAccessClient(clientID) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":     "access denied for client",
				"client_id": clientID,
			})
		}

		return c.Next()
	}
}
