package gateway

import (
	"strings"
	"sync/atomic"

	"github.com/gofiber/fiber/v3"
)

// maintenanceState tiene lo stato della modalità manutenzione.
// Quando attiva, le richieste di coordinamento vengono rifiutate con
// 503; health, metrics e route admin restano raggiungibili.
type maintenanceState struct {
	enabled atomic.Bool
}

func (m *maintenanceState) set(enabled bool) {
	m.enabled.Store(enabled)
}

func (m *maintenanceState) active() bool {
	return m.enabled.Load()
}

func (m *maintenanceState) middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		if !m.active() {
			return c.Next()
		}

		path := c.Path()
		if path == "/health" || path == "/metrics" || strings.HasPrefix(path, "/admin") {
			return c.Next()
		}

		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "service in maintenance mode",
		})
	}
}
