package transport

import (
	"strings"

	"github.com/coldsend/outreach-engine/internal/observability"
	"github.com/gofiber/fiber/v2"
)

// CorrelationMiddleware copies the request id into the user context so
// downstream logging carries it. Runs after the requestid middleware.
func CorrelationMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		correlationID := strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		if correlationID == "" {
			if value, ok := c.Locals("requestid").(string); ok {
				correlationID = strings.TrimSpace(value)
			}
		}

		if correlationID != "" {
			c.SetUserContext(observability.WithCorrelationID(c.UserContext(), correlationID))
		}

		return c.Next()
	}
}
