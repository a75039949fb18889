// middleware/auth.go
package middleware

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	LocalUserID         = "user_id"
	LocalUserRoles      = "user_roles"
	LocalDeviceID       = "device_id"
	LocalOTPNotRequired = "otp_not_required"
)

// UserContextMiddleware extracts user identity and roles set by the Gateway.
// Mount it only on groups that need a user; requests without X-User-ID are rejected.
func UserContextMiddleware(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			log.Warn("❌ [USER_CTX] X-User-ID required but missing", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID: request must come through gateway with auth context",
			})
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserRoles, parseRoles(c.Get("X-User-Roles")))
		c.Locals(LocalOTPNotRequired, strings.EqualFold(c.Get("X-Otp-Not-Required"), "true"))
		return c.Next()
	}
}

// RequireRole lets the request through only when the user carries role.
// It must run after UserContextMiddleware.
func RequireRole(role string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals(LocalUserRoles).([]string)
		if !slices.Contains(roles, role) {
			log.Warn("🚫 [USER_CTX] role required",
				zap.String("role", role),
				zap.Any("user_id", c.Locals(LocalUserID)),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		}
		return c.Next()
	}
}

func parseRoles(header string) []string {
	var roles []string
	for _, r := range strings.Split(header, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
