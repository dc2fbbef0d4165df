package middleware

import (
	"chat-service/apperr"

	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
)

// RBAC checks (user, path, method) against the casbin policy. The policy is
// reloaded on every request so role grants apply without a restart.
func RBAC(enforcer *casbin.Enforcer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := enforcer.LoadPolicy(); err != nil {
			return reject(c, fiber.StatusInternalServerError, apperr.CodeInternal, "Internal server error")
		}

		allowed, err := enforcer.Enforce(UserID(c), c.Path(), c.Method())
		if err != nil {
			return reject(c, fiber.StatusInternalServerError, apperr.CodeInternal, "Internal server error")
		}
		if !allowed {
			return reject(c, fiber.StatusForbidden, apperr.CodePermissionDenied, "Forbidden")
		}

		return c.Next()
	}
}
