package middleware

import (
	"chat-service/apperr"

	"github.com/gofiber/fiber/v2"
)

// OTP refuses tokens whose second factor is still pending and tokens that
// carry no user id.
func OTP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if otp, _ := claims(c)["otp"].(bool); otp {
			return reject(c, fiber.StatusUnauthorized, apperr.CodeUnauthenticated, "2FA required")
		}
		if UserID(c) == "" {
			return reject(c, fiber.StatusUnauthorized, apperr.CodeUnauthenticated, "Invalid or expired JWT")
		}
		return c.Next()
	}
}
