// Package middleware guards the REST surface.
package middleware

import (
	"errors"
	"strconv"

	"chat-service/apperr"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// reject writes the same error envelope the controllers use.
func reject(c *fiber.Ctx, status int, code apperr.Code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": message,
		"code":    code,
		"data":    nil,
	})
}

// JWT verifies HS512 access tokens and stores them under Locals("user").
func JWT(key string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{
			JWTAlg: "HS512",
			Key:    []byte(key),
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				return reject(c, fiber.StatusBadRequest, apperr.CodeInvalidArgument, "Missing or malformed JWT")
			}
			return reject(c, fiber.StatusUnauthorized, apperr.CodeUnauthenticated, "Invalid or expired JWT")
		},
	})
}

func claims(c *fiber.Ctx) jwt.MapClaims {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return nil
	}
	claims, _ := token.Claims.(jwt.MapClaims)
	return claims
}

// UserID returns the id claim of the verified token, or "" when absent.
func UserID(c *fiber.Ctx) string {
	switch id := claims(c)["id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	}
	return ""
}
