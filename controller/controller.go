// Package controller serves the chat REST API.
package controller

import (
	"context"
	"log/slog"

	"chat-service/apperr"
	"chat-service/model"

	"github.com/gofiber/fiber/v2"
)

type Presence interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context) ([]string, error)
}

// Realtime pushes REST side effects to connected clients.
type Realtime interface {
	ReadBy(conversation *model.Conversation, userID string, ids []string)
	Edited(message *model.Message)
}

type Controller struct {
	conversations Conversations
	messages      Messages
	presence      Presence
	reconciler    Reconciler
	realtime      Realtime
	log           *slog.Logger
}

func New(conversations Conversations, messages Messages, presence Presence, reconciler Reconciler, realtime Realtime, log *slog.Logger) *Controller {
	return &Controller{
		conversations: conversations,
		messages:      messages,
		presence:      presence,
		reconciler:    reconciler,
		realtime:      realtime,
		log:           log,
	}
}

func success(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    data,
	})
}

func (ctl *Controller) fail(c *fiber.Ctx, err error) error {
	code := apperr.CodeOf(err)
	if code == apperr.CodeUnknown || code == apperr.CodeInternal || code == apperr.CodeUnavailable {
		ctl.log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	if code == apperr.CodeUnknown {
		code = apperr.CodeInternal
	}

	return c.Status(httpStatus(code)).JSON(fiber.Map{
		"status":  "error",
		"message": apperr.MessageOf(err),
		"code":    code,
		"data":    nil,
	})
}

func httpStatus(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidArgument:
		return fiber.StatusBadRequest
	case apperr.CodeUnauthenticated:
		return fiber.StatusUnauthorized
	case apperr.CodePermissionDenied:
		return fiber.StatusForbidden
	case apperr.CodeNotFound:
		return fiber.StatusNotFound
	case apperr.CodeFailedPrecondition:
		return fiber.StatusConflict
	case apperr.CodeRateLimited:
		return fiber.StatusTooManyRequests
	case apperr.CodeUnavailable:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return apperr.InvalidArg("Review your input")
	}
	return nil
}
