package router

import (
	"chat-service/controller"
	"chat-service/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func Rest(app *fiber.App, ctl *controller.Controller, jwtKey string, enforcer *casbin.Enforcer) {
	api := app.Group("/v1", logger.New(), middleware.JWT(jwtKey), middleware.OTP())

	// Conversations
	conversations := api.Group("/conversations")
	conversations.Get("", ctl.ConversationList)
	conversations.Post("", ctl.ConversationCreate)
	conversations.Get("/:id", ctl.ConversationGet)
	conversations.Delete("/:id", ctl.ConversationDelete)
	conversations.Get("/:id/messages", ctl.MessageList)
	conversations.Post("/:id/read", ctl.MessageRead)
	conversations.Post("/:id/mute", ctl.ConversationMute)
	conversations.Delete("/:id/mute", ctl.ConversationUnmute)
	conversations.Post("/:id/block", ctl.ConversationBlock)
	conversations.Delete("/:id/block", ctl.ConversationUnblock)

	// Messages
	messages := api.Group("/messages")
	messages.Patch("/:id", ctl.MessageEdit)

	// Presence
	api.Get("/presence/:userId", ctl.PresenceGet)

	// Admin
	admin := api.Group("/admin", middleware.RBAC(enforcer))
	admin.Post("/presence/reconcile", ctl.AdminPresenceReconcile)
}
