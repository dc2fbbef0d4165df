package controller

import (
	"context"

	"chat-service/middleware"
	"chat-service/model"
	"chat-service/service"
	"chat-service/utils"

	"github.com/gofiber/fiber/v2"
)

type Conversations interface {
	FindOrCreate(ctx context.Context, userA, userB string, propertyID *string) (*model.Conversation, bool, error)
	Authorize(ctx context.Context, conversationID, userID string) (*model.Conversation, error)
	List(ctx context.Context, userID string, page, pageSize int) ([]service.Summary, error)
	Mute(ctx context.Context, conversationID, userID string) error
	Unmute(ctx context.Context, conversationID, userID string) error
	Block(ctx context.Context, conversationID, userID string) error
	Unblock(ctx context.Context, conversationID, userID string) error
	SoftDelete(ctx context.Context, conversationID, userID string) error
}

type ConversationCreateInput struct {
	RecipientID string  `json:"recipientId" validate:"required,max=64"`
	PropertyID  *string `json:"propertyId" validate:"omitempty,max=64"`
}

func (ctl *Controller) ConversationList(c *fiber.Ctx) error {
	summaries, err := ctl.conversations.List(
		c.UserContext(),
		middleware.UserID(c),
		c.QueryInt("page", 1),
		c.QueryInt("page_size", service.DefaultPageSize),
	)
	if err != nil {
		return ctl.fail(c, err)
	}
	return success(c, fiber.StatusOK, summaries)
}

func (ctl *Controller) ConversationCreate(c *fiber.Ctx) error {
	input := new(ConversationCreateInput)
	if err := parseBody(c, input); err != nil {
		return ctl.fail(c, err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return ctl.fail(c, err)
	}

	conversation, created, err := ctl.conversations.FindOrCreate(c.UserContext(), middleware.UserID(c), input.RecipientID, input.PropertyID)
	if err != nil {
		return ctl.fail(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return success(c, status, conversation)
}

func (ctl *Controller) ConversationGet(c *fiber.Ctx) error {
	conversation, err := ctl.conversations.Authorize(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return ctl.fail(c, err)
	}
	return success(c, fiber.StatusOK, conversation)
}

func (ctl *Controller) flag(action func(ctx context.Context, conversationID, userID string) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := action(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
			return ctl.fail(c, err)
		}
		return success(c, fiber.StatusOK, nil)
	}
}

func (ctl *Controller) ConversationMute(c *fiber.Ctx) error {
	return ctl.flag(ctl.conversations.Mute)(c)
}

func (ctl *Controller) ConversationUnmute(c *fiber.Ctx) error {
	return ctl.flag(ctl.conversations.Unmute)(c)
}

func (ctl *Controller) ConversationBlock(c *fiber.Ctx) error {
	return ctl.flag(ctl.conversations.Block)(c)
}

func (ctl *Controller) ConversationUnblock(c *fiber.Ctx) error {
	return ctl.flag(ctl.conversations.Unblock)(c)
}

func (ctl *Controller) ConversationDelete(c *fiber.Ctx) error {
	return ctl.flag(ctl.conversations.SoftDelete)(c)
}
