package controller

import (
	"context"

	"chat-service/middleware"
	"chat-service/model"
	"chat-service/utils"

	"github.com/gofiber/fiber/v2"
)

type Messages interface {
	Paginate(ctx context.Context, conversationID, requesterID string, limit int, before string) ([]model.Message, error)
	MarkRead(ctx context.Context, conversationID string, messageIDs []string, readerID string) (int64, error)
	Edit(ctx context.Context, messageID, text, editorID string) (*model.Message, error)
}

type MessageReadInput struct {
	MessageIDs []string `json:"messageIds" validate:"required,min=1,max=500,dive,required"`
}

type MessageEditInput struct {
	Text string `json:"text" validate:"required"`
}

func (ctl *Controller) MessageList(c *fiber.Ctx) error {
	messages, err := ctl.messages.Paginate(
		c.UserContext(),
		c.Params("id"),
		middleware.UserID(c),
		c.QueryInt("limit", 0),
		c.Query("before"),
	)
	if err != nil {
		return ctl.fail(c, err)
	}
	return success(c, fiber.StatusOK, messages)
}

func (ctl *Controller) MessageRead(c *fiber.Ctx) error {
	input := new(MessageReadInput)
	if err := parseBody(c, input); err != nil {
		return ctl.fail(c, err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return ctl.fail(c, err)
	}

	userID := middleware.UserID(c)
	conversation, err := ctl.conversations.Authorize(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return ctl.fail(c, err)
	}

	marked, err := ctl.messages.MarkRead(c.UserContext(), conversation.ID, input.MessageIDs, userID)
	if err != nil {
		return ctl.fail(c, err)
	}
	ctl.realtime.ReadBy(conversation, userID, input.MessageIDs)

	return success(c, fiber.StatusOK, fiber.Map{
		"conversationId": conversation.ID,
		"markedRead":     marked,
	})
}

func (ctl *Controller) MessageEdit(c *fiber.Ctx) error {
	input := new(MessageEditInput)
	if err := parseBody(c, input); err != nil {
		return ctl.fail(c, err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return ctl.fail(c, err)
	}

	message, err := ctl.messages.Edit(c.UserContext(), c.Params("id"), input.Text, middleware.UserID(c))
	if err != nil {
		return ctl.fail(c, err)
	}
	ctl.realtime.Edited(message)

	return success(c, fiber.StatusOK, message)
}
