// Package listener reacts to events other services publish for chat.
package listener

import (
	"context"
	"encoding/json"
	"log/slog"

	"chat-service/event"
	"chat-service/model"
	"chat-service/utils"
)

type ConversationStarter interface {
	FindOrCreate(ctx context.Context, userA, userB string, propertyID *string) (*model.Conversation, bool, error)
}

type conversationStart struct {
	UserA      string  `json:"userA" validate:"required"`
	UserB      string  `json:"userB" validate:"required,nefield=UserA"`
	PropertyID *string `json:"propertyId"`
}

// ConversationStart opens conversations requested by the properties service
// when a buyer contacts an owner. Bad payloads are logged and skipped.
func ConversationStart(ctx context.Context, deliveries <-chan event.Delivery, starter ConversationStarter, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			handleConversationStart(ctx, d, starter, log)
		}
	}
}

func handleConversationStart(ctx context.Context, d event.Delivery, starter ConversationStarter, log *slog.Logger) {
	if d.Action != "" && d.Action != event.ActionConversationStart {
		log.Warn("unexpected action", "queue", event.QueueConversationStart, "event", d.Action)
		return
	}

	in := conversationStart{}
	if err := json.Unmarshal(d.Data, &in); err != nil {
		log.Warn("malformed conversation intent", "error", err)
		return
	}
	if err := utils.ValidateStruct(in); err != nil {
		log.Warn("invalid conversation intent", "error", err)
		return
	}

	c, created, err := starter.FindOrCreate(ctx, in.UserA, in.UserB, in.PropertyID)
	if err != nil {
		log.Error("conversation intent failed", "user", in.UserA, "error", err)
		return
	}
	log.Info("conversation intent handled", "conversation", c.ID, "created", created)
}
