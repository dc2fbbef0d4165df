// Package service holds the conversation and message rules shared by the
// realtime gateway and the REST controllers.
package service

import (
	"context"
	"time"

	"chat-service/model"
	"chat-service/profile"
)

type ConversationRepository interface {
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	FindByPair(ctx context.Context, userA, userB string, propertyID *string) (*model.Conversation, error)
	Insert(ctx context.Context, conversation *model.Conversation) error
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]model.Conversation, error)
	UpdatePreview(ctx context.Context, id, messageID, preview string, at time.Time) error
	RefreshPreview(ctx context.Context, id, messageID, preview string) (bool, error)
	IncrementUnread(ctx context.Context, id, senderID string) error
	ResetUnread(ctx context.Context, id, userID string) error
	AddFlag(ctx context.Context, id, userID string, kind model.FlagKind) error
	RemoveFlag(ctx context.Context, id, userID string, kind model.FlagKind) error
}

type MessageRepository interface {
	Insert(ctx context.Context, message *model.Message) error
	FindByID(ctx context.Context, id string) (*model.Message, error)
	Page(ctx context.Context, conversationID string, limit int, cursor *model.Message) ([]model.Message, error)
	Unread(ctx context.Context, conversationID, readerID string) ([]model.Message, error)
	MarkRead(ctx context.Context, conversationID string, ids []string, readerID string) (int64, error)
	UpdateText(ctx context.Context, id, text string, editedAt time.Time) error
}

type ProfileProvider interface {
	Profile(ctx context.Context, userID string) (profile.Profile, error)
}

type OnlineChecker interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
