package repository

import (
	"context"
	"time"

	"chat-service/apperr"
	"chat-service/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	conversation := new(model.Conversation)
	err := r.db.WithContext(ctx).Preload("Flags").First(conversation, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrConversationNotFound
		}
		return nil, apperr.ErrStoreUnavailable(errors.Wrap(err, "conversationRepo.FindByID.First"))
	}
	conversation.SplitFlags()
	return conversation, nil
}

// FindByPair looks the unordered pair up. A nil propertyID matches any
// conversation between the two users, newest first.
func (r *ConversationRepository) FindByPair(ctx context.Context, userA, userB string, propertyID *string) (*model.Conversation, error) {
	conversation := new(model.Conversation)
	q := r.db.WithContext(ctx).
		Preload("Flags").
		Where("((user_a = ? AND user_b = ?) OR (user_a = ? AND user_b = ?))", userA, userB, userB, userA)
	if propertyID != nil {
		q = q.Where("property_id = ?", *propertyID)
	}

	err := q.Order("created_at DESC").First(conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrConversationNotFound
		}
		return nil, apperr.ErrStoreUnavailable(errors.Wrap(err, "conversationRepo.FindByPair.First"))
	}
	conversation.SplitFlags()
	return conversation, nil
}

func (r *ConversationRepository) Insert(ctx context.Context, conversation *model.Conversation) error {
	if err := r.db.WithContext(ctx).Omit("Flags").Create(conversation).Error; err != nil {
		return apperr.ErrStoreUnavailable(errors.Wrap(err, "conversationRepo.Insert.Create"))
	}
	conversation.SplitFlags()
	return nil
}

// ListForUser returns the user's conversations minus the ones they deleted,
// most recently updated first.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]model.Conversation, error) {
	var conversations []model.Conversation
	err := r.db.WithContext(ctx).
		Preload("Flags").
		Where("(user_a = ? OR user_b = ?)", userID, userID).
		Where("NOT EXISTS (SELECT 1 FROM conversation_flags f WHERE f.conversation_id = conversations.id AND f.user_id = ? AND f.kind = ?)",
			userID, model.FlagDeleted).
		Order("updated_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&conversations).Error
	if err != nil {
		return nil, apperr.ErrStoreUnavailable(errors.Wrap(err, "conversationRepo.ListForUser.Find"))
	}
	for i := range conversations {
		conversations[i].SplitFlags()
	}
	return conversations, nil
}

func (r *ConversationRepository) UpdatePreview(ctx context.Context, id, messageID, preview string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_message_id":      messageID,
			"last_message_preview": preview,
			"last_message_at":      at,
		}).Error
	if err != nil {
		return apperr.ErrStoreUnavailable(errors.Wrap(err, "conversationRepo.UpdatePreview.Updates"))
	}
	return nil
}

// RefreshPreview replaces the preview only while messageID is still the
// conversation's last message. It reports whether a row changed.
func (r *ConversationRepository) RefreshPreview(ctx context.Context, id, messageID, preview string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ? AND last_message_id = ?", id, messageID).
		UpdateColumn("last_message_preview", preview)
	if res.Error != nil {
		return false, apperr.ErrStoreUnavailable(errors.Wrap(res.Error, "conversationRepo.RefreshPreview.UpdateColumn"))
	}
	return res.RowsAffected > 0, nil
}

// IncrementUnread atomically bumps the counter of the participant that is
// not senderID.
func (r *ConversationRepository) IncrementUnread(ctx context.Context, id, senderID string) error {
	err := r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"unread_for_a": gorm.Expr("CASE WHEN user_a <> ? THEN unread_for_a + 1 ELSE unread_for_a END", senderID),
			"unread_for_b": gorm.Expr("CASE WHEN user_b <> ? THEN unread_for_b + 1 ELSE unread_for_b END", senderID),
		}).Error
	if err != nil {
		return apperr.ErrStoreUnavailable(errors.Wrap(err, "conversationRepo.IncrementUnread.UpdateColumns"))
	}
	return nil
}

func (r *ConversationRepository) ResetUnread(ctx context.Context, id, userID string) error {
	err := r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"unread_for_a": gorm.Expr("CASE WHEN user_a = ? THEN 0 ELSE unread_for_a END", userID),
			"unread_for_b": gorm.Expr("CASE WHEN user_b = ? THEN 0 ELSE unread_for_b END", userID),
		}).Error
	if err != nil {
		return apperr.ErrStoreUnavailable(errors.Wrap(err, "conversationRepo.ResetUnread.UpdateColumns"))
	}
	return nil
}

func (r *ConversationRepository) AddFlag(ctx context.Context, id, userID string, kind model.FlagKind) error {
	flag := &model.ConversationFlag{ConversationID: id, UserID: userID, Kind: kind}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(flag).Error
	if err != nil {
		return apperr.ErrStoreUnavailable(errors.Wrap(err, "conversationRepo.AddFlag.Create"))
	}
	return nil
}

func (r *ConversationRepository) RemoveFlag(ctx context.Context, id, userID string, kind model.FlagKind) error {
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ? AND kind = ?", id, userID, kind).
		Delete(&model.ConversationFlag{}).Error
	if err != nil {
		return apperr.ErrStoreUnavailable(errors.Wrap(err, "conversationRepo.RemoveFlag.Delete"))
	}
	return nil
}
