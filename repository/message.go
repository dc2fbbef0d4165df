package repository

import (
	"context"
	"time"

	"chat-service/apperr"
	"chat-service/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Insert(ctx context.Context, message *model.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return apperr.ErrStoreUnavailable(errors.Wrap(err, "messageRepo.Insert.Create"))
	}
	return nil
}

func (r *MessageRepository) FindByID(ctx context.Context, id string) (*model.Message, error) {
	message := new(model.Message)
	if err := r.db.WithContext(ctx).First(message, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrMessageNotFound
		}
		return nil, apperr.ErrStoreUnavailable(errors.Wrap(err, "messageRepo.FindByID.First"))
	}
	return message, nil
}

// Page returns up to limit messages newest first. With a cursor only messages
// strictly older than it are returned; ties on created_at fall back to the id.
func (r *MessageRepository) Page(ctx context.Context, conversationID string, limit int, cursor *model.Message) ([]model.Message, error) {
	q := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if cursor != nil {
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	messages := []model.Message{}
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, apperr.ErrStoreUnavailable(errors.Wrap(err, "messageRepo.Page.Find"))
	}
	return messages, nil
}

// Unread returns messages readerID has not read yet, oldest first.
func (r *MessageRepository) Unread(ctx context.Context, conversationID, readerID string) ([]model.Message, error) {
	messages := []model.Message{}
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, apperr.ErrStoreUnavailable(errors.Wrap(err, "messageRepo.Unread.Find"))
	}
	return messages, nil
}

// MarkRead flips is_read for ids in the conversation that readerID did not
// send. Already read rows are left alone.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID string, ids []string, readerID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("conversation_id = ? AND id IN ? AND sender_id <> ? AND is_read = ?", conversationID, ids, readerID, false).
		UpdateColumn("is_read", true)
	if res.Error != nil {
		return 0, apperr.ErrStoreUnavailable(errors.Wrap(res.Error, "messageRepo.MarkRead.UpdateColumn"))
	}
	return res.RowsAffected, nil
}

func (r *MessageRepository) UpdateText(ctx context.Context, id, text string, editedAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"text":      text,
			"edited":    true,
			"edited_at": editedAt,
		}).Error
	if err != nil {
		return apperr.ErrStoreUnavailable(errors.Wrap(err, "messageRepo.UpdateText.UpdateColumns"))
	}
	return nil
}
