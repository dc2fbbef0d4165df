package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"chat-service/apperr"
	"chat-service/model"

	"github.com/google/uuid"
)

const (
	DefaultMessageLimit = 30
	MaxMessageLimit     = 100
	MaxTextLength       = 4000
	MaxAttachments      = 10
)

type MessageService struct {
	repo          MessageRepository
	conversations *ConversationService
	log           *slog.Logger
	editWindow    time.Duration
	now           func() time.Time
}

// NewMessageService builds the service. An editWindow of zero lets senders
// edit their messages at any time.
func NewMessageService(repo MessageRepository, conversations *ConversationService, log *slog.Logger, editWindow time.Duration) *MessageService {
	return &MessageService{
		repo:          repo,
		conversations: conversations,
		log:           log,
		editWindow:    editWindow,
		now:           now,
	}
}

type SendInput struct {
	ConversationID string
	SenderID       string
	Text           string
	Attachments    []string
}

func validateContent(text string, attachments []string) error {
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return apperr.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return apperr.ErrMessageTooLong
	}
	if len(attachments) > MaxAttachments {
		return apperr.InvalidArg("too many attachments")
	}
	for _, a := range attachments {
		if a == "" {
			return apperr.InvalidArg("attachment reference must not be empty")
		}
	}
	return nil
}

func previewText(text string, attachments []string) string {
	if strings.TrimSpace(text) == "" && len(attachments) > 0 {
		return "[attachment]"
	}
	return text
}

// Send persists a message and then updates the conversation preview and the
// recipient's unread counter. Those two follow-ups are not part of the
// insert; their failures are logged and the stored message is still returned.
// The returned conversation is the state loaded before the send.
func (s *MessageService) Send(ctx context.Context, in SendInput) (*model.Message, *model.Conversation, error) {
	if err := validateContent(in.Text, in.Attachments); err != nil {
		return nil, nil, err
	}

	conversation, err := s.conversations.Authorize(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return nil, nil, err
	}
	// A block by either participant closes the thread both ways.
	if len(conversation.BlockedBy) > 0 {
		return nil, nil, apperr.ErrConversationBlocked
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, nil, apperr.Internal("could not allocate id", err)
	}
	attachments := in.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	message := &model.Message{
		ID:             id.String(),
		ConversationID: conversation.ID,
		SenderID:       in.SenderID,
		Text:           in.Text,
		Attachments:    attachments,
		CreatedAt:      s.now(),
	}
	if err := s.repo.Insert(ctx, message); err != nil {
		return nil, nil, err
	}

	if err := s.conversations.UpdateLastMessagePreview(ctx, conversation.ID, message.ID, previewText(message.Text, message.Attachments), message.CreatedAt); err != nil {
		s.log.Error("preview update failed", "conversation", conversation.ID, "message", message.ID, "error", err)
	}
	if err := s.conversations.IncrementUnread(ctx, conversation.ID, in.SenderID); err != nil {
		s.log.Error("unread increment failed", "conversation", conversation.ID, "message", message.ID, "error", err)
	}

	return message, conversation, nil
}

// MarkRead flips the given messages to read for readerID and zeroes the
// reader's unread counter. Ids that are already read, belong to another
// conversation or were sent by the reader are ignored.
func (s *MessageService) MarkRead(ctx context.Context, conversationID string, messageIDs []string, readerID string) (int64, error) {
	if _, err := s.conversations.Authorize(ctx, conversationID, readerID); err != nil {
		return 0, err
	}

	var marked int64
	if len(messageIDs) > 0 {
		n, err := s.repo.MarkRead(ctx, conversationID, messageIDs, readerID)
		if err != nil {
			return 0, err
		}
		marked = n
	}

	if err := s.conversations.ResetUnread(ctx, conversationID, readerID); err != nil {
		return marked, err
	}
	return marked, nil
}

// Paginate returns up to limit messages older than the before cursor,
// newest first. An empty cursor returns the most recent page.
func (s *MessageService) Paginate(ctx context.Context, conversationID, requesterID string, limit int, before string) ([]model.Message, error) {
	if _, err := s.conversations.Authorize(ctx, conversationID, requesterID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}

	var cursor *model.Message
	if before != "" {
		c, err := s.repo.FindByID(ctx, before)
		if err != nil {
			return nil, err
		}
		if c.ConversationID != conversationID {
			return nil, apperr.InvalidArg("cursor belongs to another conversation")
		}
		cursor = c
	}

	return s.repo.Page(ctx, conversationID, limit, cursor)
}

// UnreadFor lists messages the other participant sent that readerID has not
// read yet, oldest first.
func (s *MessageService) UnreadFor(ctx context.Context, conversationID, readerID string) ([]model.Message, error) {
	return s.repo.Unread(ctx, conversationID, readerID)
}

// Edit replaces the text of a message. Only its sender may edit it. The
// conversation preview follows the edit when the message is still the
// conversation's last one.
func (s *MessageService) Edit(ctx context.Context, messageID, text, editorID string) (*model.Message, error) {
	if messageID == "" {
		return nil, apperr.InvalidArg("messageId is required")
	}

	message, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != editorID {
		return nil, apperr.ErrNotMessageAuthor
	}
	if err := validateContent(text, message.Attachments); err != nil {
		return nil, err
	}

	at := s.now()
	if s.editWindow > 0 && at.Sub(message.CreatedAt) > s.editWindow {
		return nil, apperr.ErrEditWindowExpired
	}

	if err := s.repo.UpdateText(ctx, message.ID, text, at); err != nil {
		return nil, err
	}
	message.Text = text
	message.Edited = true
	message.EditedAt = &at

	if _, err := s.conversations.RefreshPreview(ctx, message.ConversationID, message.ID, previewText(text, message.Attachments)); err != nil {
		s.log.Error("preview refresh failed", "conversation", message.ConversationID, "message", message.ID, "error", err)
	}
	return message, nil
}
