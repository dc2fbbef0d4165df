package service

import (
	"context"
	"log/slog"
	"time"

	"chat-service/apperr"
	"chat-service/model"
	"chat-service/profile"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type ConversationService struct {
	repo          ConversationRepository
	profiles      ProfileProvider
	online        OnlineChecker
	log           *slog.Logger
	previewLength int
	now           func() time.Time
}

func NewConversationService(repo ConversationRepository, profiles ProfileProvider, online OnlineChecker, log *slog.Logger, previewLength int) *ConversationService {
	return &ConversationService{
		repo:          repo,
		profiles:      profiles,
		online:        online,
		log:           log,
		previewLength: previewLength,
		now:           now,
	}
}

// FindOrCreate returns the conversation between the two users, creating it
// when none exists yet. Lookup and insert are separate statements, so two
// concurrent first contacts can both insert.
func (s *ConversationService) FindOrCreate(ctx context.Context, userA, userB string, propertyID *string) (*model.Conversation, bool, error) {
	if userA == "" || userB == "" {
		return nil, false, apperr.InvalidArg("both participants are required")
	}
	if userA == userB {
		return nil, false, apperr.ErrSelfConversation
	}
	if propertyID != nil && *propertyID == "" {
		propertyID = nil
	}

	existing, err := s.repo.FindByPair(ctx, userA, userB, propertyID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperr.ErrConversationNotFound) {
		return nil, false, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, false, apperr.Internal("could not allocate id", err)
	}
	at := s.now()
	conversation := &model.Conversation{
		ID:         id.String(),
		UserA:      userA,
		UserB:      userB,
		PropertyID: propertyID,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	if err := s.repo.Insert(ctx, conversation); err != nil {
		return nil, false, err
	}

	s.log.Info("conversation created", "conversation", conversation.ID, "user", userA)
	return conversation, true, nil
}

// Authorize loads the conversation and checks userID takes part in it.
func (s *ConversationService) Authorize(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	if conversationID == "" {
		return nil, apperr.InvalidArg("conversationId is required")
	}
	conversation, err := s.repo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, apperr.ErrNotParticipant
	}
	return conversation, nil
}

func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	_, err := s.Authorize(ctx, conversationID, userID)
	if errors.Is(err, apperr.ErrNotParticipant) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Preview cuts text down to the configured number of runes.
func (s *ConversationService) Preview(text string) string {
	runes := []rune(text)
	if s.previewLength <= 0 || len(runes) <= s.previewLength {
		return text
	}
	return string(runes[:s.previewLength])
}

func (s *ConversationService) UpdateLastMessagePreview(ctx context.Context, conversationID, messageID, text string, at time.Time) error {
	return s.repo.UpdatePreview(ctx, conversationID, messageID, s.Preview(text), at)
}

// RefreshPreview rewrites the preview only if messageID is still the last
// message of the conversation.
func (s *ConversationService) RefreshPreview(ctx context.Context, conversationID, messageID, text string) (bool, error) {
	return s.repo.RefreshPreview(ctx, conversationID, messageID, s.Preview(text))
}

func (s *ConversationService) IncrementUnread(ctx context.Context, conversationID, senderID string) error {
	return s.repo.IncrementUnread(ctx, conversationID, senderID)
}

func (s *ConversationService) ResetUnread(ctx context.Context, conversationID, userID string) error {
	return s.repo.ResetUnread(ctx, conversationID, userID)
}

func (s *ConversationService) Mute(ctx context.Context, conversationID, userID string) error {
	return s.setFlag(ctx, conversationID, userID, model.FlagMuted, true)
}

func (s *ConversationService) Unmute(ctx context.Context, conversationID, userID string) error {
	return s.setFlag(ctx, conversationID, userID, model.FlagMuted, false)
}

func (s *ConversationService) Block(ctx context.Context, conversationID, userID string) error {
	return s.setFlag(ctx, conversationID, userID, model.FlagBlocked, true)
}

func (s *ConversationService) Unblock(ctx context.Context, conversationID, userID string) error {
	return s.setFlag(ctx, conversationID, userID, model.FlagBlocked, false)
}

// SoftDelete hides the conversation from userID's listing. The other
// participant keeps seeing it.
func (s *ConversationService) SoftDelete(ctx context.Context, conversationID, userID string) error {
	return s.setFlag(ctx, conversationID, userID, model.FlagDeleted, true)
}

func (s *ConversationService) setFlag(ctx context.Context, conversationID, userID string, kind model.FlagKind, on bool) error {
	if _, err := s.Authorize(ctx, conversationID, userID); err != nil {
		return err
	}
	if on {
		return s.repo.AddFlag(ctx, conversationID, userID, kind)
	}
	return s.repo.RemoveFlag(ctx, conversationID, userID, kind)
}

// Summary is a conversation as seen by one of its participants.
type Summary struct {
	model.Conversation
	OtherUser profile.Profile `json:"otherUser"`
	Unread    int64           `json:"unread"`
	Online    bool            `json:"online"`
	Muted     bool            `json:"muted"`
	Blocked   bool            `json:"blocked"`
}

// List returns userID's conversations, most recently updated first, with
// the other participant resolved through the profile provider. A provider
// or presence failure degrades that row instead of failing the call.
func (s *ConversationService) List(ctx context.Context, userID string, page, pageSize int) ([]Summary, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	conversations, err := s.repo.ListForUser(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(conversations))
	for _, c := range conversations {
		other := c.OtherParticipant(userID)

		p := profile.Placeholder(other)
		if s.profiles != nil {
			if got, err := s.profiles.Profile(ctx, other); err != nil {
				s.log.Warn("profile lookup failed", "user", other, "error", err)
			} else {
				p = got
			}
		}

		var online bool
		if s.online != nil {
			if online, err = s.online.IsOnline(ctx, other); err != nil {
				s.log.Warn("presence lookup failed", "user", other, "error", err)
				online = false
			}
		}

		summaries = append(summaries, Summary{
			Conversation: c,
			OtherUser:    p,
			Unread:       c.UnreadFor(userID),
			Online:       online,
			Muted:        c.IsMutedBy(userID),
			Blocked:      c.IsBlockedBy(userID),
		})
	}
	return summaries, nil
}
