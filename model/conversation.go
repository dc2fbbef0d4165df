package model

import (
	"slices"
	"time"
)

type FlagKind string

const (
	FlagMuted   FlagKind = "muted"
	FlagBlocked FlagKind = "blocked"
	FlagDeleted FlagKind = "deleted"
)

// Conversation is a 1:1 thread between UserA and UserB, optionally about a
// property listing. Unread counters are kept per participant.
type Conversation struct {
	ID                 string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserA              string     `gorm:"not null;index:idx_conversation_pair,priority:1" json:"userA"`
	UserB              string     `gorm:"not null;index:idx_conversation_pair,priority:2" json:"userB"`
	PropertyID         *string    `gorm:"index" json:"propertyId,omitempty"`
	LastMessageID      *string    `json:"lastMessageId,omitempty"`
	LastMessagePreview string     `gorm:"not null;default:''" json:"lastMessagePreview"`
	LastMessageAt      *time.Time `json:"lastMessageAt"`
	UnreadForA         int64      `gorm:"not null;default:0" json:"unreadForA"`
	UnreadForB         int64      `gorm:"not null;default:0" json:"unreadForB"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `gorm:"index" json:"updatedAt"`

	Flags []ConversationFlag `gorm:"foreignKey:ConversationID" json:"-"`

	MutedBy   []string `gorm:"-" json:"mutedBy"`
	BlockedBy []string `gorm:"-" json:"blockedBy"`
	DeletedBy []string `gorm:"-" json:"deletedBy"`
}

// ConversationFlag stores one per-user flag. The composite key makes adding
// the same flag twice a no-op.
type ConversationFlag struct {
	ConversationID string   `gorm:"type:uuid;primaryKey"`
	UserID         string   `gorm:"primaryKey"`
	Kind           FlagKind `gorm:"primaryKey"`
	CreatedAt      time.Time
}

// SplitFlags fills MutedBy, BlockedBy and DeletedBy from the loaded Flags.
func (c *Conversation) SplitFlags() {
	c.MutedBy, c.BlockedBy, c.DeletedBy = []string{}, []string{}, []string{}
	for _, f := range c.Flags {
		switch f.Kind {
		case FlagMuted:
			c.MutedBy = append(c.MutedBy, f.UserID)
		case FlagBlocked:
			c.BlockedBy = append(c.BlockedBy, f.UserID)
		case FlagDeleted:
			c.DeletedBy = append(c.DeletedBy, f.UserID)
		}
	}
}

func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.UserA == userID || c.UserB == userID)
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}

func (c *Conversation) Participants() []string {
	return []string{c.UserA, c.UserB}
}

func (c *Conversation) UnreadFor(userID string) int64 {
	switch userID {
	case c.UserA:
		return c.UnreadForA
	case c.UserB:
		return c.UnreadForB
	}
	return 0
}

func (c *Conversation) IsMutedBy(userID string) bool {
	return slices.Contains(c.MutedBy, userID)
}

func (c *Conversation) IsBlockedBy(userID string) bool {
	return slices.Contains(c.BlockedBy, userID)
}

func (c *Conversation) IsDeletedBy(userID string) bool {
	return slices.Contains(c.DeletedBy, userID)
}
