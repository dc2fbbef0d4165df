package model

import "time"

type Message struct {
	ID             string     `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID string     `gorm:"type:uuid;not null;index:idx_message_page,priority:1" json:"conversationId"`
	SenderID       string     `gorm:"not null" json:"senderId"`
	Text           string     `gorm:"type:text;not null" json:"text"`
	Attachments    []string   `gorm:"serializer:json" json:"attachments"`
	IsRead         bool       `gorm:"not null;default:false" json:"isRead"`
	Edited         bool       `gorm:"not null;default:false" json:"edited"`
	EditedAt       *time.Time `json:"editedAt,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;index:idx_message_page,priority:2" json:"createdAt"`
}
