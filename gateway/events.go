package gateway

import (
	"chat-service/apperr"
	"chat-service/model"
)

// Client to server events.
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventMessageSend       = "message_send"
	EventMessageRead       = "message_read"
	EventMessageEdit       = "message_edit"
	EventTyping            = "typing"
	EventPresenceSubscribe = "presence_subscribe"
)

// Server to client events.
const (
	EventMessageNew         = "message_new"
	EventMessageReadUpdate  = "message_read_update"
	EventMessageUpdated     = "message_updated"
	EventConversationJoined = "conversation_joined"
	EventPresenceUpdate     = "presence_update"
	EventError              = "error"
)

func ConversationRoom(conversationID string) string {
	return "conversation:" + conversationID
}

func UserRoom(userID string) string {
	return "user:" + userID
}

type conversationPayload struct {
	ConversationID string `json:"conversationId" validate:"required,max=64"`
}

type sendPayload struct {
	ConversationID string   `json:"conversationId" validate:"required,max=64"`
	Text           string   `json:"text"`
	Attachments    []string `json:"attachments" validate:"max=10,dive,required,max=512"`
	LocalID        string   `json:"localId,omitempty" validate:"max=128"`
}

type readPayload struct {
	ConversationID string   `json:"conversationId" validate:"required,max=64"`
	MessageIDs     []string `json:"messageIds" validate:"required,min=1,max=500,dive,required"`
}

type editPayload struct {
	MessageID string `json:"messageId" validate:"required,max=64"`
	Text      string `json:"text" validate:"required"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId" validate:"required,max=64"`
	IsTyping       bool   `json:"isTyping"`
}

type presencePayload struct {
	UserID string `json:"userId" validate:"required,max=64"`
}

// OutgoingMessage is a stored message as broadcast in message_new. LocalID
// is the client's own reference, echoed untouched.
type OutgoingMessage struct {
	model.Message
	LocalID string `json:"localId,omitempty"`
}

type ReadUpdate struct {
	ConversationID string   `json:"conversationId"`
	UserID         string   `json:"userId"`
	MessageIDs     []string `json:"messageIds"`
}

type Typing struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

type PresenceUpdate struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

type Joined struct {
	ConversationID string `json:"conversationId"`
	MarkedRead     int64  `json:"markedRead"`
}

type ReadResult struct {
	ConversationID string `json:"conversationId"`
	MarkedRead     int64  `json:"markedRead"`
}

type Left struct {
	ConversationID string `json:"conversationId"`
}

type ErrorPayload struct {
	Message string      `json:"message"`
	Code    apperr.Code `json:"code"`
	Event   string      `json:"event,omitempty"`
}

// Reply is what an acknowledgement callback receives.
type Reply struct {
	OK    bool          `json:"ok"`
	Data  any           `json:"data,omitempty"`
	Error *ErrorPayload `json:"error,omitempty"`
}

// Ack answers a client event that asked for an acknowledgement.
type Ack func(reply Reply)
