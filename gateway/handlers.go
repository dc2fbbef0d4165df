package gateway

import (
	"context"
	"encoding/json"

	"chat-service/apperr"
	"chat-service/event"
	"chat-service/model"
	"chat-service/profile"
	"chat-service/service"
	"chat-service/utils"
)

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return apperr.ErrMalformedPayload
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperr.ErrMalformedPayload
	}
	return utils.ValidateStruct(v)
}

// joinConversation subscribes the connection to the conversation room,
// zeroes the caller's unread counter and marks what the other participant
// sent as read.
func (g *Gateway) joinConversation(ctx context.Context, s *Session, raw json.RawMessage) (result, error) {
	p := conversationPayload{}
	if err := decode(raw, &p); err != nil {
		return result{}, err
	}

	userID := s.UserID()
	conversation, err := g.Conversations.Authorize(ctx, p.ConversationID, userID)
	if err != nil {
		return result{}, err
	}
	s.join(conversation.ID)

	if err := g.Conversations.ResetUnread(ctx, conversation.ID, userID); err != nil {
		return result{}, err
	}

	unread, err := g.Messages.UnreadFor(ctx, conversation.ID, userID)
	if err != nil {
		return result{}, err
	}

	joined := Joined{ConversationID: conversation.ID}
	if len(unread) > 0 {
		ids := make([]string, 0, len(unread))
		for _, m := range unread {
			ids = append(ids, m.ID)
		}
		if joined.MarkedRead, err = g.Messages.MarkRead(ctx, conversation.ID, ids, userID); err != nil {
			return result{}, err
		}
		g.readUpdate(s.ID(), conversation, userID, ids)
	}

	return result{Event: EventConversationJoined, Payload: joined}, nil
}

func (g *Gateway) leaveConversation(ctx context.Context, s *Session, raw json.RawMessage) (result, error) {
	p := conversationPayload{}
	if err := decode(raw, &p); err != nil {
		return result{}, err
	}
	s.leave(p.ConversationID)
	return result{Payload: Left{ConversationID: p.ConversationID}}, nil
}

// sendMessage stores the message and broadcasts it. A rate limited send is
// dropped before anything is stored.
func (g *Gateway) sendMessage(ctx context.Context, s *Session, raw json.RawMessage) (result, error) {
	p := sendPayload{}
	if err := decode(raw, &p); err != nil {
		return result{}, err
	}

	userID := s.UserID()
	decision, err := g.Limiter.Allow(ctx, userID)
	if err != nil {
		return result{}, err
	}
	if !decision.Allowed {
		return result{}, apperr.ErrRateLimited
	}

	message, conversation, err := g.Messages.Send(ctx, service.SendInput{
		ConversationID: p.ConversationID,
		SenderID:       userID,
		Text:           p.Text,
		Attachments:    p.Attachments,
	})
	if err != nil {
		return result{}, err
	}

	out := OutgoingMessage{Message: *message, LocalID: p.LocalID}
	g.Hub.EmitTo([]string{
		ConversationRoom(conversation.ID),
		UserRoom(conversation.UserA),
		UserRoom(conversation.UserB),
	}, "", EventMessageNew, out)

	g.publish(message, conversation)
	return result{Payload: out}, nil
}

func (g *Gateway) publish(message *model.Message, conversation *model.Conversation) {
	if g.Publisher == nil {
		return
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), g.Timeout)
		defer cancel()

		sender := profile.Placeholder(message.SenderID)
		if g.Profiles != nil {
			if p, err := g.Profiles.Profile(ctx, message.SenderID); err != nil {
				g.Log.Warn("sender profile lookup failed", "user", message.SenderID, "error", err)
			} else {
				sender = p
			}
		}

		g.Publisher.MessageCreated(event.MessageCreated{
			ConversationID: conversation.ID,
			MessageID:      message.ID,
			SenderID:       message.SenderID,
			SenderName:     sender.DisplayName,
			ParticipantIDs: conversation.Participants(),
			Text:           message.Text,
			MutedBy:        conversation.MutedBy,
		})
	}()
}

func (g *Gateway) markRead(ctx context.Context, s *Session, raw json.RawMessage) (result, error) {
	p := readPayload{}
	if err := decode(raw, &p); err != nil {
		return result{}, err
	}

	userID := s.UserID()
	conversation, err := g.Conversations.Authorize(ctx, p.ConversationID, userID)
	if err != nil {
		return result{}, err
	}

	marked, err := g.Messages.MarkRead(ctx, conversation.ID, p.MessageIDs, userID)
	if err != nil {
		return result{}, err
	}
	g.readUpdate(s.ID(), conversation, userID, p.MessageIDs)

	return result{Payload: ReadResult{ConversationID: conversation.ID, MarkedRead: marked}}, nil
}

// readUpdate tells the conversation room, and the other participant wherever
// they are connected, which messages userID has read. The except connection
// is skipped.
func (g *Gateway) readUpdate(except string, conversation *model.Conversation, userID string, ids []string) {
	g.Hub.EmitTo([]string{
		ConversationRoom(conversation.ID),
		UserRoom(conversation.OtherParticipant(userID)),
	}, except, EventMessageReadUpdate, ReadUpdate{
		ConversationID: conversation.ID,
		UserID:         userID,
		MessageIDs:     ids,
	})
}

// ReadBy broadcasts a read update for reads made outside a connection, such
// as through the REST API.
func (g *Gateway) ReadBy(conversation *model.Conversation, userID string, ids []string) {
	g.readUpdate("", conversation, userID, ids)
}

// Edited broadcasts an edited message to its conversation room.
func (g *Gateway) Edited(message *model.Message) {
	g.Hub.EmitTo([]string{ConversationRoom(message.ConversationID)}, "", EventMessageUpdated, message)
}

func (g *Gateway) editMessage(ctx context.Context, s *Session, raw json.RawMessage) (result, error) {
	p := editPayload{}
	if err := decode(raw, &p); err != nil {
		return result{}, err
	}

	message, err := g.Messages.Edit(ctx, p.MessageID, p.Text, s.UserID())
	if err != nil {
		return result{}, err
	}

	g.Edited(message)
	return result{Payload: message}, nil
}

// typing is forwarded to the room only. The connection must have joined the
// conversation first.
func (g *Gateway) typing(ctx context.Context, s *Session, raw json.RawMessage) (result, error) {
	p := typingPayload{}
	if err := decode(raw, &p); err != nil {
		return result{}, err
	}
	if !s.joined(p.ConversationID) {
		return result{}, apperr.FailedPrecondition("join the conversation first")
	}

	g.Hub.EmitTo([]string{ConversationRoom(p.ConversationID)}, s.ID(), EventTyping, Typing{
		ConversationID: p.ConversationID,
		UserID:         s.UserID(),
		IsTyping:       p.IsTyping,
	})
	return result{}, nil
}

func (g *Gateway) presenceSubscribe(ctx context.Context, s *Session, raw json.RawMessage) (result, error) {
	p := presencePayload{}
	if err := decode(raw, &p); err != nil {
		return result{}, err
	}

	online, err := g.Presence.IsOnline(ctx, p.UserID)
	if err != nil {
		return result{}, err
	}
	return result{Event: EventPresenceUpdate, Payload: PresenceUpdate{UserID: p.UserID, Online: online}}, nil
}
