package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// MessageCreated is what the notification service receives for every
// stored chat message.
type MessageCreated struct {
	ConversationID string   `json:"conversationId"`
	MessageID      string   `json:"messageId"`
	SenderID       string   `json:"senderId"`
	SenderName     string   `json:"senderName"`
	ParticipantIDs []string `json:"participantIds"`
	Text           string   `json:"text"`
	MutedBy        []string `json:"mutedBy"`
}

type Publisher struct {
	ch     Channel
	outbox *Outbox
	mode   string
	log    *slog.Logger
	wg     sync.WaitGroup
}

// NewPublisher publishes on ch. Events that fail to go out are written to
// outbox unless mode is DISABLE.
func NewPublisher(ch Channel, outbox *Outbox, mode string, log *slog.Logger) *Publisher {
	return &Publisher{ch: ch, outbox: outbox, mode: mode, log: log}
}

func (p *Publisher) Emit(ctx context.Context, service, action string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := p.ch.PublishWithContext(
		ctx,
		"",      // exchange
		service, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    time.Now(),
			Headers: amqp.Table{
				ActionHeader: action,
			},
			Body: data,
		},
	)
	if err != nil {
		return errors.Wrapf(err, "publisher.Emit.%s", service)
	}
	return nil
}

// MessageCreated publishes evt in the background. Failures never reach the
// caller; they are logged and kept in the outbox.
func (p *Publisher) MessageCreated(evt MessageCreated) {
	data, err := json.Marshal(evt)
	if err != nil {
		p.log.Error("marshal event", "message", evt.MessageID, "error", err)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.Emit(context.Background(), QueueMessageCreated, ActionMessageCreated, data); err != nil {
			p.log.Error("publish failed", "event", ActionMessageCreated, "message", evt.MessageID, "error", err)
			p.keep(QueueMessageCreated, ActionMessageCreated, data)
		}
	}()
}

func (p *Publisher) keep(service, action string, data []byte) {
	if p.outbox == nil || p.mode == ModeDisable {
		return
	}
	err := p.outbox.Append(LogData{
		Time:    time.Now().UnixMicro(),
		Service: service,
		Action:  action,
		Data:    string(data),
	})
	if err != nil {
		p.log.Error("outbox append failed", "event", action, "error", err)
	}
}

// Replay republishes everything held in the outbox.
func (p *Publisher) Replay(ctx context.Context) (int, error) {
	if p.outbox == nil {
		return 0, nil
	}
	n, err := p.outbox.Drain(func(data LogData) error {
		return p.Emit(ctx, data.Service, data.Action, []byte(data.Data))
	})
	if n > 0 {
		p.log.Info("outbox replayed", "count", n)
	}
	return n, err
}

// Wait blocks until background publishes have finished.
func (p *Publisher) Wait() {
	p.wg.Wait()
}
