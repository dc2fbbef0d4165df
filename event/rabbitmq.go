// Package event connects the chat service to RabbitMQ: outgoing message
// notifications and incoming conversation intents.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"chat-service/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ActionHeader = "x-action"

	QueueMessageCreated    = "chat.message.created"
	QueueConversationStart = "chat.conversation.start"

	ActionMessageCreated    = "message.created"
	ActionConversationStart = "conversation.start"

	ModeDisable = "DISABLE"
	ModeOut     = "OUT"
)

// Channel is the part of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Consumer is the part of *amqp.Channel used for subscribing.
type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Delivery is an acknowledged message handed to a listener.
type Delivery struct {
	Action string
	Data   []byte
}

func RabbitMQConnect(cfg *config.Settings, log *slog.Logger, queues []string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		cfg.RabbitMQUser,
		cfg.RabbitMQPassword,
		cfg.RabbitMQHost,
		cfg.RabbitMQPort,
	))
	if err != nil {
		return nil, nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	log.Info("connection opened to RabbitMQ server")

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	for _, name := range queues {
		if _, err := ch.QueueDeclare(
			name,  // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			ch.Close()
			conn.Close()
			return nil, nil, fmt.Errorf("declare queue %s: %w", name, err)
		}
		log.Info("declared RabbitMQ queue", "queue", name)
	}
	return conn, ch, nil
}

// Subscribe consumes queue, acks every message and forwards it on the
// returned channel. The channel closes when the broker stops delivering or
// ctx is done.
func Subscribe(ctx context.Context, c Consumer, queue string, log *slog.Logger) (<-chan Delivery, error) {
	msgs, err := c.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	log.Info("subscribed to RabbitMQ queue", "queue", queue)

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			var msg amqp.Delivery
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				msg = m
			}

			action, _ := msg.Headers[ActionHeader].(string)
			if err := msg.Ack(false); err != nil {
				log.Warn("ack failed", "queue", queue, "error", err)
			}
			select {
			case out <- Delivery{Action: action, Data: msg.Body}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
