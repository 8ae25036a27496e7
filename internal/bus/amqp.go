package bus

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"storyteller/internal/domain/story"
)

// AMQPBus implements Bus on a RabbitMQ fanout exchange. Every subscriber gets
// its own durable queue bound to the exchange, so all subscribers see every
// event and redelivery after an unacked crash gives at-least-once semantics.
type AMQPBus struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   zerolog.Logger
}

// NewAMQPBus connects to the broker and declares the fanout exchange.
func NewAMQPBus(url, exchange string, logger zerolog.Logger) (*AMQPBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("bus: dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bus: open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"fanout", // kind
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,      // args
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bus: declare exchange: %w", err)
	}
	return &AMQPBus{conn: conn, ch: ch, exchange: exchange, logger: logger}, nil
}

func (b *AMQPBus) Publish(ctx context.Context, evt story.FanOutEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("bus: encode event: %w", err)
	}
	err = b.ch.PublishWithContext(ctx,
		b.exchange, // exchange
		"",         // routing key (ignored by fanout)
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("bus: publish: %w", err)
	}
	return nil
}

// Subscribe binds a durable queue named <exchange>.<name> and feeds its
// deliveries to h. Messages are acked after the handler returns; malformed
// payloads are acked and dropped so they cannot wedge the queue.
func (b *AMQPBus) Subscribe(name string, h Handler) error {
	queueName := b.exchange + "." + name
	q, err := b.ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("bus: declare queue %s: %w", queueName, err)
	}
	if err := b.ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		return fmt.Errorf("bus: bind queue %s: %w", queueName, err)
	}
	msgs, err := b.ch.Consume(
		q.Name,
		name,  // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("bus: consume %s: %w", queueName, err)
	}

	go func() {
		for d := range msgs {
			var evt story.FanOutEvent
			if err := json.Unmarshal(d.Body, &evt); err != nil {
				b.logger.Warn().Err(err).Str("subscriber", name).Msg("bus: dropping undecodable event")
				_ = d.Ack(false)
				continue
			}
			h(context.Background(), evt)
			if err := d.Ack(false); err != nil {
				b.logger.Error().Err(err).Str("subscriber", name).Msg("bus: ack failed")
			}
		}
	}()
	return nil
}

func (b *AMQPBus) Close() error {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

var _ Bus = (*AMQPBus)(nil)
