package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const (
	TemplateOrderPlaced = "order_placed"
	TemplateOrderReady  = "order_ready"
)

// Notifier hands a customer message to the delivery channel (WhatsApp, SMS).
type Notifier interface {
	Notify(ctx context.Context, recipient, template string, params map[string]string) error
}

type Message struct {
	Recipient string            `json:"recipient"`
	Template  string            `json:"template"`
	Params    map[string]string `json:"params"`
	CreatedAt time.Time         `json:"created_at"`
}

// Confirmation is the broker's answer to one publish; *amqp.DeferredConfirmation satisfies it.
type Confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

type publishFunc func(ctx context.Context, exchange, key string, msg amqp.Publishing) (Confirmation, error)

// AMQPNotifier publishes messages to a topic exchange, routed by template name,
// and waits for the broker confirm of that very publish.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	publish  publishFunc
}

func DialAMQP(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("notify: failed to dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("notify: failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("notify: failed to declare exchange %s: %w", exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("notify: failed to enable publisher confirms: %w", err)
	}

	log.Info().Str("exchange", exchange).Msg("Connected to RabbitMQ")
	n := &AMQPNotifier{conn: conn, ch: ch, exchange: exchange}
	n.publish = func(ctx context.Context, exchange, key string, msg amqp.Publishing) (Confirmation, error) {
		dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
		if err != nil {
			return nil, err
		}
		return dc, nil
	}
	return n, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, recipient, template string, params map[string]string) error {
	body, err := json.Marshal(Message{
		Recipient: recipient,
		Template:  template,
		Params:    params,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("notify: failed to encode message: %w", err)
	}

	confirm, err := n.publish(ctx, n.exchange, template, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("notify: failed to publish %s: %w", template, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("notify: no confirm for %s: %w", template, err)
	}
	if !acked {
		return errors.New("notify: publish NACK from broker")
	}
	return nil
}

func (n *AMQPNotifier) Close() {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		_ = n.conn.Close()
	}
}

// LogNotifier only logs; used when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, recipient, template string, params map[string]string) error {
	log.Info().Str("recipient", recipient).Str("template", template).Interface("params", params).Msg("notify: message not delivered, no broker configured")
	return nil
}

// BestEffort sends a notification and only logs a failure; the caller's flow never fails because of it.
func BestEffort(ctx context.Context, n Notifier, recipient, template string, params map[string]string) {
	if n == nil || recipient == "" {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := n.Notify(sendCtx, recipient, template, params); err != nil {
		log.Warn().Err(err).Str("recipient", recipient).Str("template", template).Msg("notify: failed to send notification")
	}
}
