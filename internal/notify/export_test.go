package notify

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

func NewAMQPNotifierWith(exchange string, publish func(ctx context.Context, exchange, key string, msg amqp.Publishing) (Confirmation, error)) *AMQPNotifier {
	return &AMQPNotifier{exchange: exchange, publish: publish}
}
