// Package rabbitmq публикует события сессии и платежей в обменник
// уведомлений платформы: завершение платежа и истечение подписки
// подхватывает внешний конвейер доставки уведомлений.
package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Connect подключается к RabbitMQ с ретраями.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	for range retries {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// Publisher публикует события в именованный обменник.
type Publisher struct {
	ch       *amqp.Channel
	exchange string
}

// NewPublisher открывает канал и объявляет durable direct-обменник.
func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	const op = "rabbitmq.NewPublisher"
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Publisher{ch: ch, exchange: exchange}, nil
}

// Publish сериализует сообщение в JSON и публикует его с заданным ключом.
func (p *Publisher) Publish(routingkey string, message any) error {
	const op = "rabbitmq.Publish"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = p.ch.Publish(
		p.exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
