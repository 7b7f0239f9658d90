package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"tg-wordcount-bot/internal/domain"
	"tg-wordcount-bot/internal/infra/metrics"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitEventPublisher публикует события наблюдения в topic exchange RabbitMQ.
// Ключом маршрутизации служит тип события.
type RabbitEventPublisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	ch       amqpChannel
	exchange string
}

// NewRabbitEventPublisher подключается к RabbitMQ и объявляет exchange.
func NewRabbitEventPublisher(amqpURL, exchange string) (*RabbitEventPublisher, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if exchange == "" {
		return nil, errors.New("exchange name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &RabbitEventPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish отправляет событие.
func (p *RabbitEventPublisher) Publish(ctx context.Context, event domain.WatchEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Body:         body,
	}
	start := time.Now()
	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, msg)
	p.mu.Unlock()
	metrics.ObserveNetworkRequest("rabbitmq", "publish", start, err)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *RabbitEventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		if p.conn != nil {
			p.conn.Close()
		}
		return err
	}
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

var _ domain.EventPublisher = (*RabbitEventPublisher)(nil)
