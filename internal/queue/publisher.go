package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// connection is the subset of *amqp.Connection the publisher uses.
type connection interface {
	Close() error
}

// dialFunc opens a connection and a channel with the exchange declared.
type dialFunc func() (connection, channel, error)

// Publisher sends ReservationEvents to a durable topic exchange.  One
// channel is shared and guarded by a mutex; a closed channel is reopened
// on the next Publish.
type Publisher struct {
	exchange string
	log      *zap.Logger
	dial     dialFunc

	mu   sync.Mutex
	conn connection
	ch   channel
}

// NewPublisher dials url and declares exchange as a durable topic exchange.
func NewPublisher(url, exchange string, log *zap.Logger) (*Publisher, error) {
	p := &Publisher{exchange: exchange, log: log}
	p.dial = func() (connection, channel, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, fmt.Errorf("dial broker: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("open channel: %w", err)
		}
		if err := DeclareExchange(ch, exchange); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return conn, ch, nil
	}
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

// DeclareExchange declares the durable topic exchange events are sent to.
func DeclareExchange(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare %s: %w", exchange, err)
	}
	return nil
}

// connectLocked drops the current connection, if any, and dials a new one.
func (p *Publisher) connectLocked() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			p.log.Warn("close stale broker connection", zap.Error(err))
		}
	}
	p.conn, p.ch = nil, nil

	conn, ch, err := p.dial()
	if err != nil {
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

// Publish sends ev as a persistent JSON message routed by its type.  The
// event id doubles as the message id so consumers can drop duplicates.
func (p *Publisher) Publish(ctx context.Context, ev ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         string(ev.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		if err := p.connectLocked(); err != nil {
			return err
		}
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, ev.Type.RoutingKey(), false, false, msg); err != nil {
		p.log.Warn("publish reservation event failed",
			zap.String("event_id", ev.EventID), zap.String("routing_key", ev.Type.RoutingKey()), zap.Error(err))
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close releases the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	p.ch, p.conn = nil, nil
	return errors.Join(errs...)
}
