package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AuditBinding matches every reservation lifecycle routing key.
const AuditBinding = "reservation.#"

// AuditConsumer binds a durable queue to the reservations exchange and
// writes one structured log entry per lifecycle event.
type AuditConsumer struct {
	url      string
	exchange string
	queue    string
	log      *zap.Logger
}

func NewAuditConsumer(url, exchange, queue string, log *zap.Logger) *AuditConsumer {
	return &AuditConsumer{url: url, exchange: exchange, queue: queue, log: log}
}

// Run consumes until ctx is cancelled.  Broker failures are retried with
// an exponential backoff capped at 30s.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("audit consumer: dial broker failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("audit consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("audit consumer: set QoS failed", zap.Error(err))
	}
	if err := DeclareExchange(ch, c.exchange); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(c.queue, AuditBinding, c.exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("audit consumer started", zap.String("queue", c.queue), zap.String("exchange", c.exchange))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.HandleMessage(d.RoutingKey, d.Body); err != nil {
				c.log.Error("audit consumer: handle message failed",
					zap.String("message_id", d.MessageId), zap.Error(err))
				// reject without requeue to avoid tight redelivery loops
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one event and writes the audit entry.
func (c *AuditConsumer) HandleMessage(routingKey string, body []byte) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.EventID == "" || ev.ReservationID == 0 {
		return errors.New("event is missing event_id or reservation_id")
	}
	if want := ev.Type.RoutingKey(); routingKey != "" && routingKey != want {
		return fmt.Errorf("routing key %q does not match event type %q", routingKey, ev.Type)
	}

	fields := []zap.Field{
		zap.String("event_id", ev.EventID),
		zap.String("type", string(ev.Type)),
		zap.Uint64("reservation_id", ev.ReservationID),
		zap.Uint64("user_id", ev.UserID),
		zap.Uint64("showtime_id", ev.ShowtimeID),
		zap.Uint64s("seat_ids", ev.SeatIDs),
		zap.Int64("total_price_cents", ev.TotalPriceCents),
		zap.Time("occurred_at", ev.OccurredAt),
	}
	if ev.RefundDueCents > 0 {
		fields = append(fields, zap.Int64("refund_due_cents", ev.RefundDueCents))
	}
	c.log.Info("reservation "+string(ev.Type), fields...)
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
