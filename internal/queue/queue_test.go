package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeChannel struct {
	closed    bool
	err       error
	published []amqp.Publishing
	keys      []string
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, exchange+"/"+key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) IsClosed() bool { return f.closed }
func (f *fakeChannel) Close() error   { f.closed = true; return nil }

type fakeConn struct {
	closes int
}

func (f *fakeConn) Close() error {
	f.closes++
	if f.closes > 1 {
		return amqp.ErrClosed
	}
	return nil
}

func newTestPublisher(chans ...*fakeChannel) (*Publisher, *int) {
	dials := 0
	p := &Publisher{exchange: "reservations", log: zap.NewNop()}
	p.dial = func() (connection, channel, error) {
		if dials >= len(chans) {
			return nil, nil, errors.New("broker down")
		}
		ch := chans[dials]
		dials++
		return nil, ch, nil
	}
	return p, &dials
}

func sampleEvent(t EventType) ReservationEvent {
	ev := NewReservationEvent(t, 42, 7, 3, []uint64{11, 12}, time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("x", 3600)))
	ev.TotalPriceCents = 2400
	return ev
}

func TestNewReservationEvent(t *testing.T) {
	ev := sampleEvent(EventHeld)
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, time.UTC, ev.OccurredAt.Location())
	assert.Equal(t, "reservation.held", ev.Type.RoutingKey())
	assert.NotEqual(t, ev.EventID, sampleEvent(EventHeld).EventID)
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p, dials := newTestPublisher(ch)

	ev := sampleEvent(EventConfirmed)
	require.NoError(t, p.Publish(context.Background(), ev))
	assert.Equal(t, 1, *dials)
	require.Len(t, ch.published, 1)
	assert.Equal(t, []string{"reservations/reservation.confirmed"}, ch.keys)

	msg := ch.published[0]
	assert.Equal(t, ev.EventID, msg.MessageId)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)

	var got ReservationEvent
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, ev.ReservationID, got.ReservationID)
	assert.Equal(t, []uint64{11, 12}, got.SeatIDs)
}

func TestPublisher_ReopensClosedChannel(t *testing.T) {
	first, second := &fakeChannel{}, &fakeChannel{}
	p, dials := newTestPublisher(first, second)

	require.NoError(t, p.Publish(context.Background(), sampleEvent(EventHeld)))
	first.closed = true
	require.NoError(t, p.Publish(context.Background(), sampleEvent(EventCancelled)))

	assert.Equal(t, 2, *dials)
	assert.Len(t, second.published, 1)

	second.closed = true
	assert.ErrorContains(t, p.Publish(context.Background(), sampleEvent(EventExpired)), "broker down")
}

func TestPublisher_ReopenClosesStaleConnection(t *testing.T) {
	var conns []*fakeConn
	p := &Publisher{exchange: "reservations", log: zap.NewNop()}
	p.dial = func() (connection, channel, error) {
		c := &fakeConn{}
		conns = append(conns, c)
		return c, &fakeChannel{}, nil
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Publish(context.Background(), sampleEvent(EventHeld)))
		p.ch.(*fakeChannel).closed = true
	}
	require.Len(t, conns, 3)
	assert.Equal(t, 1, conns[0].closes)
	assert.Equal(t, 1, conns[1].closes)
	assert.Zero(t, conns[2].closes, "current connection stays open")

	require.NoError(t, p.Close())
	assert.Equal(t, 1, conns[2].closes)
}

func TestPublisher_PublishError(t *testing.T) {
	p, _ := newTestPublisher(&fakeChannel{err: amqp.ErrClosed})
	err := p.Publish(context.Background(), sampleEvent(EventHeld))
	assert.ErrorIs(t, err, amqp.ErrClosed)
	assert.NoError(t, p.Close())
}

func TestAuditConsumer_HandleMessage(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c := NewAuditConsumer("", "reservations", "reservations.audit", zap.New(core))

	ev := sampleEvent(EventCancelled)
	ev.RefundDueCents = 2400
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, c.HandleMessage("reservation.cancelled", body))
	entries := logs.FilterMessage("reservation cancelled").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, ev.EventID, fields["event_id"])
	assert.Equal(t, uint64(42), fields["reservation_id"])
	assert.Equal(t, int64(2400), fields["refund_due_cents"])

	assert.Error(t, c.HandleMessage("reservation.cancelled", []byte("{not json")))
	assert.Error(t, c.HandleMessage("reservation.held", body), "routing key mismatch")
	assert.Error(t, c.HandleMessage("", []byte(`{"type":"held"}`)), "missing ids")
	assert.Equal(t, 1, logs.Len())
}
