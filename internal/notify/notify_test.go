package notify

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
	published []amqp.Publishing
	keys      []string
	err       error
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _ string, key string, _ bool, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func appliedEvent() Event {
	return Event{
		Kind:          KindComboApplied,
		OrderID:       "ord-1",
		ComboID:       "combo-coffee-pair",
		ComboName:     "Đôi cà phê",
		OriginalPrice: 120000,
		FinalPrice:    108000,
		Message:       Message(KindComboApplied, "Đôi cà phê"),
		OccurredAt:    time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
	}
}

func TestLogNotifierWritesStructuredEntry(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Notify(context.Background(), appliedEvent()))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, `Promotion "Đôi cà phê" applied`, entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "combo-coffee-pair", fields["combo_id"])
	assert.Equal(t, int64(108000), fields["final_price"])
}

func TestLogNotifierWarnsOnFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	event := Event{Kind: KindComboApplyFailed, ComboID: "x", ComboName: "X", Message: Message(KindComboApplyFailed, "X")}
	require.NoError(t, n.Notify(context.Background(), event))

	require.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestAMQPPublisherPublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	p := newAMQPPublisher(ch, "pos.combo.notifications")

	require.NoError(t, p.Notify(context.Background(), appliedEvent()))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "pos.combo.notifications", ch.keys[0])
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, KindComboApplied, msg.Type)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "combo-coffee-pair", decoded.ComboID)
	assert.Equal(t, int64(120000), decoded.OriginalPrice)
}

func TestAMQPPublisherWrapsErrorsAndCloses(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := newAMQPPublisher(ch, "q")

	err := p.Notify(context.Background(), appliedEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "combo_applied")

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
	assert.ErrorIs(t, p.Notify(context.Background(), appliedEvent()), ErrPublisherClosed)
}

func TestMultiJoinsErrors(t *testing.T) {
	failing := newAMQPPublisher(&fakeChannel{err: errors.New("boom")}, "q")
	m := Multi{Noop{}, nil, failing}

	err := m.Notify(context.Background(), appliedEvent())
	assert.Error(t, err)
	assert.NoError(t, Multi{Noop{}}.Notify(context.Background(), appliedEvent()))
}
