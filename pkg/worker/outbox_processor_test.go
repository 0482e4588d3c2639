package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/memory"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/messaging"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

type fakeBroker struct {
	mu       sync.Mutex
	fail     error
	messages map[string][]messaging.Message
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{messages: make(map[string][]messaging.Message)}
}

func (b *fakeBroker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	var msg messaging.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	b.messages[topic] = append(b.messages[topic], msg)
	return nil
}

func (b *fakeBroker) Close() error { return nil }

func (b *fakeBroker) setFail(err error) {
	b.mu.Lock()
	b.fail = err
	b.mu.Unlock()
}

func newProcessor(t *testing.T, store *memory.Store, broker messaging.Broker) (*OutboxProcessor, *metrics.Metrics) {
	t.Helper()
	m := metrics.Nop()
	p, err := NewOutboxProcessor(store.Outbox, broker, OutboxProcessorConfig{
		BatchSize:     10,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
		Retention:     time.Hour,
	}, logger.Nop(), m)
	require.NoError(t, err)
	return p, m
}

func queue(t *testing.T, store *memory.Store, eventType string, payload string) {
	t.Helper()
	require.NoError(t, store.Outbox.Create(context.Background(), &model.OutboxEvent{
		EventType: eventType,
		Payload:   json.RawMessage(payload),
	}))
}

func TestNewOutboxProcessor_ValidatesConfig(t *testing.T) {
	store := memory.NewStore()
	_, err := NewOutboxProcessor(store.Outbox, newFakeBroker(), OutboxProcessorConfig{}, logger.Nop(), metrics.Nop())
	assert.Error(t, err)
}

func TestProcessOnce_Publishes(t *testing.T) {
	store := memory.NewStore()
	broker := newFakeBroker()
	p, m := newProcessor(t, store, broker)
	ctx := context.Background()

	queue(t, store, model.EventAppointmentBooked, `{"date":"2026-10-24","time":"10:00"}`)
	queue(t, store, model.EventReminderWhatsApp, `{"to":"+525512345678"}`)

	n, err := p.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, broker.messages[model.EventAppointmentBooked], 1)
	msg := broker.messages[model.EventAppointmentBooked][0]
	assert.Equal(t, model.EventAppointmentBooked, msg.Type)
	assert.JSONEq(t, `{"date":"2026-10-24","time":"10:00"}`, string(msg.Payload))
	assert.Len(t, broker.messages[model.EventReminderWhatsApp], 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxEventsProcessed))

	n, err = p.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "processed events are not relayed twice")
}

func TestProcessOnce_RetriesThenFails(t *testing.T) {
	store := memory.NewStore()
	broker := newFakeBroker()
	broker.setFail(errors.New("redis down"))
	p, m := newProcessor(t, store, broker)
	ctx := context.Background()

	queue(t, store, model.EventAppointmentDeleted, `{}`)

	for attempt := 1; attempt <= 3; attempt++ {
		time.Sleep(5 * time.Millisecond)
		n, err := p.ProcessOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxRetries.WithLabelValues(model.EventAppointmentDeleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsFailed))

	broker.setFail(nil)
	time.Sleep(5 * time.Millisecond)
	events, err := store.Outbox.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events, "failed events leave the queue")
}

func TestProcessOnce_RetryRecovers(t *testing.T) {
	store := memory.NewStore()
	broker := newFakeBroker()
	broker.setFail(errors.New("timeout"))
	p, _ := newProcessor(t, store, broker)
	ctx := context.Background()

	queue(t, store, model.EventAppointmentUpdated, `{}`)
	_, err := p.ProcessOnce(ctx)
	require.NoError(t, err)

	broker.setFail(nil)
	time.Sleep(5 * time.Millisecond)
	n, err := p.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProcessOnce_StoreFailure(t *testing.T) {
	store := memory.NewStore()
	p, _ := newProcessor(t, store, newFakeBroker())
	store.SetFailure(errors.New("db down"))

	_, err := p.ProcessOnce(context.Background())
	assert.Error(t, err)
}

func TestCleanup(t *testing.T) {
	store := memory.NewStore()
	p, _ := newProcessor(t, store, newFakeBroker())
	ctx := context.Background()

	queue(t, store, model.EventAppointmentBooked, `{}`)
	_, err := p.ProcessOnce(ctx)
	require.NoError(t, err)

	n, err := p.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "within retention")

	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = p.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
