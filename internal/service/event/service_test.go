package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/memory"
)

func TestPublish_QueuesPendingEvent(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Outbox, nil)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, svc.Publish(ctx, model.EventAppointmentBooked, model.AppointmentEvent{
		AppointmentID: id,
		Date:          "2026-10-24",
		Time:          "10:00",
		Actor:         "patient",
	}))

	events, err := store.Outbox.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventAppointmentBooked, events[0].EventType)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)

	var got model.AppointmentEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &got))
	assert.Equal(t, id, got.AppointmentID)
}

func TestPublish_Errors(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Outbox, nil)
	ctx := context.Background()

	assert.Error(t, svc.Publish(ctx, "bad", make(chan int)))

	boom := errors.New("db down")
	store.SetFailure(boom)
	assert.ErrorIs(t, svc.Publish(ctx, model.EventAppointmentDeleted, map[string]string{}), boom)
}

func TestNew_BuildsWithoutWriting(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Outbox, nil)

	evt, err := svc.New(model.EventAppointmentBooked, model.AppointmentEvent{Date: "2026-10-24", Time: "10:00"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, evt.ID)
	assert.Equal(t, model.OutboxStatusPending, evt.Status)
	assert.JSONEq(t, `{"appointment_id":"00000000-0000-0000-0000-000000000000","date":"2026-10-24","time":"10:00","actor":""}`, string(evt.Payload))

	events, err := store.Outbox.GetPendingEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = svc.New("bad", make(chan int))
	assert.Error(t, err)
}
