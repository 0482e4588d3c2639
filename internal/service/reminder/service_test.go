package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/email"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/memory"
	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
	"github.com/jwalitptl/clinic-scheduler/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

func TestToE164(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5512345678", "+525512345678"},
		{"55 1234-5678", "+525512345678"},
		{"525512345678", "+525512345678"},
		{"+1 555 123 4567", "+1 555 123 4567"},
		{"", ""},
		{"12345", ""},
		{"+", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToE164(tt.in)
			if tt.want == "" {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type sentMail struct {
	to string
	r  email.Reminder
}

type mockMailer struct {
	sent []sentMail
	fail error
}

func (m *mockMailer) SendReminder(_ context.Context, to string, r email.Reminder) error {
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, sentMail{to: to, r: r})
	return nil
}

func (m *mockMailer) SendCustom(context.Context, string, string, string) error { return nil }

type fixture struct {
	svc     *Service
	store   *memory.Store
	mailer  *mockMailer
	metrics *metrics.Metrics
}

// Wednesday 2026-10-21 at 20:00 local; tomorrow is Thursday the 22nd.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc := time.FixedZone("CST", -6*3600)
	store := memory.NewStore()
	mailer := &mockMailer{}
	m := metrics.Nop()
	svc := NewService(store.Appointments, event.NewService(store.Outbox, nil), mailer, m, nil, Config{
		Template: "cita_recordatorio",
		Location: loc,
		Now:      func() time.Time { return time.Date(2026, 10, 21, 20, 0, 0, 0, loc) },
	})
	return &fixture{svc: svc, store: store, mailer: mailer, metrics: m}
}

func (f *fixture) patient(t *testing.T, name, phone string, mail *string) uuid.UUID {
	t.Helper()
	p := &model.Patient{Name: name, Phone: phone, Email: mail}
	require.NoError(t, f.store.Patients.Create(context.Background(), p))
	return p.ID
}

func (f *fixture) book(t *testing.T, pid *uuid.UUID, day int, at string) {
	t.Helper()
	require.NoError(t, f.store.Appointments.Reserve(context.Background(), &model.Appointment{
		Date:      time.Date(2026, 10, day, 0, 0, 0, 0, time.UTC),
		Time:      schedule.MustClock(at),
		PatientID: pid,
	}))
}

func TestSendTomorrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mail := "ana@example.com"

	ana := f.patient(t, "Ana", "5512345678", &mail)
	bad := f.patient(t, "Luis", "12345", nil)
	later := f.patient(t, "Eva", "525598765432", nil)

	f.book(t, &ana, 22, "10:00")
	f.book(t, &bad, 22, "11:00")
	f.book(t, nil, 22, "14:00")
	f.book(t, &later, 23, "10:00")

	summary, err := f.svc.SendTomorrow(ctx, false)
	require.NoError(t, err)
	assert.False(t, summary.DryRun)
	assert.Equal(t, 2, summary.Total, "unlinked appointments are skipped")
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Failed)

	require.Len(t, summary.Details, 2)
	ok := summary.Details[0]
	assert.True(t, ok.OK)
	assert.Equal(t, "+525512345678", ok.To)
	assert.Equal(t, "22/10/2026", ok.Date)
	assert.Equal(t, "10:00", ok.Time)
	assert.False(t, summary.Details[1].OK)
	assert.Equal(t, ErrInvalidPhone.Error(), summary.Details[1].Error)

	events, err := f.store.Outbox.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventReminderWhatsApp, events[0].EventType)

	var payload model.WhatsAppReminder
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, model.WhatsAppReminder{
		To:       "+525512345678",
		Name:     "Ana",
		Date:     "22/10/2026",
		Time:     "10:00",
		Template: "cita_recordatorio",
		Language: "es_MX",
	}, payload)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "ana@example.com", f.mailer.sent[0].to)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RemindersSent.WithLabelValues("whatsapp", "queued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RemindersSent.WithLabelValues("whatsapp", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RemindersSent.WithLabelValues("email", "sent")))
}

func TestSendTomorrow_DryRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mail := "ana@example.com"

	ana := f.patient(t, "Ana", "5512345678", &mail)
	f.book(t, &ana, 22, "10:00")

	summary, err := f.svc.SendTomorrow(ctx, true)
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.Sent)

	events, err := f.store.Outbox.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Empty(t, f.mailer.sent)
}

func TestSendTomorrow_EmailFailureKeepsReminder(t *testing.T) {
	f := newFixture(t)
	f.mailer.fail = errors.New("smtp down")
	mail := "ana@example.com"

	ana := f.patient(t, "Ana", "5512345678", &mail)
	f.book(t, &ana, 22, "10:00")

	summary, err := f.svc.SendTomorrow(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RemindersSent.WithLabelValues("email", "error")))
}

func TestSendTomorrow_Empty(t *testing.T) {
	f := newFixture(t)

	summary, err := f.svc.SendTomorrow(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.NotNil(t, summary.Details)
}

func TestSendTomorrow_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.SetFailure(errors.New("db down"))

	_, err := f.svc.SendTomorrow(context.Background(), false)
	assert.ErrorIs(t, err, apperrors.Unavailable(nil))
}
