package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
)

type fakeReminders struct {
	calls  atomic.Int32
	dryRun atomic.Bool
	err    error
}

func (f *fakeReminders) SendTomorrow(_ context.Context, dryRun bool) (*model.ReminderSummary, error) {
	f.calls.Add(1)
	f.dryRun.Store(dryRun)
	if f.err != nil {
		return nil, f.err
	}
	return &model.ReminderSummary{Total: 1, Sent: 1}, nil
}

type fakeOutbox struct {
	processed atomic.Int32
	cleaned   atomic.Int32
}

func (f *fakeOutbox) ProcessOnce(context.Context) (int, error) {
	f.processed.Add(1)
	return 0, nil
}

func (f *fakeOutbox) Cleanup(context.Context) (int64, error) {
	f.cleaned.Add(1)
	return 0, errors.New("db down")
}

func TestNewScheduler_RegistersJobs(t *testing.T) {
	s, err := NewScheduler(Config{ReminderAt: "18:00"}, &fakeReminders{}, &fakeOutbox{}, logger.Nop())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{TagOutbox, TagCleanup, TagReminder}, s.Tags())

	s, err = NewScheduler(Config{}, &fakeReminders{}, nil, logger.Nop())
	require.NoError(t, err)
	assert.Empty(t, s.Tags(), "reminders disabled without a time")
}

func TestNewScheduler_BadReminderTime(t *testing.T) {
	_, err := NewScheduler(Config{ReminderAt: "6pm"}, &fakeReminders{}, nil, logger.Nop())
	assert.Error(t, err)
}

func TestJobs(t *testing.T) {
	reminders := &fakeReminders{}
	outbox := &fakeOutbox{}
	s, err := NewScheduler(Config{ReminderAt: "18:00"}, reminders, outbox, logger.Nop())
	require.NoError(t, err)

	s.relayOutbox()
	s.cleanOutbox()
	s.sendReminders()

	assert.Equal(t, int32(1), outbox.processed.Load())
	assert.Equal(t, int32(1), outbox.cleaned.Load())
	assert.Equal(t, int32(1), reminders.calls.Load())
	assert.False(t, reminders.dryRun.Load())

	reminders.err = errors.New("db down")
	s.sendReminders()
	assert.Equal(t, int32(2), reminders.calls.Load())
}

func TestStart_RelaysUntilCanceled(t *testing.T) {
	outbox := &fakeOutbox{}
	s, err := NewScheduler(Config{OutboxInterval: 10 * time.Millisecond}, nil, outbox, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	assert.Eventually(t, func() bool { return outbox.processed.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.Eventually(t, func() bool { return !s.cron.IsRunning() }, time.Second, 5*time.Millisecond)
}
