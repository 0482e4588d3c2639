package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func seedPatient(t *testing.T, store *Store, phone string) uuid.UUID {
	t.Helper()
	p := &model.Patient{Name: "Paciente " + phone, Phone: phone}
	require.NoError(t, store.Patients.Create(context.Background(), p))
	return p.ID
}

func TestReserve_ConcurrentSameSlot(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	date, at := day(2026, 10, 24), schedule.MustClock("10:00")

	const n = 32
	pids := make([]uuid.UUID, n)
	for i := range pids {
		pids[i] = seedPatient(t, store, fmt.Sprintf("55%08d", i))
	}

	var ok, taken int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(pid uuid.UUID) {
			defer wg.Done()
			err := store.Appointments.Reserve(ctx, &model.Appointment{Date: date, Time: at, PatientID: &pid})
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case assert.ErrorIs(t, err, repository.ErrSlotTaken):
				atomic.AddInt32(&taken, 1)
			}
		}(pids[i])
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(n-1), taken)

	times, err := store.Appointments.OccupiedTimes(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, []schedule.Clock{at}, times)
}

func TestPatientHasAppointmentWithin_Bounds(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	pid := seedPatient(t, store, "5512345678")

	require.NoError(t, store.Appointments.Reserve(ctx, &model.Appointment{
		Date: day(2026, 10, 24), Time: schedule.MustClock("10:00"), PatientID: &pid,
	}))

	tests := []struct {
		date time.Time
		want bool
	}{
		{day(2026, 10, 18), true},
		{day(2026, 10, 17), false},
		{day(2026, 10, 30), true},
		{day(2026, 10, 31), false},
	}
	for _, tt := range tests {
		got, err := store.Appointments.PatientHasAppointmentWithin(ctx, pid, tt.date, 7)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, schedule.FormatDate(tt.date))
	}

	other, err := store.Appointments.PatientHasAppointmentWithin(ctx, uuid.New(), day(2026, 10, 24), 7)
	require.NoError(t, err)
	assert.False(t, other)
}

func TestUpdate_MoveOntoTakenSlot(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	a := &model.Appointment{Date: day(2026, 10, 24), Time: schedule.MustClock("10:00")}
	b := &model.Appointment{Date: day(2026, 10, 24), Time: schedule.MustClock("10:30")}
	require.NoError(t, store.Appointments.Reserve(ctx, a))
	require.NoError(t, store.Appointments.Reserve(ctx, b))

	moved := *b
	moved.Time = a.Time
	assert.ErrorIs(t, store.Appointments.Update(ctx, &moved), repository.ErrSlotTaken)

	moved.Time = schedule.MustClock("11:00")
	require.NoError(t, store.Appointments.Update(ctx, &moved))

	times, err := store.Appointments.OccupiedTimes(ctx, day(2026, 10, 24))
	require.NoError(t, err)
	assert.Equal(t, []schedule.Clock{schedule.MustClock("10:00"), schedule.MustClock("11:00")}, times)
}

func TestReserve_UnknownPatient(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	sat := day(2026, 10, 24)

	ghost := uuid.New()
	err := store.Appointments.Reserve(ctx, &model.Appointment{Date: sat, Time: schedule.MustClock("10:00"), PatientID: &ghost})
	assert.ErrorIs(t, err, repository.ErrPatientNotFound)

	times, err := store.Appointments.OccupiedTimes(ctx, sat)
	require.NoError(t, err)
	assert.Empty(t, times)

	pid := seedPatient(t, store, "5512345678")
	appt := &model.Appointment{Date: sat, Time: schedule.MustClock("10:00"), PatientID: &pid}
	require.NoError(t, store.Appointments.Reserve(ctx, appt))

	require.NoError(t, store.Patients.Delete(ctx, pid))
	moved := *appt
	moved.Time = schedule.MustClock("11:00")
	assert.ErrorIs(t, store.Appointments.Update(ctx, &moved), repository.ErrPatientNotFound)

	times, err = store.Appointments.OccupiedTimes(ctx, sat)
	require.NoError(t, err)
	assert.Equal(t, []schedule.Clock{schedule.MustClock("10:00")}, times)
}

func TestPatientDelete_UnlinksAndCascades(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	p := &model.Patient{Name: "Ana", Phone: "5512345678"}
	require.NoError(t, store.Patients.Create(ctx, p))
	assert.ErrorIs(t, store.Patients.Create(ctx, &model.Patient{Name: "Other", Phone: p.Phone}), repository.ErrPhoneTaken)

	appt := &model.Appointment{Date: day(2026, 10, 24), Time: schedule.MustClock("10:00"), PatientID: &p.ID}
	require.NoError(t, store.Appointments.Reserve(ctx, appt))
	_, err := store.Measurements.Upsert(ctx, &model.Measurement{PatientID: p.ID, Date: "2026-10-24"})
	require.NoError(t, err)
	require.NoError(t, store.Photos.Create(ctx, &model.Photo{PatientID: p.ID, Date: "2026-10-24", FileID: ptr("f1")}))

	require.NoError(t, store.Patients.Delete(ctx, p.ID))

	got, err := store.Appointments.Get(ctx, appt.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PatientID)
	assert.Nil(t, got.PatientName)

	ms, err := store.Measurements.ListByPatient(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, ms)

	photos, err := store.Photos.ListByPatient(ctx, p.ID, "")
	require.NoError(t, err)
	assert.Empty(t, photos)

	_, err = store.Patients.GetByPhone(ctx, p.Phone)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMeasurementUpsert_Merges(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	pid := uuid.New()

	_, err := store.Measurements.Upsert(ctx, &model.Measurement{PatientID: pid, Date: "2026-10-24", WeightKg: ptr(80.5), RoutinePDF: ptr("https://x/r.pdf")})
	require.NoError(t, err)

	m, err := store.Measurements.Upsert(ctx, &model.Measurement{PatientID: pid, Date: "2026-10-24", WaistCm: ptr(90.0)})
	require.NoError(t, err)

	assert.Equal(t, 80.5, *m.WeightKg)
	assert.Equal(t, 90.0, *m.WaistCm)
	assert.Equal(t, "https://x/r.pdf", *m.RoutinePDF)
}

func TestSetFailure(t *testing.T) {
	store := NewStore()
	boom := assert.AnError
	store.SetFailure(boom)

	_, err := store.Appointments.OccupiedTimes(context.Background(), day(2026, 10, 24))
	assert.ErrorIs(t, err, boom)

	store.SetFailure(nil)
	_, err = store.Appointments.OccupiedTimes(context.Background(), day(2026, 10, 24))
	assert.NoError(t, err)
}
