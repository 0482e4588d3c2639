package record

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/memory"
	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

type mockInvalidator struct {
	dates []time.Time
}

func (m *mockInvalidator) Invalidate(dates ...time.Time) {
	m.dates = append(m.dates, dates...)
}

func ptr[T any](v T) *T { return &v }

func seedPatient(t *testing.T, store *memory.Store) uuid.UUID {
	t.Helper()
	p := &model.Patient{Name: "Ana", Phone: "5512345678"}
	require.NoError(t, store.Patients.Create(context.Background(), p))
	return p.ID
}

func newService() (*Service, *memory.Store, *mockInvalidator) {
	store := memory.NewStore()
	inv := &mockInvalidator{}
	return NewService(store.Measurements, store.Photos, store.Appointments, inv, nil), store, inv
}

func TestUpsertMeasurement_MergesPDFLinks(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	pid := uuid.New()

	_, err := svc.UpsertMeasurement(ctx, pid, &model.UpsertMeasurementRequest{Date: "2026-10-24", RoutinePDF: ptr("https://files/routine.pdf")})
	require.NoError(t, err)

	m, err := svc.UpsertMeasurement(ctx, pid, &model.UpsertMeasurementRequest{Date: "2026-10-24", MealPlanPDF: ptr("https://files/plan.pdf"), WeightKg: ptr(72.4)})
	require.NoError(t, err)
	assert.Equal(t, "https://files/routine.pdf", *m.RoutinePDF)
	assert.Equal(t, "https://files/plan.pdf", *m.MealPlanPDF)
	assert.Equal(t, 72.4, *m.WeightKg)

	list, err := svc.ListMeasurements(ctx, pid)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.UpsertMeasurement(ctx, pid, &model.UpsertMeasurementRequest{Date: "24/10/2026"})
	assert.ErrorIs(t, err, apperrors.BadRequest("", nil))
}

func TestLinkToAppointment_PicksEarliest(t *testing.T) {
	svc, store, _ := newService()
	ctx := context.Background()
	pid := seedPatient(t, store)
	day := time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC)

	linked, err := svc.LinkToAppointment(ctx, pid, "2026-10-24")
	require.NoError(t, err)
	assert.False(t, linked)

	late := &model.Appointment{Date: day, Time: schedule.MustClock("11:00"), PatientID: &pid}
	early := &model.Appointment{Date: day, Time: schedule.MustClock("09:00"), PatientID: &pid}
	require.NoError(t, store.Appointments.Reserve(ctx, late))
	require.NoError(t, store.Appointments.Reserve(ctx, early))

	_, err = svc.LinkToAppointment(ctx, pid, "2026-10-24")
	assert.ErrorIs(t, err, apperrors.NotFound("measurement", nil))

	_, err = svc.UpsertMeasurement(ctx, pid, &model.UpsertMeasurementRequest{Date: "2026-10-24"})
	require.NoError(t, err)

	linked, err = svc.LinkToAppointment(ctx, pid, "2026-10-24")
	require.NoError(t, err)
	assert.True(t, linked)

	m, err := store.Measurements.Get(ctx, pid, "2026-10-24")
	require.NoError(t, err)
	assert.Equal(t, early.ID, *m.AppointmentID)
}

func TestDeleteVisit(t *testing.T) {
	svc, store, inv := newService()
	ctx := context.Background()
	pid := seedPatient(t, store)
	day := time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC)

	_, err := svc.UpsertMeasurement(ctx, pid, &model.UpsertMeasurementRequest{Date: "2026-10-24", FolderID: ptr("folder-1")})
	require.NoError(t, err)
	_, err = svc.AddPhoto(ctx, pid, &model.CreatePhotoRequest{Date: "2026-10-24", FileID: "f1"})
	require.NoError(t, err)
	_, err = svc.AddPhoto(ctx, pid, &model.CreatePhotoRequest{Date: "2026-10-31", FileID: "f2"})
	require.NoError(t, err)
	require.NoError(t, store.Appointments.Reserve(ctx, &model.Appointment{Date: day, Time: schedule.MustClock("10:00"), PatientID: &pid}))

	out, err := svc.DeleteVisit(ctx, pid, "2026-10-24", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, out.PhotoFileIDs)
	assert.Equal(t, "folder-1", *out.FolderID)
	assert.Zero(t, out.AppointmentsDeleted)
	assert.Empty(t, inv.dates)

	remaining, err := svc.ListPhotos(ctx, pid, "")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "2026-10-31", remaining[0].Date)

	out, err = svc.DeleteVisit(ctx, pid, "2026-10-24", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.AppointmentsDeleted)
	assert.Equal(t, []time.Time{day}, inv.dates)

	occupied, err := store.Appointments.OccupiedTimes(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, occupied)
}

func TestDeletePhoto(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	p, err := svc.AddPhoto(ctx, uuid.New(), &model.CreatePhotoRequest{Date: "2026-10-24", FileID: "f1", Filename: ptr("front.jpg")})
	require.NoError(t, err)

	require.NoError(t, svc.DeletePhoto(ctx, p.ID))
	assert.ErrorIs(t, svc.DeletePhoto(ctx, p.ID), apperrors.NotFound("photo", nil))
}
