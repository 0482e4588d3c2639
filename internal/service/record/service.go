package record

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
)

// Invalidator drops cached availability for dates whose appointments changed.
type Invalidator interface {
	Invalidate(dates ...time.Time)
}

// Service manages the visit history: measurements, PDF links and photos.
type Service struct {
	measurements repository.MeasurementRepository
	photos       repository.PhotoRepository
	appointments repository.AppointmentRepository
	invalidator  Invalidator
	log          *logger.Logger
}

func NewService(
	measurements repository.MeasurementRepository,
	photos repository.PhotoRepository,
	appointments repository.AppointmentRepository,
	invalidator Invalidator,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		measurements: measurements,
		photos:       photos,
		appointments: appointments,
		invalidator:  invalidator,
		log:          log,
	}
}

// UpsertMeasurement creates the (patient, date) visit or merges the provided
// fields into it; omitted fields keep their stored values.
func (s *Service) UpsertMeasurement(ctx context.Context, patientID uuid.UUID, req *model.UpsertMeasurementRequest) (*model.Measurement, error) {
	if _, err := schedule.ParseDate(req.Date); err != nil {
		return nil, apperrors.BadRequest("invalid date", err)
	}

	m := &model.Measurement{
		PatientID:      patientID,
		Date:           req.Date,
		RoutinePDF:     req.RoutinePDF,
		MealPlanPDF:    req.MealPlanPDF,
		WeightKg:       req.WeightKg,
		BodyFatPct:     req.BodyFatPct,
		MusclePct:      req.MusclePct,
		ArmRelaxedCm:   req.ArmRelaxedCm,
		ArmFlexedCm:    req.ArmFlexedCm,
		ChestRelaxedCm: req.ChestRelaxedCm,
		ChestFlexedCm:  req.ChestFlexedCm,
		WaistCm:        req.WaistCm,
		HipCm:          req.HipCm,
		LegCm:          req.LegCm,
		CalfCm:         req.CalfCm,
		Notes:          req.Notes,
		FolderID:       req.FolderID,
	}
	out, err := s.measurements.Upsert(ctx, m)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return out, nil
}

func (s *Service) ListMeasurements(ctx context.Context, patientID uuid.UUID) ([]*model.Measurement, error) {
	list, err := s.measurements.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return list, nil
}

// LinkToAppointment points the visit at the patient's earliest appointment on
// that date. It reports false when the patient had no appointment that day.
func (s *Service) LinkToAppointment(ctx context.Context, patientID uuid.UUID, date string) (bool, error) {
	day, err := schedule.ParseDate(date)
	if err != nil {
		return false, apperrors.BadRequest("invalid date", err)
	}

	appt, err := s.appointments.FirstForPatientOn(ctx, patientID, day)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Unavailable(err)
	}

	if err := s.measurements.LinkAppointment(ctx, patientID, date, appt.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, apperrors.NotFound("measurement", err)
		}
		return false, apperrors.Unavailable(err)
	}
	return true, nil
}

// DeleteVisit removes a day's photos and measurement and, when asked, the
// patient's appointments on that date. The returned file ids and folder let
// the caller clean up external storage.
func (s *Service) DeleteVisit(ctx context.Context, patientID uuid.UUID, date string, deleteAppointments bool) (*model.VisitDeletion, error) {
	day, err := schedule.ParseDate(date)
	if err != nil {
		return nil, apperrors.BadRequest("invalid date", err)
	}

	out := &model.VisitDeletion{}
	if m, err := s.measurements.Get(ctx, patientID, date); err == nil {
		out.FolderID = m.FolderID
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unavailable(err)
	}

	if out.PhotoFileIDs, err = s.photos.DeleteByPatientDate(ctx, patientID, date); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	if _, err := s.measurements.Delete(ctx, patientID, date); err != nil {
		return nil, apperrors.Unavailable(err)
	}

	if deleteAppointments {
		n, err := s.appointments.DeleteForPatientOn(ctx, patientID, day)
		if err != nil {
			return nil, apperrors.Unavailable(err)
		}
		out.AppointmentsDeleted = n
		if n > 0 && s.invalidator != nil {
			s.invalidator.Invalidate(day)
		}
	}

	s.log.WithContext(ctx).Info("visit deleted",
		"patient_id", patientID.String(),
		"date", date,
		"photos", len(out.PhotoFileIDs),
		"appointments", out.AppointmentsDeleted,
	)
	return out, nil
}

func (s *Service) AddPhoto(ctx context.Context, patientID uuid.UUID, req *model.CreatePhotoRequest) (*model.Photo, error) {
	if _, err := schedule.ParseDate(req.Date); err != nil {
		return nil, apperrors.BadRequest("invalid date", err)
	}
	fileID := req.FileID
	photo := &model.Photo{
		PatientID:   patientID,
		Date:        req.Date,
		FileID:      &fileID,
		WebViewLink: req.WebViewLink,
		Filename:    req.Filename,
	}
	if err := s.photos.Create(ctx, photo); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return photo, nil
}

// ListPhotos returns the patient's photos, optionally for a single date.
func (s *Service) ListPhotos(ctx context.Context, patientID uuid.UUID, date string) ([]*model.Photo, error) {
	list, err := s.photos.ListByPatient(ctx, patientID, date)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return list, nil
}

func (s *Service) DeletePhoto(ctx context.Context, id uuid.UUID) error {
	if err := s.photos.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("photo", err)
		}
		return apperrors.Unavailable(err)
	}
	return nil
}
