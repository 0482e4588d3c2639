package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

const measurementColumns = `id, patient_id, date, routine_pdf, meal_plan_pdf, weight_kg, body_fat_pct,
	muscle_pct, arm_relaxed_cm, arm_flexed_cm, chest_relaxed_cm, chest_flexed_cm, waist_cm, hip_cm,
	leg_cm, calf_cm, notes, folder_id, appointment_id`

type measurementRepository struct {
	db *sqlx.DB
}

func NewMeasurementRepository(db *sqlx.DB) repository.MeasurementRepository {
	return &measurementRepository{db: db}
}

// Upsert inserts the (patient, date) row or merges the non-null incoming
// values into the existing one.
func (r *measurementRepository) Upsert(ctx context.Context, m *model.Measurement) (*model.Measurement, error) {
	query := `
		INSERT INTO measurements (` + measurementColumns + `)
		VALUES (:id, :patient_id, :date, :routine_pdf, :meal_plan_pdf, :weight_kg, :body_fat_pct,
			:muscle_pct, :arm_relaxed_cm, :arm_flexed_cm, :chest_relaxed_cm, :chest_flexed_cm, :waist_cm,
			:hip_cm, :leg_cm, :calf_cm, :notes, :folder_id, :appointment_id)
		ON CONFLICT (patient_id, date) DO UPDATE SET
			routine_pdf      = COALESCE(EXCLUDED.routine_pdf, measurements.routine_pdf),
			meal_plan_pdf    = COALESCE(EXCLUDED.meal_plan_pdf, measurements.meal_plan_pdf),
			weight_kg        = COALESCE(EXCLUDED.weight_kg, measurements.weight_kg),
			body_fat_pct     = COALESCE(EXCLUDED.body_fat_pct, measurements.body_fat_pct),
			muscle_pct       = COALESCE(EXCLUDED.muscle_pct, measurements.muscle_pct),
			arm_relaxed_cm   = COALESCE(EXCLUDED.arm_relaxed_cm, measurements.arm_relaxed_cm),
			arm_flexed_cm    = COALESCE(EXCLUDED.arm_flexed_cm, measurements.arm_flexed_cm),
			chest_relaxed_cm = COALESCE(EXCLUDED.chest_relaxed_cm, measurements.chest_relaxed_cm),
			chest_flexed_cm  = COALESCE(EXCLUDED.chest_flexed_cm, measurements.chest_flexed_cm),
			waist_cm         = COALESCE(EXCLUDED.waist_cm, measurements.waist_cm),
			hip_cm           = COALESCE(EXCLUDED.hip_cm, measurements.hip_cm),
			leg_cm           = COALESCE(EXCLUDED.leg_cm, measurements.leg_cm),
			calf_cm          = COALESCE(EXCLUDED.calf_cm, measurements.calf_cm),
			notes            = COALESCE(EXCLUDED.notes, measurements.notes),
			folder_id        = COALESCE(EXCLUDED.folder_id, measurements.folder_id),
			appointment_id   = COALESCE(EXCLUDED.appointment_id, measurements.appointment_id)
		RETURNING ` + measurementColumns

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	rows, err := r.db.NamedQueryContext(ctx, query, m)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert measurement: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to upsert measurement: %w", err)
		}
		return nil, fmt.Errorf("failed to upsert measurement: no row returned")
	}
	var out model.Measurement
	if err := rows.StructScan(&out); err != nil {
		return nil, fmt.Errorf("failed to scan measurement: %w", err)
	}
	return &out, nil
}

func (r *measurementRepository) Get(ctx context.Context, patientID uuid.UUID, date string) (*model.Measurement, error) {
	query := `SELECT ` + measurementColumns + ` FROM measurements WHERE patient_id = $1 AND date = $2`
	var m model.Measurement
	if err := r.db.GetContext(ctx, &m, query, patientID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get measurement: %w", err)
	}
	return &m, nil
}

func (r *measurementRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Measurement, error) {
	query := `SELECT ` + measurementColumns + ` FROM measurements WHERE patient_id = $1 ORDER BY date DESC`
	var out []*model.Measurement
	if err := r.db.SelectContext(ctx, &out, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list measurements: %w", err)
	}
	return out, nil
}

func (r *measurementRepository) LinkAppointment(ctx context.Context, patientID uuid.UUID, date string, appointmentID uuid.UUID) error {
	query := `UPDATE measurements SET appointment_id = $1 WHERE patient_id = $2 AND date = $3`
	res, err := r.db.ExecContext(ctx, query, appointmentID, patientID, date)
	if err != nil {
		return fmt.Errorf("failed to link measurement: %w", err)
	}
	return expectOne(res, "link measurement")
}

func (r *measurementRepository) Delete(ctx context.Context, patientID uuid.UUID, date string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM measurements WHERE patient_id = $1 AND date = $2`, patientID, date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete measurement: %w", err)
	}
	return res.RowsAffected()
}
