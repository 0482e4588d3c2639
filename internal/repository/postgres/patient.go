package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

const patientPhoneKey = "patients_phone_key"

const patientColumns = `id, name, phone, birth_date, email, notes, folder_id, password_hash, created_at`

type patientRepository struct {
	db *sqlx.DB
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	patient.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.Name,
		patient.Phone,
		patient.BirthDate,
		patient.Email,
		patient.Notes,
		patient.FolderID,
		patient.PasswordHash,
		patient.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, patientPhoneKey) {
			return repository.ErrPhoneTaken
		}
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return r.getOne(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
}

func (r *patientRepository) GetByPhone(ctx context.Context, phone string) (*model.Patient, error) {
	return r.getOne(ctx, `SELECT `+patientColumns+` FROM patients WHERE phone = $1`, phone)
}

func (r *patientRepository) getOne(ctx context.Context, query string, arg interface{}) (*model.Patient, error) {
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET name = $1, phone = $2, birth_date = $3, email = $4, notes = $5, folder_id = $6
		WHERE id = $7
	`
	res, err := r.db.ExecContext(ctx, query,
		patient.Name,
		patient.Phone,
		patient.BirthDate,
		patient.Email,
		patient.Notes,
		patient.FolderID,
		patient.ID,
	)
	if err != nil {
		if isUniqueViolation(err, patientPhoneKey) {
			return repository.ErrPhoneTaken
		}
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return expectOne(res, "update patient")
}

func (r *patientRepository) SetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE patients SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	return expectOne(res, "set password")
}

func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE appointments SET patient_id = NULL WHERE patient_id = $1`, id); err != nil {
			return fmt.Errorf("failed to unlink appointments: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete patient: %w", err)
		}
		return expectOne(res, "delete patient")
	})
}

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients`
	args := []interface{}{}

	if filters != nil && filters.SearchTerm != "" {
		args = append(args, "%"+filters.SearchTerm+"%")
		query += ` WHERE name ILIKE $1 OR phone ILIKE $1`
	}
	query += ` ORDER BY name`

	if filters != nil && filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func expectOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
