package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

type photoRepository struct {
	db *sqlx.DB
}

func NewPhotoRepository(db *sqlx.DB) repository.PhotoRepository {
	return &photoRepository{db: db}
}

func (r *photoRepository) Create(ctx context.Context, photo *model.Photo) error {
	query := `
		INSERT INTO photos (id, patient_id, date, file_id, web_view_link, filename, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if photo.ID == uuid.Nil {
		photo.ID = uuid.New()
	}
	photo.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		photo.ID, photo.PatientID, photo.Date, photo.FileID, photo.WebViewLink, photo.Filename, photo.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create photo: %w", err)
	}
	return nil
}

// ListByPatient returns the patient's photos, optionally restricted to one date.
func (r *photoRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, date string) ([]*model.Photo, error) {
	query := `SELECT id, patient_id, date, file_id, web_view_link, filename, created_at FROM photos WHERE patient_id = $1`
	args := []interface{}{patientID}
	if date != "" {
		query += ` AND date = $2`
		args = append(args, date)
	}
	query += ` ORDER BY date DESC, created_at`

	var out []*model.Photo
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	return out, nil
}

func (r *photoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return expectOne(res, "delete photo")
}

// DeleteByPatientDate removes a day's photos and returns their file ids.
func (r *photoRepository) DeleteByPatientDate(ctx context.Context, patientID uuid.UUID, date string) ([]string, error) {
	query := `DELETE FROM photos WHERE patient_id = $1 AND date = $2 RETURNING COALESCE(file_id, '')`
	var rows []string
	if err := r.db.SelectContext(ctx, &rows, query, patientID, date); err != nil {
		return nil, fmt.Errorf("failed to delete photos: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, id := range rows {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
