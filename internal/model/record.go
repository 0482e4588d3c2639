package model

import (
	"github.com/google/uuid"
)

// Measurement is the visit record for one (patient, date) pair.
type Measurement struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	Date           string     `db:"date" json:"date"`
	RoutinePDF     *string    `db:"routine_pdf" json:"routine_pdf,omitempty"`
	MealPlanPDF    *string    `db:"meal_plan_pdf" json:"meal_plan_pdf,omitempty"`
	WeightKg       *float64   `db:"weight_kg" json:"weight_kg,omitempty"`
	BodyFatPct     *float64   `db:"body_fat_pct" json:"body_fat_pct,omitempty"`
	MusclePct      *float64   `db:"muscle_pct" json:"muscle_pct,omitempty"`
	ArmRelaxedCm   *float64   `db:"arm_relaxed_cm" json:"arm_relaxed_cm,omitempty"`
	ArmFlexedCm    *float64   `db:"arm_flexed_cm" json:"arm_flexed_cm,omitempty"`
	ChestRelaxedCm *float64   `db:"chest_relaxed_cm" json:"chest_relaxed_cm,omitempty"`
	ChestFlexedCm  *float64   `db:"chest_flexed_cm" json:"chest_flexed_cm,omitempty"`
	WaistCm        *float64   `db:"waist_cm" json:"waist_cm,omitempty"`
	HipCm          *float64   `db:"hip_cm" json:"hip_cm,omitempty"`
	LegCm          *float64   `db:"leg_cm" json:"leg_cm,omitempty"`
	CalfCm         *float64   `db:"calf_cm" json:"calf_cm,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	FolderID       *string    `db:"folder_id" json:"folder_id,omitempty"`
	AppointmentID  *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
}

// UpsertMeasurementRequest carries a partial visit record; nil fields keep
// whatever is already stored.
type UpsertMeasurementRequest struct {
	Date           string   `json:"date" binding:"required,datetime=2006-01-02"`
	RoutinePDF     *string  `json:"routine_pdf" binding:"omitempty,url"`
	MealPlanPDF    *string  `json:"meal_plan_pdf" binding:"omitempty,url"`
	WeightKg       *float64 `json:"weight_kg" binding:"omitempty,gt=0"`
	BodyFatPct     *float64 `json:"body_fat_pct" binding:"omitempty,gte=0,lte=100"`
	MusclePct      *float64 `json:"muscle_pct" binding:"omitempty,gte=0,lte=100"`
	ArmRelaxedCm   *float64 `json:"arm_relaxed_cm" binding:"omitempty,gt=0"`
	ArmFlexedCm    *float64 `json:"arm_flexed_cm" binding:"omitempty,gt=0"`
	ChestRelaxedCm *float64 `json:"chest_relaxed_cm" binding:"omitempty,gt=0"`
	ChestFlexedCm  *float64 `json:"chest_flexed_cm" binding:"omitempty,gt=0"`
	WaistCm        *float64 `json:"waist_cm" binding:"omitempty,gt=0"`
	HipCm          *float64 `json:"hip_cm" binding:"omitempty,gt=0"`
	LegCm          *float64 `json:"leg_cm" binding:"omitempty,gt=0"`
	CalfCm         *float64 `json:"calf_cm" binding:"omitempty,gt=0"`
	Notes          *string  `json:"notes" binding:"omitempty,max=4000"`
	FolderID       *string  `json:"folder_id"`
}

// Photo references an uploaded progress image held by the file store.
type Photo struct {
	Base
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	Date        string    `db:"date" json:"date"`
	FileID      *string   `db:"file_id" json:"file_id,omitempty"`
	WebViewLink *string   `db:"web_view_link" json:"web_view_link,omitempty"`
	Filename    *string   `db:"filename" json:"filename,omitempty"`
}

type CreatePhotoRequest struct {
	Date        string  `json:"date" binding:"required,datetime=2006-01-02"`
	FileID      string  `json:"file_id" binding:"required"`
	WebViewLink *string `json:"web_view_link" binding:"omitempty,url"`
	Filename    *string `json:"filename"`
}

// VisitDeletion reports what DeleteVisit removed so the caller can clean up
// the file store.
type VisitDeletion struct {
	PhotoFileIDs        []string `json:"photo_file_ids"`
	FolderID            *string  `json:"folder_id,omitempty"`
	AppointmentsDeleted int64    `json:"appointments_deleted"`
}
