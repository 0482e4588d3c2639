package model

import (
	"github.com/google/uuid"
)

type Patient struct {
	Base
	Name         string  `db:"name" json:"name"`
	Phone        string  `db:"phone" json:"phone"`
	BirthDate    *string `db:"birth_date" json:"birth_date,omitempty"`
	Email        *string `db:"email" json:"email,omitempty"`
	Notes        *string `db:"notes" json:"notes,omitempty"`
	FolderID     *string `db:"folder_id" json:"folder_id,omitempty"`
	PasswordHash *string `db:"password_hash" json:"-"`
}

type RegisterPatientRequest struct {
	Name     string `json:"name" binding:"required,max=200"`
	Phone    string `json:"phone" binding:"required,phone"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// AdminRegisterPatientRequest is the admin quick-add form; the admin sets a
// six digit PIN for the patient.
type AdminRegisterPatientRequest struct {
	Name      string  `json:"name" binding:"required,max=200"`
	Phone     string  `json:"phone" binding:"required,phone"`
	PIN       string  `json:"pin" binding:"required,pin6"`
	BirthDate *string `json:"birth_date" binding:"omitempty,datetime=2006-01-02"`
	Email     *string `json:"email" binding:"omitempty,email"`
}

type UpdatePatientRequest struct {
	Name      *string `json:"name" binding:"omitempty,max=200"`
	Phone     *string `json:"phone" binding:"omitempty,phone"`
	BirthDate *string `json:"birth_date" binding:"omitempty,datetime=2006-01-02"`
	Email     *string `json:"email" binding:"omitempty,email"`
	Notes     *string `json:"notes" binding:"omitempty,max=4000"`
	FolderID  *string `json:"folder_id"`
}

type ChangePasswordRequest struct {
	Current string `json:"current" binding:"required"`
	New     string `json:"new" binding:"required,pin6"`
}

type PatientFilters struct {
	SearchTerm string
	Limit      int
	Offset     int
}

type PatientLoginRequest struct {
	Phone    string `json:"phone" binding:"required,phone"`
	Password string `json:"password" binding:"required"`
}

type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string     `json:"access_token"`
	Role        string     `json:"role"`
	PatientID   *uuid.UUID `json:"patient_id,omitempty"`
	Name        string     `json:"name,omitempty"`
}
