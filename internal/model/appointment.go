package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
)

// Appointment is one reserved (date, time) pair. The patient reference is
// nullable and survives patient deletion unlinked.
type Appointment struct {
	Base
	Date      time.Time      `db:"date" json:"date"`
	Time      schedule.Clock `db:"time" json:"time"`
	PatientID *uuid.UUID     `db:"patient_id" json:"patient_id,omitempty"`
	Note      *string        `db:"note" json:"note,omitempty"`
}

// AppointmentDetail is an appointment joined with its (optional) patient.
type AppointmentDetail struct {
	Appointment
	PatientName  *string `db:"patient_name" json:"patient_name,omitempty"`
	PatientPhone *string `db:"patient_phone" json:"patient_phone,omitempty"`
	PatientEmail *string `db:"patient_email" json:"patient_email,omitempty"`
}

// BookAppointmentRequest is what a logged-in patient submits.
type BookAppointmentRequest struct {
	Date string  `json:"date" binding:"required,datetime=2006-01-02"`
	Time string  `json:"time" binding:"required,slot_time"`
	Note *string `json:"note" binding:"omitempty,max=1000"`
}

// AdminBookAppointmentRequest is a manual entry made by the admin for any
// patient, identified by name and phone.
type AdminBookAppointmentRequest struct {
	Date  string  `json:"date" binding:"required,datetime=2006-01-02"`
	Time  string  `json:"time" binding:"required,slot_time"`
	Name  string  `json:"name" binding:"required,max=200"`
	Phone string  `json:"phone" binding:"required,phone"`
	Note  *string `json:"note" binding:"omitempty,max=1000"`
}

type UpdateAppointmentRequest struct {
	Name  string  `json:"name" binding:"required,max=200"`
	Phone string  `json:"phone" binding:"required,phone"`
	Note  *string `json:"note" binding:"omitempty,max=1000"`
}

type RescheduleAppointmentRequest struct {
	Date string `json:"date" binding:"required,datetime=2006-01-02"`
	Time string `json:"time" binding:"required,slot_time"`
}

// SlotStatus is one row of the admin day board.
type SlotStatus struct {
	Time        schedule.Clock     `json:"time"`
	Free        bool               `json:"free"`
	Appointment *AppointmentDetail `json:"appointment,omitempty"`
}

// DayBoard lists every slot of a day plus appointments that fall outside the
// generated slots (e.g. booked on a day that later became closed).
type DayBoard struct {
	Date        string               `json:"date"`
	Open        bool                 `json:"open"`
	Slots       []SlotStatus         `json:"slots"`
	OffSchedule []*AppointmentDetail `json:"off_schedule,omitempty"`
}

// Availability is the free-slot answer for a date.
type Availability struct {
	Date     string           `json:"date"`
	Bookable bool             `json:"bookable"`
	Slots    []schedule.Clock `json:"slots"`
}
