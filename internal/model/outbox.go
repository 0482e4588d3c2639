package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusRetry     OutboxStatus = "retry"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Event types relayed to the broker.
const (
	EventAppointmentBooked  = "appointment.booked"
	EventAppointmentUpdated = "appointment.updated"
	EventAppointmentDeleted = "appointment.deleted"
	EventReminderWhatsApp   = "reminder.whatsapp"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// AppointmentEvent is the payload of appointment.* events.
type AppointmentEvent struct {
	AppointmentID uuid.UUID  `json:"appointment_id"`
	Date          string     `json:"date"`
	Time          string     `json:"time"`
	PatientID     *uuid.UUID `json:"patient_id,omitempty"`
	Actor         string     `json:"actor"`
}

// WhatsAppReminder is the payload of reminder.whatsapp events.
type WhatsAppReminder struct {
	To       string `json:"to"`
	Name     string `json:"name"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Template string `json:"template"`
	Language string `json:"language"`
}

// ReminderResult is one line of a reminder run.
type ReminderResult struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	To            string    `json:"to"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	OK            bool      `json:"ok"`
	Error         string    `json:"error,omitempty"`
}

type ReminderSummary struct {
	Total   int              `json:"total"`
	Sent    int              `json:"sent"`
	Failed  int              `json:"failed"`
	DryRun  bool             `json:"dry_run"`
	Details []ReminderResult `json:"details"`
}
