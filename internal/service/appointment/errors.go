package appointment

import (
	"errors"

	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

// Booking rejections. Compare with errors.Is; the reason is what the UI shows.
var (
	ErrDateNotAllowed = apperrors.PolicyViolation("date_not_allowed",
		"appointments must be booked at least the minimum lead days ahead")
	ErrAlreadyBookedThatDay = apperrors.PolicyViolation("already_booked_that_day",
		"you already have an appointment on that day")
	ErrOnePerWindow = apperrors.PolicyViolation("one_per_window",
		"only one appointment is allowed within the booking window")
	ErrSlotNotOffered = apperrors.PolicyViolation("slot_not_offered",
		"the requested time is not an offered slot for that date")
	ErrSlotTaken = apperrors.Conflict("slot_taken",
		"that slot was just taken, please pick another")
	// ErrPatientNotFound means the patient was deleted while the caller still
	// held a token or an id for it.
	ErrPatientNotFound = apperrors.NotFound("patient", nil)
)

// Outcome is the metrics label for a booking result.
func Outcome(err error) string {
	if err == nil {
		return "booked"
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Reason != "" {
		return appErr.Reason
	}
	return "error"
}
