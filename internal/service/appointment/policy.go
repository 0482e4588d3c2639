package appointment

import (
	"time"

	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
)

const (
	DefaultMinLeadDays = 2
	DefaultWindowDays  = 7
)

// Policy holds the tunable booking rules.
type Policy struct {
	// MinLeadDays is the number of days between today and the earliest bookable date.
	MinLeadDays int
	// WindowDays spans the exclusivity window; a patient may hold one
	// appointment in [date-(WindowDays-1), date+(WindowDays-1)].
	WindowDays int
}

func DefaultPolicy() Policy {
	return Policy{MinLeadDays: DefaultMinLeadDays, WindowDays: DefaultWindowDays}
}

func (p Policy) normalized() Policy {
	if p.MinLeadDays < 0 {
		p.MinLeadDays = DefaultMinLeadDays
	}
	if p.WindowDays < 1 {
		p.WindowDays = DefaultWindowDays
	}
	return p
}

// EarliestDate is the first date a patient may book on.
func (p Policy) EarliestDate(today time.Time) time.Time {
	return schedule.AddDays(today, p.MinLeadDays)
}

// CheckDate is the date eligibility gate. It performs no I/O.
func (p Policy) CheckDate(today, date time.Time) error {
	if schedule.Day(date).Before(p.EarliestDate(today)) {
		return ErrDateNotAllowed
	}
	return nil
}
