package schedule

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Clock is a time of day with minute granularity, stored as minutes since
// midnight.
type Clock int

const minutesPerDay = 24 * 60

// NewClock builds a Clock from hour and minute.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock accepts "HH:MM" and "HH:MM:SS"; seconds must be zero.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Second() != 0 {
			return 0, fmt.Errorf("time %q is not on a minute boundary", s)
		}
		return NewClock(t.Hour(), t.Minute()), nil
	}
	return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
}

// MustClock is ParseClock for literals; it panics on malformed input.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Add advances the clock by d, truncated to whole minutes.
func (c Clock) Add(d time.Duration) Clock {
	return c + Clock(d/time.Minute)
}

// On anchors the clock to a calendar date in loc.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour(), c.Minute(), 0, 0, loc)
}

func (c Clock) Valid() bool {
	return c >= 0 && c < minutesPerDay
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Scan reads a Postgres TIME column.
func (c *Clock) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*c = 0
		return nil
	case []byte:
		return c.scanString(string(v))
	case string:
		return c.scanString(v)
	case time.Time:
		*c = NewClock(v.Hour(), v.Minute())
		return nil
	default:
		return fmt.Errorf("cannot scan %T into schedule.Clock", src)
	}
}

func (c *Clock) scanString(s string) error {
	// TIME values may carry fractional seconds ("10:00:00.000000").
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Clock) Value() (driver.Value, error) {
	return fmt.Sprintf("%02d:%02d:00", c.Hour(), c.Minute()), nil
}
