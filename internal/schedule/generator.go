// Package schedule turns calendar dates into bookable slot start times.
package schedule

import (
	"time"
)

// DefaultStep is the slot length used when none is configured.
const DefaultStep = 30 * time.Minute

// Generator maps a date to its ordered slot start times. It holds no mutable
// state; callers may share one instance freely.
type Generator struct {
	step  time.Duration
	hours Hours
}

func NewGenerator(step time.Duration, hours Hours) *Generator {
	step = step.Truncate(time.Minute)
	if step <= 0 {
		step = DefaultStep
	}
	return &Generator{step: step, hours: hours}
}

func (g *Generator) Step() time.Duration { return g.step }

// Slots walks each block of the date's regime start-inclusive,
// end-exclusive. A trailing remainder shorter than one step is dropped.
func (g *Generator) Slots(date time.Time) []Clock {
	blocks := g.hours.For(date.Weekday())
	slots := make([]Clock, 0, g.capacity(blocks))
	for _, b := range blocks {
		for t := b.Start; t.Add(g.step) <= b.End; t = t.Add(g.step) {
			slots = append(slots, t)
		}
	}
	return slots
}

// Offers reports whether t is one of the date's slot starts.
func (g *Generator) Offers(date time.Time, t Clock) bool {
	for _, s := range g.Slots(date) {
		if s == t {
			return true
		}
	}
	return false
}

func (g *Generator) capacity(blocks []Block) int {
	n := 0
	stepMin := int(g.step / time.Minute)
	for _, b := range blocks {
		if b.End > b.Start {
			n += (int(b.End) - int(b.Start)) / stepMin
		}
	}
	return n
}
