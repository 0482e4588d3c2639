package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clocks(t *testing.T, ss ...string) []Clock {
	t.Helper()
	out := make([]Clock, 0, len(ss))
	for _, s := range ss {
		c, err := ParseClock(s)
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerator_Weekdays(t *testing.T) {
	g := NewGenerator(30*time.Minute, DefaultHours())
	want := clocks(t,
		"10:00", "10:30", "11:00", "11:30",
		"14:00", "14:30", "15:00", "15:30", "16:00",
		"18:30",
	)

	// 2026-10-19 is a Monday.
	for i := 0; i < 5; i++ {
		d := date(2026, 10, 19+i)
		require.NotEqual(t, time.Saturday, d.Weekday())
		assert.Equal(t, want, g.Slots(d), d.Weekday().String())
	}
}

func TestGenerator_Saturday(t *testing.T) {
	g := NewGenerator(30*time.Minute, DefaultHours())
	slots := g.Slots(date(2026, 10, 24))

	require.Len(t, slots, 12)
	assert.Equal(t, MustClock("08:00"), slots[0])
	assert.Equal(t, MustClock("13:30"), slots[len(slots)-1])
}

func TestGenerator_SundayIsEmpty(t *testing.T) {
	g := NewGenerator(30*time.Minute, DefaultHours())
	for _, d := range []time.Time{date(2026, 10, 18), date(2026, 10, 25), date(2027, 1, 3)} {
		require.Equal(t, time.Sunday, d.Weekday())
		assert.Empty(t, g.Slots(d))
	}
}

func TestGenerator_SundayClosedWhateverTheHours(t *testing.T) {
	allDay := []Block{{Start: MustClock("00:00"), End: MustClock("23:30")}}
	g := NewGenerator(30*time.Minute, Hours{Weekday: allDay, Saturday: allDay})

	assert.Nil(t, g.hours.For(time.Sunday))
	for d := date(2026, 1, 4); d.Year() == 2026; d = AddDays(d, 7) {
		require.Equal(t, time.Sunday, d.Weekday())
		assert.Empty(t, g.Slots(d), FormatDate(d))
		assert.False(t, g.Offers(d, MustClock("10:00")))
	}
	assert.NotEmpty(t, g.Slots(date(2026, 10, 24)))
}

func TestGenerator_DropsPartialTrailingSlot(t *testing.T) {
	hours := Hours{
		Weekday: []Block{
			{Start: MustClock("10:00"), End: MustClock("10:45")},
			{Start: MustClock("12:00"), End: MustClock("12:20")},
		},
	}
	g := NewGenerator(30*time.Minute, hours)

	assert.Equal(t, clocks(t, "10:00"), g.Slots(date(2026, 10, 21)))
}

func TestGenerator_CustomStep(t *testing.T) {
	hours := Hours{Saturday: []Block{{Start: MustClock("09:00"), End: MustClock("10:00")}}}
	g := NewGenerator(20*time.Minute, hours)

	assert.Equal(t, clocks(t, "09:00", "09:20", "09:40"), g.Slots(date(2026, 10, 24)))
	assert.Empty(t, g.Slots(date(2026, 10, 21)))
}

func TestGenerator_IsPure(t *testing.T) {
	g := NewGenerator(30*time.Minute, DefaultHours())
	d := date(2026, 10, 21)

	first := g.Slots(d)
	first[0] = MustClock("23:00")

	assert.Equal(t, g.Slots(d), g.Slots(d))
	assert.Equal(t, MustClock("10:00"), g.Slots(d)[0])
}

func TestGenerator_Offers(t *testing.T) {
	g := NewGenerator(30*time.Minute, DefaultHours())
	wed := date(2026, 10, 21)

	assert.True(t, g.Offers(wed, MustClock("18:30")))
	assert.False(t, g.Offers(wed, MustClock("19:00")))
	assert.False(t, g.Offers(wed, MustClock("10:15")))
	assert.False(t, g.Offers(date(2026, 10, 25), MustClock("10:00")))
}

func TestNewGenerator_DefaultsStep(t *testing.T) {
	assert.Equal(t, DefaultStep, NewGenerator(0, DefaultHours()).Step())
	assert.Equal(t, 15*time.Minute, NewGenerator(15*time.Minute+10*time.Second, DefaultHours()).Step())
}

func TestParseBlock(t *testing.T) {
	b, err := ParseBlock("14:00-16:30")
	require.NoError(t, err)
	assert.Equal(t, "14:00-16:30", b.String())

	for _, bad := range []string{"14:00", "16:00-14:00", "aa-bb", "10:00-10:00"} {
		_, err := ParseBlock(bad)
		assert.Error(t, err, bad)
	}
}
