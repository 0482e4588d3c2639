package appointment

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

const DefaultCacheTTL = 5 * time.Second

// Availability answers "which slots are still free on this date". Results are
// cached per date for a short TTL; the cache only shapes what is displayed and
// is never consulted when a booking is written.
type Availability struct {
	gen     *schedule.Generator
	repo    repository.AppointmentRepository
	cache   *cache.Cache
	metrics *metrics.Metrics
}

// NewAvailability builds a resolver. A zero ttl uses DefaultCacheTTL and a
// negative ttl disables caching.
func NewAvailability(gen *schedule.Generator, repo repository.AppointmentRepository, ttl time.Duration, m *metrics.Metrics) *Availability {
	a := &Availability{gen: gen, repo: repo, metrics: m}
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	if ttl > 0 {
		a.cache = cache.New(ttl, 2*ttl)
	}
	return a
}

// Free returns the date's generated slots minus the occupied ones, in slot order.
func (a *Availability) Free(ctx context.Context, date time.Time) ([]schedule.Clock, error) {
	date = schedule.Day(date)
	key := schedule.FormatDate(date)

	if a.cache != nil {
		if cached, found := a.cache.Get(key); found {
			a.observe(true)
			return append([]schedule.Clock(nil), cached.([]schedule.Clock)...), nil
		}
		a.observe(false)
	}

	slots := a.gen.Slots(date)
	if len(slots) == 0 {
		return slots, nil
	}

	occupied, err := a.repo.OccupiedTimes(ctx, date)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	taken := make(map[schedule.Clock]struct{}, len(occupied))
	for _, t := range occupied {
		taken[t] = struct{}{}
	}

	free := make([]schedule.Clock, 0, len(slots))
	for _, s := range slots {
		if _, ok := taken[s]; !ok {
			free = append(free, s)
		}
	}

	if a.cache != nil {
		a.cache.Set(key, free, cache.DefaultExpiration)
	}
	return append([]schedule.Clock(nil), free...), nil
}

// Invalidate drops cached answers for the given dates.
func (a *Availability) Invalidate(dates ...time.Time) {
	if a.cache == nil {
		return
	}
	for _, d := range dates {
		a.cache.Delete(schedule.FormatDate(schedule.Day(d)))
	}
}

// Board lists every generated slot of the date with the appointment holding
// it, read fresh from the store. Appointments at times the generator does not
// offer (for example after an hours change) are reported separately.
func (a *Availability) Board(ctx context.Context, date time.Time) (*model.DayBoard, error) {
	date = schedule.Day(date)
	appts, err := a.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}

	byTime := make(map[schedule.Clock]*model.AppointmentDetail, len(appts))
	for _, ap := range appts {
		byTime[ap.Time] = ap
	}

	slots := a.gen.Slots(date)
	board := &model.DayBoard{
		Date:  schedule.FormatDate(date),
		Open:  len(slots) > 0,
		Slots: make([]model.SlotStatus, 0, len(slots)),
	}
	for _, s := range slots {
		ap, held := byTime[s]
		board.Slots = append(board.Slots, model.SlotStatus{Time: s, Free: !held, Appointment: ap})
		delete(byTime, s)
	}
	for _, ap := range appts {
		if _, off := byTime[ap.Time]; off {
			board.OffSchedule = append(board.OffSchedule, ap)
		}
	}
	return board, nil
}

func (a *Availability) observe(hit bool) {
	if a.metrics != nil {
		a.metrics.CacheResult(hit)
	}
}
