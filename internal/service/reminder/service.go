// Package reminder builds and queues the day-before appointment reminders.
package reminder

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jwalitptl/clinic-scheduler/internal/email"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

var (
	nonDigits = regexp.MustCompile(`\D+`)

	ErrInvalidPhone = errors.New("invalid phone, expected E.164")
)

// displayDate is the day/month/year format patients read in messages.
const displayDate = "02/01/2006"

// ToE164 normalizes a Mexican phone number. Numbers already carrying a "+"
// are returned unchanged; "52..." gets a "+" and bare 10-digit numbers get
// "+52". Anything else is rejected.
func ToE164(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	digits := nonDigits.ReplaceAllString(phone, "")
	switch {
	case digits == "":
		return "", ErrInvalidPhone
	case strings.HasPrefix(phone, "+"):
		return phone, nil
	case strings.HasPrefix(digits, "52"):
		return "+" + digits, nil
	case len(digits) == 10:
		return "+52" + digits, nil
	default:
		return "", ErrInvalidPhone
	}
}

type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

type Config struct {
	Template string
	Language string
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	appointments repository.AppointmentRepository
	events       EventPublisher
	mailer       email.Service
	metrics      *metrics.Metrics
	log          *logger.Logger
	cfg          Config
}

func NewService(
	appointments repository.AppointmentRepository,
	events EventPublisher,
	mailer email.Service,
	m *metrics.Metrics,
	log *logger.Logger,
	cfg Config,
) *Service {
	if mailer == nil {
		mailer = email.NopService{}
	}
	if m == nil {
		m = metrics.Nop()
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Language == "" {
		cfg.Language = "es_MX"
	}
	return &Service{
		appointments: appointments,
		events:       events,
		mailer:       mailer,
		metrics:      m,
		log:          log,
		cfg:          cfg,
	}
}

// SendTomorrow queues a reminder for every appointment booked for tomorrow
// that is linked to a patient. In a dry run the summary is built but nothing
// is queued or mailed.
func (s *Service) SendTomorrow(ctx context.Context, dryRun bool) (*model.ReminderSummary, error) {
	tomorrow := schedule.AddDays(schedule.Today(s.cfg.Now(), s.cfg.Location), 1)
	return s.SendFor(ctx, tomorrow, dryRun)
}

func (s *Service) SendFor(ctx context.Context, date time.Time, dryRun bool) (*model.ReminderSummary, error) {
	list, err := s.appointments.ListByDate(ctx, schedule.Day(date))
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}

	summary := &model.ReminderSummary{DryRun: dryRun, Details: []model.ReminderResult{}}
	for _, a := range list {
		if a.PatientID == nil {
			continue
		}
		summary.Total++

		res := s.remind(ctx, a, dryRun)
		if res.OK {
			summary.Sent++
		} else {
			summary.Failed++
		}
		summary.Details = append(summary.Details, res)
	}

	s.log.WithContext(ctx).Info("reminders processed",
		"date", schedule.FormatDate(date),
		"total", summary.Total,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"dry_run", dryRun,
	)
	return summary, nil
}

func (s *Service) remind(ctx context.Context, a *model.AppointmentDetail, dryRun bool) model.ReminderResult {
	res := model.ReminderResult{
		AppointmentID: a.ID,
		Name:          strings.TrimSpace(deref(a.PatientName)),
		Phone:         strings.TrimSpace(deref(a.PatientPhone)),
		Date:          a.Date.Format(displayDate),
		Time:          a.Time.String(),
	}

	to, err := ToE164(res.Phone)
	if err != nil {
		res.Error = err.Error()
		s.metrics.RemindersSent.WithLabelValues("whatsapp", "invalid").Inc()
		return res
	}
	res.To = to

	if dryRun {
		res.OK = true
		return res
	}

	name := res.Name
	if name == "" {
		name = "Paciente"
	}
	err = s.events.Publish(ctx, model.EventReminderWhatsApp, model.WhatsAppReminder{
		To:       to,
		Name:     name,
		Date:     res.Date,
		Time:     res.Time,
		Template: s.cfg.Template,
		Language: s.cfg.Language,
	})
	if err != nil {
		res.Error = err.Error()
		s.metrics.RemindersSent.WithLabelValues("whatsapp", "error").Inc()
		return res
	}
	res.OK = true
	s.metrics.RemindersSent.WithLabelValues("whatsapp", "queued").Inc()

	if addr := strings.TrimSpace(deref(a.PatientEmail)); addr != "" {
		err := s.mailer.SendReminder(ctx, addr, email.Reminder{Name: name, Date: res.Date, Time: res.Time})
		if err != nil {
			s.metrics.RemindersSent.WithLabelValues("email", "error").Inc()
			s.log.WithContext(ctx).Error(err, "reminder email failed", "appointment_id", a.ID.String())
		} else {
			s.metrics.RemindersSent.WithLabelValues("email", "sent").Inc()
		}
	}
	return res
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
