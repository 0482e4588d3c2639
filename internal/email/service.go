package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-scheduler/internal/config"
)

type Service interface {
	SendReminder(ctx context.Context, to string, r Reminder) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

// Reminder is the data rendered into the appointment reminder email.
type Reminder struct {
	Name string
	Date string
	Time string
}

var reminderTemplate = template.Must(template.New("reminder").Parse(
	`<p>Hola {{.Name}},</p>` +
		`<p>Te recordamos tu cita el <strong>{{.Date}}</strong> a las <strong>{{.Time}}</strong>.</p>` +
		`<p>Si no puedes asistir, avísanos con anticipación.</p>`,
))

type smtpService struct {
	sender gomail.Sender
	from   string
}

// NewSMTPService dials the configured server for each send. When no host
// is configured it returns a service that drops every message.
func NewSMTPService(cfg config.SMTPConfig, password string) Service {
	if cfg.Host == "" {
		return NopService{}
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, password)
	return &smtpService{sender: dialSender{d}, from: cfg.From}
}

// NewService sends through an arbitrary gomail sender.
func NewService(sender gomail.Sender, from string) Service {
	return &smtpService{sender: sender, from: from}
}

func (s *smtpService) SendReminder(ctx context.Context, to string, r Reminder) error {
	var body bytes.Buffer
	if err := reminderTemplate.Execute(&body, r); err != nil {
		return fmt.Errorf("render reminder: %w", err)
	}
	return s.SendCustom(ctx, to, "Recordatorio de tu cita "+r.Date, body.String())
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", content)

	if err := gomail.Send(s.sender, m); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

// dialSender opens one SMTP connection per message.
type dialSender struct {
	d *gomail.Dialer
}

func (s dialSender) Send(from string, to []string, msg io.WriterTo) error {
	conn, err := s.d.Dial()
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.Send(from, to, msg)
}

type NopService struct{}

func (NopService) SendReminder(context.Context, string, Reminder) error { return nil }

func (NopService) SendCustom(context.Context, string, string, string) error { return nil }
