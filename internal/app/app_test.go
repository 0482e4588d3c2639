package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-scheduler/internal/app"
	"github.com/jwalitptl/clinic-scheduler/internal/config"
	"github.com/jwalitptl/clinic-scheduler/internal/email"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/memory"
	"github.com/jwalitptl/clinic-scheduler/pkg/messaging"
	"github.com/jwalitptl/clinic-scheduler/pkg/security"
)

const (
	adminUser     = "admin"
	adminPassword = "admin-pass"
)

// Wednesday 2026-10-21, 15:00 UTC.
var fixedNow = time.Date(2026, 10, 21, 15, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 0, TimeoutSeconds: 5},
		JWT:    config.JWTConfig{ExpiryHours: 1, Issuer: "clinic-test"},
		Log:    config.LogConfig{Level: "error"},
		Schedule: config.ScheduleConfig{
			Timezone:       "UTC",
			StepMinutes:    30,
			MinLeadDays:    2,
			WindowDays:     7,
			CacheTTL:       time.Minute,
			WeekdayBlocks:  []string{"10:00-12:00", "14:00-16:30", "18:30-19:00"},
			SaturdayBlocks: []string{"08:00-14:00"},
			UpcomingDays:   7,
		},
		Outbox: config.OutboxConfig{
			BatchSize:     10,
			PollInterval:  time.Second,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
			Retention:     time.Hour,
		},
		Reminder: config.ReminderConfig{Enabled: true, At: "18:00", Template: "recordatorio_cita", Language: "es_MX"},
		Security: config.SecurityConfig{AllowedOrigins: []string{"*"}},
		Secrets: config.Secrets{
			JWTSecret:     "test-secret",
			AdminUser:     adminUser,
			AdminPassword: adminPassword,
		},
	}
}

// response mirrors the JSON envelope every endpoint answers with.
type response struct {
	Code   int             `json:"-"`
	Status string          `json:"status"`
	Reason string          `json:"reason"`
	Data   json.RawMessage `json:"data"`
}

func (r response) IsSuccess() bool {
	return r.Status == "success"
}

type capturingBroker struct {
	mu     sync.Mutex
	topics []string
}

func (b *capturingBroker) Publish(_ context.Context, topic string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	return nil
}

func (b *capturingBroker) Close() error { return nil }

var _ messaging.Broker = (*capturingBroker)(nil)

type APISuite struct {
	suite.Suite

	store  *memory.Store
	app    *app.App
	server http.Handler
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	s.store = memory.NewStore()
	a, err := app.New(testConfig(), app.MemoryStore(s.store), nil,
		app.WithClock(func() time.Time { return fixedNow }),
		app.WithHasher(security.NewBcryptHasher(bcrypt.MinCost, "")),
		app.WithMailer(email.NopService{}),
	)
	s.Require().NoError(err)
	s.app = a

	r, err := a.Router()
	s.Require().NoError(err)
	s.server = r
}

func (s *APISuite) request(method, path string, body interface{}, token string) response {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.server.ServeHTTP(w, req)

	resp := response{Code: w.Code}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return resp
}

func (s *APISuite) register(name, phone string) string {
	resp := s.request(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name":     name,
		"phone":    phone,
		"password": "123456",
	}, "")
	s.Require().Equal(http.StatusCreated, resp.Code)

	var token model.TokenResponse
	s.Require().NoError(json.Unmarshal(resp.Data, &token))
	s.Require().NotEmpty(token.AccessToken)
	return token.AccessToken
}

func (s *APISuite) adminToken() string {
	resp := s.request(http.MethodPost, "/api/v1/auth/admin/login", map[string]string{
		"username": adminUser,
		"password": adminPassword,
	}, "")
	s.Require().Equal(http.StatusOK, resp.Code)

	var token model.TokenResponse
	s.Require().NoError(json.Unmarshal(resp.Data, &token))
	return token.AccessToken
}

func (s *APISuite) availability(date string) model.Availability {
	resp := s.request(http.MethodGet, "/api/v1/availability?date="+date, nil, "")
	s.Require().Equal(http.StatusOK, resp.Code)

	var a model.Availability
	s.Require().NoError(json.Unmarshal(resp.Data, &a))
	return a
}

func slotTimes(a model.Availability) []string {
	out := make([]string, 0, len(a.Slots))
	for _, c := range a.Slots {
		out = append(out, c.String())
	}
	return out
}

func book(date, at string) map[string]string {
	return map[string]string{"date": date, "time": at}
}

func (s *APISuite) TestHealth() {
	s.Equal(http.StatusOK, s.request(http.MethodGet, "/api/v1/health/live", nil, "").Code)
	s.Equal(http.StatusOK, s.request(http.MethodGet, "/api/v1/health/ready", nil, "").Code)

	s.store.SetFailure(assert.AnError)
	s.Equal(http.StatusServiceUnavailable, s.request(http.MethodGet, "/api/v1/health/ready", nil, "").Code)
}

func (s *APISuite) TestAvailabilityDefaultsToEarliestDate() {
	resp := s.request(http.MethodGet, "/api/v1/availability", nil, "")
	s.Require().Equal(http.StatusOK, resp.Code)

	var a model.Availability
	s.Require().NoError(json.Unmarshal(resp.Data, &a))
	s.Equal("2026-10-23", a.Date)
	s.True(a.Bookable)
	s.Len(a.Slots, 10)
}

func (s *APISuite) TestAvailabilityRejectsBadDate() {
	resp := s.request(http.MethodGet, "/api/v1/availability?date=23/10/2026", nil, "")
	s.Equal(http.StatusBadRequest, resp.Code)
}

func (s *APISuite) TestBookingFlow() {
	ana := s.register("Ana", "55 1234 5678")
	luis := s.register("Luis", "55 8765 4321")

	s.Len(s.availability("2026-10-23").Slots, 10)

	resp := s.request(http.MethodPost, "/api/v1/appointments", book("2026-10-23", "10:00"), ana)
	s.Require().Equal(http.StatusCreated, resp.Code)
	s.True(resp.IsSuccess())

	free := s.availability("2026-10-23")
	s.Len(free.Slots, 9)
	s.NotContains(slotTimes(free), "10:00")

	tests := []struct {
		name   string
		token  string
		body   map[string]string
		status int
		reason string
	}{
		{"slot taken", luis, book("2026-10-23", "10:00"), http.StatusConflict, "slot_taken"},
		{"same day", ana, book("2026-10-23", "10:30"), http.StatusUnprocessableEntity, "already_booked_that_day"},
		{"inside window", ana, book("2026-10-27", "10:00"), http.StatusUnprocessableEntity, "one_per_window"},
		{"too soon", luis, book("2026-10-22", "10:00"), http.StatusUnprocessableEntity, "date_not_allowed"},
		{"not offered", luis, book("2026-10-23", "12:00"), http.StatusUnprocessableEntity, "slot_not_offered"},
		{"closed sunday", luis, book("2026-10-25", "10:00"), http.StatusUnprocessableEntity, "slot_not_offered"},
		{"off grid", luis, book("2026-10-23", "10:15"), http.StatusUnprocessableEntity, "slot_not_offered"},
		{"bad time", luis, book("2026-10-23", "10h"), http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			resp := s.request(http.MethodPost, "/api/v1/appointments", tt.body, tt.token)
			s.Equal(tt.status, resp.Code)
			if tt.reason != "" {
				s.Equal(tt.reason, resp.Reason)
			}
		})
	}

	resp = s.request(http.MethodPost, "/api/v1/appointments", book("2026-10-30", "10:00"), ana)
	s.Equal(http.StatusCreated, resp.Code, "a week later is outside the window")

	resp = s.request(http.MethodGet, "/api/v1/appointments/mine", nil, ana)
	s.Require().Equal(http.StatusOK, resp.Code)
	var mine []model.AppointmentDetail
	s.Require().NoError(json.Unmarshal(resp.Data, &mine))
	s.Len(mine, 2)
}

func (s *APISuite) TestPatientRoutesRequireToken() {
	s.Equal(http.StatusUnauthorized, s.request(http.MethodPost, "/api/v1/appointments", book("2026-10-23", "10:00"), "").Code)
	s.Equal(http.StatusUnauthorized, s.request(http.MethodGet, "/api/v1/patients/me", nil, "garbage").Code)
}

func (s *APISuite) TestAdminRoutesRejectPatients() {
	ana := s.register("Ana", "5512345678")
	s.Equal(http.StatusForbidden, s.request(http.MethodGet, "/api/v1/admin/appointments/board", nil, ana).Code)
}

func (s *APISuite) TestAdminBoardAndManualBooking() {
	admin := s.adminToken()
	ana := s.register("Ana", "5512345678")
	s.Require().Equal(http.StatusCreated, s.request(http.MethodPost, "/api/v1/appointments", book("2026-10-23", "14:00"), ana).Code)

	// The admin may book tomorrow, which patients cannot.
	resp := s.request(http.MethodPost, "/api/v1/admin/appointments", map[string]string{
		"date":  "2026-10-22",
		"time":  "10:00",
		"name":  "Rosa",
		"phone": "5511112222",
	}, admin)
	s.Require().Equal(http.StatusCreated, resp.Code)

	resp = s.request(http.MethodPost, "/api/v1/admin/appointments", map[string]string{
		"date":  "2026-10-23",
		"time":  "14:00",
		"name":  "Rosa",
		"phone": "5511112222",
	}, admin)
	s.Equal(http.StatusConflict, resp.Code)
	s.Equal("slot_taken", resp.Reason)

	resp = s.request(http.MethodGet, "/api/v1/admin/appointments/board?date=2026-10-23", nil, admin)
	s.Require().Equal(http.StatusOK, resp.Code)
	var board model.DayBoard
	s.Require().NoError(json.Unmarshal(resp.Data, &board))
	s.True(board.Open)
	s.Require().Len(board.Slots, 10)
	for _, slot := range board.Slots {
		if slot.Time.String() == "14:00" {
			s.False(slot.Free)
			s.Require().NotNil(slot.Appointment)
			s.Require().NotNil(slot.Appointment.PatientName)
			s.Equal("Ana", *slot.Appointment.PatientName)
		} else {
			s.True(slot.Free, slot.Time.String())
		}
	}

	resp = s.request(http.MethodPost, "/api/v1/admin/reminders/run?dry_run=true", nil, admin)
	s.Require().Equal(http.StatusOK, resp.Code)
	var summary model.ReminderSummary
	s.Require().NoError(json.Unmarshal(resp.Data, &summary))
	s.True(summary.DryRun)
	s.Equal(1, summary.Total)
	s.Equal(1, summary.Sent)
}

func (s *APISuite) TestDeleteFreesSlot() {
	admin := s.adminToken()
	ana := s.register("Ana", "5512345678")

	resp := s.request(http.MethodPost, "/api/v1/appointments", book("2026-10-24", "08:00"), ana)
	s.Require().Equal(http.StatusCreated, resp.Code)
	var appt model.Appointment
	s.Require().NoError(json.Unmarshal(resp.Data, &appt))
	s.NotContains(slotTimes(s.availability("2026-10-24")), "08:00")

	s.Equal(http.StatusNoContent, s.request(http.MethodDelete, "/api/v1/admin/appointments/"+appt.ID.String(), nil, admin).Code)
	s.Equal(http.StatusNotFound, s.request(http.MethodDelete, "/api/v1/admin/appointments/"+appt.ID.String(), nil, admin).Code)
	s.Len(s.availability("2026-10-24").Slots, 12)
}

func (s *APISuite) TestBookingWithTokenOfDeletedPatient() {
	ana := s.register("Ana", "5512345678")
	p, err := s.store.Patients.GetByPhone(context.Background(), "5512345678")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Patients.Delete(context.Background(), p.ID))

	resp := s.request(http.MethodPost, "/api/v1/appointments", book("2026-10-24", "10:00"), ana)
	s.Equal(http.StatusNotFound, resp.Code)
	s.Equal("not_found", resp.Reason)
	s.Contains(slotTimes(s.availability("2026-10-24")), "10:00")
}

func (s *APISuite) TestOutboxRelaysBookingEvents() {
	ana := s.register("Ana", "5512345678")
	s.Require().Equal(http.StatusCreated, s.request(http.MethodPost, "/api/v1/appointments", book("2026-10-23", "10:00"), ana).Code)

	broker := &capturingBroker{}
	processor, err := s.app.OutboxProcessor(broker)
	s.Require().NoError(err)

	n, err := processor.ProcessOnce(context.Background())
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Equal([]string{model.EventAppointmentBooked}, broker.topics)

	n, err = processor.ProcessOnce(context.Background())
	s.Require().NoError(err)
	s.Zero(n)
}

func TestSchedulerFromConfig(t *testing.T) {
	cfg := testConfig()
	a, err := app.New(cfg, app.MemoryStore(memory.NewStore()), nil, app.WithMailer(email.NopService{}))
	require.NoError(t, err)

	processor, err := a.OutboxProcessor(&capturingBroker{})
	require.NoError(t, err)

	sched, err := a.Scheduler(processor)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"outbox", "outbox-cleanup", "reminder"}, sched.Tags())

	cfg.Reminder.Enabled = false
	sched, err = a.Scheduler(processor)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"outbox", "outbox-cleanup"}, sched.Tags())
}
