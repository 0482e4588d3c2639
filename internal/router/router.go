package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	appointmenthandler "github.com/jwalitptl/clinic-scheduler/internal/handler/appointment"
	authhandler "github.com/jwalitptl/clinic-scheduler/internal/handler/auth"
	"github.com/jwalitptl/clinic-scheduler/internal/handler/health"
	patienthandler "github.com/jwalitptl/clinic-scheduler/internal/handler/patient"
	recordhandler "github.com/jwalitptl/clinic-scheduler/internal/handler/record"
	reminderhandler "github.com/jwalitptl/clinic-scheduler/internal/handler/reminder"
	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
	"github.com/jwalitptl/clinic-scheduler/pkg/auth"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
	"github.com/jwalitptl/clinic-scheduler/pkg/validator"
)

type Handlers struct {
	Auth        *authhandler.Handler
	Appointment *appointmenthandler.Handler
	Patient     *patienthandler.Handler
	Record      *recordhandler.Handler
	Reminder    *reminderhandler.Handler
	Health      *health.Handler
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	RequestTimeout   time.Duration
	ReleaseMode      bool
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	h       Handlers
	limiter gin.HandlerFunc
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	h Handlers,
	m *metrics.Metrics,
	log zerolog.Logger,
	config RouterConfig,
) (*Router, error) {
	if config.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validator.RegisterGin(); err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.Metrics(m),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
		middleware.Timeout(config.RequestTimeout),
		middleware.ErrorHandler(),
	)

	limiter := func(c *gin.Context) { c.Next() }
	if config.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		}).RateLimit()
	}

	return &Router{
		engine:  engine,
		auth:    auth,
		h:       h,
		limiter: limiter,
	}, nil
}

func (r *Router) Engine() *gin.Engine { return r.engine }

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	r.h.Health.RegisterRoutes(api)

	r.setupPublicRoutes(api)

	patient := api.Group("", middleware.NoStore(), r.auth.Authenticate(), r.auth.RequireRole(auth.RolePatient))
	r.setupPatientRoutes(patient)

	admin := api.Group("/admin", middleware.NoStore(), r.auth.Authenticate(), r.auth.RequireRole(auth.RoleAdmin))
	r.setupAdminRoutes(admin)
}

func (r *Router) setupPublicRoutes(rg *gin.RouterGroup) {
	r.h.Auth.RegisterRoutes(rg.Group("", r.limiter))
	rg.GET("/availability", middleware.NoStore(), r.h.Appointment.GetAvailability)
}

func (r *Router) setupPatientRoutes(rg *gin.RouterGroup) {
	rg.POST("/appointments", r.limiter, r.h.Appointment.Book)
	rg.GET("/appointments/mine", r.h.Appointment.ListMine)
	rg.PUT("/auth/password", r.limiter, r.h.Auth.ChangePassword)

	me := rg.Group("/patients/me")
	{
		me.GET("", r.h.Patient.GetMe)
		r.h.Record.RegisterPatientRoutes(me)
	}
}

func (r *Router) setupAdminRoutes(rg *gin.RouterGroup) {
	appointments := rg.Group("/appointments")
	{
		appointments.GET("", r.h.Appointment.ListDay)
		appointments.GET("/board", r.h.Appointment.GetBoard)
		appointments.GET("/upcoming", r.h.Appointment.ListUpcoming)
		appointments.POST("", r.h.Appointment.AdminBook)
		appointments.GET("/:id", r.h.Appointment.Get)
		appointments.PUT("/:id", r.h.Appointment.Update)
		appointments.PATCH("/:id/reschedule", r.h.Appointment.Reschedule)
		appointments.DELETE("/:id", r.h.Appointment.Delete)
	}

	r.h.Patient.RegisterAdminRoutes(rg)
	r.h.Record.RegisterAdminRoutes(rg)

	rg.POST("/reminders/run", r.h.Reminder.Run)
}
