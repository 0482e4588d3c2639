package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Security  SecurityConfig  `mapstructure:"security"`

	Secrets Secrets `mapstructure:"-"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Channel      string        `mapstructure:"channel"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	ExpiryHours int    `mapstructure:"expiry_hours"`
	Issuer      string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ScheduleConfig holds the business hours and booking rules.
type ScheduleConfig struct {
	Timezone       string        `mapstructure:"timezone"`
	StepMinutes    int           `mapstructure:"step_minutes"`
	MinLeadDays    int           `mapstructure:"min_lead_days"`
	WindowDays     int           `mapstructure:"window_days"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	WeekdayBlocks  []string      `mapstructure:"weekday_blocks"`
	SaturdayBlocks []string      `mapstructure:"saturday_blocks"`
	UpcomingDays   int           `mapstructure:"upcoming_days"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Retention     time.Duration `mapstructure:"retention"`
}

type ReminderConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	At       string `mapstructure:"at"`
	Template string `mapstructure:"template"`
	Language string `mapstructure:"language"`
}

type SMTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	User string `mapstructure:"user"`
	From string `mapstructure:"from"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Secrets never live in config.yaml; they are read from CLINIC_* variables.
type Secrets struct {
	JWTSecret       string `envconfig:"JWT_SECRET" required:"true"`
	AdminUser       string `envconfig:"ADMIN_USER" default:"admin"`
	AdminPassword   string `envconfig:"ADMIN_PASSWORD" required:"true"`
	PasswordPepper  string `envconfig:"PASSWORD_PEPPER"`
	WhatsAppToken   string `envconfig:"WHATSAPP_TOKEN"`
	WhatsAppPhoneID string `envconfig:"WHATSAPP_PHONE_ID"`
	SMTPPassword    string `envconfig:"SMTP_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "clinic")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.channel", "clinic.events")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("jwt.expiry_hours", 24)
	v.SetDefault("jwt.issuer", "clinic-scheduler")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("schedule.timezone", "America/Mexico_City")
	v.SetDefault("schedule.step_minutes", 30)
	v.SetDefault("schedule.min_lead_days", 2)
	v.SetDefault("schedule.window_days", 7)
	v.SetDefault("schedule.cache_ttl", 5*time.Second)
	v.SetDefault("schedule.weekday_blocks", []string{"10:00-12:00", "14:00-16:30", "18:30-19:00"})
	v.SetDefault("schedule.saturday_blocks", []string{"08:00-14:00"})
	v.SetDefault("schedule.upcoming_days", 7)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 5)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_attempts", 5)
	v.SetDefault("outbox.retry_delay", 30*time.Second)
	v.SetDefault("outbox.retention", 7*24*time.Hour)
	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.at", "18:00")
	v.SetDefault("reminder.template", "recordatorio_cita")
	v.SetDefault("reminder.language", "es_MX")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("security.allowed_origins", []string{"*"})
}

// LoadConfig reads config.yaml from the usual locations (a missing file is
// fine), overlays environment variables and loads secrets. A .env file in the
// working directory is loaded first when present.
func LoadConfig(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("CLINIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("CLINIC", &cfg.Secrets); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Schedule.MinLeadDays < 0 {
		return fmt.Errorf("schedule.min_lead_days must not be negative")
	}
	if c.Schedule.WindowDays < 1 {
		return fmt.Errorf("schedule.window_days must be at least 1")
	}
	if c.Schedule.StepMinutes < 1 {
		return fmt.Errorf("schedule.step_minutes must be at least 1")
	}
	if _, err := c.Hours(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Hours parses the configured business-hour blocks.
func (c *Config) Hours() (schedule.Hours, error) {
	var (
		h   schedule.Hours
		err error
	)
	if h.Weekday, err = schedule.ParseBlocks(c.Schedule.WeekdayBlocks); err != nil {
		return h, fmt.Errorf("schedule.weekday_blocks: %w", err)
	}
	if h.Saturday, err = schedule.ParseBlocks(c.Schedule.SaturdayBlocks); err != nil {
		return h, fmt.Errorf("schedule.saturday_blocks: %w", err)
	}
	return h, nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) Step() time.Duration {
	return time.Duration(c.Schedule.StepMinutes) * time.Minute
}
