package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string

	GoogleClientID     string
	GoogleClientSecret string

	CatalogBaseURL string
	CatalogAPIKey  string

	ScheduleHour     int    // 0-23, local to ScheduleTimezone
	ScheduleMinute   int    // 0-59
	ScheduleTimezone string // IANA zone name, e.g. "Europe/Berlin"

	MaxAccountsPerCycle int
	WorkDir             string
	MinVideoBytes       int64

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	ReportEmail  string // operations address for cycle reports and generic alerts

	LogLevel    string
	LogEncoding string

	ShutdownTimeout int // seconds
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	googleClientID := os.Getenv("GOOGLE_CLIENT_ID")
	googleClientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	if googleClientID == "" || googleClientSecret == "" {
		fmt.Println("Warning: GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set, token refresh and uploads will not work")
	}

	catalogBaseURL := os.Getenv("CATALOG_BASE_URL")
	if catalogBaseURL == "" {
		return nil, fmt.Errorf("CATALOG_BASE_URL is required")
	}

	hour, err := intEnv("SCHEDULE_HOUR", 4)
	if err != nil {
		return nil, err
	}
	minute, err := intEnv("SCHEDULE_MINUTE", 30)
	if err != nil {
		return nil, err
	}
	zone := os.Getenv("SCHEDULE_TIMEZONE")
	if zone == "" {
		zone = "UTC"
	}
	// The process must refuse to schedule on an invalid trigger, so
	// hour/minute/zone are rejected here rather than at cron registration.
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("SCHEDULE_HOUR must be between 0 and 23, got %d", hour)
	}
	if minute < 0 || minute > 59 {
		return nil, fmt.Errorf("SCHEDULE_MINUTE must be between 0 and 59, got %d", minute)
	}
	if _, err := time.LoadLocation(zone); err != nil {
		return nil, fmt.Errorf("SCHEDULE_TIMEZONE %q is not a known time zone: %w", zone, err)
	}

	maxAccounts, err := intEnv("MAX_ACCOUNTS_PER_CYCLE", 10)
	if err != nil {
		return nil, err
	}
	if maxAccounts < 1 {
		return nil, fmt.Errorf("MAX_ACCOUNTS_PER_CYCLE must be at least 1, got %d", maxAccounts)
	}

	workDir := os.Getenv("WORK_DIR")
	if workDir == "" {
		workDir = os.TempDir()
	}

	smtpPort, err := intEnv("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}

	reportEmail := os.Getenv("REPORT_EMAIL")
	if reportEmail == "" {
		fmt.Println("Warning: REPORT_EMAIL not set, cycle reports will not be delivered")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logEncoding := os.Getenv("LOG_ENCODING")
	if logEncoding == "" {
		logEncoding = "json"
	}

	return &Config{
		DatabaseURL:         dbURL,
		GoogleClientID:      googleClientID,
		GoogleClientSecret:  googleClientSecret,
		CatalogBaseURL:      catalogBaseURL,
		CatalogAPIKey:       os.Getenv("CATALOG_API_KEY"),
		ScheduleHour:        hour,
		ScheduleMinute:      minute,
		ScheduleTimezone:    zone,
		MaxAccountsPerCycle: maxAccounts,
		WorkDir:             workDir,
		MinVideoBytes:       1024, // anything smaller is a corrupt artifact
		SMTPHost:            os.Getenv("SMTP_HOST"),
		SMTPPort:            smtpPort,
		SMTPUsername:        os.Getenv("SMTP_USERNAME"),
		SMTPPassword:        os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:            os.Getenv("SMTP_FROM"),
		ReportEmail:         reportEmail,
		LogLevel:            logLevel,
		LogEncoding:         logEncoding,
		ShutdownTimeout:     30,
	}, nil
}

// CronSpec renders the validated schedule as a robfig/cron expression
// (seconds field included, fired once per day at hour:minute in the zone).
func (c *Config) CronSpec() string {
	return fmt.Sprintf("CRON_TZ=%s 0 %d %d * * *", c.ScheduleTimezone, c.ScheduleMinute, c.ScheduleHour)
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return v, nil
}
