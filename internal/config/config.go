// Package config loads process configuration from the environment and
// parses the processFromAfter cutoff value accepted in both static
// config and the live admin-config overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process-level configuration loaded once at startup.
// Fields here are process defaults; internal/config.Overlay merges the
// live admin/smtpAgentConfig document over them on every tick.
type Config struct {
	FirebaseProjectID          string
	FirebaseServiceAccountPath string
	FirebaseDatabaseURL        string

	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMTPUseTLS       bool
	SMTPFrom         string
	SMTPFromName     string
	SMTPMaxPerMinute int

	LogLevel         string
	LogFile          string
	PollInterval     time.Duration
	MaxRetryCount    int
	ProcessFromAfter *time.Time

	AdminListenAddr string
	AdminUser       string
	AdminPass       string

	DefaultsFilePath string
	SentryDSN        string
	Environment      string
}

// Load reads Config from the environment, applying the same defaults
// as the reference deployment for every unset value.
func Load() (Config, error) {
	var cfg Config

	cfg.FirebaseProjectID = getEnv("FIREBASE_PROJECT_ID", "")
	cfg.FirebaseServiceAccountPath = firstNonEmpty(
		os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"),
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
	)
	cfg.FirebaseDatabaseURL = getEnv("FIREBASE_DATABASE_URL", "")

	cfg.SMTPHost = getEnv("SMTP_SERVER", "")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUsername = getEnv("SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SMTPUseTLS = getEnvBool("SMTP_USE_TLS", true)
	cfg.SMTPFrom = getEnv("SMTP_FROM_EMAIL", "")
	cfg.SMTPFromName = getEnv("SMTP_FROM_NAME", "")
	cfg.SMTPMaxPerMinute = getEnvInt("SMTP_MAX_PER_MINUTE", 60)

	cfg.LogLevel = strings.ToUpper(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFile = getEnv("LOG_FILE", "smtp_agent.log")
	cfg.PollInterval = time.Duration(getEnvInt("POLL_INTERVAL", 60)) * time.Second
	cfg.MaxRetryCount = getEnvInt("MAX_RETRY_COUNT", 5)
	cfg.ProcessFromAfter = ParseCutoff(getEnv("PROCESS_FROM_AFTER", ""))

	cfg.AdminListenAddr = getEnv("ADMIN_LISTEN_ADDR", fmt.Sprintf(":%d", getEnvInt("ADMIN_PORT", 8787)))
	cfg.AdminUser = getEnv("ADMIN_USER", "")
	cfg.AdminPass = getEnv("ADMIN_PASS", "")

	cfg.DefaultsFilePath = getEnv("SMTP_AGENT_DEFAULTS_FILE", "")
	cfg.SentryDSN = getEnv("SENTRY_DSN", "")
	cfg.Environment = getEnv("SMTP_AGENT_ENVIRONMENT", "production")

	return cfg, nil
}

// ParseCutoff parses value as either "YYYY-MM-DD" or an ISO-8601
// timestamp, returning nil for an empty or unparseable value. A
// trailing 'Z' is treated as UTC, and a naive timestamp is assumed UTC.
func ParseCutoff(value string) *time.Time {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}

	if len(v) == 10 && v[4] == '-' && v[7] == '-' {
		if t, err := time.ParseInLocation("2006-01-02", v, time.UTC); err == nil {
			return &t
		}
		return nil
	}

	if t, err := time.Parse(time.RFC3339, v); err == nil {
		utc := t.UTC()
		return &utc
	}
	if t, err := time.Parse("2006-01-02T15:04:05", v); err == nil {
		utc := t.UTC()
		return &utc
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	return v
}

func getEnvInt(key string, defaultValue int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}
