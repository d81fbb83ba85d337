package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config obdoc-codes (invite/hospital code HTTP API) configuration.
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  DatabaseConfig
	Redis     struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}

	// Security keys. HashKey keys the invite-code HMAC; SealKey (32-byte hex)
	// encrypts reversible PII fields at rest. JWTSecret verifies issuer tokens.
	HashKey   string
	SealKey   string
	JWTSecret string

	RateLimit RateLimitConfig
	Anomaly   AnomalyConfig
	Cache     struct {
		ValidationTTL time.Duration
	}
	Alert AlertConfig
}

// DatabaseConfig PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RateLimitConfig fixed-window limits per action.
type RateLimitConfig struct {
	Validate    WindowLimit // per client IP
	InviteIssue WindowLimit // per issuer
	ClinicIssue WindowLimit // per client IP
}

// WindowLimit one fixed-window policy.
type WindowLimit struct {
	Max    int
	Window time.Duration
}

// AnomalyConfig thresholds for the attempt-pattern scan. Defaults match the ops
// alerting runbook; change them there first.
type AnomalyConfig struct {
	Window            time.Duration
	BurstFailures     int     // failures within Window -> high severity
	ElevatedFailures  int     // failures within Window -> medium severity
	MaxUserAgents     int     // distinct UAs per IP before it looks scripted
	OffHoursRatio     float64 // share of attempts inside the off-hours band
	OffHoursStartHour int
	OffHoursEndHour   int
	Timezone          string // IANA name the off-hours band is anchored to
}

// AlertConfig alert sink selection.
type AlertConfig struct {
	MQTT struct {
		Enabled  bool
		Broker   string
		ClientID string
		Username string
		Password string
		Topic    string
	}
	WebhookURL string
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// Default to true for local dev: if DB is unavailable, obdoc-codes falls back
	// to in-memory repositories so the onboarding flow stays testable.
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "obdoc")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.HashKey = getEnv("CODE_HASH_KEY", "dev-only-hash-key")
	cfg.SealKey = getEnv("PII_SEAL_KEY", "")
	cfg.JWTSecret = getEnv("JWT_SECRET", "dev-only-jwt-secret")

	cfg.RateLimit.Validate = WindowLimit{
		Max:    parseInt(getEnv("RL_VALIDATE_MAX", "3"), 3),
		Window: parseDuration(getEnv("RL_VALIDATE_WINDOW", "1m"), time.Minute),
	}
	cfg.RateLimit.InviteIssue = WindowLimit{
		Max:    parseInt(getEnv("RL_INVITE_ISSUE_MAX", "5"), 5),
		Window: parseDuration(getEnv("RL_INVITE_ISSUE_WINDOW", "1h"), time.Hour),
	}
	cfg.RateLimit.ClinicIssue = WindowLimit{
		Max:    parseInt(getEnv("RL_CLINIC_ISSUE_MAX", "3"), 3),
		Window: parseDuration(getEnv("RL_CLINIC_ISSUE_WINDOW", "1h"), time.Hour),
	}

	cfg.Anomaly.Window = parseDuration(getEnv("ANOMALY_WINDOW", "5m"), 5*time.Minute)
	cfg.Anomaly.BurstFailures = parseInt(getEnv("ANOMALY_BURST_FAILURES", "10"), 10)
	cfg.Anomaly.ElevatedFailures = parseInt(getEnv("ANOMALY_ELEVATED_FAILURES", "5"), 5)
	cfg.Anomaly.MaxUserAgents = parseInt(getEnv("ANOMALY_MAX_USER_AGENTS", "5"), 5)
	cfg.Anomaly.OffHoursRatio = parseFloat(getEnv("ANOMALY_OFF_HOURS_RATIO", "0.8"), 0.8)
	cfg.Anomaly.OffHoursStartHour = parseInt(getEnv("ANOMALY_OFF_HOURS_START", "2"), 2)
	cfg.Anomaly.OffHoursEndHour = parseInt(getEnv("ANOMALY_OFF_HOURS_END", "5"), 5)
	cfg.Anomaly.Timezone = getEnv("ANOMALY_TIMEZONE", "Asia/Seoul")

	cfg.Cache.ValidationTTL = parseDuration(getEnv("VALIDATION_CACHE_TTL", "5m"), 5*time.Minute)

	cfg.Alert.MQTT.Enabled = getEnv("ALERT_MQTT_ENABLED", "false") == "true"
	cfg.Alert.MQTT.Broker = getEnv("ALERT_MQTT_BROKER", "tcp://localhost:1883")
	cfg.Alert.MQTT.ClientID = getEnv("ALERT_MQTT_CLIENT_ID", "obdoc-codes")
	cfg.Alert.MQTT.Username = getEnv("ALERT_MQTT_USERNAME", "")
	cfg.Alert.MQTT.Password = getEnv("ALERT_MQTT_PASSWORD", "")
	cfg.Alert.MQTT.Topic = getEnv("ALERT_MQTT_TOPIC", "obdoc/alerts")
	cfg.Alert.WebhookURL = getEnv("ALERT_WEBHOOK_URL", "")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
