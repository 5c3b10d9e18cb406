// internal/config/config.go
// Centralized configuration management
// Loads from environment variables with sensible defaults

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	OpsPort     string
	Environment string

	// Storage backends
	Store       string // "postgres" or "memory"
	DatabaseURL string
	RedisURL    string

	// Security
	JWTSecret         string
	AccessTokenExpiry time.Duration

	// Realtime
	AllowedOrigins    []string
	MaxSessionSamples int
	MaxOpenSessions   int
	SyncSessionTTL    time.Duration

	// Engine
	EngineConfigFile  string
	MaxCommitAttempts int
	OutcomeCacheTTL   time.Duration

	// Scheduled jobs
	GhostingSweepInterval    time.Duration
	SweepBatchSize           int
	CompatibilityRefreshHour int

	// Email Configuration
	EmailProvider string // "smtp", "sendgrid", or "mock"
	EmailFrom     string
	EmailFromName string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	// SendGrid
	SendGridAPIKey string

	// SMS Configuration
	SMSProvider string // "twilio" or "mock"

	// Twilio
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// Push Configuration
	PushProvider            string // "fcm" or "mock"
	FirebaseCredentialsFile string
	FirebaseCredentialsJSON string

	// Heart sync archive
	UseS3           bool
	AWSRegion       string
	S3BucketName    string
	LocalArchiveDir string

	// Notification Settings
	EnableEmailNotifications bool
	EnablePushNotifications  bool
	EnableSMSNotifications   bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8080"),
		OpsPort:     getEnv("OPS_PORT", "9090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Storage backends
		Store:       getEnv("STORE", "postgres"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		// Security
		JWTSecret:         getEnv("JWT_SECRET", "your-super-secret-key-change-this-in-production"),
		AccessTokenExpiry: getEnvDuration("ACCESS_TOKEN_EXPIRY", "1h"),

		// Realtime
		AllowedOrigins:    getEnvList("WS_ALLOWED_ORIGINS"),
		MaxSessionSamples: getEnvInt("HEART_SYNC_MAX_SAMPLES", 2000),
		MaxOpenSessions:   getEnvInt("HEART_SYNC_MAX_OPEN_SESSIONS", 10000),
		SyncSessionTTL:    getEnvDuration("HEART_SYNC_SESSION_TTL", "10m"),

		// Engine
		EngineConfigFile:  getEnv("ENGINE_CONFIG_FILE", ""),
		MaxCommitAttempts: getEnvInt("MAX_COMMIT_ATTEMPTS", 3),
		OutcomeCacheTTL:   getEnvDuration("OUTCOME_CACHE_TTL", "24h"),

		// Scheduled jobs
		GhostingSweepInterval:    getEnvDuration("GHOSTING_SWEEP_INTERVAL", "1h"),
		SweepBatchSize:           getEnvInt("SWEEP_BATCH_SIZE", 200),
		CompatibilityRefreshHour: getEnvInt("COMPATIBILITY_REFRESH_HOUR", 4),

		// Email Configuration
		EmailProvider: getEnv("EMAIL_PROVIDER", "mock"),
		EmailFrom:     getEnv("EMAIL_FROM", "noreply@heartwing.app"),
		EmailFromName: getEnv("EMAIL_FROM_NAME", "Heartwing"),

		// SMTP
		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		// SendGrid
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),

		// SMS Configuration
		SMSProvider: getEnv("SMS_PROVIDER", "mock"),

		// Twilio
		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),

		// Push Configuration
		PushProvider:            getEnv("PUSH_PROVIDER", "mock"),
		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		FirebaseCredentialsJSON: getEnv("FIREBASE_CREDENTIALS_JSON", ""),

		// Heart sync archive
		UseS3:           getEnvBool("USE_S3", false),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		S3BucketName:    getEnv("S3_BUCKET_NAME", ""),
		LocalArchiveDir: getEnv("LOCAL_ARCHIVE_DIR", "./archive"),

		// Notifications
		EnableEmailNotifications: getEnvBool("ENABLE_EMAIL_NOTIFICATIONS", true),
		EnablePushNotifications:  getEnvBool("ENABLE_PUSH_NOTIFICATIONS", true),
		EnableSMSNotifications:   getEnvBool("ENABLE_SMS_NOTIFICATIONS", false),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWTSecret == "your-super-secret-key-change-this-in-production" && c.IsProduction() {
		return fmt.Errorf("JWT secret must be changed for production")
	}

	switch c.Store {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required")
		}
	case "memory":
		if c.IsProduction() {
			return fmt.Errorf("memory store cannot be used in production")
		}
	default:
		return fmt.Errorf("invalid store: %s", c.Store)
	}

	if c.MaxCommitAttempts < 1 || c.MaxCommitAttempts > 10 {
		return fmt.Errorf("max commit attempts must be between 1 and 10")
	}
	if c.CompatibilityRefreshHour < 0 || c.CompatibilityRefreshHour > 23 {
		return fmt.Errorf("compatibility refresh hour must be between 0 and 23")
	}
	if c.GhostingSweepInterval < time.Minute {
		return fmt.Errorf("ghosting sweep interval must be at least a minute")
	}
	if c.MaxSessionSamples < 2 || c.MaxOpenSessions < 1 {
		return fmt.Errorf("heart sync buffer limits must be positive")
	}

	// Email validation
	switch c.EmailProvider {
	case "smtp":
		if (c.SMTPHost == "" || c.SMTPUser == "" || c.SMTPPassword == "") && c.IsProduction() {
			return fmt.Errorf("SMTP configuration incomplete for production")
		}
	case "sendgrid":
		if c.SendGridAPIKey == "" && c.IsProduction() {
			return fmt.Errorf("SendGrid API key is required for production")
		}
	case "mock":
		if c.IsProduction() && c.EnableEmailNotifications {
			return fmt.Errorf("mock email provider cannot be used in production")
		}
	default:
		return fmt.Errorf("invalid email provider: %s", c.EmailProvider)
	}

	// SMS validation
	switch c.SMSProvider {
	case "twilio":
		if (c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioFromNumber == "") && c.EnableSMSNotifications {
			return fmt.Errorf("Twilio configuration incomplete but SMS notifications are enabled")
		}
	case "mock":
		if c.IsProduction() && c.EnableSMSNotifications {
			return fmt.Errorf("mock SMS provider cannot be used in production with SMS notifications enabled")
		}
	default:
		return fmt.Errorf("invalid SMS provider: %s", c.SMSProvider)
	}

	// Push validation
	switch c.PushProvider {
	case "fcm":
		if c.FirebaseCredentialsFile == "" && c.FirebaseCredentialsJSON == "" && c.EnablePushNotifications {
			return fmt.Errorf("Firebase credentials are required when push notifications are enabled")
		}
	case "mock":
	default:
		return fmt.Errorf("invalid push provider: %s", c.PushProvider)
	}

	// Archive validation
	if c.UseS3 {
		if c.S3BucketName == "" {
			return fmt.Errorf("S3 configuration incomplete")
		}
	} else if c.LocalArchiveDir == "" {
		return fmt.Errorf("local archive directory not specified")
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Helper functions

// getEnv gets a string value from environment with a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment with a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment with a default
func getEnvDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		// If parsing fails, try to parse the default
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

// getEnvBool gets a boolean value from environment with a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
