package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server     ServerConfig
	AWS        AWSConfig
	Table      TableConfig
	Cognito    CognitoConfig
	Email      EmailConfig
	Tokens     TokenConfig
	Session    SessionConfig
	Redis      RedisConfig
	Archive    ArchiveConfig
	RateLimit  RateLimitConfig
	Onboarding OnboardingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all; a list only echoes matching origins
}

// AWSConfig holds AWS credentials shared by every AWS client.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // localstack override, e.g. http://localhost:4566
}

// TableConfig selects the single-table store.
type TableConfig struct {
	Name       string
	Driver     string // dynamodb | memory
	AutoCreate bool
}

// CognitoConfig identifies the user pool.
type CognitoConfig struct {
	UserPoolID string
}

// EmailConfig for SES delivery.
type EmailConfig struct {
	Sender        string
	ConfigSetName string
	Delivery      string // direct | queue
}

// TokenConfig holds signing settings for password reset links and invitation expiry.
type TokenConfig struct {
	Secret             string
	ResetTTLHours      int
	InvitationTTLHours int
}

// SessionConfig selects how the tenant/user claims are established.
type SessionConfig struct {
	Mode   string // cognito | hmac | header
	Secret string
}

// RedisConfig holds Redis connection settings for the email queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ArchiveConfig holds the bucket for deleted tenant snapshots. Empty disables archiving.
type ArchiveConfig struct {
	Bucket string
}

// RateLimitConfig throttles the public routes per client IP.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// OnboardingConfig holds the frontend domain used to build links and the sweep cadence.
type OnboardingConfig struct {
	Domain        string
	SweepInterval time.Duration
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("AWS_ENDPOINT", getEnv("LOCALSTACK_ENDPOINT", "")),
		},
		Table: TableConfig{
			Name:       getEnv("GLOBAL_TABLE", "saas-onboarding"),
			Driver:     getEnv("STORE_DRIVER", "dynamodb"),
			AutoCreate: getEnvBool("TABLE_AUTO_CREATE", false),
		},
		Cognito: CognitoConfig{
			UserPoolID: getEnv("USERPOOL", ""),
		},
		Email: EmailConfig{
			Sender:        getEnv("EMAIL_SENDER", "noreply@example.com"),
			ConfigSetName: getEnv("CONFIG_SET_NAME", ""),
			Delivery:      getEnv("EMAIL_DELIVERY", "direct"),
		},
		Tokens: TokenConfig{
			Secret:             getEnv("JWT_SECRET", "change-me-in-production"),
			ResetTTLHours:      getEnvInt("RESET_TOKEN_TTL_HOURS", 5),
			InvitationTTLHours: getEnvInt("INVITATION_TTL_HOURS", 24),
		},
		Session: SessionConfig{
			Mode:   getEnv("SESSION_MODE", "cognito"),
			Secret: getEnv("SESSION_JWT_SECRET", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Archive: ArchiveConfig{
			Bucket: getEnv("ARCHIVE_BUCKET", ""),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATELIMIT_PUBLIC_REQUESTS", 20),
			Window:   time.Duration(getEnvInt("RATELIMIT_PUBLIC_WINDOW_SEC", 60)) * time.Second,
		},
		Onboarding: OnboardingConfig{
			Domain:        getEnv("ONBOARDING_DOMAIN", "localhost:3000"),
			SweepInterval: time.Duration(getEnvInt("INVITATION_SWEEP_INTERVAL_SEC", 300)) * time.Second,
		},
	}
	return cfg, nil
}

// ResetTTL returns the lifetime of a password reset link.
func (c TokenConfig) ResetTTL() time.Duration {
	return time.Duration(c.ResetTTLHours) * time.Hour
}

// InvitationTTL returns how long an invitation stays acceptable.
func (c TokenConfig) InvitationTTL() time.Duration {
	return time.Duration(c.InvitationTTLHours) * time.Hour
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
