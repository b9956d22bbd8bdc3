package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "DocuHub Stub API"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultClientLogLevel  = "warn"
	defaultAPIBaseURL      = "http://localhost:8080/api"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultTokenTTL        = 24 * time.Hour
	defaultOTPTTL          = 5 * time.Minute
	defaultHTTPTimeout     = 30 * time.Second
	defaultPollInterval    = 10 * time.Second
	defaultResendCooldown  = 60 * time.Second
	defaultJWTSecret       = "dev-secret-change-me"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"

	// TokenStoreFile keeps the session token in a JSON file on disk.
	TokenStoreFile = "file"
	// TokenStoreRedis keeps the session token in Redis.
	TokenStoreRedis = "redis"
	// TokenStoreMemory keeps the session token for the lifetime of the process only.
	TokenStoreMemory = "memory"
)

// Server captures stub API runtime configuration loaded from the environment and an
// optional YAML file named by STUB_CONFIG.
type Server struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	JWTSecret      string
	AdminKey       string
	SeedFile       string
	LoginOTP       bool
	AutoApprove    bool
	TokenTTL       time.Duration
	OTPTTL         time.Duration
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
}

// Client captures the portal client configuration loaded from the environment and an
// optional YAML file named by PORTAL_CONFIG.
type Client struct {
	APIBaseURL     string
	TokenStore     string
	TokenFile      string
	RedisURL       string
	LogLevel       string
	HTTPTimeout    time.Duration
	PollInterval   time.Duration
	ResendCooldown time.Duration
}

// LoadServer reads stub API configuration.
func LoadServer() (Server, error) {
	file, err := loadFile(os.Getenv("STUB_CONFIG"))
	if err != nil {
		return Server{}, err
	}

	cfg := Server{
		AppName:        getEnv("APP_NAME", file.str("app_name", defaultAppName)),
		AppEnv:         getEnv("APP_ENV", file.str("app_env", defaultAppEnv)),
		Port:           getEnv("PORT", file.str("port", defaultPort)),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", file.str("log_level", defaultLogLevel))),
		DatabaseURL:    getEnv("DATABASE_URL", file.str("database_url", "")),
		RedisURL:       getEnv("REDIS_URL", file.str("redis_url", "")),
		JWTSecret:      getEnv("JWT_SECRET", file.str("jwt_secret", defaultJWTSecret)),
		AdminKey:       getEnv("ADMIN_KEY", file.str("admin_key", "")),
		SeedFile:       getEnv("SEED_FILE", file.str("seed_file", "")),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
	}

	if cfg.LoginOTP, err = getBool("LOGIN_OTP", file.str("login_otp", "false")); err != nil {
		return Server{}, err
	}
	if cfg.AutoApprove, err = getBool("AUTO_APPROVE", file.str("auto_approve", "true")); err != nil {
		return Server{}, err
	}
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", file.str("token_ttl", ""), defaultTokenTTL); err != nil {
		return Server{}, err
	}
	if cfg.OTPTTL, err = getDuration("OTP_TTL", file.str("otp_ttl", ""), defaultOTPTTL); err != nil {
		return Server{}, err
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Server{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if cfg.ShutdownPeriod, err = getDuration(shutdownDurationEnvVar, file.str("shutdown_timeout", ""), defaultShutdownDelay); err != nil {
		return Server{}, err
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Server{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if cfg.IdempotencyTTL, err = getDuration(idemTTLDurEnvVar, file.str("idempotency_ttl", ""), defaultIdempotencyTTL); err != nil {
		return Server{}, err
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Server{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Server{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.JWTSecret == defaultJWTSecret {
			return Server{}, fmt.Errorf("JWT_SECRET must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Server) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the stub runs in a local development environment, where
// Postgres and Redis are optional.
func (c Server) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// LoadClient reads portal client configuration.
func LoadClient() (Client, error) {
	file, err := loadFile(os.Getenv("PORTAL_CONFIG"))
	if err != nil {
		return Client{}, err
	}

	cfg := Client{
		APIBaseURL: strings.TrimRight(getEnv("API_BASE_URL", file.str("api_base_url", defaultAPIBaseURL)), "/"),
		TokenStore: strings.ToLower(getEnv("TOKEN_STORE", file.str("token_store", TokenStoreFile))),
		TokenFile:  getEnv("TOKEN_FILE", file.str("token_file", defaultTokenFile())),
		RedisURL:   getEnv("REDIS_URL", file.str("redis_url", "")),
		LogLevel:   strings.ToLower(getEnv("LOG_LEVEL", file.str("log_level", defaultClientLogLevel))),
	}

	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", file.str("http_timeout", ""), defaultHTTPTimeout); err != nil {
		return Client{}, err
	}
	if cfg.PollInterval, err = getDuration("NOTIFICATION_POLL_INTERVAL", file.str("notification_poll_interval", ""), defaultPollInterval); err != nil {
		return Client{}, err
	}
	if cfg.ResendCooldown, err = getDuration("OTP_RESEND_COOLDOWN", file.str("otp_resend_cooldown", ""), defaultResendCooldown); err != nil {
		return Client{}, err
	}

	switch cfg.TokenStore {
	case TokenStoreFile, TokenStoreMemory:
	case TokenStoreRedis:
		if cfg.RedisURL == "" {
			return Client{}, fmt.Errorf("REDIS_URL must be set when TOKEN_STORE=redis")
		}
	default:
		return Client{}, fmt.Errorf("invalid TOKEN_STORE %q", cfg.TokenStore)
	}

	return cfg, nil
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".docuhub", "session.json")
	}
	return filepath.Join(home, ".docuhub", "session.json")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key, fileValue string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, fileValue)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getBool(key, fallback string) (bool, error) {
	v := getEnv(key, fallback)
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
