package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// devSecret signs tokens in development when no secret is configured.
const devSecret = "kringle-development-secret"

type Config struct {
	Port          string
	DBPath        string
	LogLevel      string
	LogFormat     string
	Env           string
	JWTSecret     string
	TokenTTL      time.Duration
	AuthRateLimit int
	Backup        BackupConfig
	PostmarkToken string
	EmailFrom     string
}

// BackupConfig controls scheduled encrypted snapshots to S3-compatible
// storage. Backups are off unless a bucket is set.
type BackupConfig struct {
	Bucket     string
	Prefix     string
	Endpoint   string
	Region     string
	AccessKey  string
	SecretKey  string
	Passphrase string
	Interval   time.Duration
	Retention  time.Duration
}

func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// Load reads configuration from the environment. A .env file in the working
// directory, if present, seeds variables that are not already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:      getEnvOrDefault("KRINGLE_PORT", "8080"),
		DBPath:    getEnvOrDefault("KRINGLE_DB_PATH", "kringle.db"),
		LogLevel:  getEnvOrDefault("KRINGLE_LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnvOrDefault("KRINGLE_LOG_FORMAT", "text")),
		Env:       strings.ToLower(getEnvOrDefault("KRINGLE_ENV", "development")),
		JWTSecret: os.Getenv("KRINGLE_JWT_SECRET"),

		PostmarkToken: os.Getenv("KRINGLE_POSTMARK_TOKEN"),
		EmailFrom:     os.Getenv("KRINGLE_EMAIL_FROM"),
	}

	hours, err := getEnvInt("KRINGLE_TOKEN_TTL", 168)
	if err != nil {
		return nil, err
	}
	cfg.TokenTTL = time.Duration(hours) * time.Hour

	if cfg.AuthRateLimit, err = getEnvInt("KRINGLE_AUTH_RATE_LIMIT", 10); err != nil {
		return nil, err
	}

	cfg.Backup = BackupConfig{
		Bucket:     os.Getenv("KRINGLE_BACKUP_BUCKET"),
		Prefix:     getEnvOrDefault("KRINGLE_BACKUP_PREFIX", "kringle"),
		Endpoint:   os.Getenv("KRINGLE_BACKUP_ENDPOINT"),
		Region:     getEnvOrDefault("KRINGLE_BACKUP_REGION", "us-east-1"),
		AccessKey:  os.Getenv("KRINGLE_BACKUP_ACCESS_KEY"),
		SecretKey:  os.Getenv("KRINGLE_BACKUP_SECRET_KEY"),
		Passphrase: os.Getenv("KRINGLE_BACKUP_PASSPHRASE"),
	}
	if hours, err = getEnvInt("KRINGLE_BACKUP_INTERVAL", 24); err != nil {
		return nil, err
	}
	cfg.Backup.Interval = time.Duration(hours) * time.Hour
	days, err := getEnvInt("KRINGLE_BACKUP_RETENTION_DAYS", 30)
	if err != nil {
		return nil, err
	}
	cfg.Backup.Retention = time.Duration(days) * 24 * time.Hour

	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		cfg.JWTSecret = devSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("KRINGLE_JWT_SECRET is required outside development"))
	}
	if !c.IsDevelopment() && c.JWTSecret == devSecret {
		errs = append(errs, errors.New("KRINGLE_JWT_SECRET must not be the development default"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("KRINGLE_TOKEN_TTL must be positive"))
	}
	if c.AuthRateLimit <= 0 {
		errs = append(errs, errors.New("KRINGLE_AUTH_RATE_LIMIT must be positive"))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("KRINGLE_LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("KRINGLE_PORT must be numeric, got %q", c.Port))
	}
	if c.PostmarkToken != "" && c.EmailFrom == "" {
		errs = append(errs, errors.New("KRINGLE_EMAIL_FROM is required when KRINGLE_POSTMARK_TOKEN is set"))
	}
	if c.Backup.Enabled() {
		if c.Backup.AccessKey == "" || c.Backup.SecretKey == "" {
			errs = append(errs, errors.New("KRINGLE_BACKUP_ACCESS_KEY and KRINGLE_BACKUP_SECRET_KEY are required when backups are enabled"))
		}
		if c.Backup.Passphrase == "" {
			errs = append(errs, errors.New("KRINGLE_BACKUP_PASSPHRASE is required when backups are enabled"))
		}
		if c.Backup.Interval <= 0 {
			errs = append(errs, errors.New("KRINGLE_BACKUP_INTERVAL must be positive"))
		}
		if c.Backup.Retention < 0 {
			errs = append(errs, errors.New("KRINGLE_BACKUP_RETENTION_DAYS must not be negative"))
		}
	}
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
