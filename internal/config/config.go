package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `json:"server"`
	Database     DatabaseConfig     `json:"database"`
	Redis        RedisConfig        `json:"redis"`
	Storage      StorageConfig      `json:"storage"`
	Email        EmailConfig        `json:"email"`
	SMS          SMSConfig          `json:"sms"`
	Search       SearchConfig       `json:"search"`
	Security     SecurityConfig     `json:"security"`
	Logging      LoggingConfig      `json:"logging"`
	Verification VerificationConfig `json:"verification"`
	Dashboard    DashboardConfig    `json:"dashboard"`
	Workers      WorkersConfig      `json:"workers"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	AllowedOrigins  []string      `json:"allowed_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	AutoMigrate    bool          `json:"auto_migrate"`
}

// RedisConfig; an empty Addr disables the shared cache.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// StorageConfig describes the S3 compatible bucket holding verification documents
type StorageConfig struct {
	Region          string        `json:"region"`
	Endpoint        string        `json:"endpoint"`
	AccessKeyID     string        `json:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key"`
	DocumentsBucket string        `json:"documents_bucket"`
	ReportsBucket   string        `json:"reports_bucket"`
	UsePathStyle    bool          `json:"use_path_style"`
	PresignExpiry   time.Duration `json:"presign_expiry"`
	MaxUploadBytes  int64         `json:"max_upload_bytes"`
}

// EmailConfig for the SES channel
type EmailConfig struct {
	Enabled     bool     `json:"enabled"`
	Region      string   `json:"region"`
	FromAddress string   `json:"from_address"`
	AdminEmails []string `json:"admin_emails"`
}

// SMSConfig for the SNS channel
type SMSConfig struct {
	Enabled  bool   `json:"enabled"`
	Region   string `json:"region"`
	SenderID string `json:"sender_id"`
}

// SearchConfig; no addresses disables profile indexing.
type SearchConfig struct {
	Addresses    []string `json:"addresses"`
	Username     string   `json:"username"`
	Password     string   `json:"password"`
	ProfileIndex string   `json:"profile_index"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
	JWTIssuer string `json:"jwt_issuer"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Resubmission policies for rejected certifications.
const (
	ResubmitNewRecord = "new_record"
	ResubmitInPlace   = "in_place"
)

// VerificationConfig holds the knobs of the verification workflow.
type VerificationConfig struct {
	UrgentAfter        time.Duration `json:"urgent_after"`
	ResubmissionPolicy string        `json:"resubmission_policy"`
	FeeCents           int64         `json:"fee_cents"`
	Currency           string        `json:"currency"`
}

// DashboardConfig
type DashboardConfig struct {
	CacheTTL       time.Duration `json:"cache_ttl"`
	RecentActivity int           `json:"recent_activity"`
}

// WorkersConfig holds cron expressions (with seconds field) for cmd/workers.
type WorkersConfig struct {
	ScoreReconcileSpec string `json:"score_reconcile_spec"`
	UrgentAlertSpec    string `json:"urgent_alert_spec"`
	MonthlyExportSpec  string `json:"monthly_export_spec"`
	BatchSize          int    `json:"batch_size"`
}

// Default returns the configuration used before file and environment overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "trustline_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    30 * time.Minute,
			AutoMigrate:    true,
		},
		Storage: StorageConfig{
			Region:          "us-east-1",
			DocumentsBucket: "trustline-documents",
			ReportsBucket:   "trustline-reports",
			PresignExpiry:   15 * time.Minute,
			MaxUploadBytes:  10 << 20,
		},
		Email: EmailConfig{
			Region:      "us-east-1",
			FromAddress: "no-reply@trustline.dev",
		},
		SMS: SMSConfig{
			Region: "us-east-1",
		},
		Search: SearchConfig{
			ProfileIndex: "profiles",
		},
		Security: SecurityConfig{
			JWTIssuer: "",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Verification: VerificationConfig{
			UrgentAfter:        48 * time.Hour,
			ResubmissionPolicy: ResubmitNewRecord,
			FeeCents:           4900,
			Currency:           "USD",
		},
		Dashboard: DashboardConfig{
			CacheTTL:       5 * time.Minute,
			RecentActivity: 10,
		},
		Workers: WorkersConfig{
			ScoreReconcileSpec: "0 */15 * * * *",
			UrgentAlertSpec:    "0 0 * * * *",
			MonthlyExportSpec:  "0 0 6 1 * *",
			BatchSize:          200,
		},
	}
}

// LoadConfig loads configuration from .env, the JSON file and environment variables,
// in increasing order of precedence.
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func overrideWithEnv(config *Config) error {
	setString(&config.Server.Host, "SERVER_HOST")
	if err := setInt(&config.Server.Port, "SERVER_PORT"); err != nil {
		return err
	}
	setList(&config.Server.AllowedOrigins, "SERVER_ALLOWED_ORIGINS")

	setString(&config.Database.Host, "DATABASE_HOST")
	if err := setInt(&config.Database.Port, "DATABASE_PORT"); err != nil {
		return err
	}
	setString(&config.Database.User, "DATABASE_USER")
	setString(&config.Database.Password, "DATABASE_PASSWORD")
	setString(&config.Database.DBName, "DATABASE_DBNAME")
	setString(&config.Database.SSLMode, "DATABASE_SSLMODE")

	setString(&config.Redis.Addr, "REDIS_ADDR")
	setString(&config.Redis.Password, "REDIS_PASSWORD")

	setString(&config.Storage.Region, "S3_REGION")
	setString(&config.Storage.Endpoint, "S3_ENDPOINT")
	setString(&config.Storage.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&config.Storage.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	setString(&config.Storage.DocumentsBucket, "S3_DOCUMENTS_BUCKET")
	setString(&config.Storage.ReportsBucket, "S3_REPORTS_BUCKET")

	setBool(&config.Email.Enabled, "EMAIL_ENABLED")
	setString(&config.Email.FromAddress, "EMAIL_FROM")
	setList(&config.Email.AdminEmails, "EMAIL_ADMIN_RECIPIENTS")
	setBool(&config.SMS.Enabled, "SMS_ENABLED")

	setList(&config.Search.Addresses, "ELASTICSEARCH_ADDRESSES")
	setString(&config.Search.Username, "ELASTICSEARCH_USERNAME")
	setString(&config.Search.Password, "ELASTICSEARCH_PASSWORD")

	setString(&config.Security.JWTSecret, "JWT_SECRET")
	setString(&config.Security.JWTIssuer, "JWT_ISSUER")

	setString(&config.Logging.Level, "LOG_LEVEL")
	setBool(&config.Logging.Development, "LOG_DEVELOPMENT")

	if err := setDuration(&config.Verification.UrgentAfter, "VERIFICATION_URGENT_AFTER"); err != nil {
		return err
	}
	setString(&config.Verification.ResubmissionPolicy, "VERIFICATION_RESUBMISSION_POLICY")
	if err := setDuration(&config.Dashboard.CacheTTL, "DASHBOARD_CACHE_TTL"); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	switch c.Verification.ResubmissionPolicy {
	case ResubmitNewRecord, ResubmitInPlace:
	default:
		return fmt.Errorf("invalid verification.resubmission_policy %q", c.Verification.ResubmissionPolicy)
	}
	if c.Verification.UrgentAfter <= 0 {
		return fmt.Errorf("verification.urgent_after must be positive")
	}
	if c.Verification.FeeCents < 0 {
		return fmt.Errorf("verification.fee_cents must not be negative")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = i
	return nil
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
