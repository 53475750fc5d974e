// Package config loads gateway settings from the environment, optionally
// layered over a YAML file, and validates them before anything connects.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Search backends.
const (
	BackendMeilisearch = "meilisearch"
	BackendBleve       = "bleve"
)

// Config is the full gateway configuration.
type Config struct {
	Addr           string        `yaml:"addr"`
	Env            string        `yaml:"env"`
	Version        string        `yaml:"version"`
	Commit         string        `yaml:"commit"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	AllowedOrigin  string        `yaml:"allowed_origin"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	BackendTimeout time.Duration `yaml:"backend_timeout"`

	// RateLimitPerMinute caps contact and upload requests per client IP.
	// Zero disables the limiter.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	Database DatabaseConfig `yaml:"database"`
	Search   SearchConfig   `yaml:"search"`
	Storage  StorageConfig  `yaml:"storage"`
	Email    EmailConfig    `yaml:"email"`
}

// DatabaseConfig locates PostgreSQL.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

// DSN renders a postgres:// URL. Credentials are escaped.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// SearchConfig selects and locates the search engine.
type SearchConfig struct {
	Backend   string `yaml:"backend"`
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	Index     string `yaml:"index"`
	BlevePath string `yaml:"bleve_path"`
}

// StorageConfig locates the S3-compatible object store.
type StorageConfig struct {
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	DataBucket   string `yaml:"data_bucket"`
	BackupBucket string `yaml:"backup_bucket"`
}

// EmailConfig controls contact notifications over SMTP.
type EmailConfig struct {
	Enabled      bool   `yaml:"enabled"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     string `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	FromEmail    string `yaml:"from_email"`
	NotifyEmail  string `yaml:"notify_email"`
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() Config {
	return Config{
		Addr:           ":8000",
		Env:            "development",
		Version:        "4.0.0",
		Commit:         "unknown",
		LogLevel:       "info",
		LogFormat:      "json",
		AllowedOrigin:  "*",
		MaxUploadBytes: 50 << 20,
		BackendTimeout: 10 * time.Second,

		RateLimitPerMinute: 60,

		Database: DatabaseConfig{
			Host:     "postgresql",
			Port:     "5432",
			Name:     "website_db",
			User:     "website_user",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		Search: SearchConfig{
			Backend: BackendMeilisearch,
			URL:     "http://meilisearch:7700",
			Index:   "documents",
		},
		Storage: StorageConfig{
			Endpoint:     "http://minio:9000",
			DataBucket:   "website-documents",
			BackupBucket: "website-backups",
		},
		Email: EmailConfig{
			SMTPPort: "587",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// GATEWAY_CONFIG_FILE if set, then environment variables. The result is
// validated and every problem is reported in one error.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("GATEWAY_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}

	v := NewValidator()
	cfg.applyEnv(v)
	cfg.validate(v)
	return cfg, v.Err()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(v *Validator) {
	str(&c.Addr, "GATEWAY_ADDR")
	str(&c.Env, "GATEWAY_ENV")
	str(&c.Version, "GATEWAY_VERSION")
	str(&c.Commit, "GATEWAY_COMMIT")
	str(&c.LogLevel, "LOG_LEVEL")
	str(&c.LogFormat, "LOG_FORMAT")
	str(&c.AllowedOrigin, "ALLOWED_ORIGIN")
	int64Var(v, &c.MaxUploadBytes, "MAX_UPLOAD_BYTES")
	duration(v, &c.BackendTimeout, "BACKEND_TIMEOUT")
	intVar(v, &c.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE")

	str(&c.Database.Host, "DB_HOST")
	str(&c.Database.Port, "DB_PORT")
	str(&c.Database.Name, "DB_NAME")
	str(&c.Database.User, "DB_USER")
	str(&c.Database.Password, "DB_PASSWORD")
	str(&c.Database.SSLMode, "DB_SSLMODE")
	intVar(v, &c.Database.MaxConns, "DB_MAX_CONNS")

	str(&c.Search.Backend, "SEARCH_BACKEND")
	str(&c.Search.URL, "MEILISEARCH_URL")
	str(&c.Search.APIKey, "MEILISEARCH_API_KEY")
	str(&c.Search.Index, "MEILISEARCH_INDEX")
	str(&c.Search.BlevePath, "BLEVE_INDEX_PATH")

	str(&c.Storage.Endpoint, "S3_ENDPOINT_URL")
	str(&c.Storage.AccessKey, "S3_ACCESS_KEY")
	str(&c.Storage.SecretKey, "S3_SECRET_KEY")
	str(&c.Storage.DataBucket, "S3_DATA_BUCKET")
	str(&c.Storage.BackupBucket, "S3_BACKUP_BUCKET")

	boolVar(v, &c.Email.Enabled, "EMAIL_ENABLED")
	str(&c.Email.SMTPHost, "SMTP_HOST")
	str(&c.Email.SMTPPort, "SMTP_PORT")
	str(&c.Email.SMTPUser, "SMTP_USER")
	str(&c.Email.SMTPPassword, "SMTP_PASSWORD")
	str(&c.Email.FromEmail, "SMTP_FROM")
	str(&c.Email.NotifyEmail, "NOTIFY_EMAIL")
	if c.Email.FromEmail == "" {
		c.Email.FromEmail = c.Email.SMTPUser
	}
}

func (c *Config) validate(v *Validator) {
	v.Port("GATEWAY_ADDR", c.Addr)
	v.Enum("GATEWAY_ENV", c.Env, []string{"development", "staging", "production"})
	v.Enum("LOG_LEVEL", c.LogLevel, []string{"debug", "info", "warn", "error"})
	v.Enum("LOG_FORMAT", c.LogFormat, []string{"json", "console"})
	v.Positive("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	v.Positive("BACKEND_TIMEOUT", int64(c.BackendTimeout))
	if c.RateLimitPerMinute < 0 {
		v.AddError("RATE_LIMIT_PER_MINUTE", "must not be negative")
	}

	v.Required("DB_HOST", c.Database.Host)
	v.Required("DB_NAME", c.Database.Name)
	v.Required("DB_USER", c.Database.User)
	v.Required("DB_PASSWORD", c.Database.Password)
	v.Port("DB_PORT", c.Database.Port)
	v.Positive("DB_MAX_CONNS", int64(c.Database.MaxConns))

	v.Enum("SEARCH_BACKEND", c.Search.Backend, []string{BackendMeilisearch, BackendBleve})
	if c.Search.Backend == BackendMeilisearch {
		v.Required("MEILISEARCH_URL", c.Search.URL)
		v.URL("MEILISEARCH_URL", c.Search.URL)
		v.Required("MEILISEARCH_API_KEY", c.Search.APIKey)
	}

	v.Required("S3_ENDPOINT_URL", c.Storage.Endpoint)
	v.Endpoint("S3_ENDPOINT_URL", c.Storage.Endpoint)
	v.Required("S3_ACCESS_KEY", c.Storage.AccessKey)
	v.Required("S3_SECRET_KEY", c.Storage.SecretKey)
	v.Required("S3_DATA_BUCKET", c.Storage.DataBucket)
	v.Required("S3_BACKUP_BUCKET", c.Storage.BackupBucket)

	if c.Email.Enabled {
		v.Required("SMTP_HOST", c.Email.SMTPHost)
		v.Port("SMTP_PORT", c.Email.SMTPPort)
		v.Required("NOTIFY_EMAIL", c.Email.NotifyEmail)
		v.Email("NOTIFY_EMAIL", c.Email.NotifyEmail)
		v.Email("SMTP_FROM", c.Email.FromEmail)
	}
}

func str(dst *string, key string) {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		*dst = val
	}
}

func intVar(v *Validator, dst *int, key string) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return
	}
	*dst = n
}

func int64Var(v *Validator, dst *int64, key string) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return
	}
	*dst = n
}

func boolVar(v *Validator, dst *bool, key string) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	b, err := strconv.ParseBool(strings.ToLower(val))
	if err != nil {
		v.AddError(key, "must be true or false")
		return
	}
	*dst = b
}

// duration accepts Go duration syntax or a bare number of seconds.
func duration(v *Validator, dst *time.Duration, key string) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	if secs, err := strconv.Atoi(val); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		v.AddError(key, "must be a duration such as 10s")
		return
	}
	*dst = d
}
