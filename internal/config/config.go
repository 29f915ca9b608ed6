// Package config loads application configuration from defaults, an optional
// YAML file and APP_ prefixed environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
// Nested keys are separated by a double underscore, e.g.
// APP_EMAIL_CLIENT__BASE_URL sets email_client.base_url.
const EnvPrefix = "APP_"

// Email transports.
const (
	TransportPostmark = "postmark"
	TransportSMTP     = "smtp"
	TransportSES      = "ses"
)

// Config is the root configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Log         LogConfig         `koanf:"log"`
	Application ApplicationConfig `koanf:"application"`
	EmailClient EmailClientConfig `koanf:"email_client"`
	Auth        AuthConfig        `koanf:"auth"`
	CORS        CORSConfig        `koanf:"cors"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout" validate:"gt=0"`
	ConnectAttempts int           `koanf:"connect_attempts" validate:"gte=1"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// ApplicationConfig contains settings of the public application surface.
type ApplicationConfig struct {
	// BaseURL prefixes links sent in confirmation emails.
	BaseURL string `koanf:"base_url" validate:"required,url"`
}

// EmailClientConfig selects and configures the outbound email transport.
type EmailClientConfig struct {
	Transport   string        `koanf:"transport" validate:"oneof=postmark smtp ses"`
	SenderEmail string        `koanf:"sender_email" validate:"required,email"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	// RateLimit is the maximum number of sends per second; zero disables it.
	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`
	RateBurst int     `koanf:"rate_burst" validate:"gte=0"`

	BaseURL            string `koanf:"base_url" validate:"required_if=Transport postmark"`
	AuthorizationToken string `koanf:"authorization_token" validate:"required_if=Transport postmark"`

	SMTPHost     string `koanf:"smtp_host" validate:"required_if=Transport smtp"`
	SMTPPort     int    `koanf:"smtp_port" validate:"gte=0,lte=65535"`
	SMTPUser     string `koanf:"smtp_user"`
	SMTPPassword string `koanf:"smtp_password"`

	SESRegion          string `koanf:"ses_region" validate:"required_if=Transport ses"`
	SESAccessKeyID     string `koanf:"ses_access_key_id"`
	SESSecretAccessKey string `koanf:"ses_secret_access_key"`
	SESEndpoint        string `koanf:"ses_endpoint" validate:"omitempty,url"`
}

// AuthConfig sizes the password hashing worker pool.
type AuthConfig struct {
	// HashWorkers is the number of concurrent password verifications;
	// zero means one per CPU.
	HashWorkers int `koanf:"hash_workers" validate:"gte=0"`
	HashQueue   int `koanf:"hash_queue" validate:"gte=0"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Default returns the configuration used for keys that no source sets.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8000",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			RequestTimeout:    60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Application: ApplicationConfig{
			BaseURL: "http://127.0.0.1:8000",
		},
		EmailClient: EmailClientConfig{
			Transport: TransportPostmark,
			Timeout:   10 * time.Second,
			SMTPPort:  587,
		},
	}
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment are used.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKeyValue), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKeyValue maps APP_EMAIL_CLIENT__BASE_URL to email_client.base_url.
// List values are comma separated.
func envKeyValue(key, value string) (string, interface{}) {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "__", ".")
	if key == "cors.allowed_origins" {
		return key, strings.Split(value, ",")
	}
	return key, value
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
