package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Data        DataConfig        `yaml:"data"`
	Queue       QueueConfig       `yaml:"queue"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Auth        AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Data.Validate(); err != nil {
		return err
	}
	if err := c.Queue.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DataConfig holds the path to the data root directory.
type DataConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the data configuration.
func (c *DataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// QueueConfig tunes the transcription job queue.
type QueueConfig struct {
	MaxRetries             int `yaml:"max_retries"`
	BackoffSeconds         int `yaml:"backoff_seconds"`
	CleanupIntervalMinutes int `yaml:"cleanup_interval_minutes"`
	FailedMaxAgeDays       int `yaml:"failed_max_age_days"`
}

// Validate validates the queue configuration.
func (c *QueueConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxRetries, validation.Required, validation.Min(1), validation.Max(20)),
		validation.Field(&c.BackoffSeconds, validation.Required, validation.Min(1)),
		validation.Field(&c.CleanupIntervalMinutes, validation.Required, validation.Min(1)),
		validation.Field(&c.FailedMaxAgeDays, validation.Required, validation.Min(1)),
	)
}

// BackoffUnit returns the base backoff delay.
func (c *QueueConfig) BackoffUnit() time.Duration {
	return time.Duration(c.BackoffSeconds) * time.Second
}

// CleanupInterval returns how often failed jobs are swept.
func (c *QueueConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// FailedMaxAge returns the retention window for failed jobs.
func (c *QueueConfig) FailedMaxAge() time.Duration {
	return time.Duration(c.FailedMaxAgeDays) * 24 * time.Hour
}

// TranscriberConfig holds the external transcription provider endpoint.
// An empty URL leaves transcription disabled: enqueued jobs fail with a
// descriptive error instead of being silently dropped.
type TranscriberConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Data: DataConfig{
			Path: "./data",
		},
		Queue: QueueConfig{
			MaxRetries:             3,
			BackoffSeconds:         1,
			CleanupIntervalMinutes: 60,
			FailedMaxAgeDays:       7,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
