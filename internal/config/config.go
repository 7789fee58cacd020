// Package config provides configuration loading, validation, and management
// for pantrybot. It reads an optional YAML file, overlays PANTRY_* environment
// variables on top of built-in defaults, and validates the result.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. PANTRY_TELEGRAM_TOKEN.
const EnvPrefix = "PANTRY"

// ErrConfiguration wraps every loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// Config defines the application configuration parameters for all components.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Expiry    ExpiryConfig    `mapstructure:"expiry"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds bot credentials and the command menu.
type TelegramConfig struct {
	Token    string          `mapstructure:"token"    validate:"required"`
	Commands []CommandConfig `mapstructure:"commands" validate:"dive"`
}

// CommandConfig is one entry of the bot command menu.
type CommandConfig struct {
	Command     string `mapstructure:"command"     validate:"required"`
	Description string `mapstructure:"description" validate:"required"`
}

// DatabaseConfig points at the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// SchedulerConfig lists background tasks keyed by task name.
type SchedulerConfig struct {
	Timezone string                `mapstructure:"timezone" validate:"omitempty,timezone"`
	Tasks    map[string]TaskConfig `mapstructure:"tasks"    validate:"dive"`
}

// TaskConfig schedules one task either daily at a wall-clock time (At, "HH:MM")
// or by a six-field cron expression (Schedule).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	At       string `mapstructure:"at"       validate:"omitempty,daily_time"`
	Schedule string `mapstructure:"schedule" validate:"required_without=At"`
}

// ExpiryConfig controls how day.month values are turned into dates.
// FixedYear 0 means the current year.
type ExpiryConfig struct {
	FixedYear int `mapstructure:"fixed_year" validate:"omitempty,min=2000,max=2100"`
}

// NotifierConfig tunes the daily digest.
type NotifierConfig struct {
	Concurrency int           `mapstructure:"concurrency"  validate:"min=1,max=64"`
	SendTimeout time.Duration `mapstructure:"send_timeout" validate:"min=1s,max=5m"`

	// BreakerThreshold is the number of consecutive delivery failures that
	// pauses sending for BreakerCooldown before the remaining owners are
	// retried. 0 disables the breaker.
	BreakerThreshold int           `mapstructure:"breaker_threshold" validate:"min=0"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"  validate:"min=0,max=10m"`
}

// HTTPConfig controls the health and metrics endpoint.
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// MessagesConfig holds every user-facing string.
type MessagesConfig struct {
	Greeting        string `mapstructure:"greeting"          validate:"required"`
	NiceToMeetFmt   string `mapstructure:"nice_to_meet_fmt"  validate:"required"`
	Help            string `mapstructure:"help"              validate:"required"`
	AddPrompt       string `mapstructure:"add_prompt"        validate:"required"`
	AddedPrefix     string `mapstructure:"added_prefix"      validate:"required"`
	NothingAdded    string `mapstructure:"nothing_added"     validate:"required"`
	ListEmpty       string `mapstructure:"list_empty"        validate:"required"`
	DeletePrompt    string `mapstructure:"delete_prompt"     validate:"required"`
	DeletedFmt      string `mapstructure:"deleted_fmt"       validate:"required"`
	DeleteFailed    string `mapstructure:"delete_failed"     validate:"required"`
	Cancelled       string `mapstructure:"cancelled"         validate:"required"`
	NothingToCancel string `mapstructure:"nothing_to_cancel" validate:"required"`
	GeneralError    string `mapstructure:"general_error"     validate:"required"`
	ExpiredHeader   string `mapstructure:"expired_header"    validate:"required"`
	WarningHeader   string `mapstructure:"warning_header"    validate:"required"`
	FreshHeader     string `mapstructure:"fresh_header"      validate:"required"`
	DigestHeader    string `mapstructure:"digest_header"     validate:"required"`
}

// Location resolves the scheduler timezone; empty means the local zone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// Location is the zone "today" and daily triggers are computed in.
func (c *Config) Location() (*time.Location, error) {
	return c.Scheduler.Location()
}

// LoadConfig reads configuration from path, sets default values for
// optional fields, applies environment overrides and validates the result.
// A missing file is not an error; defaults and environment are used instead.
func LoadConfig(path string) (*Config, error) {
	startTime := time.Now()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, path, err)
			}
			slog.Debug("Configuration file loaded", "path", path)
		} else if os.IsNotExist(err) {
			slog.Info("Configuration file not found, using defaults and environment", "path", path)
		} else {
			return nil, fmt.Errorf("%w: failed to stat config file %s: %v", ErrConfiguration, path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	slog.Info("Configuration loaded successfully",
		"log_level", cfg.Logger.Level,
		"db_path", cfg.Database.Path,
		"tasks", len(cfg.Scheduler.Tasks),
		"duration_ms", time.Since(startTime).Milliseconds())

	return cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.RegisterValidation("daily_time", validateDailyTime); err != nil {
		return fmt.Errorf("failed to register daily_time validator: %w", err)
	}
	return validate.Struct(cfg)
}
