package xforms

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config tunes the engine
type Config struct {
	// DeferralDelay is how long a group showing a dialog waits under a
	// constrained viewport
	DeferralDelay time.Duration `yaml:"deferral_delay" validate:"gte=0,lte=10s"`

	// IgnoreErrors logs diagnostics without surfacing them to the user
	IgnoreErrors bool `yaml:"ignore_errors"`

	// NormalizeMarkup minifies markup values before comparing them. Line
	// endings and Unicode composition are always normalized.
	NormalizeMarkup bool `yaml:"normalize_markup"`

	// HighlightDepthCycle is the number of repeat highlight classes
	HighlightDepthCycle int `yaml:"highlight_depth_cycle" validate:"min=1,max=16"`

	// SessionTTL is how long an idle form session is kept
	SessionTTL time.Duration `yaml:"session_ttl" validate:"gte=0"`

	LogPrefix string `yaml:"log_prefix" validate:"max=32"`

	// MaxMessageSize bounds a response read from the transport, in bytes
	MaxMessageSize int64 `yaml:"max_message_size" validate:"min=1024"`
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	return &Config{
		DeferralDelay:       200 * time.Millisecond,
		NormalizeMarkup:     true,
		HighlightDepthCycle: 4,
		SessionTTL:          24 * time.Hour,
		LogPrefix:           "xforms: ",
		MaxMessageSize:      4 << 20,
	}
}

// LoadConfig reads a YAML configuration file. Fields missing from the file
// keep their default value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a YAML configuration
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration bounds. Errors are a MultiError with one
// entry per invalid field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return ValidationToMultiError(err)
	}
	return nil
}

// FieldError is the validation error of one configuration field
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiError is a collection of field errors
type MultiError []FieldError

func (m MultiError) Error() string {
	if len(m) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range m {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidationToMultiError converts validator errors to a MultiError
func ValidationToMultiError(err error) MultiError {
	var fieldErrors MultiError

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return MultiError{{Field: "config", Message: err.Error()}}
	}

	for _, e := range validationErrs {
		var message string
		switch e.Tag() {
		case "min", "gte":
			message = fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
		case "max", "lte":
			message = fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
		default:
			message = fmt.Sprintf("%s is invalid", e.Field())
		}
		fieldErrors = append(fieldErrors, FieldError{
			Field:   strings.ToLower(e.Field()),
			Message: message,
		})
	}
	return fieldErrors
}
