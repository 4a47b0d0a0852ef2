// Package config defines the global configuration structure for the aurora
// alert pipeline. Configuration is loaded once at process initialization
// (Lambda cold start) and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails the process at startup.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"aurorawatch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the aurora alert pipeline.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"aurorawatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	// Domain Configurations
	Alerting      AlertingConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Email         EmailConfig
	Observability ObservabilityConfig

	// Build Metadata (injected via ldflags, not env)
	Build BuildInfo
}

// AlertingConfig holds the watched locations and evaluation tuning.
type AlertingConfig struct {
	// LocationsJSON is a JSON array of watched locations, for example:
	// [{"name":"Windsor","lat":42.31,"lon":-83.04,"kp_min":6,"timezone":"America/Toronto"}]
	LocationsJSON string `envconfig:"LOCATIONS_JSON" validate:"required,json"`

	// CloudMax is the maximum cloud cover percentage that still counts as
	// clear sky. Values above it veto a realtime alert.
	CloudMax float64 `envconfig:"CLOUD_MAX" default:"50"`

	// CheckInterval is the cadence of the scheduled poller. It is recorded
	// in logs and used by the local cycle-runner loop mode.
	CheckInterval time.Duration `envconfig:"CHECK_INTERVAL" default:"15m"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	// Resolved from SSM or Env. Optional in local runs, where the CSV
	// recipient directory replaces Postgres; entry points that actually
	// open a pool fail fast on an empty URL.
	URL SecretString `envconfig:"DATABASE_URL" validate:"omitempty,url"`

	// Tuning Parameters
	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"4"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// NotificationQueue is the SQS queue between the poller and the
	// email worker. Optional in local runs, where the cycle-runner
	// delivers in-process instead of enqueueing.
	NotificationQueue string `envconfig:"SQS_NOTIFICATIONS" validate:"omitempty,url"`

	// LocalStack Support (empty in prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// EmailConfig holds email delivery configuration.
type EmailConfig struct {
	FromAddress string `envconfig:"EMAIL_FROM_ADDRESS" default:"alerts@aurorawatch.io"`
	FromName    string `envconfig:"EMAIL_FROM_NAME" default:"Aurora Watch"`
	Provider    string `envconfig:"EMAIL_PROVIDER" default:"ses" validate:"oneof=ses stub"`

	// RecipientsCSV is an optional path to a CSV recipient list used by
	// local runs instead of the database directory.
	RecipientsCSV string `envconfig:"RECIPIENTS_CSV"`
}

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"AuroraWatch"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

// Locations decodes and validates the watched locations from LocationsJSON.
// Each location must carry a non-empty name, a kp threshold within the
// planetary index scale (0..9) and a timezone resolvable by the IANA
// database. At least one location is required.
func (c *AlertingConfig) Locations() ([]types.Location, error) {
	var locations []types.Location
	if err := json.Unmarshal([]byte(c.LocationsJSON), &locations); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to decode LOCATIONS_JSON",
			Err:     err,
		}
	}
	if len(locations) == 0 {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "LOCATIONS_JSON must contain at least one location",
		}
	}

	validate := validator.New()
	for i, loc := range locations {
		if err := validate.Struct(loc); err != nil {
			return nil, &ConfigError{
				Type:    ErrValidation,
				Message: fmt.Sprintf("location %d (%s) failed validation", i, loc.Name),
				Err:     err,
			}
		}
		if _, err := time.LoadLocation(loc.Timezone); err != nil {
			return nil, &ConfigError{
				Type:    ErrValidation,
				Message: fmt.Sprintf("location %d (%s) has unknown timezone %q", i, loc.Name, loc.Timezone),
				Err:     err,
			}
		}
	}
	return locations, nil
}
