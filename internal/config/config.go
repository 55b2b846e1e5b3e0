// Package config defines the global configuration structure for the
// predictive maintenance service. Configuration is loaded once at process
// startup and is immutable thereafter, following 12-Factor principles.
//
// Values are resolved from the OS environment, with a .env file as a
// lower-priority fallback for local development. Any missing required value
// or invalid format aborts startup (fail fast).
package config

import (
	"time"

	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"machine-predictor"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server    ServerConfig
	Database  DatabaseConfig
	ML        MLConfig
	Scheduler SchedulerConfig
	Alerting  AlertingConfig
	Cron      CronConfig
	AWS       AWSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// MLConfig holds settings for the external prediction service.
type MLConfig struct {
	// BaseURL is the prediction service root; the client POSTs to
	// {BaseURL}/predict.
	BaseURL string        `envconfig:"ML_PREDICTION_URL" default:"https://deropxyz-ac02-ml.hf.space" validate:"required,url"`
	Timeout time.Duration `envconfig:"ML_TIMEOUT" default:"30s"`
	// MaxConcurrency bounds the fan-out of simultaneous prediction calls in
	// the batch and summary passes, sized to what the remote service can take.
	MaxConcurrency int `envconfig:"ML_MAX_CONCURRENCY" default:"10" validate:"min=1"`
}

// SchedulerConfig holds the batch prediction scheduler settings.
type SchedulerConfig struct {
	Enabled  bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`
	Interval time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"5m" validate:"min=1s"`
}

// AlertingConfig holds alert generation tuning parameters.
type AlertingConfig struct {
	// GuardTTL is how long a per-machine processing guard entry stays valid
	// before the sweeper reclaims it as leaked.
	GuardTTL time.Duration `envconfig:"ALERT_GUARD_TTL" default:"60s"`
	// DuplicateWindow is the cooldown during which a repeat of the same
	// (machine, alert type) is suppressed.
	DuplicateWindow time.Duration `envconfig:"ALERT_DUPLICATE_WINDOW" default:"60m"`
}

// CronConfig holds the shared secret for the external batch trigger.
type CronConfig struct {
	Secret SecretString `envconfig:"CRON_SECRET" validate:"required"`
}

// AWSConfig holds AWS resource identifiers for the optional alert event
// queue and pipeline metrics. Empty queue URL / namespace disable the
// corresponding integration.
type AWSConfig struct {
	Region           string `envconfig:"AWS_REGION" default:"us-east-1"`
	AlertQueueURL    string `envconfig:"SQS_ALERT_EVENTS"`
	MetricsNamespace string `envconfig:"METRICS_NAMESPACE"`

	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}
