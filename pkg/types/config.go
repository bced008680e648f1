package types

import (
	"errors"
	"regexp"
	"time"
)

// Config holds store selection and service parameters.
type Config struct {
	Driver  string      `json:"driver" yaml:"driver"`
	DSN     string      `json:"dsn" yaml:"dsn,omitempty"`
	DataDir string      `json:"data_dir" yaml:"data_dir,omitempty"`
	Table   string      `json:"table" yaml:"table,omitempty"`
	Retry   RetryConfig `json:"retry" yaml:"retry"`
	AI      AIConfig    `json:"ai" yaml:"ai"`
}

// RetryConfig bounds the save retry loop.
type RetryConfig struct {
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts"`
	Delay       time.Duration `json:"delay" yaml:"delay"`
}

// AIConfig configures the action-plan completer.
type AIConfig struct {
	Model  string `json:"model" yaml:"model,omitempty"`
	APIKey string `json:"-" yaml:"-"`
}

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Defaults applied by WithDefaults.
const (
	DefaultTable       = "intake_records"
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
	DefaultModel       = "gemini-2.5-flash"
)

// Config validation errors.
var (
	ErrDriverEmpty        = errors.New("driver must not be empty")
	ErrDriverUnknown      = errors.New("unknown driver")
	ErrDSNRequired        = errors.New("postgres driver requires a dsn")
	ErrTableNameInvalid   = errors.New("table name must be a plain identifier")
	ErrMaxAttemptsInvalid = errors.New("retry max_attempts must be positive")
	ErrRetryDelayInvalid  = errors.New("retry delay must not be negative")
)

var knownDrivers = map[string]bool{
	DriverSQLite:   true,
	DriverPostgres: true,
}

// tableNamePattern restricts table names to identifiers; the name is the
// only piece of SQL text not passed as a bound parameter.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// WithDefaults returns a copy of c with zero fields filled in.
func (c Config) WithDefaults() Config {
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if c.Retry.Delay == 0 {
		c.Retry.Delay = DefaultRetryDelay
	}
	if c.AI.Model == "" {
		c.AI.Model = DefaultModel
	}
	return c
}

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.Driver == "" {
		return ErrDriverEmpty
	}
	if !knownDrivers[c.Driver] {
		return ErrDriverUnknown
	}
	if c.Driver == DriverPostgres && c.DSN == "" {
		return ErrDSNRequired
	}
	if c.Table != "" && !tableNamePattern.MatchString(c.Table) {
		return ErrTableNameInvalid
	}
	if c.Retry.MaxAttempts < 0 {
		return ErrMaxAttemptsInvalid
	}
	if c.Retry.Delay < 0 {
		return ErrRetryDelayInvalid
	}
	return nil
}
