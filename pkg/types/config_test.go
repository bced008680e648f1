package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "empty driver returns ErrDriverEmpty",
			config:  Config{Driver: "", DataDir: "/tmp/data"},
			wantErr: ErrDriverEmpty,
		},
		{
			name:    "unknown driver returns ErrDriverUnknown",
			config:  Config{Driver: "snowflake"},
			wantErr: ErrDriverUnknown,
		},
		{
			name:    "postgres without dsn returns ErrDSNRequired",
			config:  Config{Driver: DriverPostgres},
			wantErr: ErrDSNRequired,
		},
		{
			name:    "table name with punctuation is rejected",
			config:  Config{Driver: DriverSQLite, Table: "records; DROP TABLE x"},
			wantErr: ErrTableNameInvalid,
		},
		{
			name:    "negative max attempts is rejected",
			config:  Config{Driver: DriverSQLite, Retry: RetryConfig{MaxAttempts: -1}},
			wantErr: ErrMaxAttemptsInvalid,
		},
		{
			name:    "negative delay is rejected",
			config:  Config{Driver: DriverSQLite, Retry: RetryConfig{Delay: -time.Second}},
			wantErr: ErrRetryDelayInvalid,
		},
		{
			name:    "valid sqlite config",
			config:  Config{Driver: DriverSQLite, DataDir: "/tmp/data"},
			wantErr: nil,
		},
		{
			name:    "valid postgres config",
			config:  Config{Driver: DriverPostgres, DSN: "postgres://localhost/intake", Table: "SLSP_DEMO"},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	got := Config{Driver: DriverSQLite}.WithDefaults()
	assert.Equal(t, DefaultTable, got.Table)
	assert.Equal(t, DefaultMaxAttempts, got.Retry.MaxAttempts)
	assert.Equal(t, DefaultRetryDelay, got.Retry.Delay)
	assert.Equal(t, DefaultModel, got.AI.Model)

	custom := Config{Driver: DriverSQLite, Table: "t1", Retry: RetryConfig{MaxAttempts: 5, Delay: time.Millisecond}}.WithDefaults()
	assert.Equal(t, "t1", custom.Table)
	assert.Equal(t, 5, custom.Retry.MaxAttempts)
	assert.Equal(t, time.Millisecond, custom.Retry.Delay)
}
