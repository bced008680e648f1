package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/intake/internal/paths"
	"github.com/mesh-intelligence/intake/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "INTAKE"

	cfgKeyDriver      = "driver"
	cfgKeyDSN         = "dsn"
	cfgKeyDataDir     = "data_dir"
	cfgKeyTable       = "table"
	cfgKeyMaxAttempts = "retry.max_attempts"
	cfgKeyRetryDelay  = "retry.delay"
	cfgKeyModel       = "ai.model"
	cfgKeyAPIKey      = "ai.api_key"
)

const configHeader = `# intake configuration
# driver: sqlite or postgres. Postgres needs dsn.
# The AI key is read from INTAKE_AI_API_KEY and is never written here.
`

// configFile is the layout of the default config.yaml.
type configFile struct {
	Driver  string      `yaml:"driver"`
	DSN     string      `yaml:"dsn"`
	DataDir string      `yaml:"data_dir"`
	Table   string      `yaml:"table"`
	Retry   configRetry `yaml:"retry"`
	AI      configAI    `yaml:"ai"`
}

type configRetry struct {
	MaxAttempts int    `yaml:"max_attempts"`
	Delay       string `yaml:"delay"`
}

type configAI struct {
	Model string `yaml:"model"`
}

// loadConfig resolves the config directory, writes a default config.yaml
// there on first run, and reads it with viper. Environment variables with
// the INTAKE_ prefix override file values.
func (a *app) loadConfig() (types.Config, error) {
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return types.Config{}, sysErr("resolve config dir: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return types.Config{}, sysErr("create config dir: %w", err)
	}
	if err := writeConfigIfMissing(paths.ConfigFile(configDir)); err != nil {
		return types.Config{}, sysErr("write default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyDriver, types.DriverSQLite)
	v.SetDefault(cfgKeyTable, types.DefaultTable)
	v.SetDefault(cfgKeyMaxAttempts, types.DefaultMaxAttempts)
	v.SetDefault(cfgKeyRetryDelay, types.DefaultRetryDelay)
	v.SetDefault(cfgKeyModel, types.DefaultModel)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := types.Config{
		Driver: v.GetString(cfgKeyDriver),
		DSN:    v.GetString(cfgKeyDSN),
		Table:  v.GetString(cfgKeyTable),
		Retry: types.RetryConfig{
			MaxAttempts: v.GetInt(cfgKeyMaxAttempts),
			Delay:       v.GetDuration(cfgKeyRetryDelay),
		},
		AI: types.AIConfig{
			Model:  v.GetString(cfgKeyModel),
			APIKey: v.GetString(cfgKeyAPIKey),
		},
	}
	if cfg.Driver == types.DriverSQLite {
		cfg.DataDir, err = paths.ResolveDataDir(a.dataDir, v.GetString(cfgKeyDataDir))
		if err != nil {
			return types.Config{}, sysErr("resolve data dir: %w", err)
		}
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// writeConfigIfMissing creates config.yaml with default values. An existing
// file is left alone.
func writeConfigIfMissing(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	def := configFile{
		Driver: types.DriverSQLite,
		Table:  types.DefaultTable,
		Retry: configRetry{
			MaxAttempts: types.DefaultMaxAttempts,
			Delay:       types.DefaultRetryDelay.String(),
		},
		AI: configAI{Model: types.DefaultModel},
	}
	var buf bytes.Buffer
	buf.WriteString(configHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&def); err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
