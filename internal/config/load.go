package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/domain"
	"github.com/mrz1836/trellis/internal/errors"
)

// newViperInstance creates a new Viper instance with standard trellis configuration.
// This includes environment variable prefix (TRELLIS_), key replacer, and defaults.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// isConfigNotFoundError returns true if the error is a viper config file not found error.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// unmarshalAndValidate unmarshals viper config into Config struct and validates it.
func unmarshalAndValidate(ctx context.Context, v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	addDefaultCapabilities(&cfg)

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Dur("wait.timeout", cfg.Wait.Timeout).
		Dur("wait.poll_interval", cfg.Wait.PollInterval).
		Dur("wait.observation_window", cfg.Wait.ObservationWindow).
		Int("schedule.concurrency", cfg.Schedule.Concurrency).
		Str("schedule.partition", cfg.Schedule.Partition).
		Strs("capabilities", cfg.CapabilityNames()).
		Msg("configuration loaded and unmarshaled")

	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// addDefaultCapabilities adds the built-in capabilities the config did not redefine.
func addDefaultCapabilities(cfg *Config) {
	if cfg.Capabilities == nil {
		cfg.Capabilities = make(map[string]domain.Capability)
	}
	for name, c := range DefaultCapabilities() {
		if _, ok := cfg.Capabilities[name]; !ok {
			cfg.Capabilities[name] = c
		}
	}
}

// Load reads configuration from all available sources with proper precedence.
// Configuration is loaded in the following order (highest precedence first):
//  1. Environment variables (TRELLIS_* prefix)
//  2. Project config (.trellis/config.yaml), or configPath when set
//  3. Global config (~/.trellis/config.yaml)
//  4. Built-in defaults
//
// A missing project or global config file is not an error. A configPath
// that does not exist is ErrConfigNotFound.
func Load(ctx context.Context, configPath string) (*Config, error) {
	v := newViperInstance()

	// Global config provides user-wide defaults that can be overridden per-project
	if err := loadGlobalConfig(v); err != nil {
		return nil, err
	}

	if configPath != "" {
		if !fileExists(configPath) {
			return nil, errors.Wrapf(errors.ErrConfigNotFound, "%s", configPath)
		}
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
		}
	} else if err := loadProjectConfig(v); err != nil {
		return nil, err
	}

	return unmarshalAndValidate(ctx, v)
}

// loadGlobalConfig attempts to load the global config file (~/.trellis/config.yaml).
// Returns nil if the file doesn't exist or home directory cannot be determined.
func loadGlobalConfig(v *viper.Viper) error {
	globalConfigPath, ok := getGlobalConfigPathIfExists()
	if !ok {
		return nil
	}

	v.SetConfigFile(globalConfigPath)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read global config file")
	}
	return nil
}

// getGlobalConfigPathIfExists returns the global config path if it exists.
func getGlobalConfigPathIfExists() (string, bool) {
	globalDir, err := GlobalConfigDir()
	if err != nil {
		return "", false
	}

	globalConfigPath := filepath.Join(globalDir, constants.GlobalConfigName)
	if _, err := os.Stat(globalConfigPath); err != nil {
		return "", false
	}

	return globalConfigPath, true
}

// loadProjectConfig attempts to load the project config file (.trellis/config.yaml).
// Returns nil if the file doesn't exist.
func loadProjectConfig(v *viper.Viper) error {
	projectConfigPath := ProjectConfigPath()
	if !fileExists(projectConfigPath) {
		return nil
	}

	v.SetConfigFile(projectConfigPath)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read project config file")
	}
	return nil
}

// fileExists returns true if the file at path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadWithOverrides loads configuration and applies CLI flag overrides.
// Only non-zero values in overrides are applied.
func LoadWithOverrides(ctx context.Context, configPath string, overrides *Config) (*Config, error) {
	cfg, err := Load(ctx, configPath)
	if err != nil {
		return nil, err
	}

	if overrides != nil {
		applyOverrides(cfg, overrides)
	}

	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration after overrides")
	}

	return cfg, nil
}

// LoadFromPaths loads configuration from specific file paths for testing.
//
// projectConfigPath is the path to project-level config (higher priority).
// globalConfigPath is the path to global config (lower priority).
// Either path can be empty to skip that level.
func LoadFromPaths(ctx context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	if globalConfigPath != "" {
		v.SetConfigFile(globalConfigPath)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
		}
	}

	if projectConfigPath != "" {
		v.SetConfigFile(projectConfigPath)
		if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
		}
	}

	return unmarshalAndValidate(ctx, v)
}

// setDefaults configures all default values on the Viper instance.
// These defaults match the values from DefaultConfig().
// IMPORTANT: Keys must match the YAML tag names exactly for proper mapping,
// and every key needs a default for TRELLIS_* environment overrides to apply.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("wait.timeout", d.Wait.Timeout.String())
	v.SetDefault("wait.poll_interval", d.Wait.PollInterval.String())
	v.SetDefault("wait.observation_window", d.Wait.ObservationWindow.String())

	v.SetDefault("schedule.concurrency", d.Schedule.Concurrency)
	v.SetDefault("schedule.partition", d.Schedule.Partition)
	v.SetDefault("schedule.fail_fast", d.Schedule.FailFast)

	v.SetDefault("api.timeout", d.API.Timeout.String())
	v.SetDefault("api.rate_limit", d.API.RateLimit)
	v.SetDefault("api.burst", d.API.Burst)
	v.SetDefault("api.auth_check_path", d.API.AuthCheckPath)
	v.SetDefault("api.tenant_header", d.API.TenantHeader)

	v.SetDefault("browser.exec_path", d.Browser.ExecPath)
	v.SetDefault("browser.no_sandbox", d.Browser.NoSandbox)
	v.SetDefault("browser.window_width", d.Browser.WindowWidth)
	v.SetDefault("browser.window_height", d.Browser.WindowHeight)

	v.SetDefault("tenants_dir", d.TenantsDir)
	v.SetDefault("suites", d.Suites)
	v.SetDefault("report.format", d.Report.Format)
}

// applyOverrides merges non-zero override values into the config.
//
// IMPORTANT: Boolean fields (FailFast) cannot be overridden to false using
// this function because Go's zero value for bool is false. The CLI sets
// them directly when the flag was changed:
//
//	if cmd.Flags().Changed("fail-fast") {
//	    cfg.Schedule.FailFast = failFast
//	}
func applyOverrides(cfg, overrides *Config) {
	if overrides.Schedule.Concurrency != 0 {
		cfg.Schedule.Concurrency = overrides.Schedule.Concurrency
	}
	if overrides.Schedule.Partition != "" {
		cfg.Schedule.Partition = overrides.Schedule.Partition
	}
	if overrides.Wait.Timeout != 0 {
		cfg.Wait.Timeout = overrides.Wait.Timeout
	}
	if overrides.TenantsDir != "" {
		cfg.TenantsDir = overrides.TenantsDir
	}
	if len(overrides.Suites) > 0 {
		cfg.Suites = overrides.Suites
	}
	if overrides.Report.Format != "" {
		cfg.Report.Format = overrides.Report.Format
	}
}

// viperDecoderOption returns the decoder options for Viper unmarshal.
// This configures mapstructure to handle time.Duration conversion from strings
// and comma separated suite lists from environment variables.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)
}
