package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ConfigChangeType string

const (
	LogLevelChanged ConfigChangeType = "log_level"
	ScheduleChanged ConfigChangeType = "schedule"
	// RestartRequired covers every other setting, which is read only at startup.
	RestartRequired ConfigChangeType = "restart_required"
)

type ConfigChange struct {
	Type     ConfigChangeType
	OldValue interface{}
	NewValue interface{}
}

type ConfigChangeCallback func(change ConfigChange) error

type ConfigManager struct {
	config     *Config
	configPath string
	overrides  []func(*Config)
	mu         sync.RWMutex
}

func NewConfigManager(configPath string, config *Config) *ConfigManager {
	return &ConfigManager{config: config, configPath: configPath}
}

// With applies mutators now and again after every reload, so command line
// overrides survive config file edits.
func (cm *ConfigManager) With(mutators ...func(*Config)) *ConfigManager {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, mutate := range mutators {
		mutate(cm.config)
	}
	cm.overrides = append(cm.overrides, mutators...)
	return cm
}

func (cm *ConfigManager) Path() string {
	return cm.configPath
}

// Config returns a copy of the current configuration.
func (cm *ConfigManager) Config() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return *cm.config
}

// DetectChanges lists what differs between two validated configurations.
func DetectChanges(oldConfig, newConfig *Config) []ConfigChange {
	var changes []ConfigChange

	if oldConfig.Logging.Level != newConfig.Logging.Level {
		changes = append(changes, ConfigChange{
			Type:     LogLevelChanged,
			OldValue: oldConfig.Logging.Level,
			NewValue: newConfig.Logging.Level,
		})
	}

	if oldConfig.ScheduleExpr() != newConfig.ScheduleExpr() {
		changes = append(changes, ConfigChange{
			Type:     ScheduleChanged,
			OldValue: oldConfig.ScheduleExpr(),
			NewValue: newConfig.ScheduleExpr(),
		})
	}

	oldRest, newRest := *oldConfig, *newConfig
	oldRest.Logging.Level, newRest.Logging.Level = "", ""
	oldRest.Collection.Schedule, newRest.Collection.Schedule = "", ""
	oldRest.Collection.IntervalSeconds, newRest.Collection.IntervalSeconds = 0, 0
	if oldRest != newRest {
		changes = append(changes, ConfigChange{
			Type:     RestartRequired,
			OldValue: "settings_changed",
			NewValue: "settings_changed",
		})
	}

	return changes
}

// ReloadConfig rereads the config file. The running config is kept when the
// new one cannot be read or fails validation.
func (cm *ConfigManager) ReloadConfig() ([]ConfigChange, []string, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	newConfig, err := Read(cm.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config from disk: %w", err)
	}
	for _, mutate := range cm.overrides {
		mutate(newConfig)
	}

	warnings, err := Validate(newConfig)
	if err != nil {
		return nil, warnings, fmt.Errorf("failed to validate reloaded config: %w", err)
	}

	changes := DetectChanges(cm.config, newConfig)
	cm.config = newConfig

	return changes, warnings, nil
}

// InitConfigManager loads .env, reads and validates the config at configPath.
// A missing config file yields the defaults with a warning.
func InitConfigManager(configPath string, mutators ...func(*Config)) (*ConfigManager, []string, error) {
	var warnings []string

	if err := LoadDotEnv(".env"); err != nil {
		return nil, nil, err
	}

	cfg, err := Read(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		warnings = append(warnings, fmt.Sprintf("config file %s not found, using defaults", configPath))
		cfg, err = readDefaults()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config: %w", err)
	}

	for _, mutate := range mutators {
		mutate(cfg)
	}

	validationWarnings, err := Validate(cfg)
	warnings = append(warnings, validationWarnings...)
	if err != nil {
		return nil, warnings, fmt.Errorf("invalid config: %w", err)
	}

	cm := NewConfigManager(configPath, cfg)
	cm.overrides = mutators
	return cm, warnings, nil
}

// LoadDotEnv exports the variables in path unless already set. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Read parses the TOML file at path on top of the defaults, with
// DEVICE_AGENT_* environment variables taking precedence over the file.
func Read(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	v := newViper()
	v.SetConfigFile(filepath.Clean(path))
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return unmarshal(v)
}

func readDefaults() (*Config, error) {
	return unmarshal(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key, which also lets AutomaticEnv resolve
// keys the file leaves out.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("agent.agent_id", d.Agent.AgentID)
	v.SetDefault("agent.agent_name", d.Agent.AgentName)

	v.SetDefault("collection.interval_seconds", d.Collection.IntervalSeconds)
	v.SetDefault("collection.schedule", d.Collection.Schedule)
	v.SetDefault("collection.include_services", d.Collection.IncludeServices)
	v.SetDefault("collection.include_software", d.Collection.IncludeSoftware)

	v.SetDefault("output.output_directory", d.Output.OutputDirectory)
	v.SetDefault("output.save_to_file", d.Output.SaveToFile)
	v.SetDefault("output.timestamp_format", d.Output.TimestampFormat)
	v.SetDefault("output.encrypt", d.Output.Encrypt)
	v.SetDefault("output.max_files", d.Output.MaxFiles)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.console", d.Logging.Console)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.log_directory", d.Logging.LogDirectory)
	v.SetDefault("logging.json", d.Logging.JSON)
	v.SetDefault("logging.audit", d.Logging.Audit)

	v.SetDefault("retry.max_retries", d.Retry.MaxRetries)
	v.SetDefault("retry.initial_delay_ms", d.Retry.InitialDelayMS)
	v.SetDefault("retry.max_delay_ms", d.Retry.MaxDelayMS)
	v.SetDefault("retry.multiplier", d.Retry.Multiplier)
	v.SetDefault("retry.jitter", d.Retry.Jitter)
	v.SetDefault("retry.fail_fast", d.Retry.FailFast)

	v.SetDefault("server.enabled", d.Server.Enabled)
	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("server.timeout_seconds", d.Server.TimeoutSeconds)
	v.SetDefault("server.registration_url", d.Server.RegistrationURL)
	v.SetDefault("server.ca_file", d.Server.CAFile)
	v.SetDefault("server.cert_file", d.Server.CertFile)
	v.SetDefault("server.key_file", d.Server.KeyFile)
	v.SetDefault("server.insecure_skip_verify", d.Server.InsecureSkipVerify)

	v.SetDefault("vault.key_path", d.Vault.KeyPath)
	v.SetDefault("vault.token_path", d.Vault.TokenPath)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.listen_address", d.Metrics.ListenAddress)
	v.SetDefault("metrics.pprof", d.Metrics.Pprof)

	v.SetDefault("registration.poll_interval_seconds", d.Registration.PollIntervalSeconds)
	v.SetDefault("registration.poll_timeout_seconds", d.Registration.PollTimeoutSeconds)
}
