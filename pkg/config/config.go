package config

import "time"

// Warning represents a non-critical issue with configuration.
type Warning string

type AgentConfig struct {
	AgentID   string `mapstructure:"agent_id" toml:"agent_id"`
	AgentName string `mapstructure:"agent_name" toml:"agent_name"`
}

type CollectionConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds" toml:"interval_seconds"`
	// Schedule is a cron or @every expression and wins over IntervalSeconds.
	Schedule        string `mapstructure:"schedule" toml:"schedule"`
	IncludeServices bool   `mapstructure:"include_services" toml:"include_services"`
	IncludeSoftware bool   `mapstructure:"include_software" toml:"include_software"`
}

type OutputConfig struct {
	OutputDirectory string `mapstructure:"output_directory" toml:"output_directory"`
	SaveToFile      bool   `mapstructure:"save_to_file" toml:"save_to_file"`
	TimestampFormat string `mapstructure:"timestamp_format" toml:"timestamp_format"`
	Encrypt         bool   `mapstructure:"encrypt" toml:"encrypt"`
	MaxFiles        int    `mapstructure:"max_files" toml:"max_files"`
}

type LoggingConfig struct {
	Level        string `mapstructure:"level" toml:"level"`
	Console      bool   `mapstructure:"console" toml:"console"`
	File         bool   `mapstructure:"file" toml:"file"`
	LogDirectory string `mapstructure:"log_directory" toml:"log_directory"`
	JSON         bool   `mapstructure:"json" toml:"json"`
	Audit        bool   `mapstructure:"audit" toml:"audit"`
}

type RetryConfig struct {
	MaxRetries     int     `mapstructure:"max_retries" toml:"max_retries"`
	InitialDelayMS int     `mapstructure:"initial_delay_ms" toml:"initial_delay_ms"`
	MaxDelayMS     int     `mapstructure:"max_delay_ms" toml:"max_delay_ms"`
	Multiplier     float64 `mapstructure:"multiplier" toml:"multiplier"`
	Jitter         float64 `mapstructure:"jitter" toml:"jitter"`
	FailFast       bool    `mapstructure:"fail_fast" toml:"fail_fast"`
}

type ServerConfig struct {
	Enabled            bool   `mapstructure:"enabled" toml:"enabled"`
	URL                string `mapstructure:"url" toml:"url"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
	RegistrationURL    string `mapstructure:"registration_url" toml:"registration_url"`
	CAFile             string `mapstructure:"ca_file" toml:"ca_file"`
	CertFile           string `mapstructure:"cert_file" toml:"cert_file"`
	KeyFile            string `mapstructure:"key_file" toml:"key_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" toml:"insecure_skip_verify"`
}

type VaultConfig struct {
	KeyPath   string `mapstructure:"key_path" toml:"key_path"`
	TokenPath string `mapstructure:"token_path" toml:"token_path"`
}

type MetricsConfig struct {
	Enabled       bool   `mapstructure:"enabled" toml:"enabled"`
	ListenAddress string `mapstructure:"listen_address" toml:"listen_address"`
	Pprof         bool   `mapstructure:"pprof" toml:"pprof"`
}

type RegistrationConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" toml:"poll_interval_seconds"`
	// PollTimeoutSeconds of 0 means a single status check.
	PollTimeoutSeconds int `mapstructure:"poll_timeout_seconds" toml:"poll_timeout_seconds"`
}

type Config struct {
	Agent        AgentConfig        `mapstructure:"agent" toml:"agent"`
	Collection   CollectionConfig   `mapstructure:"collection" toml:"collection"`
	Output       OutputConfig       `mapstructure:"output" toml:"output"`
	Logging      LoggingConfig      `mapstructure:"logging" toml:"logging"`
	Retry        RetryConfig        `mapstructure:"retry" toml:"retry"`
	Server       ServerConfig       `mapstructure:"server" toml:"server"`
	Vault        VaultConfig        `mapstructure:"vault" toml:"vault"`
	Metrics      MetricsConfig      `mapstructure:"metrics" toml:"metrics"`
	Registration RegistrationConfig `mapstructure:"registration" toml:"registration"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			AgentID:   DefaultAgentID,
			AgentName: DefaultAgentName,
		},
		Collection: CollectionConfig{
			IntervalSeconds: DefaultIntervalSeconds,
			IncludeServices: true,
			IncludeSoftware: true,
		},
		Output: OutputConfig{
			OutputDirectory: DefaultOutputDirectory,
			SaveToFile:      true,
			TimestampFormat: DefaultTimestampFormat,
		},
		Logging: LoggingConfig{
			Level:        DefaultLogLevel,
			Console:      true,
			LogDirectory: DefaultLogDirectory,
			Audit:        true,
		},
		Retry: RetryConfig{
			MaxRetries:     DefaultMaxRetries,
			InitialDelayMS: DefaultInitialDelayMS,
			MaxDelayMS:     DefaultMaxDelayMS,
			Multiplier:     DefaultMultiplier,
			Jitter:         DefaultJitter,
			FailFast:       true,
		},
		Server: ServerConfig{
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Metrics: MetricsConfig{
			ListenAddress: DefaultMetricsAddress,
		},
		Registration: RegistrationConfig{
			PollIntervalSeconds: DefaultPollIntervalSeconds,
		},
	}
}

func (c RetryConfig) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelayMS) * time.Millisecond
}

func (c RetryConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMS) * time.Millisecond
}

func (c ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c RegistrationConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c RegistrationConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSeconds) * time.Second
}
