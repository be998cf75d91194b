package config

// Default config.toml path, used if the user does not provide any config path
const DefaultConfigPath string = "config.toml"

// EnvPrefix prefixes environment overrides, e.g. DEVICE_AGENT_SERVER_URL.
const EnvPrefix = "DEVICE_AGENT"

// The values below are used when the config file omits a key or provides a
// value that fails validation.
const (
	DefaultAgentID   = "agent-001"
	DefaultAgentName = "Device Agent"

	DefaultIntervalSeconds = 300

	DefaultOutputDirectory = "./data"
	DefaultTimestampFormat = "%Y%m%d_%H%M%S"

	DefaultLogLevel     = "info"
	DefaultLogDirectory = "./logs"

	DefaultMaxRetries     = 5
	DefaultInitialDelayMS = 1000
	DefaultMaxDelayMS     = 60000
	DefaultMultiplier     = 2.0
	DefaultJitter         = 0.5

	DefaultTimeoutSeconds = 30

	DefaultMetricsAddress = "127.0.0.1:9090"

	DefaultPollIntervalSeconds = 30
)
