package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hostward/device-agent/internal/scheduler"
	"github.com/hostward/device-agent/internal/spool"
	"github.com/hostward/device-agent/internal/utils"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
	"fatal": true,
	"panic": true,
}

var (
	ErrNilConfig    = errors.New("config cannot be nil")
	ErrEmptyAgentID = errors.New("agent.agent_id cannot be empty")
	ErrInvalidURL   = errors.New("server.url must be an absolute http(s) URL when server.enabled is true")
)

// Validate replaces recoverable invalid values with defaults, returning a
// warning for each, and fails on values the agent cannot run with.
func Validate(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	cfg.Agent.AgentID = strings.TrimSpace(cfg.Agent.AgentID)
	if cfg.Agent.AgentID == "" {
		return nil, ErrEmptyAgentID
	}

	if cfg.Server.Enabled && !utils.IsValidURL(cfg.Server.URL) {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidURL, cfg.Server.URL)
	}
	if cfg.Server.RegistrationURL != "" && !utils.IsValidURL(cfg.Server.RegistrationURL) {
		return nil, fmt.Errorf("invalid server.registration_url %q", cfg.Server.RegistrationURL)
	}
	if (cfg.Server.CertFile == "") != (cfg.Server.KeyFile == "") {
		return nil, errors.New("server.cert_file and server.key_file must be set together")
	}
	if cfg.Server.InsecureSkipVerify {
		warn("server.insecure_skip_verify is enabled, the collector certificate is not verified")
	}

	level := strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	switch {
	case level == "":
		cfg.Logging.Level = DefaultLogLevel
	case !validLogLevels[level]:
		warn("invalid logging.level '%s' provided. Valid options are: trace, debug, info, warn, error, fatal, panic. Defaulting to '%s'.", cfg.Logging.Level, DefaultLogLevel)
		cfg.Logging.Level = DefaultLogLevel
	default:
		cfg.Logging.Level = level
	}

	if cfg.Collection.Schedule != "" {
		if _, err := scheduler.ParseSchedule(cfg.Collection.Schedule); err != nil {
			warn("invalid collection.schedule %q (%v), using interval_seconds", cfg.Collection.Schedule, err)
			cfg.Collection.Schedule = ""
		}
	}
	if cfg.Collection.IntervalSeconds < 1 {
		warn("collection.interval_seconds must be positive, using default %d", DefaultIntervalSeconds)
		cfg.Collection.IntervalSeconds = DefaultIntervalSeconds
	}

	if cfg.Output.TimestampFormat == "" {
		cfg.Output.TimestampFormat = DefaultTimestampFormat
	} else if err := spool.ValidateTimestampFormat(cfg.Output.TimestampFormat); err != nil {
		warn("%v, using default %q", err, DefaultTimestampFormat)
		cfg.Output.TimestampFormat = DefaultTimestampFormat
	}
	if cfg.Output.OutputDirectory == "" {
		cfg.Output.OutputDirectory = DefaultOutputDirectory
	}
	if cfg.Output.MaxFiles < 0 {
		warn("output.max_files cannot be negative, keeping all files")
		cfg.Output.MaxFiles = 0
	}

	if cfg.Logging.LogDirectory == "" {
		cfg.Logging.LogDirectory = DefaultLogDirectory
	}

	validateRetry(&cfg.Retry, warn)

	if cfg.Server.TimeoutSeconds < 1 {
		warn("server.timeout_seconds must be positive, using default %d", DefaultTimeoutSeconds)
		cfg.Server.TimeoutSeconds = DefaultTimeoutSeconds
	}

	if cfg.Metrics.ListenAddress == "" {
		cfg.Metrics.ListenAddress = DefaultMetricsAddress
	}

	if cfg.Registration.PollIntervalSeconds < 1 {
		warn("registration.poll_interval_seconds must be positive, using default %d", DefaultPollIntervalSeconds)
		cfg.Registration.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if cfg.Registration.PollTimeoutSeconds < 0 {
		warn("registration.poll_timeout_seconds cannot be negative, checking status once")
		cfg.Registration.PollTimeoutSeconds = 0
	}

	return warnings, nil
}

func validateRetry(r *RetryConfig, warn func(string, ...any)) {
	if r.MaxRetries < 1 {
		warn("retry.max_retries must be at least 1, using default %d", DefaultMaxRetries)
		r.MaxRetries = DefaultMaxRetries
	}
	if r.InitialDelayMS < 0 {
		warn("retry.initial_delay_ms cannot be negative, using default %d", DefaultInitialDelayMS)
		r.InitialDelayMS = DefaultInitialDelayMS
	}
	if r.MaxDelayMS < r.InitialDelayMS {
		warn("retry.max_delay_ms is lower than initial_delay_ms, using %d", r.InitialDelayMS)
		r.MaxDelayMS = r.InitialDelayMS
	}
	if r.Multiplier < 1 {
		warn("retry.multiplier must be at least 1, using default %.1f", DefaultMultiplier)
		r.Multiplier = DefaultMultiplier
	}
	if r.Jitter < 0 || r.Jitter > 1 {
		warn("retry.jitter must be within [0, 1], using default %.1f", DefaultJitter)
		r.Jitter = DefaultJitter
	}
}

// ScheduleExpr returns the collection schedule as a cron expression.
func (c *Config) ScheduleExpr() string {
	if c.Collection.Schedule != "" {
		return c.Collection.Schedule
	}
	return scheduler.EveryExpr(c.Collection.IntervalSeconds)
}
