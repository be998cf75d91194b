package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hostward/device-agent/internal/agent"
	"github.com/hostward/device-agent/internal/collector"
	"github.com/hostward/device-agent/internal/crypto"
	"github.com/hostward/device-agent/internal/delivery"
	"github.com/hostward/device-agent/internal/identity"
	"github.com/hostward/device-agent/internal/logger"
	"github.com/hostward/device-agent/internal/metrics"
	"github.com/hostward/device-agent/internal/registration"
	"github.com/hostward/device-agent/internal/retry"
	"github.com/hostward/device-agent/internal/secure"
	"github.com/hostward/device-agent/internal/spool"
	agenttls "github.com/hostward/device-agent/internal/tls"
	"github.com/hostward/device-agent/internal/vault"
	"github.com/hostward/device-agent/pkg/config"
	"github.com/rs/zerolog"
)

var errNoRegistrationURL = errors.New("server.url or server.registration_url must be configured")

// env is the configured process state shared by the commands.
type env struct {
	ctx     context.Context
	cm      *config.ConfigManager
	cfg     config.Config
	log     *zerolog.Logger
	closers []func() error
}

// setup loads the config, builds the logger and opens the audit log.
func setup(ctx context.Context, opts *globalOptions) (*env, error) {
	cm, warnings, err := config.InitConfigManager(opts.configPath, opts.mutators()...)
	if err != nil {
		return nil, err
	}
	cfg := cm.Config()

	ctx, log, closeLog, err := logger.InitLogger(ctx, cfg.Logging.Level, logger.Options{
		Console:   cfg.Logging.Console,
		JSON:      cfg.Logging.JSON,
		File:      cfg.Logging.File,
		Directory: cfg.Logging.LogDirectory,
	}, warnings)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	e := &env{ctx: ctx, cm: cm, cfg: cfg, log: log, closers: []func() error{closeLog}}

	if cfg.Logging.Audit {
		w, err := logger.NewFileAuditWriter(cfg.Logging.LogDirectory)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to open audit log, audit events are disabled")
		} else {
			logger.InitAuditLogger(w)
			e.closers = append(e.closers, func() error {
				logger.InitAuditLogger(nil)
				return w.Close()
			})
		}
	}

	return e, nil
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}

func (e *env) vault() (*vault.Vault, error) {
	paths, err := config.ResolveVaultPaths(e.cfg.Vault)
	if err != nil {
		return nil, err
	}
	return vault.New(paths, crypto.NewAESProvider()).WithLogger(e.log), nil
}

func (e *env) httpClient() (*http.Client, error) {
	return agenttls.NewHTTPClient(agenttls.Options{
		CAFile:             e.cfg.Server.CAFile,
		CertFile:           e.cfg.Server.CertFile,
		KeyFile:            e.cfg.Server.KeyFile,
		InsecureSkipVerify: e.cfg.Server.InsecureSkipVerify,
	}, e.cfg.Server.Timeout())
}

func (e *env) registrationFlow(store registration.CredentialStore) (*registration.Flow, error) {
	url := e.cfg.Server.RegistrationURL
	if url == "" {
		if e.cfg.Server.URL == "" {
			return nil, errNoRegistrationURL
		}
		var err error
		if url, err = registration.DefaultURL(e.cfg.Server.URL); err != nil {
			return nil, err
		}
	}

	hc, err := e.httpClient()
	if err != nil {
		return nil, err
	}

	return registration.NewFlow(
		registration.NewClient(url, hc),
		store,
		e.cfg.Registration.PollInterval(),
		e.cfg.Registration.PollTimeout(),
	), nil
}

// collector gathers full snapshots, or identity only when inventory is false.
func (e *env) collector(inventory bool) *collector.SystemCollector {
	return collector.NewSystemCollector(collector.Options{
		AgentID:         e.cfg.Agent.AgentID,
		AgentName:       e.cfg.Agent.AgentName,
		IncludeServices: inventory && e.cfg.Collection.IncludeServices,
		IncludeSoftware: inventory && e.cfg.Collection.IncludeSoftware,
	})
}

// spool returns nil when snapshots are not saved locally.
func (e *env) spool() (*spool.Writer, error) {
	if !e.cfg.Output.SaveToFile {
		return nil, nil
	}

	dir, err := config.ResolveDir(e.cfg.Output.OutputDirectory)
	if err != nil {
		return nil, fmt.Errorf("invalid output.output_directory: %w", err)
	}

	var sealer spool.Sealer
	if e.cfg.Output.Encrypt {
		sealer = secure.NewSealer(crypto.NewAESProvider(), identity.DefaultProbe())
	}

	return spool.NewWriter(spool.Options{
		Directory:       dir,
		TimestampFormat: e.cfg.Output.TimestampFormat,
		MaxFiles:        e.cfg.Output.MaxFiles,
	}, sealer)
}

func (e *env) retryPolicy() retry.Policy {
	r := e.cfg.Retry
	return retry.Policy{
		MaxRetries:   r.MaxRetries,
		InitialDelay: r.InitialDelay(),
		MaxDelay:     r.MaxDelay(),
		Multiplier:   r.Multiplier,
		Jitter:       r.Jitter,
	}
}

func (e *env) newAgent(v *vault.Vault, m *metrics.Metrics) (*agent.Agent, error) {
	hc, err := e.httpClient()
	if err != nil {
		return nil, err
	}

	sender, err := delivery.NewClient(delivery.Config{
		Enabled:   e.cfg.Server.Enabled,
		URL:       e.cfg.Server.URL,
		UserAgent: "device-agent/" + version,
	}, v, hc)
	if err != nil {
		return nil, err
	}

	opts := agent.Options{
		Collector:   e.collector(true),
		Deliverer:   sender,
		Credentials: v,
		Metrics:     m,
		Retry:       e.retryPolicy(),
		FailFast:    e.cfg.Retry.FailFast,
	}

	writer, err := e.spool()
	if err != nil {
		return nil, err
	}
	// a nil *spool.Writer must not become a non-nil Saver
	if writer != nil {
		opts.Saver = writer
	}

	return agent.New(opts), nil
}
