package collector

import (
	"context"
	"runtime"
	"time"

	"github.com/hostward/device-agent/internal/identity"
	"github.com/hostward/device-agent/internal/logger"
)

// Options select what a SystemCollector gathers and how it labels snapshots.
type Options struct {
	AgentID         string
	AgentName       string
	IncludeServices bool
	IncludeSoftware bool
}

// SystemCollector gathers snapshots from the running host. It only reads
// system state and never modifies it.
type SystemCollector struct {
	opts     Options
	probe    identity.HardwareProbe
	host     HostSource
	services Lister
	software Lister
	now      func() time.Time
}

// NewSystemCollector wires the platform probe, gopsutil and the platform
// inventory listers for the running operating system.
func NewSystemCollector(opts Options) *SystemCollector {
	return &SystemCollector{
		opts:     opts,
		probe:    identity.DefaultProbe(),
		host:     GopsutilSource{},
		services: ServiceLister(runtime.GOOS, identity.ExecRunner),
		software: SoftwareLister(runtime.GOOS, identity.ExecRunner),
		now:      time.Now,
	}
}

// NewCollector builds a SystemCollector from explicit parts.
func NewCollector(opts Options, probe identity.HardwareProbe, host HostSource, services, software Lister) *SystemCollector {
	return &SystemCollector{
		opts:     opts,
		probe:    probe,
		host:     host,
		services: services,
		software: software,
		now:      time.Now,
	}
}

// Collect never fails because of a single missing fact: unreadable values
// become placeholders and a host without hardware identifiers gets a
// hostname-derived fallback fingerprint.
func (c *SystemCollector) Collect(ctx context.Context) (*SystemSnapshot, error) {
	log := logger.FromContext(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	facts := c.host.HostFacts(ctx)
	fingerprint, source := c.fingerprint(ctx, facts.Hostname)

	snap := &SystemSnapshot{
		CollectedAt:       c.now().UTC(),
		AgentID:           c.opts.AgentID,
		AgentName:         c.opts.AgentName,
		DeviceFingerprint: fingerprint,
		FingerprintSource: source,
		Hostname:          facts.Hostname,
		OSType:            facts.OSType,
		OSVersion:         facts.OSVersion,
		CPUInfo:           facts.CPUInfo,
		MemoryTotal:       facts.MemoryTotal,
		MemoryAvailable:   facts.MemoryAvailable,
		IPAddresses:       facts.IPAddresses,
		Services:          []string{},
		InstalledSoftware: []string{},
	}
	if snap.IPAddresses == nil {
		snap.IPAddresses = map[string]string{}
	}

	if c.opts.IncludeServices && c.services != nil {
		if names, err := c.services.List(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to list services")
		} else if names != nil {
			snap.Services = names
		}
	}
	if c.opts.IncludeSoftware && c.software != nil {
		if pkgs, err := c.software.List(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to list installed software")
		} else if pkgs != nil {
			snap.InstalledSoftware = pkgs
		}
	}

	log.Debug().
		Str("hostname", snap.Hostname).
		Str("fingerprint", identity.Short(snap.DeviceFingerprint)).
		Int("services", len(snap.Services)).
		Int("software", len(snap.InstalledSoftware)).
		Msg("Collected system snapshot")

	return snap, nil
}

func (c *SystemCollector) fingerprint(ctx context.Context, hostname string) (string, string) {
	fp, err := identity.Generate(ctx, c.probe)
	if err == nil {
		return fp, SourceHardware
	}
	logger.FromContext(ctx).Warn().Err(err).
		Str("platform", c.probe.Platform()).
		Msg("No hardware identifiers found, using hostname fallback fingerprint")
	return identity.Fallback(hostname), SourceFallback
}
