package collector

import (
	"context"
	"time"
)

// Fingerprint sources reported alongside the device fingerprint.
const (
	SourceHardware = "hardware"
	SourceFallback = "fallback"
)

// SystemSnapshot is the point-in-time inventory of the host. It is immutable
// once built and serializes to the JSON document delivered to the backend.
type SystemSnapshot struct {
	CollectedAt       time.Time         `json:"collected_at"`
	AgentID           string            `json:"agent_id"`
	AgentName         string            `json:"agent_name"`
	DeviceFingerprint string            `json:"device_fingerprint"`
	FingerprintSource string            `json:"fingerprint_source"`
	Hostname          string            `json:"hostname"`
	OSType            string            `json:"os_type"`
	OSVersion         string            `json:"os_version"`
	CPUInfo           string            `json:"cpu_info"`
	MemoryTotal       uint64            `json:"memory_total"`
	MemoryAvailable   uint64            `json:"memory_available"`
	IPAddresses       map[string]string `json:"ip_addresses"`
	Services          []string          `json:"services"`
	InstalledSoftware []string          `json:"installed_software"`
}

// Collector produces snapshots of the local host.
type Collector interface {
	Collect(ctx context.Context) (*SystemSnapshot, error)
}

// StaticCollector returns a copy of Snapshot on every call, or Err when set.
type StaticCollector struct {
	Snapshot *SystemSnapshot
	Err      error
	Calls    int
}

func (c *StaticCollector) Collect(context.Context) (*SystemSnapshot, error) {
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	snap := *c.Snapshot
	return &snap, nil
}
