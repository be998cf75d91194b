package agent

import "time"

// Health states.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Credential states.
const (
	CredentialPresent     = "present"
	CredentialMissing     = "missing"
	CredentialNotRequired = "not_required"
)

// HealthReport is the agent state served on /health.
type HealthReport struct {
	Status     string     `json:"status"`
	Credential string     `json:"credential"`
	LastCycle  *time.Time `json:"last_cycle,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Health is healthy until a cycle fails, and again after the next success.
func (a *Agent) Health() HealthReport {
	a.mu.RLock()
	last, lastErr := a.lastCycle, a.lastErr
	a.mu.RUnlock()

	report := HealthReport{
		Status:     StatusHealthy,
		Credential: a.credentialState(),
		Timestamp:  a.now().UTC(),
	}
	if !last.IsZero() {
		at := last.UTC()
		report.LastCycle = &at
	}
	if lastErr != nil {
		report.Status = StatusDegraded
		report.LastError = lastErr.Error()
	}
	return report
}

func (a *Agent) credentialState() string {
	if a.opts.Deliverer == nil || !a.opts.Deliverer.Enabled() || a.opts.Credentials == nil {
		return CredentialNotRequired
	}
	if a.opts.Credentials.HasCredential() {
		return CredentialPresent
	}
	return CredentialMissing
}
