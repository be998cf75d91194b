package registration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hostward/device-agent/internal/identity"
	"github.com/hostward/device-agent/internal/logger"
	"github.com/hostward/device-agent/internal/scheduler"
	"github.com/hostward/device-agent/internal/token"
)

var (
	ErrFallbackFingerprint = errors.New("refusing to register a hostname-derived fingerprint")
	ErrPollTimeout         = errors.New("timed out waiting for registration approval")
)

// CredentialStore persists the issued token. It is satisfied by *vault.Vault.
type CredentialStore interface {
	SaveCredential(plaintext string) error
}

// Flow drives the handshake: submit, check or poll the status, and hand an
// approved token to the credential store.
type Flow struct {
	client       *Client
	store        CredentialStore
	pollInterval time.Duration
	pollTimeout  time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewFlow builds a flow. A zero pollTimeout makes Wait give up after a
// single pending check.
func NewFlow(client *Client, store CredentialStore, pollInterval, pollTimeout time.Duration) *Flow {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Flow{
		client:       client,
		store:        store,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		sleep:        scheduler.SleepContext,
	}
}

// Submit sends req unless its fingerprint is a fallback and allowFallback is false.
func (f *Flow) Submit(ctx context.Context, req Request, allowFallback bool) (*SubmitResponse, error) {
	log := logger.FromContext(ctx)

	if identity.IsFallback(req.DeviceFingerprint) && !allowFallback {
		return nil, ErrFallbackFingerprint
	}

	resp, err := f.client.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	logger.LogAuditEvent(logger.EventRegistrationSent, req.AgentID, map[string]interface{}{
		"hostname":    req.Hostname,
		"fingerprint": identity.Short(req.DeviceFingerprint),
	})
	log.Info().
		Str("agent_id", req.AgentID).
		Str("fingerprint", identity.Short(req.DeviceFingerprint)).
		Msg("Registration submitted, waiting for approval")
	return resp, nil
}

// Check performs one status check and stores the token when approved.
func (f *Flow) Check(ctx context.Context, agentID string) (*StatusResponse, error) {
	log := logger.FromContext(ctx).With().Str("agent_id", agentID).Logger()

	resp, err := f.client.Status(ctx, agentID)
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case StatusApproved:
		if resp.Token == "" {
			log.Warn().Msg("Registration approved without a token, install it with `device-agent register <token>`")
			return resp, nil
		}
		if err := f.storeToken(ctx, agentID, resp.Token); err != nil {
			return nil, err
		}
		logger.LogAuditEvent(logger.EventRegistrationApprove, agentID, map[string]interface{}{
			"token": token.Redact(resp.Token),
		})
		log.Info().Str("token", token.Redact(resp.Token)).Msg("Registration approved, credential stored")
	case StatusRejected:
		logger.LogAuditEvent(logger.EventRegistrationReject, agentID, map[string]interface{}{
			"message": resp.Message,
		})
		log.Warn().Str("message", resp.Message).Msg("Registration rejected")
	case StatusNotFound:
		log.Warn().Msg("No registration found for this agent, run `device-agent init` first")
	default:
		log.Info().Msg("Registration pending approval")
	}
	return resp, nil
}

// Wait checks until the status is terminal, the poll timeout elapses or ctx
// is cancelled.
func (f *Flow) Wait(ctx context.Context, agentID string) (*StatusResponse, error) {
	var deadline time.Time
	if f.pollTimeout > 0 {
		deadline = time.Now().Add(f.pollTimeout)
	}

	for {
		resp, err := f.Check(ctx, agentID)
		if err != nil {
			return nil, err
		}
		if resp.Status.Terminal() {
			return resp, nil
		}
		if deadline.IsZero() || !time.Now().Add(f.pollInterval).Before(deadline) {
			return resp, ErrPollTimeout
		}
		if err := f.sleep(ctx, f.pollInterval); err != nil {
			return resp, err
		}
	}
}

// StoreToken validates and persists a manually issued token.
func (f *Flow) StoreToken(ctx context.Context, agentID, raw string) error {
	return f.storeToken(ctx, agentID, raw)
}

func (f *Flow) storeToken(ctx context.Context, agentID, raw string) error {
	tok, err := token.Normalize(raw)
	if err != nil {
		return fmt.Errorf("received invalid token: %w", err)
	}
	if err := f.store.SaveCredential(tok); err != nil {
		return err
	}
	if !token.IsAgentToken(tok) {
		logger.FromContext(ctx).Warn().
			Str("token", token.Redact(tok)).
			Msgf("Token does not carry the %q prefix", token.AgentPrefix)
	}
	logger.LogAuditEvent(logger.EventCredentialSaved, agentID, nil)
	return nil
}
