package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrComponentUnavailable = errors.New("identity component unavailable")
	ErrNoIdentifiers        = errors.New("no hardware identifiers available")
)

// FallbackPrefix marks fingerprints that were derived from the hostname
// instead of hardware identifiers.
const FallbackPrefix = "fallback:"

// Component is a single hardware identifier, such as a machine id or a MAC address.
type Component struct {
	Kind  string
	Value string
}

func (c Component) String() string {
	return c.Kind + ":" + c.Value
}

// HardwareProbe enumerates the hardware identifiers of one platform.
// Components must be returned in the same order on every call, because the
// fingerprint hash is order sensitive. Probes never modify the host.
type HardwareProbe interface {
	Platform() string
	Components(ctx context.Context) []Component
}

// Generate computes the fingerprint of the host described by probe.
// Missing identifiers are tolerated; only a probe that yields nothing fails.
func Generate(ctx context.Context, probe HardwareProbe) (string, error) {
	return FromComponents(probe.Components(ctx))
}

// FromComponents hashes the "kind:value" form of components joined by "|".
func FromComponents(components []Component) (string, error) {
	if len(components) == 0 {
		return "", ErrNoIdentifiers
	}

	parts := make([]string, 0, len(components))
	for _, c := range components {
		parts = append(parts, c.String())
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:]), nil
}

// Fallback returns the hostname-derived fingerprint used when no hardware
// identifier is available. The prefix keeps it from ever matching a hardware
// fingerprint.
func Fallback(hostname string) string {
	hash := sha256.Sum256([]byte("fallback_" + hostname))
	return FallbackPrefix + hex.EncodeToString(hash[:])
}

// IsFallback reports whether fp was produced by Fallback.
func IsFallback(fp string) bool {
	return strings.HasPrefix(fp, FallbackPrefix)
}

// Short returns a prefix of fp that is safe to log.
func Short(fp string) string {
	fp = strings.TrimPrefix(fp, FallbackPrefix)
	if len(fp) > 16 {
		return fp[:16]
	}
	return fp
}
