package secure

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hostward/device-agent/internal/crypto"
	"github.com/hostward/device-agent/internal/identity"
)

var (
	ErrEnvelopeCorrupted = errors.New("sealed envelope corrupted")
	ErrEncryptionFailed  = errors.New("encryption failed")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrKeyDeriveFailed   = errors.New("key derivation failed")
)

const (
	envelopeVersion = 1
	saltSize        = 16
)

// Envelope is the on-disk form of sealed data.
type Envelope struct {
	Version int    `json:"version"`
	Salt    []byte `json:"salt"`
	Data    []byte `json:"data"`
}

// Sealer encrypts data under a key derived from the device fingerprint, so
// sealed files only open on the host that wrote them. Every seal draws a new
// salt.
type Sealer struct {
	crypto crypto.Provider
	probe  identity.HardwareProbe
}

func NewSealer(provider crypto.Provider, probe identity.HardwareProbe) *Sealer {
	return &Sealer{crypto: provider, probe: probe}
}

// Seal encrypts plaintext and returns the JSON envelope.
func (s *Sealer) Seal(ctx context.Context, plaintext []byte) ([]byte, error) {
	salt, err := s.crypto.RandomBytes(saltSize)
	if err != nil {
		return nil, ErrKeyDeriveFailed
	}

	key, err := s.deriveKey(ctx, salt)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(key)

	data, err := s.crypto.Encrypt(plaintext, key)
	if err != nil {
		return nil, ErrEncryptionFailed
	}

	return json.Marshal(Envelope{
		Version: envelopeVersion,
		Salt:    salt,
		Data:    data,
	})
}

// Open decrypts an envelope produced by Seal on this host.
func (s *Sealer) Open(ctx context.Context, sealed []byte) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(sealed, &env); err != nil || env.Version != envelopeVersion || len(env.Salt) == 0 {
		return nil, ErrEnvelopeCorrupted
	}

	key, err := s.deriveKey(ctx, env.Salt)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(key)

	plaintext, err := s.crypto.Decrypt(env.Data, key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// IsSealed reports whether data looks like a sealed envelope.
func IsSealed(data []byte) bool {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false
	}
	return env.Version > 0 && len(env.Data) > 0
}

// deriveKey only accepts hardware fingerprints; a hostname fallback would
// make the key guessable.
func (s *Sealer) deriveKey(ctx context.Context, salt []byte) ([]byte, error) {
	fingerprint, err := identity.Generate(ctx, s.probe)
	if err != nil {
		return nil, errors.Join(ErrKeyDeriveFailed, err)
	}

	key, err := s.crypto.DeriveKey([]byte(fingerprint), salt, crypto.KeySize)
	if err != nil {
		return nil, ErrKeyDeriveFailed
	}
	return key, nil
}
