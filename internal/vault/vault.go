package vault

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hostward/device-agent/internal/crypto"
	"github.com/hostward/device-agent/internal/utils"
	"github.com/rs/zerolog"
)

// Vault keeps the collector credential encrypted at rest. The token file holds
// base64(nonce || ciphertext || tag) sealed with a random machine-local key
// that lives base64 encoded in the key file. Both files are owner-only.
type Vault struct {
	paths  Paths
	crypto crypto.Provider
	log    *zerolog.Logger
}

func New(paths Paths, provider crypto.Provider) *Vault {
	nop := zerolog.Nop()
	return &Vault{paths: paths, crypto: provider, log: &nop}
}

// WithLogger sets the logger used for key replacement warnings.
func (v *Vault) WithLogger(log *zerolog.Logger) *Vault {
	if log != nil {
		v.log = log
	}
	return v
}

func (v *Vault) Paths() Paths {
	return v.paths
}

// HasCredential reports whether a token file exists. Nothing is decrypted.
func (v *Vault) HasCredential() bool {
	return utils.FileExists(v.paths.TokenPath)
}

// SaveCredential encrypts plaintext under the machine key, creating the key on
// first use, and atomically replaces the token file. A corrupt key file is
// replaced, since nothing sealed under it can be recovered.
func (v *Vault) SaveCredential(plaintext string) error {
	const op = "save"

	if plaintext == "" {
		return newError(KindEncode, op, "", ErrEmptyCredential)
	}

	key, err := v.loadOrCreateKey()
	if err != nil {
		return err
	}
	defer crypto.Zero(key)

	sealed, err := v.crypto.Encrypt([]byte(plaintext), key)
	if err != nil {
		return newError(KindEncode, op, "", fmt.Errorf("encrypt credential: %w", err))
	}

	encoded := base64.StdEncoding.EncodeToString(sealed)
	return v.writeSecret(op, v.paths.TokenPath, []byte(encoded))
}

// LoadCredential decrypts and returns the stored credential.
func (v *Vault) LoadCredential() (string, error) {
	const op = "load"

	raw, err := os.ReadFile(v.paths.TokenPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", newError(KindIO, op, v.paths.TokenPath, ErrNoCredential)
		}
		return "", newError(KindIO, op, v.paths.TokenPath, err)
	}

	// Strict decoding makes every altered character of the file observable:
	// either the decode fails or the AEAD tag no longer matches.
	sealed, err := base64.StdEncoding.Strict().DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return "", newError(KindDecryption, op, v.paths.TokenPath,
			fmt.Errorf("%w: decode token: %w", crypto.ErrDecryptionFailed, err))
	}
	if len(sealed) < crypto.NonceSize {
		return "", newError(KindInvalidFormat, op, v.paths.TokenPath,
			fmt.Errorf("payload is %d bytes, shorter than the %d byte nonce", len(sealed), crypto.NonceSize))
	}

	key, err := v.readKey(op)
	if err != nil {
		return "", err
	}
	defer crypto.Zero(key)

	plaintext, err := v.crypto.Decrypt(sealed, key)
	if err != nil {
		if errors.Is(err, crypto.ErrCiphertextTooShort) {
			return "", newError(KindInvalidFormat, op, v.paths.TokenPath, err)
		}
		return "", newError(KindDecryption, op, v.paths.TokenPath, err)
	}

	return string(plaintext), nil
}

// DeleteCredential removes the token file. A missing file is not an error.
// The key is kept so a later save reuses it.
func (v *Vault) DeleteCredential() error {
	err := os.Remove(v.paths.TokenPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return newError(KindIO, "delete", v.paths.TokenPath, err)
	}
	return nil
}

func (v *Vault) loadOrCreateKey() ([]byte, error) {
	const op = "load key"

	key, err := v.readKey(op)
	switch {
	case err == nil:
		return key, nil
	case errors.Is(err, ErrKeyCorrupt):
		v.log.Warn().Err(err).Str("path", v.paths.KeyPath).
			Msg("Replacing corrupt vault key, credentials sealed with it are lost")
	case !errors.Is(err, ErrKeyNotFound):
		return nil, err
	}

	key, err = v.crypto.GenerateKey()
	if err != nil {
		return nil, newError(KindEncode, "create key", v.paths.KeyPath, err)
	}

	encoded := base64.StdEncoding.EncodeToString(key)
	if err := v.writeSecret("create key", v.paths.KeyPath, []byte(encoded)); err != nil {
		crypto.Zero(key)
		return nil, err
	}

	return key, nil
}

func (v *Vault) readKey(op string) ([]byte, error) {
	raw, err := os.ReadFile(v.paths.KeyPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, newError(KindIO, op, v.paths.KeyPath, ErrKeyNotFound)
		}
		return nil, newError(KindIO, op, v.paths.KeyPath, err)
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, newError(KindEncode, op, v.paths.KeyPath, fmt.Errorf("%w: decode key: %w", ErrKeyCorrupt, err))
	}
	if len(key) != crypto.KeySize {
		crypto.Zero(key)
		return nil, newError(KindEncode, op, v.paths.KeyPath, fmt.Errorf("%w: %w", ErrKeyCorrupt, crypto.ErrInvalidKeyLength))
	}

	return key, nil
}

func (v *Vault) writeSecret(op, path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return newError(KindIO, op, path, err)
	}

	err := utils.WriteFileAtomic(path, data, restrictFile)
	if err != nil {
		if errors.Is(err, utils.ErrPrepareFile) {
			return newError(KindPermission, op, path, err)
		}
		return newError(KindIO, op, path, err)
	}
	return nil
}
