package crypto

import "errors"

var (
	ErrDecryptionFailed   = errors.New("decryption failed")
	ErrCiphertextTooShort = errors.New("ciphertext shorter than nonce")
	ErrInvalidKey         = errors.New("invalid key")
	ErrInvalidKeyLength   = errors.New("invalid key length")
	ErrInvalidInput       = errors.New("invalid input")
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
)

// Provider abstracts the symmetric primitives used for credential custody and
// snapshot sealing.
type Provider interface {
	// Encrypt seals plaintext under key and returns nonce || ciphertext || tag.
	// A fresh random nonce is drawn for every call.
	Encrypt(plaintext, key []byte) ([]byte, error)

	// Decrypt reverses Encrypt. Payloads shorter than the nonce fail with
	// ErrCiphertextTooShort, authentication failures with ErrDecryptionFailed.
	Decrypt(sealed, key []byte) ([]byte, error)

	// DeriveKey stretches input into a keyLen byte key bound to salt.
	DeriveKey(input, salt []byte, keyLen int) ([]byte, error)

	// GenerateKey returns a new random KeySize byte key.
	GenerateKey() ([]byte, error)

	// RandomBytes generates cryptographically secure random bytes.
	RandomBytes(n int) ([]byte, error)
}
