package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"math"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2 parameters (OWASP recommended)
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// AESProvider implements Provider with AES-256-GCM and Argon2id.
type AESProvider struct{}

func NewAESProvider() *AESProvider {
	return &AESProvider{}
}

func (p *AESProvider) Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, err := p.RandomBytes(NonceSize)
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (p *AESProvider) Decrypt(sealed, key []byte) ([]byte, error) {
	if len(sealed) < NonceSize {
		return nil, ErrCiphertextTooShort
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, ciphertext := sealed[:NonceSize], sealed[NonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

func (p *AESProvider) DeriveKey(input, salt []byte, keyLen int) ([]byte, error) {
	if len(input) == 0 {
		return nil, ErrInvalidInput
	}
	if keyLen <= 0 || keyLen > math.MaxUint32 {
		return nil, ErrInvalidKeyLength
	}

	return argon2.IDKey(input, salt, argon2Time, argon2Memory, argon2Threads, uint32(keyLen)), nil
}

func (p *AESProvider) GenerateKey() ([]byte, error) {
	return p.RandomBytes(KeySize)
}

func (p *AESProvider) RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate random bytes: %w", err)
	}
	return b, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) == 0 {
		return nil, ErrInvalidKey
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}
