package crypto

// MockProvider implements Provider for testing. Unset hooks fall through to
// AESProvider, and Err, when set, fails every operation.
type MockProvider struct {
	EncryptFunc     func(plaintext, key []byte) ([]byte, error)
	DecryptFunc     func(sealed, key []byte) ([]byte, error)
	DeriveKeyFunc   func(input, salt []byte, keyLen int) ([]byte, error)
	GenerateKeyFunc func() ([]byte, error)
	Err             error

	real AESProvider
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Encrypt(plaintext, key []byte) ([]byte, error) {
	if m.EncryptFunc != nil {
		return m.EncryptFunc(plaintext, key)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.real.Encrypt(plaintext, key)
}

func (m *MockProvider) Decrypt(sealed, key []byte) ([]byte, error) {
	if m.DecryptFunc != nil {
		return m.DecryptFunc(sealed, key)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.real.Decrypt(sealed, key)
}

func (m *MockProvider) DeriveKey(input, salt []byte, keyLen int) ([]byte, error) {
	if m.DeriveKeyFunc != nil {
		return m.DeriveKeyFunc(input, salt, keyLen)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(input) == 0 {
		return nil, ErrInvalidInput
	}
	if keyLen <= 0 {
		return nil, ErrInvalidKeyLength
	}
	// cheap deterministic stand-in for argon2
	key := make([]byte, keyLen)
	for i := range key {
		key[i] = input[i%len(input)]
		if len(salt) > 0 {
			key[i] ^= salt[i%len(salt)]
		}
	}
	return key, nil
}

func (m *MockProvider) GenerateKey() ([]byte, error) {
	if m.GenerateKeyFunc != nil {
		return m.GenerateKeyFunc()
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.real.GenerateKey()
}

func (m *MockProvider) RandomBytes(n int) ([]byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.real.RandomBytes(n)
}
