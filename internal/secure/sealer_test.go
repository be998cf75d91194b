package secure

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/hostward/device-agent/internal/crypto"
	"github.com/hostward/device-agent/internal/identity"
	"github.com/stretchr/testify/require"
)

func hostProbe(serial string) *identity.FakeProbe {
	return identity.NewFakeProbe(
		identity.Component{Kind: "machine_id", Value: "4c4c4544-0042"},
		identity.Component{Kind: "board_serial", Value: serial},
	)
}

func newTestSealer() *Sealer {
	return NewSealer(crypto.NewAESProvider(), hostProbe("SN-1"))
}

func TestSealer_RoundTrip(t *testing.T) {
	s := newTestSealer()
	ctx := context.Background()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "snapshot json", input: []byte(`{"hostname":"edge-01","services":["sshd.service"]}`)},
		{name: "empty", input: []byte{}},
		{name: "binary", input: []byte{0x00, 0xff, 0x10, 0x7f}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := s.Seal(ctx, tt.input)
			require.NoError(t, err)
			require.True(t, IsSealed(sealed))

			opened, err := s.Open(ctx, sealed)
			require.NoError(t, err)
			require.True(t, bytes.Equal(tt.input, opened))
		})
	}
}

func TestSealer_NotReadableAsPlaintext(t *testing.T) {
	secret := []byte(`{"agent_id":"agent-001","hostname":"edge-01"}`)
	sealed, err := newTestSealer().Seal(context.Background(), secret)
	require.NoError(t, err)
	require.NotContains(t, string(sealed), "edge-01")
}

func TestSealer_FreshSaltPerSeal(t *testing.T) {
	s := newTestSealer()
	payload := []byte("same payload")

	first, err := s.Seal(context.Background(), payload)
	require.NoError(t, err)
	second, err := s.Seal(context.Background(), payload)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	var a, b Envelope
	require.NoError(t, json.Unmarshal(first, &a))
	require.NoError(t, json.Unmarshal(second, &b))
	require.NotEqual(t, a.Salt, b.Salt)
	require.Equal(t, 1, a.Version)
}

func TestSealer_Open(t *testing.T) {
	ctx := context.Background()
	sealed, err := newTestSealer().Seal(ctx, []byte("payload"))
	require.NoError(t, err)

	t.Run("other host cannot open", func(t *testing.T) {
		other := NewSealer(crypto.NewAESProvider(), hostProbe("SN-2"))
		_, err := other.Open(ctx, sealed)
		require.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := newTestSealer().Open(ctx, []byte("not json"))
		require.ErrorIs(t, err, ErrEnvelopeCorrupted)
	})

	t.Run("unknown version", func(t *testing.T) {
		data, _ := json.Marshal(Envelope{Version: 9, Salt: []byte("salt"), Data: []byte("x")})
		_, err := newTestSealer().Open(ctx, data)
		require.ErrorIs(t, err, ErrEnvelopeCorrupted)
	})

	t.Run("tampered data", func(t *testing.T) {
		var env Envelope
		require.NoError(t, json.Unmarshal(sealed, &env))
		env.Data[len(env.Data)-1] ^= 0x01
		data, _ := json.Marshal(env)

		_, err := newTestSealer().Open(ctx, data)
		require.ErrorIs(t, err, ErrDecryptionFailed)
	})
}

func TestSealer_KeyDerivation(t *testing.T) {
	t.Run("no hardware identifiers", func(t *testing.T) {
		s := NewSealer(crypto.NewAESProvider(), identity.NewFakeProbe())
		_, err := s.Seal(context.Background(), []byte("x"))
		require.ErrorIs(t, err, ErrKeyDeriveFailed)
		require.ErrorIs(t, err, identity.ErrNoIdentifiers)
	})

	t.Run("provider failure", func(t *testing.T) {
		mock := crypto.NewMockProvider()
		mock.Err = crypto.ErrInvalidKey
		_, err := NewSealer(mock, hostProbe("SN-1")).Seal(context.Background(), []byte("x"))
		require.ErrorIs(t, err, ErrKeyDeriveFailed)
	})

	t.Run("encrypt failure", func(t *testing.T) {
		mock := crypto.NewMockProvider()
		mock.EncryptFunc = func([]byte, []byte) ([]byte, error) { return nil, crypto.ErrInvalidKey }
		_, err := NewSealer(mock, hostProbe("SN-1")).Seal(context.Background(), []byte("x"))
		require.ErrorIs(t, err, ErrEncryptionFailed)
	})
}

func TestIsSealed(t *testing.T) {
	sealed, err := newTestSealer().Seal(context.Background(), []byte("payload"))
	require.NoError(t, err)

	require.True(t, IsSealed(sealed))
	require.False(t, IsSealed([]byte(`{"hostname":"edge-01"}`)))
	require.False(t, IsSealed([]byte("plain text")))
}
