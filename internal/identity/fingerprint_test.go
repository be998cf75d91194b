package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("hashes kind:value components joined by pipe", func(t *testing.T) {
		probe := NewFakeProbe(
			Component{Kind: "machine_id", Value: "abc"},
			Component{Kind: "mac", Value: "eth0:00:11:22:33:44:55"},
		)

		fp, err := Generate(ctx, probe)
		require.NoError(t, err)

		want := sha256.Sum256([]byte("machine_id:abc|mac:eth0:00:11:22:33:44:55"))
		require.Equal(t, hex.EncodeToString(want[:]), fp)
		require.Len(t, fp, 64)
	})

	t.Run("is deterministic", func(t *testing.T) {
		probe := NewFakeProbe(Component{Kind: "hw_uuid", Value: "1234"})

		fp1, err := Generate(ctx, probe)
		require.NoError(t, err)
		fp2, err := Generate(ctx, probe)
		require.NoError(t, err)

		require.Equal(t, fp1, fp2)
		require.Equal(t, 2, probe.Calls)
	})

	t.Run("changes when any component changes", func(t *testing.T) {
		probe := NewFakeProbe(
			Component{Kind: "hw_uuid", Value: "1234"},
			Component{Kind: "serial", Value: "C02XYZ"},
		)
		fp1, err := Generate(ctx, probe)
		require.NoError(t, err)

		probe.Values[1].Value = "C02XYY"
		fp2, err := Generate(ctx, probe)
		require.NoError(t, err)

		require.NotEqual(t, fp1, fp2)
	})

	t.Run("is order sensitive", func(t *testing.T) {
		a := Component{Kind: "uuid", Value: "1"}
		b := Component{Kind: "serial", Value: "2"}

		fp1, err := FromComponents([]Component{a, b})
		require.NoError(t, err)
		fp2, err := FromComponents([]Component{b, a})
		require.NoError(t, err)

		require.NotEqual(t, fp1, fp2)
	})

	t.Run("partial components still succeed", func(t *testing.T) {
		fp, err := Generate(ctx, NewFakeProbe(Component{Kind: "mac", Value: "aa:bb"}))
		require.NoError(t, err)
		require.Len(t, fp, 64)
	})

	t.Run("no components is an error", func(t *testing.T) {
		_, err := Generate(ctx, NewFakeProbe())
		require.ErrorIs(t, err, ErrNoIdentifiers)
	})
}

func TestFallback(t *testing.T) {
	fp := Fallback("build-host")

	require.True(t, IsFallback(fp))
	require.Len(t, fp, len(FallbackPrefix)+64)
	require.Equal(t, fp, Fallback("build-host"))
	require.NotEqual(t, fp, Fallback("other-host"))

	hw, err := FromComponents([]Component{{Kind: "machine_id", Value: "x"}})
	require.NoError(t, err)
	require.False(t, IsFallback(hw))
}

func TestShort(t *testing.T) {
	fp, err := FromComponents([]Component{{Kind: "machine_id", Value: "x"}})
	require.NoError(t, err)

	require.Equal(t, fp[:16], Short(fp))
	require.Len(t, Short(Fallback("h")), 16)
	require.Equal(t, "abc", Short("abc"))
}

func TestNewProbe(t *testing.T) {
	tests := []struct {
		goos     string
		platform string
	}{
		{goos: "linux", platform: "linux"},
		{goos: "darwin", platform: "darwin"},
		{goos: "windows", platform: "windows"},
		{goos: "plan9", platform: "plan9"},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			require.Equal(t, tt.platform, NewProbe(tt.goos).Platform())
		})
	}

	t.Run("unsupported platform yields no components", func(t *testing.T) {
		_, err := Generate(context.Background(), NewProbe("plan9"))
		require.ErrorIs(t, err, ErrNoIdentifiers)
	})
}
