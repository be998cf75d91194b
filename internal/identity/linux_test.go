package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLinuxProbe(t *testing.T) (*LinuxProbe, string) {
	t.Helper()
	dir := t.TempDir()
	return &LinuxProbe{
		machineIDPaths:  []string{filepath.Join(dir, "machine-id"), filepath.Join(dir, "dbus-machine-id")},
		productUUIDPath: filepath.Join(dir, "product_uuid"),
		boardSerialPath: filepath.Join(dir, "board_serial"),
		netClassPath:    filepath.Join(dir, "net"),
	}, dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLinuxProbe_Components(t *testing.T) {
	t.Run("collects all components in fixed order", func(t *testing.T) {
		p, dir := newTestLinuxProbe(t)
		writeFile(t, filepath.Join(dir, "machine-id"), "abc123\n")
		writeFile(t, filepath.Join(dir, "product_uuid"), "4C4C4544-0042\n")
		writeFile(t, filepath.Join(dir, "board_serial"), "BRD-01\n")
		writeFile(t, filepath.Join(dir, "net", "eth0", "address"), "00:11:22:33:44:55\n")

		got := p.Components(context.Background())
		require.Equal(t, []Component{
			{Kind: "machine_id", Value: "abc123"},
			{Kind: "product_uuid", Value: "4C4C4544-0042"},
			{Kind: "board_serial", Value: "BRD-01"},
			{Kind: "mac", Value: "eth0:00:11:22:33:44:55"},
		}, got)
	})

	t.Run("falls back to dbus machine id", func(t *testing.T) {
		p, dir := newTestLinuxProbe(t)
		writeFile(t, filepath.Join(dir, "dbus-machine-id"), "dbus-id\n")

		id, err := p.MachineID()
		require.NoError(t, err)
		require.Equal(t, "dbus-id", id)
	})

	t.Run("skips placeholder board serial", func(t *testing.T) {
		p, dir := newTestLinuxProbe(t)
		writeFile(t, filepath.Join(dir, "machine-id"), "abc123")
		writeFile(t, filepath.Join(dir, "board_serial"), "None")

		got := p.Components(context.Background())
		require.Equal(t, []Component{{Kind: "machine_id", Value: "abc123"}}, got)
	})

	t.Run("skips virtual and zero MAC interfaces", func(t *testing.T) {
		p, dir := newTestLinuxProbe(t)
		writeFile(t, filepath.Join(dir, "net", "docker0", "address"), "02:42:ac:11:00:02")
		writeFile(t, filepath.Join(dir, "net", "eth0", "address"), "00:00:00:00:00:00")
		writeFile(t, filepath.Join(dir, "net", "lo", "address"), "00:00:00:00:00:00")
		writeFile(t, filepath.Join(dir, "net", "veth12", "address"), "aa:aa:aa:aa:aa:aa")
		writeFile(t, filepath.Join(dir, "net", "wlan0", "address"), "de:ad:be:ef:00:01")

		mac, err := p.MACAddress()
		require.NoError(t, err)
		require.Equal(t, "wlan0:de:ad:be:ef:00:01", mac)
	})

	t.Run("empty host yields no identifiers", func(t *testing.T) {
		p, _ := newTestLinuxProbe(t)

		_, err := Generate(context.Background(), p)
		require.ErrorIs(t, err, ErrNoIdentifiers)
	})
}
