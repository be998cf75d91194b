package spool

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/hostward/device-agent/internal/collector"
	"github.com/stretchr/testify/require"
)

type prefixSealer struct {
	err error
}

func (s prefixSealer) Seal(_ context.Context, plaintext []byte) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]byte("sealed:"), plaintext...), nil
}

func snapshotAt(t time.Time) *collector.SystemSnapshot {
	return &collector.SystemSnapshot{
		CollectedAt:       t,
		AgentID:           "agent-001",
		Hostname:          "edge-01",
		IPAddresses:       map[string]string{},
		Services:          []string{},
		InstalledSoftware: []string{},
	}
}

func TestWriter_Save(t *testing.T) {
	collected := time.Date(2024, 3, 1, 12, 30, 45, 0, time.Local)

	t.Run("plain json with default format", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "data")
		w, err := NewWriter(Options{Directory: dir}, nil)
		require.NoError(t, err)

		path, err := w.Save(context.Background(), snapshotAt(collected))
		require.NoError(t, err)
		require.Equal(t, filepath.Join(dir, "snapshot_20240301_123045.json"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var got collector.SystemSnapshot
		require.NoError(t, json.Unmarshal(data, &got))
		require.Equal(t, "edge-01", got.Hostname)

		if runtime.GOOS != "windows" {
			info, err := os.Stat(path)
			require.NoError(t, err)
			require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
			dirInfo, err := os.Stat(dir)
			require.NoError(t, err)
			require.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
		}
	})

	t.Run("sealed", func(t *testing.T) {
		dir := t.TempDir()
		w, err := NewWriter(Options{Directory: dir}, prefixSealer{})
		require.NoError(t, err)

		path, err := w.Save(context.Background(), snapshotAt(collected))
		require.NoError(t, err)
		require.Equal(t, filepath.Join(dir, "snapshot_20240301_123045.json.sealed"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Contains(t, string(data), "sealed:")
	})

	t.Run("seal failure writes nothing", func(t *testing.T) {
		dir := t.TempDir()
		w, err := NewWriter(Options{Directory: dir}, prefixSealer{err: errors.New("no key")})
		require.NoError(t, err)

		_, err = w.Save(context.Background(), snapshotAt(collected))
		require.ErrorContains(t, err, "no key")

		files, err := w.List()
		require.NoError(t, err)
		require.Empty(t, files)
	})

	t.Run("path separators in format are replaced", func(t *testing.T) {
		dir := t.TempDir()
		w, err := NewWriter(Options{Directory: dir, TimestampFormat: "%Y/%m/%dT%H:%M:%S"}, nil)
		require.NoError(t, err)

		path, err := w.Save(context.Background(), snapshotAt(collected))
		require.NoError(t, err)
		require.Equal(t, filepath.Join(dir, "snapshot_2024-03-01T12-30-45.json"), path)
	})

	t.Run("same timestamp overwrites", func(t *testing.T) {
		dir := t.TempDir()
		w, err := NewWriter(Options{Directory: dir}, nil)
		require.NoError(t, err)

		_, err = w.Save(context.Background(), snapshotAt(collected))
		require.NoError(t, err)
		_, err = w.Save(context.Background(), snapshotAt(collected))
		require.NoError(t, err)

		files, err := w.List()
		require.NoError(t, err)
		require.Len(t, files, 1)
	})
}

func TestWriter_Prune(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Options{Directory: dir, MaxFiles: 2}, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o600))

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	var paths []string
	for i := 0; i < 4; i++ {
		path, err := w.Save(context.Background(), snapshotAt(base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
		old := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(path, old, old))
		paths = append(paths, path)
	}

	files, err := w.List()
	require.NoError(t, err)
	require.Equal(t, paths[2:], files)
	require.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestWriter_ListMissingDirectory(t *testing.T) {
	w, err := NewWriter(Options{Directory: filepath.Join(t.TempDir(), "missing")}, nil)
	require.NoError(t, err)

	files, err := w.List()
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestNewWriter(t *testing.T) {
	_, err := NewWriter(Options{}, nil)
	require.Error(t, err)

	require.NoError(t, ValidateTimestampFormat(DefaultTimestampFormat))
	require.NoError(t, ValidateTimestampFormat("%Y-%m-%d"))
}

func TestIsSnapshotFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "snapshot_20240301_120000.json", want: true},
		{name: "snapshot_20240301_120000.json.sealed", want: true},
		{name: "snapshot_20240301_120000.json.tmp", want: false},
		{name: ".snapshot_20240301_120000.json-123.tmp", want: false},
		{name: "report.json", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsSnapshotFile(tt.name))
		})
	}
}
