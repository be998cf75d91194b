package spool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hostward/device-agent/internal/collector"
	"github.com/hostward/device-agent/internal/logger"
	"github.com/hostward/device-agent/internal/utils"
	"github.com/ncruces/go-strftime"
)

const (
	DefaultTimestampFormat = "%Y%m%d_%H%M%S"

	filePrefix   = "snapshot_"
	plainSuffix  = ".json"
	sealedSuffix = ".json.sealed"
)

var unsafeChars = strings.NewReplacer("/", "-", `\`, "-", ":", "-")

// Sealer encrypts snapshot bytes before they reach disk.
type Sealer interface {
	Seal(ctx context.Context, plaintext []byte) ([]byte, error)
}

// Options control where and how snapshots are written.
type Options struct {
	Directory       string
	TimestampFormat string
	// MaxFiles keeps only the newest snapshots when positive.
	MaxFiles int
}

// Writer persists snapshots as one JSON file each.
type Writer struct {
	opts   Options
	sealer Sealer
}

// NewWriter validates the timestamp format. A nil sealer writes plain JSON.
func NewWriter(opts Options, sealer Sealer) (*Writer, error) {
	if opts.Directory == "" {
		return nil, fmt.Errorf("spool directory is not configured")
	}
	if opts.TimestampFormat == "" {
		opts.TimestampFormat = DefaultTimestampFormat
	}
	if err := ValidateTimestampFormat(opts.TimestampFormat); err != nil {
		return nil, err
	}
	return &Writer{opts: opts, sealer: sealer}, nil
}

// ValidateTimestampFormat reports whether format is a usable strftime layout.
func ValidateTimestampFormat(format string) error {
	if _, err := strftime.Layout(format); err != nil {
		return fmt.Errorf("invalid timestamp format %q: %w", format, err)
	}
	return nil
}

// Save writes snap atomically and returns the file path. Saving the same
// snapshot twice overwrites the earlier file.
func (w *Writer) Save(ctx context.Context, snap *collector.SystemSnapshot) (string, error) {
	log := logger.FromContext(ctx)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	suffix := plainSuffix
	if w.sealer != nil {
		if data, err = w.sealer.Seal(ctx, data); err != nil {
			return "", fmt.Errorf("failed to seal snapshot: %w", err)
		}
		suffix = sealedSuffix
	}

	if err := utils.EnsureDir(w.opts.Directory, 0o700); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	stamp := unsafeChars.Replace(strftime.Format(w.opts.TimestampFormat, snap.CollectedAt.Local()))
	path := filepath.Join(w.opts.Directory, filePrefix+stamp+suffix)
	if err := utils.WriteFileAtomic(path, data, nil); err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}
	log.Info().Str("path", path).Msg("Snapshot saved")

	if w.opts.MaxFiles > 0 {
		if removed, err := w.prune(); err != nil {
			log.Warn().Err(err).Msg("Failed to prune old snapshots")
		} else if removed > 0 {
			log.Debug().Int("removed", removed).Msg("Pruned old snapshots")
		}
	}
	return path, nil
}

// List returns the saved snapshot files, oldest first.
func (w *Writer) List() ([]string, error) {
	entries, err := os.ReadDir(w.opts.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type item struct {
		path string
		mod  int64
	}
	var items []item
	for _, e := range entries {
		if e.IsDir() || !IsSnapshotFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, item{path: filepath.Join(w.opts.Directory, e.Name()), mod: info.ModTime().UnixNano()})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].mod != items[j].mod {
			return items[i].mod < items[j].mod
		}
		return items[i].path < items[j].path
	})

	paths := make([]string, len(items))
	for i, it := range items {
		paths[i] = it.path
	}
	return paths, nil
}

func (w *Writer) prune() (int, error) {
	paths, err := w.List()
	if err != nil {
		return 0, err
	}
	excess := len(paths) - w.opts.MaxFiles
	removed := 0
	for i := 0; i < excess; i++ {
		if err := os.Remove(paths[i]); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// IsSnapshotFile reports whether name was written by a Writer.
func IsSnapshotFile(name string) bool {
	return strings.HasPrefix(name, filePrefix) &&
		(strings.HasSuffix(name, plainSuffix) || strings.HasSuffix(name, sealedSuffix))
}
