package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPrepareFile wraps failures of the prepare hook passed to WriteFileAtomic.
var ErrPrepareFile = errors.New("prepare temp file")

// WriteFileAtomic writes data to a temp file next to path and renames it into
// place, so readers never observe a partially written file. prepare, when not
// nil, runs on the open temp file before any data is written. Temp files are
// created with mode 0600.
func WriteFileAtomic(path string, data []byte, prepare func(*os.File) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if prepare != nil {
		if err := prepare(tmp); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("%w: %w", ErrPrepareFile, err)
		}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// EnsureDir creates the directory if it doesn't exist and verifies it's writable.
func EnsureDir(path string, perm os.FileMode) error {
	if err := os.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return writeTest(path)
}

// CanCreateIn reports whether files could be written under dir without
// creating anything: the nearest existing ancestor of dir is write-tested.
func CanCreateIn(dir string) error {
	for p := filepath.Clean(dir); ; {
		info, err := os.Stat(p)
		switch {
		case err == nil && !info.IsDir():
			return fmt.Errorf("%s is not a directory", p)
		case err == nil:
			return writeTest(p)
		case !errors.Is(err, os.ErrNotExist):
			return err
		}

		parent := filepath.Dir(p)
		if parent == p {
			return err
		}
		p = parent
	}
}

func writeTest(dir string) error {
	testFile, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return fmt.Errorf("directory %s not writable: %w", dir, err)
	}
	name := testFile.Name()
	testFile.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("clean up write test in %s: %w", dir, err)
	}
	return nil
}

// ExpandPath expands ~ and ~/ to the user's home directory in paths.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	if path == "~" {
		return home, nil
	}

	return filepath.Join(home, path[2:]), nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
