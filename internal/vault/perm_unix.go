//go:build !windows

package vault

import (
	"os"

	"golang.org/x/sys/unix"
)

// restrictFile limits f to owner read/write.
func restrictFile(f *os.File) error {
	return unix.Fchmod(int(f.Fd()), 0o600)
}

// DisableCoreDumps keeps key material out of core files.
func DisableCoreDumps() error {
	return unix.Setrlimit(unix.RLIMIT_CORE, &unix.Rlimit{Cur: 0, Max: 0})
}
