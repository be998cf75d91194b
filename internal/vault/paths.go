package vault

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/hostward/device-agent/internal/utils"
)

const (
	keyFileName   = ".key"
	tokenFileName = ".token"
	unixSystemDir = "/usr/local/etc/device-agent"
)

// Paths locates the key and token files.
type Paths struct {
	KeyPath   string
	TokenPath string
}

// InDir returns the vault file paths inside dir.
func InDir(dir string) Paths {
	return Paths{
		KeyPath:   filepath.Join(dir, keyFileName),
		TokenPath: filepath.Join(dir, tokenFileName),
	}
}

// SystemDir is the platform-conventional directory for the vault files.
func SystemDir() string {
	if runtime.GOOS == "windows" {
		base := os.Getenv("ProgramData")
		if base == "" {
			base = `C:\ProgramData`
		}
		return filepath.Join(base, "device-agent")
	}
	return unixSystemDir
}

// DevPaths are the working directory files used when the system directory
// cannot be written.
func DevPaths() Paths {
	return Paths{KeyPath: keyFileName, TokenPath: tokenFileName}
}

// ResolvePaths picks the vault location once at startup. An existing token
// wins, system location first; otherwise the system directory is used when it
// could be created and written, and the development paths when it cannot.
// Nothing is created here; the directory appears on the first save.
func ResolvePaths(system, dev Paths) Paths {
	if utils.FileExists(system.TokenPath) {
		return system
	}
	if utils.FileExists(dev.TokenPath) {
		return dev
	}
	if err := utils.CanCreateIn(filepath.Dir(system.TokenPath)); err == nil {
		return system
	}
	return dev
}
