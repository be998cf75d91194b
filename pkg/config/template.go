package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/hostward/device-agent/internal/utils"
)

var ErrConfigExists = errors.New("config file already exists")

const templateHeader = `# device-agent configuration.
# Every key can be overridden with a DEVICE_AGENT_<SECTION>_<KEY> environment variable.

`

// Encode renders cfg as TOML.
func Encode(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteDefault writes the default configuration to path. An existing file is
// only replaced with force.
func WriteDefault(path string, force bool) error {
	if !force && utils.FileExists(path) {
		return fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, path)
	}

	data, err := Encode(Default())
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	return utils.WriteFileAtomic(path, append([]byte(templateHeader), data...), func(f *os.File) error {
		return f.Chmod(0o644)
	})
}
