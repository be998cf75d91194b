package config

import (
	"fmt"
	"path/filepath"

	"github.com/hostward/device-agent/internal/utils"
	"github.com/hostward/device-agent/internal/vault"
)

// ResolveVaultPaths returns the configured vault files, expanding ~. Paths
// left empty fall back to the system directory, or the working directory
// when the system directory cannot be written.
func ResolveVaultPaths(cfg VaultConfig) (vault.Paths, error) {
	keyPath, err := utils.ExpandPath(cfg.KeyPath)
	if err != nil {
		return vault.Paths{}, fmt.Errorf("expand vault.key_path: %w", err)
	}
	tokenPath, err := utils.ExpandPath(cfg.TokenPath)
	if err != nil {
		return vault.Paths{}, fmt.Errorf("expand vault.token_path: %w", err)
	}

	if keyPath != "" && tokenPath != "" {
		return vault.Paths{KeyPath: keyPath, TokenPath: tokenPath}, nil
	}

	resolved := vault.ResolvePaths(vault.InDir(vault.SystemDir()), vault.DevPaths())
	if keyPath == "" {
		keyPath = resolved.KeyPath
	}
	if tokenPath == "" {
		tokenPath = resolved.TokenPath
	}
	return vault.Paths{KeyPath: keyPath, TokenPath: tokenPath}, nil
}

// ResolveDir expands ~ and makes dir absolute.
func ResolveDir(dir string) (string, error) {
	expanded, err := utils.ExpandPath(dir)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}
