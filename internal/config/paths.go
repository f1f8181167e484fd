// Package config loads toolchainqa settings from defaults, an optional
// YAML file, a .env file and TOOLCHAINQA_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds platform-specific directory paths.
type Paths struct {
	// ConfigDir is searched for toolchainqa.yaml.
	// macOS: ~/Library/Application Support/toolchainqa
	// Linux: ~/.config/toolchainqa (or XDG_CONFIG_HOME)
	ConfigDir string

	// DataDir holds generated state such as ssh keys.
	// All platforms: ~/.toolchainqa
	DataDir string
}

// GetPaths returns platform-aware paths.
func GetPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	p := &Paths{DataDir: filepath.Join(home, ".toolchainqa")}

	switch runtime.GOOS {
	case "darwin":
		p.ConfigDir = filepath.Join(home, "Library", "Application Support", "toolchainqa")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			p.ConfigDir = filepath.Join(xdgConfig, "toolchainqa")
		} else {
			p.ConfigDir = filepath.Join(home, ".config", "toolchainqa")
		}
	}

	return p, nil
}

// SSHKeyDir is where generated guest keys live.
func (p *Paths) SSHKeyDir() string {
	return filepath.Join(p.DataDir, "ssh")
}
