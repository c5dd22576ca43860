package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// DefaultConfigFile returns $XDG_CONFIG_HOME/gpiocdev/gpiocdev.toml.
func DefaultConfigFile() string {
	return filepath.Join(xdg.ConfigHome, "gpiocdev", "gpiocdev.toml")
}

// ResolveConfigFile decides which config file to read. A missing default
// file is silently skipped (returns ""), but a missing file the user asked
// for is an error.
func ResolveConfigFile(configFile string) (string, error) {
	if configFile == "" {
		return "", nil
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if configFile == DefaultConfigFile() {
			return "", nil
		}
		return "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configFile)
	}

	return configFile, nil
}
