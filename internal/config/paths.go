package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/errors"
)

// GlobalConfigDir returns the path to the global trellis configuration directory.
// This is typically ~/.trellis on Unix systems.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.TrellisHome), nil
}

// ProjectConfigDir returns the relative path to the project configuration directory.
// This is always .trellis relative to the working directory.
func ProjectConfigDir() string {
	return constants.ProjectConfigDir
}

// GlobalConfigPath returns the full path to the global configuration file.
// This is typically ~/.trellis/config.yaml on Unix systems.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, constants.GlobalConfigName), nil
}

// ProjectConfigPath returns the relative path to the project configuration file.
// This is always .trellis/config.yaml relative to the working directory.
func ProjectConfigPath() string {
	return filepath.Join(ProjectConfigDir(), constants.GlobalConfigName)
}
