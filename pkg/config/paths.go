package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DataDirectory returns the directory holding the database and run reports.
// Storage.DataDir wins when set; otherwise the platform data directory is used.
func (c *Config) DataDirectory() (string, error) {
	dir := c.Storage.DataDir
	if dir == "" {
		var err error
		dir, err = platformDataDir()
		if err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// DatabaseFile returns the configured database path or the default inside the data directory
func (c *Config) DatabaseFile() (string, error) {
	if c.Storage.DatabasePath != "" {
		return c.Storage.DatabasePath, nil
	}
	dir, err := c.DataDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "prompthunter.db"), nil
}

func platformDataDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "prompthunter"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "prompthunter"), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "prompthunter"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "prompthunter"), nil
	}
}
