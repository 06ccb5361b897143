package config

import (
	"os"
	"path/filepath"
)

// AppDataDir returns the per-user application data root used to host
// profile-named cluster directories. It prefers standard locations when
// available and falls back to a dotdir in the user's home directory.
func AppDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "." + AppName
	}

	// XDG (Linux) override
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}

	// Common Linux/Unix system dir
	if isDir("/var/lib") {
		return filepath.Join("/var/lib", AppName)
	}

	// macOS: ~/Library/Application Support/ipcontroller
	if isDir(filepath.Join(homeDir, "Library")) {
		return filepath.Join(homeDir, "Library", "Application Support", AppName)
	}

	// Windows: %USERPROFILE%/AppData/Local/ipcontroller
	if isDir(filepath.Join(homeDir, "AppData")) {
		return filepath.Join(homeDir, "AppData", "Local", AppName)
	}

	// Fallback: ~/.ipcontroller
	return filepath.Join(homeDir, "."+AppName)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
