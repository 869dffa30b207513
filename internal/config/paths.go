// ABOUTME: XDG-style path resolution for tasksync config, data, and credential files
// ABOUTME: Environment overrides win, then XDG_* directories, then ~/.config and ~/.local/share

package config

import (
	"os"
	"path/filepath"
)

// ServerPath returns the server config file path.
// Priority: TASKSYNC_CONFIG > XDG_CONFIG_HOME/tasksync/server.yaml > ~/.config/tasksync/server.yaml
func ServerPath() string {
	if envPath := os.Getenv("TASKSYNC_CONFIG"); envPath != "" {
		return envPath
	}
	return filepath.Join(configDir(), "server.yaml")
}

// ClientPath returns the client config file path.
// Priority: TASKSYNC_CLIENT_CONFIG > XDG_CONFIG_HOME/tasksync/client.toml > ~/.config/tasksync/client.toml
func ClientPath() string {
	if envPath := os.Getenv("TASKSYNC_CLIENT_CONFIG"); envPath != "" {
		return envPath
	}
	return filepath.Join(configDir(), "client.toml")
}

// TokenPath returns the credential file path used when the client config
// does not name one.
func TokenPath() string {
	return filepath.Join(configDir(), "token")
}

// DataPath returns the directory for server data such as the SQLite file.
// Priority: XDG_DATA_HOME/tasksync > ~/.local/share/tasksync
func DataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "tasksync")
}

func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		dir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(dir, "tasksync")
}
