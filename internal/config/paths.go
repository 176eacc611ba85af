package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names an explicit config file
	EnvConfigPath = "LABPROV_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "labprov.yaml"
	// ConfigDirName is the per-user and system config directory name
	ConfigDirName = "labprov"
)

// searchPaths lists the config locations in priority order. An explicit
// $LABPROV_CONFIG is the only candidate when set.
func searchPaths(getenv func(string) string) []string {
	if path := getenv(EnvConfigPath); path != "" {
		return []string{path}
	}

	paths := []string{ConfigFileName, "labprov.yml"}
	if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, ConfigDirName, "config.yaml"))
	}
	if home := getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", ConfigDirName, "config.yaml"))
	}
	return append(paths, filepath.Join("/etc", ConfigDirName, "config.yaml"))
}

// FindConfigPath returns the first existing config file, or "" when none
// exists. $LABPROV_CONFIG is returned even if missing so that Load reports it.
func FindConfigPath() string {
	return findConfigPath(os.Getenv, isRegularFile)
}

func findConfigPath(getenv func(string) string, exists func(string) bool) string {
	if path := getenv(EnvConfigPath); path != "" {
		return path
	}
	for _, path := range searchPaths(getenv) {
		if !exists(path) {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
