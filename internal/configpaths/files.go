// Package configpaths locates xkbcli configuration files and the default
// XKB include directories.
package configpaths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
)

const appName = "xkbcli"

// DefaultConfigDir returns the platform-specific configuration directory for xkbcli.
func DefaultConfigDir() (string, error) {
	if xdg.ConfigHome == "" {
		return "", errors.New("no configuration home directory")
	}
	return filepath.Join(xdg.ConfigHome, appName), nil
}

// DefaultConfigPath returns the default config file path for the given format using base name "config".
func DefaultConfigPath(format string) (string, error) {
	return DefaultNamedConfigPath("config", format)
}

// DefaultNamedConfigPath returns the default config file path for the given format and base name (e.g., "server").
func DefaultNamedConfigPath(baseName, format string) (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, baseName+"."+Ext(format)), nil
}

// Ext returns the file extension used for a config format.
func Ext(format string) string {
	switch format {
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	}
	return "json"
}

// EnsureDir ensures the directory for a given file path exists.
func EnsureDir(filePath string) error {
	dir := filepath.Dir(filePath)
	return os.MkdirAll(dir, 0o755)
}

// ConfigCandidatePaths builds candidate paths for config files per format.
// If userPath is provided, it is prioritized and routed to the matching loader by extension.
func ConfigCandidatePaths(userPath string) (jsonPaths, yamlPaths, tomlPaths []string) {
	add := func(slice *[]string, p string) { *slice = append(*slice, p) }
	addAll := func(dir string, bases ...string) {
		for _, base := range bases {
			add(&jsonPaths, filepath.Join(dir, base+".json"))
			add(&yamlPaths, filepath.Join(dir, base+".yaml"))
			add(&yamlPaths, filepath.Join(dir, base+".yml"))
			add(&tomlPaths, filepath.Join(dir, base+".toml"))
		}
	}

	if userPath != "" {
		switch ext := filepath.Ext(userPath); ext {
		case ".json":
			add(&jsonPaths, userPath)
		case ".yaml", ".yml":
			add(&yamlPaths, userPath)
		case ".toml":
			add(&tomlPaths, userPath)
		default:
			add(&jsonPaths, userPath)
		}
	}

	// Working directory candidates
	wd, _ := os.Getwd()
	addAll(wd, appName, "config", "server")

	// Config home
	if dir, err := DefaultConfigDir(); err == nil {
		addAll(dir, "config", "server")
	}

	// System-wide (unix)
	if runtime.GOOS != "windows" {
		addAll(filepath.Join("/etc", appName), "config", "server")
	}

	return
}

// Environment variables naming XKB data directories.
const (
	EnvConfigRoot      = "XKB_CONFIG_ROOT"
	EnvConfigExtraPath = "XKB_CONFIG_EXTRA_PATH"
)

// DefaultExtraPath is searched when XKB_CONFIG_EXTRA_PATH is unset.
const DefaultExtraPath = "/etc/xkb"

// DefaultIncludeDirs lists the directories searched for XKB data, most
// specific first: the user's XDG config home, ~/.xkb, the extra path and
// XKB_CONFIG_ROOT when set. getenv may be nil to ignore the environment,
// in which case the XDG config home detected at startup is used.
func DefaultIncludeDirs(getenv func(string) string) []string {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	var dirs []string
	configHome := getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = xdg.ConfigHome
	}
	if configHome != "" {
		dirs = append(dirs, filepath.Join(configHome, "xkb"))
	}
	if home := getenv("HOME"); home != "" {
		dirs = append(dirs, filepath.Join(home, ".xkb"))
	}
	if extra := getenv(EnvConfigExtraPath); extra != "" {
		dirs = append(dirs, extra)
	} else if runtime.GOOS != "windows" {
		dirs = append(dirs, DefaultExtraPath)
	}
	if root := getenv(EnvConfigRoot); root != "" {
		dirs = append(dirs, root)
	}
	return dirs
}
