// Package platform resolves where todoembed keeps its per-user files.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// DefaultAppName names the per-user directories when no app name is given.
	DefaultAppName = "todoembed"
	// ConfigEnv overrides the config file location.
	ConfigEnv = "TODOEMBED_CONFIG"

	devSuffix      = "-dev"
	configFileName = "config.toml"
	envFileName    = ".env"
	logDirName     = "logs"
)

// Paths holds the per-user locations of config, .env and dev log files.
type Paths struct {
	AppName    string
	ConfigPath string
	EnvPath    string
	DataDir    string
	LogDir     string
}

// Options selects the app directory name.
type Options struct {
	AppName string
	DevMode bool
}

// baseOverride names the environment variables that relocate the config and data roots on one OS.
type baseOverride struct {
	config string
	data   string
}

var baseOverrides = map[string]baseOverride{
	"linux":   {config: "XDG_CONFIG_HOME", data: "XDG_DATA_HOME"},
	"windows": {config: "APPDATA", data: "LOCALAPPDATA"},
}

// DefaultPaths resolves paths for the default app name.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{})
}

// DefaultPathsWithOptions resolves paths for the running OS and user.
// Dev mode appends "-dev" to the app directory.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	configRoot, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataRoot, err := userDataRoot(runtime.GOOS, configRoot)
	if err != nil {
		return Paths{}, err
	}
	return PathsFor(runtime.GOOS, hostEnv(runtime.GOOS), configRoot, dataRoot, appDirName(opts))
}

// PathsFor lays out the app files under the config and data roots, honoring env overrides for goos.
func PathsFor(goos string, env map[string]string, configRoot, dataRoot, appName string) (Paths, error) {
	if configRoot == "" || dataRoot == "" {
		return Paths{}, errors.New("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errors.New("empty app name")
	}
	if override, ok := baseOverrides[goos]; ok {
		if v := env[override.config]; v != "" {
			configRoot = v
		}
		if v := env[override.data]; v != "" {
			dataRoot = v
		}
	}

	configDir := filepath.Join(configRoot, appName)
	dataDir := filepath.Join(dataRoot, appName)
	return Paths{
		AppName:    appName,
		ConfigPath: filepath.Join(configDir, configFileName),
		EnvPath:    filepath.Join(configDir, envFileName),
		DataDir:    dataDir,
		LogDir:     filepath.Join(dataDir, logDirName),
	}, nil
}

// ResolveConfigPath picks the config file: flag, then $TODOEMBED_CONFIG, then the per-user default.
func (p Paths) ResolveConfigPath(flag string, getenv func(string) string) string {
	if v := strings.TrimSpace(flag); v != "" {
		return v
	}
	if getenv != nil {
		if v := strings.TrimSpace(getenv(ConfigEnv)); v != "" {
			return v
		}
	}
	return p.ConfigPath
}

// EnvFiles lists the .env files searched for a token, working directory first.
func (p Paths) EnvFiles() []string {
	files := []string{envFileName}
	if p.EnvPath != "" {
		files = append(files, p.EnvPath)
	}
	return files
}

func appDirName(opts Options) string {
	name := strings.TrimSpace(opts.AppName)
	if name == "" {
		name = DefaultAppName
	}
	if opts.DevMode {
		name += devSuffix
	}
	return name
}

// userDataRoot returns ~/.local/share on linux and the config root elsewhere.
func userDataRoot(goos, configRoot string) (string, error) {
	if goos != "linux" {
		return configRoot, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("user home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share"), nil
}

func hostEnv(goos string) map[string]string {
	env := map[string]string{}
	if override, ok := baseOverrides[goos]; ok {
		env[override.config] = os.Getenv(override.config)
		env[override.data] = os.Getenv(override.data)
	}
	return env
}
