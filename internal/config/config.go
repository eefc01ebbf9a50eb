package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultAPIBaseURL = "https://api.todoist.com/rest/v1/"
	DefaultTimeout    = "30s"
)

type Config struct {
	Todoist TodoistConfig `toml:"todoist"`
	Render  RenderConfig  `toml:"render"`
	Logging LoggingConfig `toml:"logging"`
	Server  ServerConfig  `toml:"server"`
	Keys    KeyConfig     `toml:"keys"`
}

type TodoistConfig struct {
	Token      string `toml:"token"`
	APIBaseURL string `toml:"api_base_url"`
	Timeout    string `toml:"timeout"`
}

type RenderConfig struct {
	DefaultSortOrder    string `toml:"default_sort_order"` // asc | desc
	Timezone            string `toml:"timezone"`
	MaxConcurrentBlocks int    `toml:"max_concurrent_blocks"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type KeyConfig struct {
	Toggle  string `toml:"toggle"`
	Expand  string `toml:"expand"`
	Refresh string `toml:"refresh"`
	Copy    string `toml:"copy"`
}

func Default(logDir string) Config {
	return Config{
		Todoist: TodoistConfig{
			APIBaseURL: DefaultAPIBaseURL,
			Timeout:    DefaultTimeout,
		},
		Render: RenderConfig{
			DefaultSortOrder:    "asc",
			Timezone:            "Local",
			MaxConcurrentBlocks: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: false,
				Dir:     logDir,
			},
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Keys: KeyConfig{
			Toggle:  "space",
			Expand:  "enter",
			Refresh: "r",
			Copy:    "y",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	base := strings.TrimSpace(c.Todoist.APIBaseURL)
	if base == "" {
		return errors.New("todoist.api_base_url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid todoist.api_base_url: %q", c.Todoist.APIBaseURL)
	}
	if _, err := c.Todoist.TimeoutDuration(); err != nil {
		return err
	}

	switch strings.TrimSpace(strings.ToLower(c.Render.DefaultSortOrder)) {
	case "", "asc", "desc":
	default:
		return fmt.Errorf("invalid render.default_sort_order: %q", c.Render.DefaultSortOrder)
	}
	if _, err := c.Render.Location(); err != nil {
		return err
	}
	if c.Render.MaxConcurrentBlocks < 0 {
		return errors.New("render.max_concurrent_blocks must be >= 0")
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when dev_file is enabled")
	}

	api := strings.Trim(strings.TrimSpace(c.Server.APIEndpoint), "/")
	mcp := strings.Trim(strings.TrimSpace(c.Server.MCPEndpoint), "/")
	if api != "" && api == mcp {
		return fmt.Errorf("server.api_endpoint and server.mcp_endpoint must differ: %q", c.Server.APIEndpoint)
	}

	keys := map[string]string{
		"toggle":  c.Keys.Toggle,
		"expand":  c.Keys.Expand,
		"refresh": c.Keys.Refresh,
		"copy":    c.Keys.Copy,
	}
	seen := map[string]string{}
	for name, key := range keys {
		if key == "" {
			continue
		}
		if other, ok := seen[key]; ok {
			return fmt.Errorf("keys.%s and keys.%s share binding %q", other, name, key)
		}
		seen[key] = name
	}

	return nil
}

// TimeoutDuration parses the remote request timeout; empty means the default.
func (t TodoistConfig) TimeoutDuration() (time.Duration, error) {
	raw := strings.TrimSpace(t.Timeout)
	if raw == "" {
		raw = DefaultTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid todoist.timeout: %q", t.Timeout)
	}
	return d, nil
}

// Location resolves render.timezone; empty and "Local" mean the process zone.
func (r RenderConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(r.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid render.timezone: %q", r.Timezone)
	}
	return loc, nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
