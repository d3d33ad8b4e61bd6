package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/crane-app/crane/internal/session"
)

// Runtime backends.
const (
	RuntimeContainer = "container"
	RuntimeDocker    = "docker"
)

// Config captures crane's settings.
type Config struct {
	Runtime         string
	ContainerBin    string
	ContainerRoot   string
	DockerHost      string
	RefreshInterval time.Duration
	LogsInterval    time.Duration
	InitialLines    int
	OlderLines      int
	MaxAppendLines  int
	MaxPrependLines int
	LogFile         string
	LogLevel        string
}

const (
	defaultConfigPath      = "~/.config/crane/config.toml"
	defaultContainerBin    = "container"
	defaultContainerRoot   = "~/Library/Application Support/com.apple.container"
	defaultRefreshInterval = 1
	defaultLogsInterval    = 3
	defaultInitialLines    = 100
	defaultOlderLines      = 50
	defaultMaxAppendLines  = 2000
	defaultMaxPrependLines = 1000
	defaultLogFile         = "~/.local/state/crane/crane.log"
	defaultLogLevel        = "info"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Runtime:         RuntimeContainer,
		ContainerBin:    defaultContainerBin,
		ContainerRoot:   mustExpand(defaultContainerRoot),
		RefreshInterval: defaultRefreshInterval * time.Second,
		LogsInterval:    defaultLogsInterval * time.Second,
		InitialLines:    defaultInitialLines,
		OlderLines:      defaultOlderLines,
		MaxAppendLines:  defaultMaxAppendLines,
		MaxPrependLines: defaultMaxPrependLines,
		LogFile:         mustExpand(defaultLogFile),
		LogLevel:        defaultLogLevel,
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return defaultConfigPath
}

// Load locates and parses the crane config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		Runtime         string `toml:"runtime"`
		ContainerBin    string `toml:"container_bin"`
		ContainerRoot   string `toml:"container_root"`
		DockerHost      string `toml:"docker_host"`
		RefreshInterval int    `toml:"refresh_interval"`
		LogsInterval    int    `toml:"logs_interval"`
		InitialLines    int    `toml:"initial_lines"`
		OlderLines      int    `toml:"older_lines"`
		MaxAppendLines  int    `toml:"max_append_lines"`
		MaxPrependLines int    `toml:"max_prepend_lines"`
		LogFile         string `toml:"log_file"`
		LogLevel        string `toml:"log_level"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.ToLower(strings.TrimSpace(raw.Runtime)); v != "" {
		if v != RuntimeContainer && v != RuntimeDocker {
			return Config{}, fmt.Errorf("parse config: unknown runtime %q", raw.Runtime)
		}
		cfg.Runtime = v
	}
	if v := strings.TrimSpace(raw.ContainerBin); v != "" {
		cfg.ContainerBin = v
	}
	if v := strings.TrimSpace(raw.ContainerRoot); v != "" {
		cfg.ContainerRoot = mustExpand(v)
	}
	cfg.DockerHost = strings.TrimSpace(raw.DockerHost)
	if raw.RefreshInterval > 0 {
		cfg.RefreshInterval = time.Duration(raw.RefreshInterval) * time.Second
	}
	if raw.LogsInterval > 0 {
		cfg.LogsInterval = time.Duration(raw.LogsInterval) * time.Second
	}
	cfg.InitialLines = positive(raw.InitialLines, defaultInitialLines)
	cfg.OlderLines = positive(raw.OlderLines, defaultOlderLines)
	cfg.MaxAppendLines = positive(raw.MaxAppendLines, defaultMaxAppendLines)
	cfg.MaxPrependLines = positive(raw.MaxPrependLines, defaultMaxPrependLines)
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	return cfg, nil
}

// Session converts the log settings into the session engine's configuration.
func (c Config) Session() session.Config {
	cfg := session.DefaultConfig()
	cfg.InitialLines = c.InitialLines
	cfg.OlderLines = c.OlderLines
	cfg.AppendCap = c.MaxAppendLines
	cfg.PrependCap = c.MaxPrependLines
	if c.LogsInterval > 0 {
		cfg.PollInterval = c.LogsInterval
	}
	return cfg
}

func positive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
