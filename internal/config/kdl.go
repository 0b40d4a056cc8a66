package config

import (
	"os"
	"path/filepath"
	"time"

	kdl "github.com/sblinch/kdl-go"
)

// ConfigFile is the configuration file name looked up under the user
// config directory.
const ConfigFile = "hookd.kdl"

// KDLConfig mirrors the KDL configuration file structure. Durations are
// expressed in seconds.
type KDLConfig struct {
	ListenAddr      string `kdl:"listen-addr"`
	LogLevel        string `kdl:"log-level"`
	MaxMessageBytes int64  `kdl:"max-message-bytes"`
	WriteTimeout    int    `kdl:"write-timeout"`
	CaptureTimeout  int    `kdl:"capture-timeout"`
	ShellTimeout    int    `kdl:"shell-timeout"`
	ScriptTimeout   int    `kdl:"script-timeout"`
	InputTimeout    int    `kdl:"input-timeout"`
}

// Load returns the configuration from the default location, falling back
// to Default() when no file exists.
func Load() (*Config, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Default(), nil
		}
		configDir = filepath.Join(home, ".config")
	}

	path := filepath.Join(configDir, "hookd", ConfigFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging the
// file's values over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse parses KDL configuration data.
func Parse(data string) (*Config, error) {
	var kdlCfg KDLConfig
	if err := kdl.Unmarshal([]byte(data), &kdlCfg); err != nil {
		return nil, err
	}

	cfg := Default()
	if kdlCfg.ListenAddr != "" {
		cfg.ListenAddr = kdlCfg.ListenAddr
	}
	if kdlCfg.LogLevel != "" {
		cfg.LogLevel = kdlCfg.LogLevel
	}
	if kdlCfg.MaxMessageBytes > 0 {
		cfg.MaxMessageBytes = kdlCfg.MaxMessageBytes
	}
	if kdlCfg.WriteTimeout > 0 {
		cfg.WriteTimeout = time.Duration(kdlCfg.WriteTimeout) * time.Second
	}
	if kdlCfg.CaptureTimeout > 0 {
		cfg.CaptureTimeout = time.Duration(kdlCfg.CaptureTimeout) * time.Second
	}
	if kdlCfg.ShellTimeout > 0 {
		cfg.ShellTimeout = time.Duration(kdlCfg.ShellTimeout) * time.Second
	}
	if kdlCfg.ScriptTimeout > 0 {
		cfg.ScriptTimeout = time.Duration(kdlCfg.ScriptTimeout) * time.Second
	}
	if kdlCfg.InputTimeout > 0 {
		cfg.InputTimeout = time.Duration(kdlCfg.InputTimeout) * time.Second
	}
	return cfg, nil
}
