// Package config holds the hookd daemon configuration: the listen
// address, the per-operation timeouts bounding blocking native calls,
// and transport limits. Values come from built-in defaults, optionally
// overridden by a KDL configuration file.
package config

import "time"

// Config is the complete daemon configuration.
type Config struct {
	// ListenAddr is the host:port the websocket server binds.
	ListenAddr string

	// LogLevel is the zap log level name (debug, info, warn, error).
	LogLevel string

	// MaxMessageBytes caps the size of a single inbound wire frame.
	MaxMessageBytes int64

	// WriteTimeout bounds a single outbound frame write.
	WriteTimeout time.Duration

	// CaptureTimeout bounds a screen capture call.
	CaptureTimeout time.Duration

	// ShellTimeout bounds a shell command execution.
	ShellTimeout time.Duration

	// ScriptTimeout bounds an AppleScript automation call.
	ScriptTimeout time.Duration

	// InputTimeout bounds keystroke and mouse injection calls.
	InputTimeout time.Duration
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr:      "localhost:8765",
		LogLevel:        "info",
		MaxMessageBytes: 5 * 1024 * 1024,
		WriteTimeout:    30 * time.Second,
		CaptureTimeout:  10 * time.Second,
		ShellTimeout:    60 * time.Second,
		ScriptTimeout:   30 * time.Second,
		InputTimeout:    15 * time.Second,
	}
}
