package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level termbridge configuration.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Session SessionConfig `json:"session"`
	History HistoryConfig `json:"history"`
}

// ServerConfig locates the agent and the shared secret it expects.
type ServerConfig struct {
	Host      string `json:"host"`
	Port      Port   `json:"port"`
	Token     string `json:"token,omitempty"`
	TokenFile string `json:"token_file,omitempty"`
	Timeout   string `json:"timeout"`
}

// ParseTimeout returns the per-exchange timeout. Unparseable or
// non-positive values fall back to two minutes.
func (s ServerConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// Port accepts both 8085 and "8085" so settings written by other tools load.
type Port int

// UnmarshalJSON decodes a number or a numeric string.
func (p *Port) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid port %s", data)
	}
	*p = Port(n)
	return nil
}

// MarshalJSON always writes a number.
func (p Port) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(p))
}

// SessionConfig controls the interactive shell.
type SessionConfig struct {
	// Queue is the in-flight policy: "queue", "reject" or "concurrent".
	Queue string `json:"queue"`
}

// HistoryConfig controls the exchange log.
type HistoryConfig struct {
	Enabled *bool  `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// IsEnabled returns whether history is recorded. Defaults to true.
func (h HistoryConfig) IsEnabled() bool {
	if h.Enabled == nil {
		return true
	}
	return *h.Enabled
}

func boolPtr(b bool) *bool {
	return &b
}

// DefaultConfig returns a Config pointing at a local agent on port 8085.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    8085,
			Timeout: "2m",
		},
		Session: SessionConfig{
			Queue: "queue",
		},
		History: HistoryConfig{
			Enabled: boolPtr(true),
		},
	}
}
