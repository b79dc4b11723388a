// Package config loads the YAML client configuration used by the command
// line tools. Sensor geometry is not configured here; it comes from the
// sensor metadata document.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/KenthJohan/ouster-sdk/internal/lidar/profile"
)

const maxFileSize = 1 * 1024 * 1024

// ClientConfig is the root client configuration. Every field is optional;
// the Get* methods supply defaults for unset fields.
type ClientConfig struct {
	Fields         []string `yaml:"fields,omitempty"` // quantity names; empty extracts all
	BindAddress    *string  `yaml:"bind_address,omitempty"`
	RcvBuf         *int     `yaml:"rcvbuf,omitempty"`
	MulticastGroup *string  `yaml:"multicast_group,omitempty"`
	Interface      *string  `yaml:"interface,omitempty"`
	Destagger      *bool    `yaml:"destagger,omitempty"`
	WaitTimeout    *string  `yaml:"wait_timeout,omitempty"`   // duration string like "1s"
	StatsInterval  *string  `yaml:"stats_interval,omitempty"` // duration string; "0s" disables
	ForwardAddr    *string  `yaml:"forward_addr,omitempty"`
	ForwardPort    *int     `yaml:"forward_port,omitempty"`

	Logs LogConfig `yaml:"logs"`
}

// LogConfig controls the optional rotating log file.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
	Trace      bool   `yaml:"trace"` // also write per-packet telemetry
}

// LoadClientConfig loads a ClientConfig from a YAML file.
// The file must have a .yaml or .yml extension and be under 1 MB.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ClientConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Logs.applyDefaults()
	return cfg, nil
}

func (l *LogConfig) applyDefaults() {
	if l.MaxSizeMB <= 0 {
		l.MaxSizeMB = 25
	}
	if l.MaxAgeDays <= 0 {
		l.MaxAgeDays = 7
	}
	if l.MaxBackups <= 0 {
		l.MaxBackups = 5
	}
}

// Validate checks that the configuration values are valid.
func (c *ClientConfig) Validate() error {
	if _, err := c.Quantities(); err != nil {
		return err
	}
	if c.RcvBuf != nil && *c.RcvBuf <= 0 {
		return fmt.Errorf("rcvbuf must be positive, got %d", *c.RcvBuf)
	}
	if c.WaitTimeout != nil && *c.WaitTimeout != "" {
		d, err := time.ParseDuration(*c.WaitTimeout)
		if err != nil {
			return fmt.Errorf("invalid wait_timeout '%s': %w", *c.WaitTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("wait_timeout must be positive, got %s", d)
		}
	}
	if c.StatsInterval != nil && *c.StatsInterval != "" {
		if _, err := time.ParseDuration(*c.StatsInterval); err != nil {
			return fmt.Errorf("invalid stats_interval '%s': %w", *c.StatsInterval, err)
		}
	}
	if c.ForwardPort != nil && (*c.ForwardPort <= 0 || *c.ForwardPort > 65535) {
		return fmt.Errorf("forward_port out of range: %d", *c.ForwardPort)
	}
	return nil
}

// Quantities parses Fields. An empty list yields nil, meaning every
// quantity the profile carries.
func (c *ClientConfig) Quantities() ([]profile.Quantity, error) {
	var qs []profile.Quantity
	for _, name := range c.Fields {
		q, err := profile.ParseQuantity(name)
		if err != nil {
			return nil, fmt.Errorf("fields: %w", err)
		}
		qs = append(qs, q)
	}
	return qs, nil
}

// GetBindAddress returns the bind address or "" for all interfaces.
func (c *ClientConfig) GetBindAddress() string {
	if c.BindAddress == nil {
		return ""
	}
	return *c.BindAddress
}

// GetRcvBuf returns the receive buffer size or the 1 MiB default.
func (c *ClientConfig) GetRcvBuf() int {
	if c.RcvBuf == nil {
		return 1024 * 1024
	}
	return *c.RcvBuf
}

// GetMulticastGroup returns the multicast group or "".
func (c *ClientConfig) GetMulticastGroup() string {
	if c.MulticastGroup == nil {
		return ""
	}
	return *c.MulticastGroup
}

// GetInterface returns the multicast interface name or "".
func (c *ClientConfig) GetInterface() string {
	if c.Interface == nil {
		return ""
	}
	return *c.Interface
}

// GetDestagger returns the destagger toggle, off by default.
func (c *ClientConfig) GetDestagger() bool {
	if c.Destagger == nil {
		return false
	}
	return *c.Destagger
}

// GetWaitTimeout parses and returns WaitTimeout.
func (c *ClientConfig) GetWaitTimeout() time.Duration {
	return parseDurationOr(c.WaitTimeout, time.Second)
}

// GetStatsInterval parses and returns StatsInterval. Zero disables stats
// logging and is returned as a negative duration.
func (c *ClientConfig) GetStatsInterval() time.Duration {
	d := parseDurationOr(c.StatsInterval, time.Minute)
	if d == 0 {
		return -1
	}
	return d
}

// GetForward returns the forward destination; an empty host disables
// forwarding.
func (c *ClientConfig) GetForward() (string, int) {
	if c.ForwardAddr == nil || *c.ForwardAddr == "" {
		return "", 0
	}
	port := 7502
	if c.ForwardPort != nil {
		port = *c.ForwardPort
	}
	return *c.ForwardAddr, port
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}
