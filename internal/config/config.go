// Package config provides configuration management for the fake mail
// server: a top-level Config naming the three listen addresses, the peer
// filter, and the path to a companion account/fixture directory, plus one
// nested, independently-defaulted config block per protocol. Struct shape
// and the Default()/Validate() idiom are kept from infodancer-pop3d's own
// internal/config/config.go; the per-protocol field lists and defaults
// are taken from original_source's config.rs/{imap,pop3,smtp}/config.rs,
// the spec's authoritative source for exact field names and defaults.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fhms-its/fakemaild/internal/filter"
)

// FileConfig is the top-level wrapper for the TOML configuration file.
type FileConfig struct {
	Server ServerConfig `toml:"server"`
	SMTP   SMTPConfig   `toml:"smtp"`
	POP3   POP3Config   `toml:"pop3"`
	IMAP   IMAPConfig   `toml:"imap"`
}

// ServerConfig holds settings shared by all three listeners.
type ServerConfig struct {
	Hostname       string        `toml:"hostname"`
	LogLevel       string        `toml:"log_level"`
	SMTPAddress    string        `toml:"smtp_address"`
	POP3Address    string        `toml:"pop3_address"`
	IMAPAddress    string        `toml:"imap_address"`
	AccountDir     string        `toml:"account_dir"`
	Filter         FilterConfig  `toml:"filter"`
	Metrics        MetricsConfig `toml:"metrics"`
	MaxConnections int           `toml:"max_connections"`
	CommandTimeout string        `toml:"command_timeout"`
}

// FilterConfig mirrors filter.Filter in TOML form.
type FilterConfig struct {
	Mode       string   `toml:"mode"` // "accept" or "reject"
	Substrings []string `toml:"substrings"`
}

// ToFilter converts the TOML representation to a filter.Filter.
func (f FilterConfig) ToFilter() filter.Filter {
	k := filter.Reject
	if f.Mode == "accept" {
		k = filter.Accept
	}
	return filter.Filter{Kind: k, Substrings: f.Substrings}
}

// MetricsConfig holds configuration for the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// PKCS12Config names the identity file used for a mid-session TLS upgrade.
type PKCS12Config struct {
	File     string `toml:"file"`
	Password string `toml:"password"`
}

// OverrideConfig is the shared ignore/hide/override-response shape used by
// all three protocol configs.
type OverrideConfig struct {
	HideCommands      []string          `toml:"hide_commands"`
	IgnoreCommands    []string          `toml:"ignore_commands"`
	IgnoreCommandsTLS []string          `toml:"ignore_commands_tls"`
	OverrideResponse  map[string]string `toml:"override_response"`
}

// DefaultServerConfig returns the shared server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Hostname:       "localhost",
		LogLevel:       "info",
		SMTPAddress:    ":2525",
		POP3Address:    ":1110",
		IMAPAddress:    ":1143",
		AccountDir:     "testdata/account",
		Filter:         FilterConfig{Mode: "reject"},
		MaxConnections: 1000,
		CommandTimeout: "1m",
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9110",
			Path:    "/metrics",
		},
	}
}

// CommandTimeoutDuration parses CommandTimeout, defaulting to one minute.
func (c *ServerConfig) CommandTimeoutDuration() time.Duration {
	if c.CommandTimeout == "" {
		return time.Minute
	}
	d, err := time.ParseDuration(c.CommandTimeout)
	if err != nil {
		return time.Minute
	}
	return d
}

// Validate checks the shared server settings.
func (c *ServerConfig) Validate() error {
	if c.Hostname == "" {
		return errors.New("hostname is required")
	}
	if c.SMTPAddress == "" && c.POP3Address == "" && c.IMAPAddress == "" {
		return errors.New("at least one of smtp_address, pop3_address, imap_address is required")
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", c.MaxConnections)
	}
	if c.Filter.Mode != "" && c.Filter.Mode != "accept" && c.Filter.Mode != "reject" {
		return fmt.Errorf("filter mode must be \"accept\" or \"reject\", got %q", c.Filter.Mode)
	}
	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}
	return nil
}
