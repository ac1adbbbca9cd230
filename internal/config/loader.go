package config

import (
	"flag"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the fully-resolved configuration used by cmd/fakemaild: shared
// server settings plus one block per protocol.
type Config struct {
	Server ServerConfig
	SMTP   SMTPConfig
	POP3   POP3Config
	IMAP   IMAPConfig
}

// Default returns a Config with sensible default values for every block.
func Default() Config {
	return Config{
		Server: DefaultServerConfig(),
		SMTP:   DefaultSMTPConfig(),
		POP3:   DefaultPOP3Config(),
		IMAP:   DefaultIMAPConfig(),
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	return c.Server.Validate()
}

// Flags holds command-line flag values.
type Flags struct {
	ConfigPath  string
	Hostname    string
	LogLevel    string
	AccountDir  string
	SMTPAddress string
	POP3Address string
	IMAPAddress string
}

// ParseFlags parses command-line flags and returns a Flags struct.
func ParseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "./fakemaild.toml", "Path to configuration file")
	flag.StringVar(&f.Hostname, "hostname", "", "Server hostname")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&f.AccountDir, "account-dir", "", "Directory of fixture messages for the INBOX folder")
	flag.StringVar(&f.SMTPAddress, "smtp-listen", "", "SMTP listen address")
	flag.StringVar(&f.POP3Address, "pop3-listen", "", "POP3 listen address")
	flag.StringVar(&f.IMAPAddress, "imap-listen", "", "IMAP listen address")

	flag.Parse()
	return f
}

// Load parses a TOML configuration file and returns the Config. If the file
// does not exist, the default configuration is returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig FileConfig
	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	cfg = mergeConfig(cfg, fileConfig)
	return cfg, nil
}

// ApplyFlags merges command-line flag values into the config. Non-empty
// flag values override config file values.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.Hostname != "" {
		cfg.Server.Hostname = f.Hostname
	}
	if f.LogLevel != "" {
		cfg.Server.LogLevel = f.LogLevel
	}
	if f.AccountDir != "" {
		cfg.Server.AccountDir = f.AccountDir
	}
	if f.SMTPAddress != "" {
		cfg.Server.SMTPAddress = f.SMTPAddress
	}
	if f.POP3Address != "" {
		cfg.Server.POP3Address = f.POP3Address
	}
	if f.IMAPAddress != "" {
		cfg.Server.IMAPAddress = f.IMAPAddress
	}
	return cfg
}

// LoadWithFlags loads configuration from the path specified in flags, then
// applies flag overrides.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	return ApplyFlags(cfg, f), nil
}

func mergeConfig(dst Config, src FileConfig) Config {
	if src.Server.Hostname != "" {
		dst.Server.Hostname = src.Server.Hostname
	}
	if src.Server.LogLevel != "" {
		dst.Server.LogLevel = src.Server.LogLevel
	}
	if src.Server.SMTPAddress != "" {
		dst.Server.SMTPAddress = src.Server.SMTPAddress
	}
	if src.Server.POP3Address != "" {
		dst.Server.POP3Address = src.Server.POP3Address
	}
	if src.Server.IMAPAddress != "" {
		dst.Server.IMAPAddress = src.Server.IMAPAddress
	}
	if src.Server.AccountDir != "" {
		dst.Server.AccountDir = src.Server.AccountDir
	}
	if len(src.Server.Filter.Substrings) > 0 || src.Server.Filter.Mode != "" {
		dst.Server.Filter = src.Server.Filter
	}
	if src.Server.MaxConnections > 0 {
		dst.Server.MaxConnections = src.Server.MaxConnections
	}
	if src.Server.CommandTimeout != "" {
		dst.Server.CommandTimeout = src.Server.CommandTimeout
	}
	if src.Server.Metrics.Enabled {
		dst.Server.Metrics.Enabled = true
	}
	if src.Server.Metrics.Address != "" {
		dst.Server.Metrics.Address = src.Server.Metrics.Address
	}
	if src.Server.Metrics.Path != "" {
		dst.Server.Metrics.Path = src.Server.Metrics.Path
	}

	if src.SMTP.Greeting != "" {
		dst.SMTP = src.SMTP
	}
	if src.POP3.Greeting != "" {
		dst.POP3 = src.POP3
	}
	if src.IMAP.Greeting != "" {
		dst.IMAP = src.IMAP
	}

	return dst
}
