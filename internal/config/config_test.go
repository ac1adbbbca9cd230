package config

import "testing"

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Hostname != "localhost" {
		t.Errorf("expected hostname 'localhost', got %q", cfg.Server.Hostname)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("expected log_level 'info', got %q", cfg.Server.LogLevel)
	}
	if cfg.Server.SMTPAddress == "" || cfg.Server.POP3Address == "" || cfg.Server.IMAPAddress == "" {
		t.Errorf("expected all three listen addresses to have defaults, got %+v", cfg.Server)
	}
	if cfg.POP3.Greeting == "" {
		t.Errorf("expected a default POP3 greeting")
	}
	if cfg.SMTP.Greeting == "" {
		t.Errorf("expected a default SMTP greeting")
	}
	if cfg.IMAP.Greeting == "" {
		t.Errorf("expected a default IMAP greeting")
	}
	if len(cfg.IMAP.Folders) == 0 {
		t.Errorf("expected default IMAP folders")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	bad := cfg
	bad.Server.Hostname = ""
	if err := bad.Validate(); err == nil {
		t.Error("expected error for empty hostname")
	}

	bad = cfg
	bad.Server.SMTPAddress, bad.Server.POP3Address, bad.Server.IMAPAddress = "", "", ""
	if err := bad.Validate(); err == nil {
		t.Error("expected error when no listen addresses are configured")
	}

	bad = cfg
	bad.Server.MaxConnections = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for non-positive max_connections")
	}

	bad = cfg
	bad.Server.Filter.Mode = "bogus"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for invalid filter mode")
	}
}

func TestFilterConfigToFilter(t *testing.T) {
	f := FilterConfig{Mode: "accept", Substrings: []string{"10.0."}}.ToFilter()
	if !f.Accepts("10.0.0.1:1234") {
		t.Error("expected accept filter to accept a matching peer")
	}
	if f.Accepts("192.168.0.1:1234") {
		t.Error("expected accept filter to reject a non-matching peer")
	}
}
