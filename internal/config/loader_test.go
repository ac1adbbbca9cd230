package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Default()
	if cfg.Server.Hostname != want.Server.Hostname {
		t.Errorf("expected default hostname, got %q", cfg.Server.Hostname)
	}
}

func TestLoadParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fakemaild.toml")
	content := `
[server]
hostname = "mail.example.test"
log_level = "debug"
smtp_address = ":2626"

[pop3]
greeting = "+OK custom greeting\r\n"

[smtp]
greeting = "220 custom.example.test ESMTP fake\r\n"

[imap]
greeting = "* OK custom imap greeting\r\n"
folders = ["INBOX"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Hostname != "mail.example.test" {
		t.Errorf("hostname = %q", cfg.Server.Hostname)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.Server.LogLevel)
	}
	if cfg.Server.SMTPAddress != ":2626" {
		t.Errorf("smtp_address = %q", cfg.Server.SMTPAddress)
	}
	if cfg.POP3.Greeting != "+OK custom greeting\r\n" {
		t.Errorf("pop3 greeting = %q", cfg.POP3.Greeting)
	}
	if cfg.SMTP.Greeting != "220 custom.example.test ESMTP fake\r\n" {
		t.Errorf("smtp greeting = %q", cfg.SMTP.Greeting)
	}
	if len(cfg.IMAP.Folders) != 1 || cfg.IMAP.Folders[0] != "INBOX" {
		t.Errorf("imap folders = %v", cfg.IMAP.Folders)
	}
	if cfg.Server.POP3Address != Default().Server.POP3Address {
		t.Errorf("expected default pop3_address to survive merge, got %q", cfg.Server.POP3Address)
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := Default()
	f := &Flags{Hostname: "flagged.example.test", SMTPAddress: ":9999"}
	cfg = ApplyFlags(cfg, f)

	if cfg.Server.Hostname != "flagged.example.test" {
		t.Errorf("hostname = %q", cfg.Server.Hostname)
	}
	if cfg.Server.SMTPAddress != ":9999" {
		t.Errorf("smtp_address = %q", cfg.Server.SMTPAddress)
	}
	if cfg.Server.POP3Address != Default().Server.POP3Address {
		t.Errorf("expected pop3_address untouched by unrelated flag")
	}
}
