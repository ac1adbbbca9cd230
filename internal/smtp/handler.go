// Package smtp implements the fake SMTP session engine: a scriptable,
// effectively stateless EHLO/MAIL/RCPT/DATA/QUIT loop that accepts any
// envelope and discards every message, with STARTTLS and AUTH LOGIN/PLAIN
// credential capture. Grounded on original_source's smtp/mod.rs
// SmtpServer::run loop and on infodancer-pop3d's handler shape.
package smtp

import (
	"context"
	"crypto/tls"
	"log/slog"
	"strings"

	"github.com/fhms-its/fakemaild/internal/config"
	"github.com/fhms-its/fakemaild/internal/framer"
	"github.com/fhms-its/fakemaild/internal/logging"
	"github.com/fhms-its/fakemaild/internal/metrics"
	"github.com/fhms-its/fakemaild/internal/override"
	"github.com/fhms-its/fakemaild/internal/server"
	"github.com/fhms-its/fakemaild/internal/transport"
	"github.com/fhms-its/fakemaild/internal/wire"
)

// maxCommands caps the number of commands accepted per connection,
// matching original_source's smtp/mod.rs command counter.
const maxCommands = 50

// Handler builds a server.ConnectionHandler implementing the fake SMTP
// protocol engine described by cfg.
func Handler(cfg config.SMTPConfig, collector metrics.Collector) server.ConnectionHandler {
	overrides := override.Table{
		IgnoreCommands:    cfg.Override.IgnoreCommands,
		IgnoreCommandsTLS: cfg.Override.IgnoreCommandsTLS,
		HideCommands:      cfg.Override.HideCommands,
		OverrideResponse:  cfg.Override.OverrideResponse,
	}

	var tlsConfig *tls.Config
	if cfg.PKCS12 != nil {
		tc, err := transport.LoadTLSConfig(transport.Identity{File: cfg.PKCS12.File, Password: cfg.PKCS12.Password})
		if err != nil {
			slog.Default().Error("smtp: failed to load TLS identity", slog.String("error", err.Error()))
		} else {
			tlsConfig = tc
		}
	}

	return func(ctx context.Context, conn *server.Connection) {
		logger := logging.FromContext(ctx)

		collector.ConnectionOpened("smtp")
		defer collector.ConnectionClosed("smtp")
		if conn.IsTLS() {
			collector.TLSConnectionEstablished("smtp")
		}

		f := framer.New(conn, logger)
		commands := 0

		if err := f.SendRaw([]byte(cfg.Greeting)); err != nil {
			logger.Debug("failed to send greeting", slog.String("error", err.Error()))
			return
		}

		for {
			line, _, err := framer.Recv(ctx, f, wire.ParseLine)
			if err != nil {
				logger.Debug("session ending", slog.String("error", err.Error()))
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}

			commands++
			if commands > maxCommands {
				_ = f.SendRaw([]byte("421 too many commands, closing connection\r\n"))
				return
			}

			fields := wire.SplitArgs(line)
			if len(fields) == 0 {
				continue
			}
			name := strings.ToUpper(fields[0])
			args := fields[1:]

			result, raw := overrides.Apply(name, conn.IsTLS())
			switch result {
			case override.Ignored:
				collector.CommandIgnored("smtp", name)
				continue
			case override.Hidden:
				collector.CommandHidden("smtp", name)
				_ = f.SendRaw([]byte("502 command not recognized\r\n"))
				continue
			case override.Overridden:
				collector.CommandOverridden("smtp", name)
				if f.SendRaw([]byte(override.Substitute(raw, name))) != nil {
					return
				}
				continue
			}

			collector.CommandProcessed("smtp", name)

			switch name {
			case "EHLO", "HELO":
				if name == "HELO" {
					if f.SendRaw([]byte("250 OK\r\n")) != nil {
						return
					}
					continue
				}
				caps := cfg.Capabilities
				if conn.IsTLS() {
					caps = cfg.CapabilitiesTLS
				}
				if len(caps) == 0 {
					caps = []string{"250 OK"}
				}
				if f.SendRaw([]byte(strings.Join(caps, "\r\n") + "\r\n")) != nil {
					return
				}

			case "MAIL", "RCPT":
				if f.SendRaw([]byte("250 OK\r\n")) != nil {
					return
				}

			case "DATA":
				if !runDataPhase(ctx, f, logger) {
					return
				}

			case "NOOP":
				if f.SendRaw([]byte("250 OK\r\n")) != nil {
					return
				}

			case "QUIT":
				_ = f.SendRaw([]byte("221 closing connection\r\n"))
				return

			case "STARTTLS":
				if f.SendRaw([]byte(cfg.STLSResponse)) != nil {
					return
				}
				if cfg.STLSMakeTransition {
					if tlsConfig == nil {
						logger.Error("STARTTLS accepted but no TLS identity configured")
						return
					}
					if err := conn.UpgradeTLS(tlsConfig); err != nil {
						logger.Error("STARTTLS upgrade failed", slog.String("error", err.Error()))
						return
					}
					collector.TLSConnectionEstablished("smtp")
				}

			case "AUTH":
				if !handleAuth(ctx, f, logger, collector, args) {
					return
				}

			case "RSET", "VRFY", "EXPN", "HELP":
				// Never validated by this fixture; the original treats these
				// as unreachable along a conforming path. We reply instead
				// of crashing the session.
				_ = f.SendRaw([]byte("502 command not implemented\r\n"))

			default:
				_ = f.SendRaw([]byte("500 command not recognized\r\n"))
			}
		}
	}
}

// runDataPhase reads the message body line by line until a bare "." and
// discards it, exactly as original_source's Command::Data handling does.
func runDataPhase(ctx context.Context, f *framer.Framer, logger *slog.Logger) bool {
	if f.SendRaw([]byte("354 start mail input; end with <CRLF>.<CRLF>\r\n")) != nil {
		return false
	}
	for {
		line, _, err := framer.Recv(ctx, f, wire.ParseLine)
		if err != nil {
			logger.Debug("session ending mid-DATA", slog.String("error", err.Error()))
			return false
		}
		if line == "." {
			break
		}
	}
	return f.SendRaw([]byte("250 OK: message queued\r\n")) == nil
}

// handleAuth drives AUTH LOGIN/PLAIN, including the inline-initial-response
// form. Credentials are decoded and logged but never validated.
func handleAuth(ctx context.Context, f *framer.Framer, logger *slog.Logger, collector metrics.Collector, args []string) bool {
	if len(args) == 0 {
		return f.SendRaw([]byte("501 syntax error\r\n")) == nil
	}

	switch strings.ToUpper(args[0]) {
	case wire.MechLogin:
		userLine := ""
		if len(args) > 1 {
			userLine = args[1]
		} else {
			if f.SendRaw([]byte("334 VXNlcm5hbWU6\r\n")) != nil {
				return false
			}
			line, _, err := framer.Recv(ctx, f, wire.ParseLine)
			if err != nil {
				return false
			}
			userLine = line
		}
		if f.SendRaw([]byte("334 UGFzc3dvcmQ6\r\n")) != nil {
			return false
		}
		passLine, _, err := framer.Recv(ctx, f, wire.ParseLine)
		if err != nil {
			return false
		}
		logCredentialLine(logger, "LOGIN username", userLine)
		logCredentialLine(logger, "LOGIN password", passLine)
		collector.AuthAttempt("smtp", "LOGIN", true)
		return f.SendRaw([]byte("235 authentication successful\r\n")) == nil

	case wire.MechPlain:
		credLine := ""
		if len(args) > 1 {
			credLine = args[1]
		} else {
			if f.SendRaw([]byte("334 \r\n")) != nil {
				return false
			}
			line, _, err := framer.Recv(ctx, f, wire.ParseLine)
			if err != nil {
				return false
			}
			credLine = line
		}
		logCredentialLine(logger, "PLAIN credentials", credLine)
		collector.AuthAttempt("smtp", "PLAIN", true)
		return f.SendRaw([]byte("235 authentication successful\r\n")) == nil

	default:
		return f.SendRaw([]byte("504 unrecognized authentication mechanism\r\n")) == nil
	}
}

func logCredentialLine(logger *slog.Logger, label, b64 string) {
	decoded, err := wire.DecodeBase64(strings.TrimSpace(b64))
	if err != nil {
		logger.Warn("smtp auth data is not valid base64", slog.String("field", label), slog.String("raw", b64))
		return
	}
	logger.Info("smtp credentials observed", slog.String("field", label), slog.String("value", string(decoded)))
}
