package pop3

import (
	"bytes"
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
// matching original_source's pop3/mod.rs command counter.
const maxCommands = 50

// connLogger adapts a *slog.Logger to the ConnectionLogger interface
// commands use to log observed credentials.
type connLogger struct{ logger *slog.Logger }

func (c connLogger) Logger() *slog.Logger { return c.logger }

// Handler builds a server.ConnectionHandler implementing the fake POP3
// protocol engine described by cfg. Grounded on infodancer-pop3d's
// handleConnection loop, reworked around the fixed two-message fixture
// and the ignore/hide/override scripting layer.
func Handler(cfg config.POP3Config, collector metrics.Collector) server.ConnectionHandler {
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
			slog.Default().Error("pop3: failed to load TLS identity", slog.String("error", err.Error()))
		} else {
			tlsConfig = tc
		}
	}

	return func(ctx context.Context, conn *server.Connection) {
		logger := logging.FromContext(ctx)
		cl := connLogger{logger: logger}

		collector.ConnectionOpened("pop3")
		defer collector.ConnectionClosed("pop3")
		if conn.IsTLS() {
			collector.TLSConnectionEstablished("pop3")
		}

		f := framer.New(conn, logger)
		sess := NewSession(cfg, conn.IsTLS)

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

			if sess.IncrCommand() > maxCommands {
				_ = f.SendRaw([]byte("-ERR too many commands, closing connection\r\n"))
				return
			}

			name, args, perr := ParseCommand(line)
			if perr != nil {
				_ = f.SendRaw([]byte("-ERR unable to parse command\r\n"))
				continue
			}

			result, raw := overrides.Apply(name, sess.IsTLS())
			switch result {
			case override.Ignored:
				collector.CommandIgnored("pop3", name)
				continue
			case override.Hidden:
				collector.CommandHidden("pop3", name)
				_ = f.SendRaw([]byte("-ERR bad command\r\n"))
				continue
			case override.Overridden:
				collector.CommandOverridden("pop3", name)
				if err := f.SendRaw([]byte(override.Substitute(raw, name))); err != nil {
					return
				}
				continue
			}

			collector.CommandProcessed("pop3", name)

			if name == "AUTH" {
				if !handleAuth(ctx, f, sess, cl, collector, args) {
					return
				}
				continue
			}

			cmd, ok := GetCommand(name)
			if !ok {
				_ = f.SendRaw([]byte("-ERR unrecognized command\r\n"))
				continue
			}

			resp, err := cmd.Execute(ctx, sess, cl, args)
			if err != nil {
				logger.Error("command execution error", slog.String("command", name), slog.String("error", err.Error()))
				_ = f.SendRaw([]byte("-ERR internal server error\r\n"))
				continue
			}

			if name == "PASS" {
				collector.AuthAttempt("pop3", "USER/PASS", resp.OK)
			}

			if name == "STLS" && resp.OK {
				if err := f.SendRaw([]byte(cfg.STLSResponse)); err != nil {
					logger.Debug("write failed", slog.String("error", err.Error()))
					return
				}
				if cfg.STLSMakeTransition {
					if tlsConfig == nil {
						logger.Error("STLS accepted but no TLS identity configured")
						return
					}
					if err := conn.UpgradeTLS(tlsConfig); err != nil {
						logger.Error("STLS upgrade failed", slog.String("error", err.Error()))
						return
					}
					collector.TLSConnectionEstablished("pop3")
				}
				continue
			}

			if err := f.SendRaw([]byte(resp.String())); err != nil {
				logger.Debug("write failed", slog.String("error", err.Error()))
				return
			}

			if name == "QUIT" {
				return
			}
		}
	}
}

// handleAuth drives the AUTH PLAIN/LOGIN base64 continuation exchange.
// Credentials are decoded and logged but never validated; it returns
// false when the connection should be closed (write/read failure).
func handleAuth(ctx context.Context, f *framer.Framer, sess *Session, cl connLogger, collector metrics.Collector, args []string) bool {
	if len(args) == 0 {
		return f.SendRaw([]byte("+OK\r\nPLAIN\r\nLOGIN\r\n.\r\n")) == nil
	}

	switch strings.ToUpper(args[0]) {
	case wire.MechPlain:
		if f.SendRaw([]byte("+ \r\n")) != nil {
			return false
		}
		line, _, err := framer.Recv(ctx, f, wire.ParseLine)
		if err != nil {
			return false
		}
		decoded, _ := wire.DecodeBase64(line)
		user, pass := splitPlainCredentials(decoded)
		sess.SetUsername(user)
		logCredentials(cl, "PLAIN", user, pass)
		sess.SetAuthenticated()
		collector.AuthAttempt("pop3", "PLAIN", true)
		return f.SendRaw([]byte("+OK maildrop ready\r\n")) == nil

	case wire.MechLogin:
		if f.SendRaw([]byte("+ VXNlcm5hbWU6\r\n")) != nil { // "Username:"
			return false
		}
		userLine, _, err := framer.Recv(ctx, f, wire.ParseLine)
		if err != nil {
			return false
		}
		if f.SendRaw([]byte("+ UGFzc3dvcmQ6\r\n")) != nil { // "Password:"
			return false
		}
		passLine, _, err := framer.Recv(ctx, f, wire.ParseLine)
		if err != nil {
			return false
		}
		userBytes, _ := wire.DecodeBase64(userLine)
		passBytes, _ := wire.DecodeBase64(passLine)
		sess.SetUsername(string(userBytes))
		logCredentials(cl, "LOGIN", string(userBytes), string(passBytes))
		sess.SetAuthenticated()
		collector.AuthAttempt("pop3", "LOGIN", true)
		return f.SendRaw([]byte("+OK maildrop ready\r\n")) == nil

	default:
		return f.SendRaw([]byte("-ERR unsupported mechanism\r\n")) == nil
	}
}

func logCredentials(cl connLogger, mechanism, user, pass string) {
	logger := cl.Logger()
	if logger == nil {
		return
	}
	logger.Info("pop3 credentials observed",
		slog.String("mechanism", mechanism),
		slog.String("username", user),
		slog.String("password", pass),
	)
}

// splitPlainCredentials parses a SASL PLAIN message: authzid\0authcid\0passwd.
func splitPlainCredentials(decoded []byte) (user, pass string) {
	parts := bytes.Split(decoded, []byte{0})
	switch len(parts) {
	case 3:
		return string(parts[1]), string(parts[2])
	case 1:
		return string(parts[0]), ""
	default:
		return "", ""
	}
}
