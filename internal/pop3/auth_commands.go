package pop3

import (
	"context"
	"log/slog"
	"strings"
)

// capaCommand lists capabilities; the set advertised depends on TLS state,
// matching original_source's capa/capa_tls/capa_auth/capa_tls_auth split.
type capaCommand struct{}

func (capaCommand) Name() string { return "CAPA" }
func (capaCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	var caps []string
	switch {
	case sess.IsTLS() && sess.State() != StateAuthorization:
		caps = sess.cfg.CapaTLSAuth
	case sess.IsTLS():
		caps = sess.cfg.CapaTLS
	case sess.State() != StateAuthorization:
		caps = sess.cfg.CapaAuth
	default:
		caps = sess.cfg.Capa
	}
	return Response{OK: true, Message: "capability list follows", Lines: caps}, nil
}

// stlsCommand advertises the scripted STLS response; the handler performs
// the actual TLS handshake afterward when stls_make_transition is set.
type stlsCommand struct{}

func (stlsCommand) Name() string { return "STLS" }
func (stlsCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if !sess.CanSTLS() {
		return Response{OK: false, Message: "command not permitted in this state"}, nil
	}
	return Response{OK: true}, nil // the handler sends sess.cfg.STLSResponse raw and upgrades
}

// userCommand always accepts any username, matching the spec's "never
// validate credentials" rule.
type userCommand struct{}

func (userCommand) Name() string { return "USER" }
func (userCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateAuthorization {
		return Response{OK: false, Message: "command not valid in this state"}, nil
	}
	if len(args) == 0 {
		return Response{OK: false, Message: "username required"}, nil
	}
	sess.SetUsername(args[0])
	return Response{OK: true, Message: "user accepted"}, nil
}

// passCommand always succeeds, logging but never validating the password.
type passCommand struct{}

func (passCommand) Name() string { return "PASS" }
func (passCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateAuthorization || sess.Username() == "" {
		return Response{OK: false, Message: "USER required first"}, nil
	}
	password := ""
	if len(args) > 0 {
		password = strings.Join(args, " ")
	}
	if logger := conn.Logger(); logger != nil {
		logger.Info("pop3 credentials observed",
			slog.String("username", sess.Username()),
			slog.String("password", password),
		)
	}
	sess.SetAuthenticated()
	return Response{OK: true, Message: "maildrop ready"}, nil
}

// AUTH itself is not registered in commandRegistry: its base64
// continuation exchange needs direct framer access to read the follow-up
// lines, so the handler drives it inline (see handleAuth in handler.go)
// rather than through the Command interface.

func init() {
	RegisterCommand(capaCommand{})
	RegisterCommand(stlsCommand{})
	RegisterCommand(userCommand{})
	RegisterCommand(passCommand{})
}
