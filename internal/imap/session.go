package imap

import (
	"strings"

	"github.com/fhms-its/fakemaild/internal/config"
	"github.com/fhms-its/fakemaild/internal/mailbox"
)

// State is one of the six session states original_source's imap_codec
// State enum carries; IdleAuthenticated/IdleSelected are folded into a
// single synchronous IDLE exchange here (see handler.go) rather than
// split across two command-loop iterations the way the original does,
// so they never appear as a resting Session.state value.
type State int

const (
	StateNotAuthenticated State = iota
	StateAuthenticated
	StateSelected
	StateLogout
)

func (s State) String() string {
	switch s {
	case StateNotAuthenticated:
		return "not_authenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateSelected:
		return "selected"
	case StateLogout:
		return "logout"
	default:
		return "unknown"
	}
}

func stateFromConfig(s string) State {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "authenticated":
		return StateAuthenticated
	case "selected":
		return StateSelected
	default:
		return StateNotAuthenticated
	}
}

// Session holds the per-connection state machine and the session's own
// copy of the account fixture (folders are never mutated, but each
// session gets an independent slice so concurrent connections never
// share backing arrays).
type Session struct {
	state    State
	selected string
	account  mailbox.Account
	isTLS    func() bool
}

// NewSession builds a Session in cfg's configured initial state, holding
// its own clone of acct.
func NewSession(cfg config.IMAPConfig, acct mailbox.Account, isTLS func() bool) *Session {
	return &Session{
		state:   stateFromConfig(cfg.InitialState),
		account: acct.Clone(),
		isTLS:   isTLS,
	}
}

func (s *Session) State() State      { return s.state }
func (s *Session) Selected() string  { return s.selected }
func (s *Session) IsTLS() bool       { return s.isTLS() }
func (s *Session) Account() mailbox.Account { return s.account }

func (s *Session) selectMailbox(name string) {
	s.state = StateSelected
	s.selected = name
}

func (s *Session) closeMailbox() {
	s.state = StateAuthenticated
	s.selected = ""
}
