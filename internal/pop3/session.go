// Package pop3 implements the fake POP3 session engine: a fixed,
// two-message mailbox exposed through Authorization/Transaction/Update
// states, with scriptable ignore/hide/override responses and a
// STARTTLS-style STLS upgrade. Grounded on infodancer-pop3d's
// session/command/handler shapes and on original_source's
// fake_mail_server/src/pop3/{mod,config}.rs for the exact fake semantics.
package pop3

import (
	"strconv"

	"github.com/fhms-its/fakemaild/internal/config"
)

// State represents the current state in the POP3 state machine.
type State int

const (
	// StateAuthorization is the initial state where authentication is required.
	StateAuthorization State = iota
	// StateTransaction is the state after successful (always-accepted) authentication.
	StateTransaction
	// StateUpdate is the state after QUIT from Transaction.
	StateUpdate
)

func (s State) String() string {
	switch s {
	case StateAuthorization:
		return "AUTHORIZATION"
	case StateTransaction:
		return "TRANSACTION"
	case StateUpdate:
		return "UPDATE"
	default:
		return "UNKNOWN"
	}
}

// fixedMessage is the 46-octet fixture body used for every RETR/TOP,
// exactly matching original_source's pop3/mod.rs ("Hello, World N!").
func fixedMessage(n int) string {
	return "From: A\r\nTo: B\r\nSubject: N\r\n\r\nHello, World " + strconv.Itoa(n) + "!"
}

// fixedUIDLs are the fixed UIDL values for the two fixture messages.
var fixedUIDLs = [2]string{"AAAAAAAA", "BBBBBBBB"}

// Session carries per-connection POP3 state. The mailbox is always the
// fixed two-message fixture; DELE/RSET are acknowledged but never mutate
// it, so STAT/LIST/RETR/TOP/UIDL report the same two messages for the
// life of the connection regardless of prior DELE.
type Session struct {
	state       State
	username    string
	commands    int
	cfg         config.POP3Config
	isTLS       func() bool
	stlsAllowed bool
}

// NewSession creates a new POP3 session bound to cfg. isTLS reports the
// transport's live TLS state (it may change mid-session via STLS).
func NewSession(cfg config.POP3Config, isTLS func() bool) *Session {
	return &Session{cfg: cfg, isTLS: isTLS, stlsAllowed: true}
}

func (s *Session) State() State          { return s.state }
func (s *Session) IsTLS() bool           { return s.isTLS() }
func (s *Session) Username() string      { return s.username }
func (s *Session) SetUsername(u string)  { s.username = u }

// CanSTLS reports whether STLS may still be issued.
func (s *Session) CanSTLS() bool {
	return s.state == StateAuthorization && !s.IsTLS() && s.stlsAllowed
}

// SetAuthenticated always succeeds: this server never validates credentials.
func (s *Session) SetAuthenticated() {
	s.state = StateTransaction
}

// EnterUpdate transitions to StateUpdate (on QUIT from Transaction).
func (s *Session) EnterUpdate() {
	if s.state == StateTransaction {
		s.state = StateUpdate
	}
}

// IncrCommand increments and returns the session's command counter,
// matching the original's 50-command cap.
func (s *Session) IncrCommand() int {
	s.commands++
	return s.commands
}

// MessageCount is the fixed fixture message count original_source hardcodes
// into every STAT/LIST/RSET reply.
const MessageCount = 2

// TotalSize is the fixed fixture mailbox size ("+OK 2 92") original_source
// hardcodes into every STAT/RSET reply.
const TotalSize = 92

// MessageBody returns the fixed fixture body for msgNum (1-based).
func MessageBody(msgNum int) string {
	return fixedMessage(msgNum)
}

// UIDL returns the fixed UIDL for msgNum (1-based).
func UIDL(msgNum int) string {
	return fixedUIDLs[msgNum-1]
}
