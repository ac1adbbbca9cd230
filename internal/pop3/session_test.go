package pop3

import (
	"testing"

	"github.com/fhms-its/fakemaild/internal/config"
)

func plainSession(isTLS bool) *Session {
	return NewSession(config.DefaultPOP3Config(), func() bool { return isTLS })
}

func TestNewSessionStartsInAuthorization(t *testing.T) {
	sess := plainSession(false)
	if sess.State() != StateAuthorization {
		t.Fatalf("State() = %v, want StateAuthorization", sess.State())
	}
	if sess.Username() != "" {
		t.Fatalf("Username() = %q, want empty", sess.Username())
	}
}

func TestCanSTLS(t *testing.T) {
	sess := plainSession(false)
	if !sess.CanSTLS() {
		t.Fatal("CanSTLS() = false, want true for a plain connection in Authorization")
	}

	tlsSess := plainSession(true)
	if tlsSess.CanSTLS() {
		t.Fatal("CanSTLS() = true, want false once TLS is already active")
	}

	sess.SetAuthenticated()
	if sess.CanSTLS() {
		t.Fatal("CanSTLS() = true, want false outside Authorization state")
	}
}

func TestSetAuthenticatedAlwaysSucceeds(t *testing.T) {
	sess := plainSession(false)
	sess.SetAuthenticated()
	if sess.State() != StateTransaction {
		t.Fatalf("State() = %v, want StateTransaction", sess.State())
	}
}

func TestEnterUpdateOnlyFromTransaction(t *testing.T) {
	sess := plainSession(false)
	sess.EnterUpdate()
	if sess.State() != StateAuthorization {
		t.Fatalf("EnterUpdate from Authorization changed state to %v", sess.State())
	}

	sess.SetAuthenticated()
	sess.EnterUpdate()
	if sess.State() != StateUpdate {
		t.Fatalf("State() = %v, want StateUpdate", sess.State())
	}
}

func TestIncrCommand(t *testing.T) {
	sess := plainSession(false)
	for i := 1; i <= 5; i++ {
		if got := sess.IncrCommand(); got != i {
			t.Fatalf("IncrCommand() = %d, want %d", got, i)
		}
	}
}

func TestMessageCountAndTotalSizeAreFixed(t *testing.T) {
	if MessageCount != 2 {
		t.Fatalf("MessageCount = %d, want 2", MessageCount)
	}
	want := len(fixedMessage(1)) + len(fixedMessage(2))
	if TotalSize != want {
		t.Fatalf("TotalSize = %d, want %d", TotalSize, want)
	}
}

func TestMessageBodyAndUIDLAreFixed(t *testing.T) {
	if got := MessageBody(1); got != fixedMessage(1) {
		t.Fatalf("MessageBody(1) = %q, want %q", got, fixedMessage(1))
	}
	if got := UIDL(1); got != "AAAAAAAA" {
		t.Fatalf("UIDL(1) = %q, want AAAAAAAA", got)
	}
	if got := UIDL(2); got != "BBBBBBBB" {
		t.Fatalf("UIDL(2) = %q, want BBBBBBBB", got)
	}
}
