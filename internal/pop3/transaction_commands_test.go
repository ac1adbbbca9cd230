package pop3

import (
	"context"
	"strings"
	"testing"

	"github.com/fhms-its/fakemaild/internal/config"
)

func authenticatedSession() *Session {
	sess := NewSession(config.DefaultPOP3Config(), func() bool { return false })
	sess.SetAuthenticated()
	return sess
}

func TestStatCommand(t *testing.T) {
	sess := authenticatedSession()
	resp, err := statCommand{}.Execute(context.Background(), sess, connLogger{}, nil)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	want := "2 92"
	if resp.Message != want {
		t.Fatalf("STAT message = %q, want %q", resp.Message, want)
	}
}

func TestStatCommandWrongState(t *testing.T) {
	sess := NewSession(config.DefaultPOP3Config(), func() bool { return false })
	resp, _ := statCommand{}.Execute(context.Background(), sess, connLogger{}, nil)
	if resp.OK {
		t.Fatal("STAT in Authorization state should fail")
	}
}

func TestListAllMessages(t *testing.T) {
	sess := authenticatedSession()
	resp, err := listCommand{}.Execute(context.Background(), sess, connLogger{}, nil)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if len(resp.Lines) != 2 {
		t.Fatalf("LIST returned %d lines, want 2", len(resp.Lines))
	}
	if resp.Lines[0] != "1 46" || resp.Lines[1] != "2 46" {
		t.Fatalf("LIST lines = %v, want [1 46, 2 46]", resp.Lines)
	}
}

func TestListSingleMessage(t *testing.T) {
	sess := authenticatedSession()
	resp, err := listCommand{}.Execute(context.Background(), sess, connLogger{}, []string{"1"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if resp.Message != "1 46" {
		t.Fatalf("LIST 1 message = %q, want %q", resp.Message, "1 46")
	}
}

func TestListUnknownMessage(t *testing.T) {
	sess := authenticatedSession()
	resp, _ := listCommand{}.Execute(context.Background(), sess, connLogger{}, []string{"3"})
	if resp.OK {
		t.Fatal("LIST 3 should fail: no such message")
	}
}

func TestRetrReturnsFixedFixture(t *testing.T) {
	sess := authenticatedSession()
	resp, err := retrCommand{}.Execute(context.Background(), sess, connLogger{}, []string{"2"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	got := resp.String()
	if !strings.Contains(got, "Hello, World 2!") {
		t.Fatalf("RETR body = %q, want it to contain fixture text", got)
	}
}

func TestTopReturnsSameFixtureAsRetr(t *testing.T) {
	sess := authenticatedSession()
	resp, err := topCommand{}.Execute(context.Background(), sess, connLogger{}, []string{"1", "0"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !strings.Contains(resp.String(), "Hello, World 1!") {
		t.Fatalf("TOP body = %q, want it to contain fixture text", resp.String())
	}
}

func TestTopRequiresTwoArgs(t *testing.T) {
	sess := authenticatedSession()
	resp, _ := topCommand{}.Execute(context.Background(), sess, connLogger{}, []string{"1"})
	if resp.OK {
		t.Fatal("TOP with one argument should fail")
	}
}

// TestDeleDoesNotAffectSubsequentCommands asserts spec.md's testable
// invariant: STAT/LIST/UIDL always report exactly two messages in
// Transaction state, regardless of any prior DELE.
func TestDeleDoesNotAffectSubsequentCommands(t *testing.T) {
	sess := authenticatedSession()
	resp, err := deleCommand{}.Execute(context.Background(), sess, connLogger{}, []string{"1"})
	if err != nil || !resp.OK {
		t.Fatalf("DELE 1 failed: resp=%v err=%v", resp, err)
	}

	statResp, _ := statCommand{}.Execute(context.Background(), sess, connLogger{}, nil)
	if statResp.Message != "2 92" {
		t.Fatalf("STAT after DELE = %q, want %q", statResp.Message, "2 92")
	}

	listResp, _ := listCommand{}.Execute(context.Background(), sess, connLogger{}, nil)
	if len(listResp.Lines) != 2 {
		t.Fatalf("LIST after DELE returned %d lines, want 2", len(listResp.Lines))
	}

	uidlResp, _ := uidlCommand{}.Execute(context.Background(), sess, connLogger{}, nil)
	if len(uidlResp.Lines) != 2 {
		t.Fatalf("UIDL after DELE returned %d lines, want 2", len(uidlResp.Lines))
	}
}

// TestDeleRepeatable asserts DELE can be sent for the same message any
// number of times, since it never mutates the fixture mailbox.
func TestDeleRepeatable(t *testing.T) {
	sess := authenticatedSession()
	if _, err := deleCommand{}.Execute(context.Background(), sess, connLogger{}, []string{"1"}); err != nil {
		t.Fatalf("first DELE error: %v", err)
	}
	resp, err := deleCommand{}.Execute(context.Background(), sess, connLogger{}, []string{"1"})
	if err != nil || !resp.OK {
		t.Fatalf("second DELE of the same message failed: resp=%v err=%v", resp, err)
	}
}

func TestNoopAlwaysSucceeds(t *testing.T) {
	sess := authenticatedSession()
	resp, err := noopCommand{}.Execute(context.Background(), sess, connLogger{}, nil)
	if err != nil || !resp.OK {
		t.Fatalf("NOOP failed: resp=%v err=%v", resp, err)
	}
}

func TestUidlAllAndSingle(t *testing.T) {
	sess := authenticatedSession()
	resp, err := uidlCommand{}.Execute(context.Background(), sess, connLogger{}, nil)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if len(resp.Lines) != 2 || resp.Lines[0] != "1 AAAAAAAA" || resp.Lines[1] != "2 BBBBBBBB" {
		t.Fatalf("UIDL lines = %v, want [1 AAAAAAAA, 2 BBBBBBBB]", resp.Lines)
	}

	single, err := uidlCommand{}.Execute(context.Background(), sess, connLogger{}, []string{"2"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if single.Message != "2 BBBBBBBB" {
		t.Fatalf("UIDL 2 message = %q, want %q", single.Message, "2 BBBBBBBB")
	}
}

func TestQuitTransitionsToUpdate(t *testing.T) {
	sess := authenticatedSession()
	if _, err := quitCommand{}.Execute(context.Background(), sess, connLogger{}, nil); err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if sess.State() != StateUpdate {
		t.Fatalf("State() after QUIT = %v, want StateUpdate", sess.State())
	}
}

