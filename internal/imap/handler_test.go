package imap

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/fhms-its/fakemaild/internal/config"
	"github.com/fhms-its/fakemaild/internal/mailbox"
	"github.com/fhms-its/fakemaild/internal/metrics"
	"github.com/fhms-its/fakemaild/internal/server"
	"github.com/fhms-its/fakemaild/internal/transport"
)

func testAccount() mailbox.Account {
	return mailbox.Account{Folders: []mailbox.Folder{
		{
			Name:        "INBOX",
			Flags:       []string{"\\Seen", "\\Answered", "\\Flagged", "\\Deleted", "\\Draft"},
			Sep:         "/",
			UIDValidity: 100,
			UIDNext:     3,
			Mails: []mailbox.Mail{
				mailbox.NewMail(1, "Subject: one\r\n\r\nbody one"),
				mailbox.NewMail(2, "Subject: two\r\n\r\nbody two"),
			},
		},
		{Name: "Sent", Sep: "/", UIDValidity: 200, UIDNext: 1},
	}}
}

func startSession(t *testing.T, cfg config.IMAPConfig) (*bufio.Reader, net.Conn, func()) {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	handler := Handler(cfg, testAccount(), &metrics.NoopCollector{})
	go handler(ctx, &server.Connection{Transport: transport.New(serverConn, false)})

	return bufio.NewReader(clientConn), clientConn, func() {
		cancel()
		clientConn.Close()
	}
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

func TestGreetingAndCapability(t *testing.T) {
	r, conn, done := startSession(t, config.DefaultIMAPConfig())
	defer done()

	greeting := readLine(t, r)
	if !strings.HasPrefix(greeting, "* OK") {
		t.Fatalf("greeting = %q, want \"* OK\" prefix", greeting)
	}

	conn.Write([]byte("a1 CAPABILITY\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "* CAPABILITY") {
		t.Fatalf("capability data = %q, want \"* CAPABILITY\" prefix", got)
	}
	if got := readLine(t, r); got != "a1 OK capability done." {
		t.Fatalf("capability tagged response = %q, want %q", got, "a1 OK capability done.")
	}
}

func TestLoginSelectFetchLogout(t *testing.T) {
	r, conn, done := startSession(t, config.DefaultIMAPConfig())
	defer done()

	readLine(t, r) // greeting

	conn.Write([]byte("a1 LOGIN alice secret\r\n"))
	if got := readLine(t, r); got != "a1 OK login done." {
		t.Fatalf("LOGIN response = %q, want %q", got, "a1 OK login done.")
	}

	conn.Write([]byte("a2 SELECT INBOX\r\n"))
	var selectLines []string
	for i := 0; i < 7; i++ {
		selectLines = append(selectLines, readLine(t, r))
	}
	if !strings.HasPrefix(selectLines[0], "* FLAGS") {
		t.Fatalf("first SELECT line = %q, want FLAGS", selectLines[0])
	}
	if selectLines[1] != "* 2 EXISTS" {
		t.Fatalf("SELECT EXISTS line = %q, want \"* 2 EXISTS\"", selectLines[1])
	}
	tagged := readLine(t, r)
	if !strings.HasPrefix(tagged, "a2 OK [READ-WRITE]") {
		t.Fatalf("SELECT tagged response = %q, want READ-WRITE code", tagged)
	}

	conn.Write([]byte("a3 FETCH 1 (UID FLAGS)\r\n"))
	fetchLine := readLine(t, r)
	if !strings.HasPrefix(fetchLine, "* 1 FETCH (UID 1 FLAGS (\\Recent))") {
		t.Fatalf("FETCH line = %q, want UID/FLAGS rendering", fetchLine)
	}
	if got := readLine(t, r); got != "a3 OK fetch done." {
		t.Fatalf("FETCH tagged response = %q, want %q", got, "a3 OK fetch done.")
	}

	conn.Write([]byte("a4 LOGOUT\r\n"))
	if got := readLine(t, r); got != "* BYE bye done." {
		t.Fatalf("LOGOUT untagged = %q, want %q", got, "* BYE bye done.")
	}
	if got := readLine(t, r); got != "a4 OK logout done." {
		t.Fatalf("LOGOUT tagged = %q, want %q", got, "a4 OK logout done.")
	}
}

func TestSelectUnknownFolder(t *testing.T) {
	r, conn, done := startSession(t, config.DefaultIMAPConfig())
	defer done()

	readLine(t, r) // greeting
	conn.Write([]byte("a1 LOGIN alice secret\r\n"))
	readLine(t, r)

	conn.Write([]byte("a2 SELECT Nonexistent\r\n"))
	if got := readLine(t, r); got != "a2 NO no such folder." {
		t.Fatalf("SELECT unknown folder = %q, want %q", got, "a2 NO no such folder.")
	}
}

func TestCommandNotAllowedBeforeAuthentication(t *testing.T) {
	r, conn, done := startSession(t, config.DefaultIMAPConfig())
	defer done()

	readLine(t, r) // greeting
	conn.Write([]byte("a1 SELECT INBOX\r\n"))
	if got := readLine(t, r); got != "a1 BAD SELECT not allowed." {
		t.Fatalf("SELECT before auth = %q, want %q", got, "a1 BAD SELECT not allowed.")
	}
}

func TestUnparseableLineGetsLaxFailureReply(t *testing.T) {
	r, conn, done := startSession(t, config.DefaultIMAPConfig())
	defer done()

	readLine(t, r) // greeting
	conn.Write([]byte("a1\r\n")) // tag only, no command name
	if got := readLine(t, r); got != "a1 OK keep going." {
		t.Fatalf("lax failure reply = %q, want %q", got, "a1 OK keep going.")
	}

	// the session must still be usable afterwards
	conn.Write([]byte("a2 NOOP\r\n"))
	if got := readLine(t, r); got != "a2 OK noop done." {
		t.Fatalf("NOOP after lax failure = %q, want %q", got, "a2 OK noop done.")
	}
}

func TestBlankLineGetsNoReply(t *testing.T) {
	r, conn, done := startSession(t, config.DefaultIMAPConfig())
	defer done()

	readLine(t, r) // greeting
	conn.Write([]byte("\r\na1 NOOP\r\n"))
	if got := readLine(t, r); got != "a1 OK noop done." {
		t.Fatalf("NOOP after blank line = %q, want %q", got, "a1 OK noop done.")
	}
}

func TestOverrideIgnoreAndHide(t *testing.T) {
	cfg := config.DefaultIMAPConfig()
	cfg.Override.IgnoreCommands = []string{"NOOP"}
	cfg.Override.HideCommands = []string{"CAPABILITY"}
	r, conn, done := startSession(t, cfg)
	defer done()

	readLine(t, r) // greeting
	conn.Write([]byte("a1 LOGIN alice secret\r\n"))
	readLine(t, r)

	conn.Write([]byte("h1 CAPABILITY\r\n"))
	if got := readLine(t, r); got != "h1 BAD unknown command." {
		t.Fatalf("hidden CAPABILITY = %q, want %q", got, "h1 BAD unknown command.")
	}

	conn.Write([]byte("a2 NOOP\r\na3 LOGOUT\r\n"))
	if got := readLine(t, r); got != "* BYE bye done." {
		t.Fatalf("LOGOUT after ignored NOOP = %q, want %q", got, "* BYE bye done.")
	}
}

func TestListCanonicalWildcard(t *testing.T) {
	r, conn, done := startSession(t, config.DefaultIMAPConfig())
	defer done()

	readLine(t, r) // greeting
	conn.Write([]byte("a1 LOGIN alice secret\r\n"))
	readLine(t, r)

	conn.Write([]byte("a2 LIST \"\" \"*\"\r\n"))
	var lines []string
	for {
		line := readLine(t, r)
		if strings.HasPrefix(line, "a2 ") {
			break
		}
		lines = append(lines, line)
	}
	if len(lines) != len(config.DefaultIMAPConfig().Folders) {
		t.Fatalf("LIST * returned %d lines, want %d", len(lines), len(config.DefaultIMAPConfig().Folders))
	}
}
