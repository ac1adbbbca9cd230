package smtp

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/fhms-its/fakemaild/internal/config"
	"github.com/fhms-its/fakemaild/internal/metrics"
	"github.com/fhms-its/fakemaild/internal/server"
	"github.com/fhms-its/fakemaild/internal/transport"
)

func startSession(t *testing.T, cfg config.SMTPConfig) (*bufio.Reader, net.Conn, func()) {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	handler := Handler(cfg, &metrics.NoopCollector{})
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

func TestGreetingAndEhlo(t *testing.T) {
	r, conn, done := startSession(t, config.DefaultSMTPConfig())
	defer done()

	greeting := readLine(t, r)
	if !strings.HasPrefix(greeting, "220") {
		t.Fatalf("greeting = %q, want 220 prefix", greeting)
	}

	conn.Write([]byte("EHLO client.example\r\n"))
	var lines []string
	for {
		line := readLine(t, r)
		lines = append(lines, line)
		if strings.HasPrefix(line, "250 ") {
			break
		}
	}
	if len(lines) == 0 {
		t.Fatal("EHLO produced no response lines")
	}
}

func TestMailRcptDataRoundtrip(t *testing.T) {
	r, conn, done := startSession(t, config.DefaultSMTPConfig())
	defer done()

	readLine(t, r) // greeting
	conn.Write([]byte("HELO client\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "250") {
		t.Fatalf("HELO response = %q, want 250 prefix", got)
	}

	conn.Write([]byte("MAIL FROM:<a@example.com>\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "250") {
		t.Fatalf("MAIL response = %q, want 250 prefix", got)
	}

	conn.Write([]byte("RCPT TO:<b@example.com>\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "250") {
		t.Fatalf("RCPT response = %q, want 250 prefix", got)
	}

	conn.Write([]byte("DATA\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "354") {
		t.Fatalf("DATA response = %q, want 354 prefix", got)
	}
	conn.Write([]byte("Subject: test\r\n\r\nbody\r\n.\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "250") {
		t.Fatalf("post-DATA response = %q, want 250 prefix", got)
	}

	conn.Write([]byte("QUIT\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "221") {
		t.Fatalf("QUIT response = %q, want 221 prefix", got)
	}
}

func TestUnimplementedCommandsReplyInsteadOfCrashing(t *testing.T) {
	r, conn, done := startSession(t, config.DefaultSMTPConfig())
	defer done()

	readLine(t, r) // greeting
	for _, cmd := range []string{"RSET", "VRFY x", "EXPN x", "HELP"} {
		conn.Write([]byte(cmd + "\r\n"))
		if got := readLine(t, r); !strings.HasPrefix(got, "502") {
			t.Fatalf("%s response = %q, want 502 prefix", cmd, got)
		}
	}
}

func TestAuthPlainInlineLogsAndSucceeds(t *testing.T) {
	r, conn, done := startSession(t, config.DefaultSMTPConfig())
	defer done()

	readLine(t, r) // greeting
	conn.Write([]byte("AUTH PLAIN AGFsaWNlAHNlY3JldA==\r\n")) // \0alice\0secret
	if got := readLine(t, r); !strings.HasPrefix(got, "235") {
		t.Fatalf("AUTH PLAIN response = %q, want 235 prefix", got)
	}
}

func TestOverrideIgnoreAndHide(t *testing.T) {
	cfg := config.DefaultSMTPConfig()
	cfg.Override.IgnoreCommands = []string{"NOOP"}
	cfg.Override.HideCommands = []string{"VRFY"}
	r, conn, done := startSession(t, cfg)
	defer done()

	readLine(t, r) // greeting
	conn.Write([]byte("NOOP\r\nHELO x\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "250") {
		t.Fatalf("HELO after ignored NOOP = %q, want 250 prefix", got)
	}

	conn.Write([]byte("VRFY someone\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "502") {
		t.Fatalf("hidden VRFY response = %q, want 502 prefix", got)
	}
}
