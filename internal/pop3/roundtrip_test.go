package pop3

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/fhms-its/fakemaild/internal/config"
	"github.com/fhms-its/fakemaild/internal/metrics"
	"github.com/fhms-its/fakemaild/internal/server"
	"github.com/fhms-its/fakemaild/internal/transport"
)

// startSession wires Handler over an in-memory net.Pipe and returns a
// buffered reader/writer pair for the client side.
func startSession(t *testing.T, cfg config.POP3Config) (*bufio.Reader, net.Conn, func()) {
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

func TestRoundtripGreetingAndUserPass(t *testing.T) {
	r, conn, done := startSession(t, config.DefaultPOP3Config())
	defer done()

	greeting := readLine(t, r)
	if !strings.HasPrefix(greeting, "+OK") {
		t.Fatalf("greeting = %q, want +OK prefix", greeting)
	}

	conn.Write([]byte("USER alice\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "+OK") {
		t.Fatalf("USER response = %q, want +OK prefix", got)
	}

	conn.Write([]byte("PASS anything\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "+OK") {
		t.Fatalf("PASS response = %q, want +OK prefix", got)
	}

	conn.Write([]byte("STAT\r\n"))
	if got := readLine(t, r); got != "+OK 2 92" {
		t.Fatalf("STAT response = %q, want %q", got, "+OK 2 92")
	}

	conn.Write([]byte("QUIT\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "+OK") {
		t.Fatalf("QUIT response = %q, want +OK prefix", got)
	}
}

func TestRoundtripRetrReturnsFixture(t *testing.T) {
	r, conn, done := startSession(t, config.DefaultPOP3Config())
	defer done()

	readLine(t, r) // greeting
	conn.Write([]byte("USER alice\r\nPASS x\r\n"))
	readLine(t, r) // USER
	readLine(t, r) // PASS

	conn.Write([]byte("RETR 1\r\n"))
	status := readLine(t, r)
	if !strings.HasPrefix(status, "+OK") {
		t.Fatalf("RETR status = %q, want +OK prefix", status)
	}
	var body []string
	for {
		line := readLine(t, r)
		if line == "." {
			break
		}
		body = append(body, line)
	}
	joined := strings.Join(body, "\r\n")
	if !strings.Contains(joined, "Hello, World 1!") {
		t.Fatalf("RETR body = %q, want it to contain fixture text", joined)
	}
}

func TestRoundtripIgnoreAndHideOverrides(t *testing.T) {
	cfg := config.DefaultPOP3Config()
	cfg.Override.IgnoreCommands = []string{"NOOP"}
	cfg.Override.HideCommands = []string{"RSET"}
	r, conn, done := startSession(t, cfg)
	defer done()

	readLine(t, r) // greeting
	conn.Write([]byte("USER a\r\nPASS b\r\n"))
	readLine(t, r)
	readLine(t, r)

	// NOOP is ignored: no response, but the connection stays alive, proven
	// by STAT still answering right after.
	conn.Write([]byte("NOOP\r\nSTAT\r\n"))
	if got := readLine(t, r); got != "+OK 2 92" {
		t.Fatalf("STAT after ignored NOOP = %q, want %q", got, "+OK 2 92")
	}

	conn.Write([]byte("RSET\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "-ERR") {
		t.Fatalf("hidden RSET response = %q, want -ERR prefix", got)
	}
}

func TestRoundtripCommandCap(t *testing.T) {
	cfg := config.DefaultPOP3Config()
	r, conn, done := startSession(t, cfg)
	defer done()

	readLine(t, r) // greeting
	for i := 0; i < maxCommands; i++ {
		conn.Write([]byte("NOOP\r\n"))
		readLine(t, r)
	}
	conn.Write([]byte("NOOP\r\n"))
	if got := readLine(t, r); !strings.Contains(got, "too many commands") {
		t.Fatalf("over-cap response = %q, want too-many-commands error", got)
	}

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 16)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected connection to be closed after exceeding command cap")
	}
}
