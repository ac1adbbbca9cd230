// Package transport implements the session connection abstraction:
// a plain TCP stream that can be upgraded in place to TLS and, after that,
// to TLS+DEFLATE, without the caller ever seeing the underlying stream
// change shape. Grounded on original_source's ConsolidatedStream/Dummy
// swap design; re-expressed with a mutex-guarded field swap since Go
// connections have a single owner and sessions are already serialized.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
)

// ErrAlreadyTLS is returned by UpgradeTLS on a connection already using TLS.
var ErrAlreadyTLS = errors.New("transport: connection already using TLS")

// ErrAlreadyCompressed is returned by UpgradeCompression when DEFLATE is
// already active.
var ErrAlreadyCompressed = errors.New("transport: compression already active")

// Transport wraps a net.Conn and tracks the monotonic is_tls/is_compression
// upgrade flags described by the spec. Reads and writes are routed through
// whichever stream is currently active.
type Transport struct {
	mu            sync.Mutex
	raw           net.Conn
	reader        io.Reader
	writer        io.Writer
	isTLS         bool
	isCompression bool
	peer          string
}

// New wraps an accepted connection. isTLS should be true for an implicit-TLS
// listener (e.g. IMAPS/POP3S/SMTPS).
func New(conn net.Conn, isTLS bool) *Transport {
	t := &Transport{
		raw:    conn,
		reader: conn,
		writer: conn,
		isTLS:  isTLS,
	}
	t.peer = conn.RemoteAddr().String()
	return t
}

// Peer returns the remote address string, used for peer filtering.
func (t *Transport) Peer() string { return t.peer }

// IsTLS reports whether TLS is currently active.
func (t *Transport) IsTLS() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isTLS
}

// IsCompression reports whether DEFLATE compression is currently active.
func (t *Transport) IsCompression() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isCompression
}

// Read implements io.Reader over whichever stream is currently active.
func (t *Transport) Read(p []byte) (int, error) {
	t.mu.Lock()
	r := t.reader
	t.mu.Unlock()
	return r.Read(p)
}

// Write implements io.Writer over whichever stream is currently active.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	w := t.writer
	t.mu.Unlock()
	return w.Write(p)
}

// SetReadDeadline forwards a read deadline to the underlying raw connection.
func (t *Transport) SetReadDeadline(d time.Time) error {
	return t.raw.SetReadDeadline(d)
}

// SetWriteDeadline forwards a write deadline to the underlying raw connection.
func (t *Transport) SetWriteDeadline(d time.Time) error {
	return t.raw.SetWriteDeadline(d)
}

// Close closes the underlying connection.
func (t *Transport) Close() error { return t.raw.Close() }

// UpgradeTLS performs a server-side TLS handshake over the raw connection
// using cfg (LoadTLSConfig builds one from a PKCS#12 file), and swaps the
// active stream to the negotiated TLS connection. It neither inspects nor
// logs bytes the caller has already read but not yet parsed: those stay in
// the caller's buffer, and the handshake reads only from the network.
func (t *Transport) UpgradeTLS(cfg *tls.Config) error {
	t.mu.Lock()
	if t.isTLS {
		t.mu.Unlock()
		return ErrAlreadyTLS
	}
	t.mu.Unlock()

	tlsConn := tls.Server(t.raw, cfg)
	if err := tlsConn.HandshakeContext(context.Background()); err != nil {
		return err
	}

	t.mu.Lock()
	t.reader = tlsConn
	t.writer = tlsConn
	t.isTLS = true
	t.mu.Unlock()
	return nil
}

// UpgradeCompression wraps the active stream in DEFLATE framing. Like the
// original, it can be layered on top of a TLS stream or a plain one.
func (t *Transport) UpgradeCompression() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isCompression {
		return ErrAlreadyCompressed
	}

	fr := flate.NewReader(bufio.NewReader(t.reader))
	fw, err := flate.NewWriter(t.writer, flate.DefaultCompression)
	if err != nil {
		return err
	}
	t.reader = fr
	t.writer = &flushingWriter{w: fw}
	t.isCompression = true
	return nil
}

// flushingWriter flushes the DEFLATE writer after every write, since
// stream-oriented protocols need each response to reach the peer
// immediately rather than sitting in the compressor's internal buffer.
type flushingWriter struct {
	w *flate.Writer
}

func (f *flushingWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err != nil {
		return n, err
	}
	return n, f.w.Flush()
}
