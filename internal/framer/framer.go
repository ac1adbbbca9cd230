// Package framer implements the incremental read/send loop shared by all
// three protocol engines, grounded on original_source's Splitter trait:
// parse what's buffered, and if it isn't a complete message yet, read a
// little more and try again.
package framer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fhms-its/fakemaild/internal/wire"
)

const (
	readChunk      = 2048
	readTimeout    = time.Second
	writeTimeout   = time.Second
)

// Deadliner is the subset of Transport the framer needs for timeouts.
type Deadliner interface {
	io.Reader
	io.Writer
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

// ParseFunc attempts to parse a complete message out of buf. It returns
// the number of bytes consumed, the parsed value (meaningful only when
// outcome is wire.OK), and the outcome.
type ParseFunc[T any] func(buf []byte) (consumed int, value T, outcome wire.Outcome)

// Framer buffers bytes read from a Deadliner and parses complete messages
// out of the buffer as they arrive, calling an IncompleteHook before each
// additional read (IMAP uses this to send literal continuations).
type Framer struct {
	conn           Deadliner
	logger         *slog.Logger
	buf            bytes.Buffer
	IncompleteHook func(buffered []byte)
}

// New creates a Framer reading from and writing to conn.
func New(conn Deadliner, logger *slog.Logger) *Framer {
	return &Framer{conn: conn, logger: logger}
}

// SendRaw writes b with a write deadline, then flushes by virtue of the
// underlying transport always flushing compression buffers on Write. The
// payload is logged at debug level in escaped form.
func (f *Framer) SendRaw(b []byte) error {
	if err := f.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if f.logger != nil {
		f.logger.Debug("send", slog.String("payload", wire.EscapeForLog(b)))
	}
	_, err := f.conn.Write(b)
	return err
}

// Recv parses the next complete message of type T from the connection,
// reading additional bytes as needed. It returns an error on EOF, timeout,
// or unrecoverable parse failure; only a parse failure also returns the
// unparsed bytes it drained from the buffer (the second result is nil
// otherwise).
func Recv[T any](ctx context.Context, f *Framer, parse ParseFunc[T]) (T, []byte, error) {
	var zero T
	for {
		consumed, value, outcome := parse(f.buf.Bytes())
		switch outcome {
		case wire.OK:
			all := f.buf.Bytes()
			rest := append([]byte(nil), all[consumed:]...)
			f.buf.Reset()
			f.buf.Write(rest)
			return value, nil, nil
		case wire.Fail:
			flushed := append([]byte(nil), f.buf.Bytes()...)
			f.buf.Reset()
			return zero, flushed, fmt.Errorf("framer: parse failure")
		}

		if f.IncompleteHook != nil {
			f.IncompleteHook(f.buf.Bytes())
		}

		if err := f.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return zero, nil, err
		}
		chunk := make([]byte, readChunk)
		n, err := f.conn.Read(chunk)
		if n > 0 {
			f.buf.Write(chunk[:n])
		}
		if err != nil {
			return zero, nil, err
		}
		select {
		case <-ctx.Done():
			return zero, nil, ctx.Err()
		default:
		}
	}
}
