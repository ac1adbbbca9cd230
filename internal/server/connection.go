package server

import (
	"context"

	"github.com/fhms-its/fakemaild/internal/transport"
)

// Connection is a single accepted connection handed to a ConnectionHandler.
// It wraps the transport so handlers can check/upgrade TLS and compression
// state without reaching into net.Conn directly.
type Connection struct {
	*transport.Transport
}

// ConnectionHandler processes one connection end-to-end; it returns when
// the session is over (EOF, terminal protocol state, or command cap).
type ConnectionHandler func(ctx context.Context, conn *Connection)
