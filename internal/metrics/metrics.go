// Package metrics provides interfaces and implementations for collecting
// fake mail server metrics across all three protocol engines. This package
// defines the Collector interface for recording metrics and the Server
// interface for exposing them, generalized from infodancer-pop3d's
// POP3-only Collector with a protocol label.
package metrics

import "context"

// Collector defines the interface for recording per-protocol server
// metrics. protocol is one of "smtp", "pop3", "imap".
type Collector interface {
	// Connection metrics
	ConnectionOpened(protocol string)
	ConnectionClosed(protocol string)
	TLSConnectionEstablished(protocol string)
	CompressionEstablished(protocol string)

	// Authentication metrics. Credentials are never validated; success is
	// false only for a POP3 PASS that is refused (sent outside
	// Authorization or before USER), and the label keeps the metric shape
	// uniform with a real server's.
	AuthAttempt(protocol string, mechanism string, success bool)

	// Command metrics
	CommandProcessed(protocol string, command string)

	// Override-layer metrics
	CommandIgnored(protocol string, command string)
	CommandHidden(protocol string, command string)
	CommandOverridden(protocol string, command string)
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}
