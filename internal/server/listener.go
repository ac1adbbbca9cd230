package server

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"

	"github.com/fhms-its/fakemaild/internal/filter"
	"github.com/fhms-its/fakemaild/internal/logging"
	"github.com/fhms-its/fakemaild/internal/transport"
)

// ListenerConfig configures a single protocol listener. Reconstructed from
// its call-site contract in server.go (whose original source file is not
// present in the retrieval pack) and from original_source's
// accept_new_connection(&listener, &filter) peer-filter-gated accept shape.
type ListenerConfig struct {
	Protocol  string // "smtp", "pop3", "imap" — used for logging/metrics labels
	Address   string
	ImplicitTLS bool
	TLSConfig *tls.Config
	Filter    filter.Filter
	Limiter   *ConnectionLimiter
	Logger    *slog.Logger
	Handler   ConnectionHandler
}

// Listener accepts connections for a single protocol, gates them by the
// peer filter and connection limiter, and dispatches each to Handler on
// its own goroutine.
type Listener struct {
	cfg ListenerConfig
	ln  net.Listener
}

// NewListener creates a Listener bound to cfg.Address; the socket is
// opened lazily on Start.
func NewListener(cfg ListenerConfig) *Listener {
	return &Listener{cfg: cfg}
}

// Address returns the configured listen address.
func (l *Listener) Address() string { return l.cfg.Address }

// Start opens the listening socket and accepts connections until ctx is
// canceled or Close is called.
func (l *Listener) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.cfg.Address)
	if err != nil {
		return err
	}
	l.ln = ln

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	logger := l.cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return err
			}
		}

		peer := conn.RemoteAddr().String()
		if l.cfg.Filter.Rejects(peer) {
			logger.Debug("rejecting peer", slog.String("protocol", l.cfg.Protocol), slog.String("peer", peer))
			_ = conn.Close()
			continue
		}

		if l.cfg.Limiter != nil && !l.cfg.Limiter.TryAcquire(l.cfg.Protocol) {
			logger.Warn("connection limit reached",
				slog.String("protocol", l.cfg.Protocol),
				slog.Any("by_protocol", l.cfg.Limiter.ByProtocol()),
			)
			_ = conn.Close()
			continue
		}

		go l.serve(ctx, conn, logger)
	}
}

func (l *Listener) serve(ctx context.Context, raw net.Conn, logger *slog.Logger) {
	defer func() {
		if l.cfg.Limiter != nil {
			l.cfg.Limiter.Release(l.cfg.Protocol)
		}
		if r := recover(); r != nil {
			logger.Error("session panic recovered",
				slog.String("protocol", l.cfg.Protocol),
				slog.Any("panic", r),
			)
		}
	}()
	defer raw.Close()

	conn := raw
	if l.cfg.ImplicitTLS && l.cfg.TLSConfig != nil {
		conn = tls.Server(raw, l.cfg.TLSConfig)
	}
	t := transport.New(conn, l.cfg.ImplicitTLS)

	sessCtx := logging.WithLogger(ctx, logger.With(
		slog.String("protocol", l.cfg.Protocol),
		slog.String("peer", t.Peer()),
	))

	if l.cfg.Handler != nil {
		l.cfg.Handler(sessCtx, &Connection{Transport: t})
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	if l.ln != nil {
		return l.ln.Close()
	}
	return nil
}

// TLSConfig exposes the listener's TLS config for STARTTLS handlers.
func (l *Listener) TLSConfig() *tls.Config { return l.cfg.TLSConfig }
