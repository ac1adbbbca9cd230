package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Server coordinates the SMTP/POP3/IMAP listeners of a single fakemaild
// process. Kept in spirit from infodancer-pop3d's internal/server/server.go,
// generalized from one POP3-only listener list to an arbitrary set of
// per-protocol listeners supplied by the caller.
type Server struct {
	logger *slog.Logger

	listeners []*Listener
	mu        sync.Mutex
}

// New creates a Server. logger may be nil, in which case slog.Default() is used.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger}
}

// AddListener registers a listener to be started by Run. Must be called
// before Run.
func (s *Server) AddListener(cfg ListenerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Logger == nil {
		cfg.Logger = s.logger
	}
	s.listeners = append(s.listeners, NewListener(cfg))
}

// Run starts all registered listeners and blocks until the context is
// cancelled. All listeners run in their own goroutines.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	listeners := append([]*Listener(nil), s.listeners...)
	s.mu.Unlock()

	s.logger.Info("starting server", slog.Int("listener_count", len(listeners)))

	var wg sync.WaitGroup
	errChan := make(chan error, len(listeners))

	for _, l := range listeners {
		wg.Add(1)
		go func(listener *Listener) {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil && err != context.Canceled {
				errChan <- fmt.Errorf("listener %s: %w", listener.Address(), err)
			}
		}(l)
	}

	<-ctx.Done()
	s.logger.Info("server shutting down")

	s.Shutdown()
	wg.Wait()

	close(errChan)
	var firstErr error
	for err := range errChan {
		if firstErr == nil {
			firstErr = err
		}
		s.logger.Error("listener error", slog.String("error", err.Error()))
	}

	s.logger.Info("server stopped")

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// Shutdown closes all listeners' sockets without waiting for in-flight
// sessions to finish.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listeners {
		_ = l.Close()
	}
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}
