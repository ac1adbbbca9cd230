// Command fakemaild runs a configurable adversarial fake mail server: one
// process standing up SMTP, POP3, and IMAP4rev1 session engines for MUA
// conformance and security testing. Flag parsing, TLS identity loading,
// signal-based graceful shutdown, and the metrics server goroutine are kept
// from infodancer-pop3d's cmd/pop3d/main.go, generalized from one
// listener/protocol to three.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fhms-its/fakemaild/internal/config"
	"github.com/fhms-its/fakemaild/internal/filter"
	"github.com/fhms-its/fakemaild/internal/imap"
	"github.com/fhms-its/fakemaild/internal/logging"
	"github.com/fhms-its/fakemaild/internal/mailbox"
	"github.com/fhms-its/fakemaild/internal/metrics"
	"github.com/fhms-its/fakemaild/internal/pop3"
	"github.com/fhms-its/fakemaild/internal/server"
	"github.com/fhms-its/fakemaild/internal/smtp"
	"github.com/fhms-its/fakemaild/internal/transport"
)

func main() {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		slog.Default().Error("loading configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Default().Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	account, err := mailbox.LoadAccount(cfg.Server.AccountDir, cfg.IMAP.Folders)
	if err != nil {
		logger.Error("loading account fixture", slog.String("error", err.Error()), slog.String("dir", cfg.Server.AccountDir))
		os.Exit(1)
	}

	var collector metrics.Collector = &metrics.NoopCollector{}
	var registry *prometheus.Registry
	if cfg.Server.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		collector = metrics.NewPrometheusCollector(registry)
	}

	srv := server.New(logger)

	// One limiter is shared across all three listeners: max_connections
	// bounds the whole process's connection count, not each protocol
	// independently.
	limiter := server.NewConnectionLimiter(cfg.Server.MaxConnections)

	if cfg.Server.SMTPAddress != "" {
		srv.AddListener(listenerConfig("smtp", cfg.Server.SMTPAddress, limiter, cfg.Server.Filter.ToFilter(),
			cfg.SMTP.ImplicitTLS, cfg.SMTP.PKCS12, smtp.Handler(cfg.SMTP, collector)))
	}
	if cfg.Server.POP3Address != "" {
		srv.AddListener(listenerConfig("pop3", cfg.Server.POP3Address, limiter, cfg.Server.Filter.ToFilter(),
			cfg.POP3.ImplicitTLS, cfg.POP3.PKCS12, pop3.Handler(cfg.POP3, collector)))
	}
	if cfg.Server.IMAPAddress != "" {
		srv.AddListener(listenerConfig("imap", cfg.Server.IMAPAddress, limiter, cfg.Server.Filter.ToFilter(),
			cfg.IMAP.ImplicitTLS, cfg.IMAP.PKCS12, imap.Handler(cfg.IMAP, account, collector)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsSrv *http.Server
	if cfg.Server.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Server.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Server.Metrics.Address, Handler: mux}
		go func() {
			logger.Info("starting metrics server", slog.String("address", cfg.Server.Metrics.Address))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited with error", slog.String("error", err.Error()))
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown", slog.String("error", err.Error()))
		}
	}
}

func listenerConfig(
	protocol, address string,
	limiter *server.ConnectionLimiter,
	peerFilter filter.Filter,
	implicitTLS bool,
	pkcs12Cfg *config.PKCS12Config,
	handler server.ConnectionHandler,
) server.ListenerConfig {
	var tlsConfig *tls.Config
	if implicitTLS && pkcs12Cfg != nil {
		tc, err := transport.LoadTLSConfig(transport.Identity{File: pkcs12Cfg.File, Password: pkcs12Cfg.Password})
		if err != nil {
			slog.Default().Error("loading TLS identity for implicit TLS listener",
				slog.String("protocol", protocol), slog.String("error", err.Error()))
		} else {
			tlsConfig = tc
		}
	}

	return server.ListenerConfig{
		Protocol:    protocol,
		Address:     address,
		ImplicitTLS: implicitTLS,
		TLSConfig:   tlsConfig,
		Filter:      peerFilter,
		Limiter:     limiter,
		Handler:     handler,
	}
}
