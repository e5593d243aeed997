package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pior/saori"
	"github.com/pior/saori/internal/config"
	"github.com/pior/saori/internal/logging"
	"github.com/pior/saori/internal/metrics"
	"github.com/pior/saori/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the module over a socket",
		Long: `Serve the module on the configured address. Each connection carries a
sequence of Shift_JIS encoded requests, each answered in turn.

Configuration comes from --config and SAORI_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	codec, err := saori.CodecByName(cfg.Module.Encoding)
	if err != nil {
		return err
	}

	moduleConfig := saori.Config{
		Codec:  codec,
		Strict: cfg.Module.Strict,
		Logger: logger.Named("module"),
	}
	if cfg.Breaker.Enabled {
		moduleConfig.NewCircuitBreaker = saori.NewCircuitBreakerConfig(
			cfg.Breaker.MaxRequests, cfg.Breaker.Interval, cfg.Breaker.Timeout)
	}

	serverConfig := server.Config{
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		MaxRequestBytes: cfg.Server.MaxRequestBytes,
		Logger:          logger.Named("server"),
	}

	if cfg.Metrics.Address != "" {
		exporter := metrics.NewExporter()
		moduleConfig.Observer = exporter.ModuleMetrics()
		serverConfig.ConnObserver = exporter.ModuleMetrics()

		mln, err := net.Listen("tcp", cfg.Metrics.Address)
		if err != nil {
			return err
		}
		logger.Info("serving metrics", zap.Stringer("addr", mln.Addr()))
		go func() {
			if err := exporter.Serve(ctx, mln); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	module := saori.NewModule(moduleConfig)
	if err := module.Load(cfg.Module.Dir); err != nil {
		return err
	}
	defer module.Unload()

	ln, err := net.Listen(cfg.Server.Network, cfg.Server.Address)
	if err != nil {
		return err
	}

	srv := server.New(module, serverConfig)
	err = srv.Serve(ctx, ln)
	if !errors.Is(err, server.ErrServerClosed) {
		srv.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown timed out, connections closed", zap.Error(err))
	}

	stats := module.Stats()
	logger.Info("stopped",
		zap.Uint64("requests", stats.Requests),
		zap.Uint64("internal_errors", stats.InternalErrors),
	)
	return nil
}
