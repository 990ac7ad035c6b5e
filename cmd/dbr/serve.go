package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rnwolf/dbr/internal/clock"
	"github.com/rnwolf/dbr/internal/config"
	"github.com/rnwolf/dbr/internal/events"
	"github.com/rnwolf/dbr/internal/hooks"
	"github.com/rnwolf/dbr/internal/scheduling"
	"github.com/rnwolf/dbr/internal/server"
	"github.com/rnwolf/dbr/internal/store"
	"github.com/rnwolf/dbr/internal/store/memory"
	"github.com/rnwolf/dbr/internal/store/sqlstore"
	dbrsync "github.com/rnwolf/dbr/internal/sync"
)

// openStore opens the store named by DBR_DATABASE_URL.
func openStore(cfg *config.Config) (store.Store, error) {
	kind, dsn, err := cfg.Database()
	if err != nil {
		return nil, err
	}
	switch kind {
	case config.DatabasePostgres:
		return sqlstore.OpenPostgres(dsn)
	case config.DatabaseSQLite:
		return sqlstore.OpenSQLite(dsn)
	default:
		return memory.New(), nil
	}
}

// syncDestinations builds the backup destinations enabled in cfg.
func syncDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []dbrsync.Destination {
	var dests []dbrsync.Destination
	if cfg.SyncS3Bucket != "" {
		s3Dest, err := dbrsync.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync destination enabled", "destination", s3Dest.Name())
		}
	}
	if cfg.SyncGitRepo != "" {
		gitDest := dbrsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch)
		dests = append(dests, gitDest)
		logger.Info("sync destination enabled", "destination", gitDest.Name())
	}
	return dests
}

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the scheduling server (gRPC and HTTP)",
	GroupID: "system",
	// The server is the other end of the client connection.
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := cfg.NewLogger(os.Stderr)
		slog.SetDefault(logger)

		st, err := openStore(cfg)
		if err != nil {
			return err
		}

		var publisher events.Publisher = events.NoopPublisher{}
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			logger.Info("events disabled (DBR_NATS_URL not set)")
		}

		start := cfg.ClockStart
		if start.IsZero() {
			start = time.Now().UTC()
		}
		clk := clock.NewLogical(start, cfg.TimeUnit)
		engine := scheduling.New(st, clk, scheduling.WithLogger(logger))
		dbrServer := server.New(st, engine, publisher, server.WithLogger(logger))
		grpcServer := server.NewGRPCServer(dbrServer)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			st.Close()
			return fmt.Errorf("listening on %s: %w", cfg.GRPCAddr, err)
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           dbrServer.NewHTTPHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		var syncCancel context.CancelFunc
		syncDone := make(chan struct{})
		if cfg.SyncInterval > 0 {
			if dests := syncDestinations(cmd.Context(), cfg, logger); len(dests) > 0 {
				scheduler := dbrsync.NewScheduler(st, dests, cfg.SyncInterval, logger)
				var syncCtx context.Context
				syncCtx, syncCancel = context.WithCancel(context.Background())
				go func() {
					defer close(syncDone)
					scheduler.Run(syncCtx)
				}()
				logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
			}
		}

		// Transition hooks ride the bus, so they need NATS.
		var hooksCancel context.CancelFunc
		if len(cfg.Hooks) > 0 {
			if cfg.NATSURL == "" {
				logger.Warn("transition hooks configured but DBR_NATS_URL not set; hooks disabled")
			} else if hooksSub, err := events.NewNATSSubscriber(cfg.NATSURL); err != nil {
				logger.Error("failed to create hooks subscriber", "err", err)
			} else {
				hooksHandler := hooks.NewHandler(cfg.Hooks, cfg.HookTimeout, logger)
				var hooksCtx context.Context
				hooksCtx, hooksCancel = context.WithCancel(context.Background())
				go func() {
					if err := hooksHandler.StartSubscriber(hooksCtx, hooksSub); err != nil {
						logger.Error("hooks subscriber error", "err", err)
					}
					hooksSub.Close()
				}()
			}
		}

		logger.Info("dbr server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"clock", clk.Now(),
			"time_unit", cfg.TimeUnit,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if hooksCancel != nil {
			hooksCancel()
			logger.Info("hooks subscriber stopped")
		}

		if syncCancel != nil {
			syncCancel()
			<-syncDone
			logger.Info("sync scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
