package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"requestbin/internal/events"
	"requestbin/internal/proxy"
	"requestbin/internal/storage"
	"requestbin/internal/web"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bin server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path, cfg.StorageOptions())
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go storage.RunJanitor(ctx, store, cfg.Storage.CleanupInterval, logger)

		broker := events.NewBroker()
		servers := []*http.Server{{
			Addr:         cfg.Server.ListenAddr,
			Handler:      web.NewServer(store, broker, logger, web.WithMaxBodySize(cfg.Server.MaxBodySize)),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}}
		if cfg.Proxy.ListenAddr != "" {
			servers = append(servers, &http.Server{
				Addr:    cfg.Proxy.ListenAddr,
				Handler: proxy.New(store, cfg.Proxy.Bin, broker, logger),
			})
		}

		errc := make(chan error, len(servers))
		for _, srv := range servers {
			go func(srv *http.Server) {
				logger.Info("listening", "addr", srv.Addr, "backend", cfg.Storage.Backend)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
			}(srv)
		}

		select {
		case <-ctx.Done():
			logger.Info("shutting down")
		case err = <-errc:
			logger.Error("server failed", "error", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				logger.Error("shutdown", "addr", srv.Addr, "error", serr)
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
