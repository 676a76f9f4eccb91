package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/product-match/internal/api"
	"github.com/sells-group/product-match/internal/config"
)

var (
	servePort    int
	serveCatalog string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP matching API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if serveCatalog != "" {
			cfg.Server.CatalogFile = serveCatalog
		}

		env, err := initEngine(ctx, cfg, config.ModeServe)
		if err != nil {
			return err
		}
		defer env.Close()

		// The default catalog is optional; requests may carry their own.
		opts := api.Options{
			Defaults:    env.Options,
			Research:    env.Research,
			Metrics:     env.Recorder.Handler(),
			CORSOrigins: cfg.Server.CORSOrigins,
		}
		if cfg.Server.CatalogFile != "" {
			catalog, err := loadCatalog(cfg.Server.CatalogFile)
			if err != nil {
				return err
			}
			opts.Catalog = catalog
		}
		server := api.NewServer(env.Engine, opts)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveCatalog, "catalog", "", "default catalog file (default from config)")
	rootCmd.AddCommand(serveCmd)
}
