package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"diffkit/internal/handler"
	"diffkit/internal/hub"
	"diffkit/internal/service"
	"diffkit/internal/watcher"
)

var (
	serveAddr  string
	serveWatch string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog HTTP API",
	Long: `Serve the wavelength and catalog HTTP API with a server-sent event ` +
		`stream. With a watch directory, new .hspy and .blo files are ingested ` +
		`as they appear.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if serveWatch != "" {
			cfg.Watch.Dir = serveWatch
		}

		for _, line := range strings.Split(cfg.Summary(), "\n") {
			log.Info(line)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eventBus := service.NewEventBus()
		svc, closeCatalog, err := openCatalog(eventBus)
		if err != nil {
			return err
		}
		defer closeCatalog()

		sseHub := hub.New()
		go sseHub.Run(ctx)
		sseHub.Forward(ctx, eventBus)

		mux := http.NewServeMux()
		handler.Routes(mux, handler.NewCatalogHandler(svc), sseHub)

		server := &http.Server{
			Addr: cfg.Server.Addr,
			Handler: handler.Chain(mux,
				handler.Recover,
				handler.CORS,
				handler.Logger,
			),
			ReadTimeout: 10 * time.Second,
			IdleTimeout: 60 * time.Second,
		}

		if cfg.Watch.Dir != "" {
			w := watcher.New(cfg.Watch.Dir, func(path string) {
				if _, err := svc.Ingest(ctx, path); err != nil {
					log.WithError(err).WithField("path", path).Warn("failed to ingest watched file")
				}
			}).WithDebounce(cfg.Watch.Debounce.Duration())

			go func() {
				if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Error("watcher stopped")
				}
			}()
		}

		errc := make(chan error, 1)
		go func() {
			log.WithField("addr", cfg.Server.Addr).Info("server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :3000)")
	serveCmd.Flags().StringVar(&serveWatch, "watch", "", "directory to ingest new files from")
	rootCmd.AddCommand(serveCmd)
}
