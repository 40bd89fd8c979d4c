package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lehigh-university-libraries/aidalocal/internal/annotations"
	"github.com/lehigh-university-libraries/aidalocal/internal/catalog"
	"github.com/lehigh-university-libraries/aidalocal/internal/handlers"
	"github.com/lehigh-university-libraries/aidalocal/internal/netaddr"
	"github.com/lehigh-university-libraries/aidalocal/internal/storage"
	"github.com/spf13/cobra"
)

func newServeCmd(s *settings) *cobra.Command {
	var port int
	var staticDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the image and annotation server",
		Long: `Starts the HTTP server the AIDA viewer talks to.

Endpoints:
  POST /save             store an annotation document
  POST /checkForImages   rebuild the image catalog (images.json)
  GET  /images/...       source images
  GET  /annotations/...  annotation documents and raster layers (never cached)`,
		Example: `  # Start server on default port 3000 with ./data
  aidalocal serve

  # Serve a built viewer and a different data directory
  aidalocal serve --data /srv/aida --static ./dist --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := s.cfg
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("static") {
				cfg.StaticDir = staticDir
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			layout := storage.New(cfg.DataDir)
			if err := layout.EnsureDirs(); err != nil {
				return err
			}

			builder, err := catalog.NewBuilder(layout.ImagesDir(), cfg.Catalog.Exclude)
			if err != nil {
				return err
			}
			resolver := netaddr.New(cfg.PublicHost)

			handler := handlers.New(handlers.Options{
				Layout:       layout,
				Catalog:      builder,
				Saver:        annotations.NewPersister(layout, resolver, cfg.Port),
				MaxBodyBytes: cfg.MaxBodyBytes,
				StaticDir:    cfg.StaticDir,
			})

			addr := ":" + strconv.Itoa(cfg.Port)
			server := &http.Server{
				Addr:    addr,
				Handler: handler.Routes(),
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				logListening(cmd.Context(), resolver, cfg.Port, layout.Root())
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 3000, "Port to listen on")
	cmd.Flags().StringVar(&staticDir, "static", "", "Directory containing the built viewer to serve at /")

	return cmd
}

// logListening reports where the server can be reached. Saves that carry
// raster layers need the network address, so a failure is logged as a warning.
func logListening(ctx context.Context, resolver netaddr.Resolver, port int, dataDir string) {
	local := "http://localhost:" + strconv.Itoa(port) + "/"
	host, err := resolver.Resolve(ctx)
	if err != nil {
		slog.Warn("No network address found; saving raster layers will fail", "err", err)
		slog.Info("AIDA running", "local", local, "data", dataDir)
		return
	}
	slog.Info("AIDA running", "local", local, "network", "http://"+host+":"+strconv.Itoa(port)+"/", "data", dataDir)
}
