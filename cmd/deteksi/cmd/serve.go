package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rzqiy/deteksi-kwh/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the meter reading API",
	Long: `Start an HTTP server that provides REST API endpoints for meter reading.

The server provides the following endpoints:
  POST /api/process    - Run the cascade on uploaded meter photos
  POST /api/batch      - Download and process a billing period from the portal
  GET  /ws/batch       - Batch processing with live progress over WebSocket
  GET  /api/records    - List stored readings (all, unverified, sesuai, tidak)
  POST /api/verify     - Record a human verdict for one reading
  POST /api/verify/all - Record verdicts in bulk
  GET  /health         - Health check endpoint
  GET  /models         - List cascade models
  GET  /metrics        - Prometheus metrics

Examples:
  deteksi-kwh serve
  deteksi-kwh serve --port 5000
  deteksi-kwh serve --host 0.0.0.0 --port 3000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}

		maxUploadSize := cfg.Server.MaxUploadMB
		if cmd.Flags().Changed("max-upload-size") {
			v, _ := cmd.Flags().GetInt("max-upload-size")
			maxUploadSize = int64(v)
		}

		workDir := cfg.Server.WorkDir
		if cmd.Flags().Changed("work-dir") {
			workDir, _ = cmd.Flags().GetString("work-dir")
		}

		timeout, _ := cmd.Flags().GetInt("timeout")
		shutdownTimeout, _ := cmd.Flags().GetInt("shutdown-timeout")

		dbDriver := cfg.Database.Driver
		if cmd.Flags().Changed("db-driver") {
			dbDriver, _ = cmd.Flags().GetString("db-driver")
		}

		dbDSN := cfg.Database.DSN
		if cmd.Flags().Changed("db-dsn") {
			dbDSN, _ = cmd.Flags().GetString("db-dsn")
		}

		portalURL := cfg.Portal.BaseURL
		if cmd.Flags().Changed("portal-url") {
			portalURL, _ = cmd.Flags().GetString("portal-url")
		}

		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		serverConfig := server.Config{
			Host:           host,
			Port:           port,
			CORSOrigin:     corsOrigin,
			MaxUploadMB:    maxUploadSize,
			PipelineConfig: cfg.ToPipelineConfig(),
			StoreConfig:    cfg.ToStoreConfig(),
			PortalBaseURL:  portalURL,
			WorkDir:        workDir,
		}
		serverConfig.StoreConfig.Driver = dbDriver
		serverConfig.StoreConfig.DSN = dbDSN

		meterServer, err := server.NewServer(serverConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		defer func() { _ = meterServer.Close() }()

		mux := http.NewServeMux()
		meterServer.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(timeout) * time.Second,
			WriteTimeout:      time.Duration(timeout) * time.Second,
		}

		go func() {
			slog.Info("Starting meter reading server", "host", host, "port", port)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		slog.Info("Shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		slog.Info("Cleaning up server resources")
		if err := meterServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		} else {
			slog.Info("Server cleanup completed")
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "0.0.0.0", "server host")
	serveCmd.Flags().IntP("port", "p", 5000, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 300, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().String("work-dir", "uploads", "scratch directory for batch downloads")
	serveCmd.Flags().String("db-driver", "sqlite", "database driver (sqlite, mysql)")
	serveCmd.Flags().String("db-dsn", "", "database connection string")
	serveCmd.Flags().String("portal-url", "", "override billing portal photo URL")
}
