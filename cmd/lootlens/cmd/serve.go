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

	"github.com/spf13/cobra"

	"github.com/lootlens/lootlens/internal/ocr"
	"github.com/lootlens/lootlens/internal/pipeline"
	"github.com/lootlens/lootlens/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP detection API server",
	Long: `Start an HTTP server exposing the detection pipeline.

The server provides the following endpoints:
  POST /api/v1/detect      - Recognize entities in an uploaded screenshot
  GET  /api/v1/strategy    - Read the active strategy
  PUT  /api/v1/strategy    - Switch strategy preset
  GET  /api/v1/strategies  - List presets
  GET  /api/v1/corrections - Export the correction ledger
  POST /api/v1/corrections - Import corrections or record one
  GET  /healthz            - Health check
  GET  /metrics            - Prometheus metrics
  GET  /ws/batch           - WebSocket batch detection with progress

Examples:
  lootlens serve
  lootlens serve --port 8080
  lootlens serve --host 0.0.0.0 --port 3000`,
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
		maxUploadMB := cfg.Server.MaxUploadMB
		if cmd.Flags().Changed("max-upload-size") {
			maxUploadMB, _ = cmd.Flags().GetInt("max-upload-size")
		}
		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}
		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}

		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}

		pCfg := pipeline.DefaultConfig()
		pCfg.CatalogPath = cfg.CatalogPath
		pCfg.StrategyName = cfg.Pipeline.Strategy
		pCfg.OCR = ocr.TesseractConfig{
			Language: cfg.Pipeline.OCR.Language,
			DataPath: cfg.Pipeline.OCR.DataPath,
		}
		pCfg.CacheTTL = cfg.CacheTTL()
		pCfg.CleanupInterval = cfg.CleanupInterval()
		pCfg.Timeout = cfg.OCRTimeout()
		pCfg.MaxRetries = cfg.Pipeline.OCR.MaxRetries

		serverConfig := server.Config{
			Host:           host,
			Port:           port,
			CORSOrigin:     corsOrigin,
			MaxUploadMB:    int64(maxUploadMB),
			TimeoutSec:     timeout,
			PipelineConfig: pCfg,
		}

		if enabled, _ := cmd.Flags().GetBool("rate-limit-enabled"); enabled {
			rpm, _ := cmd.Flags().GetInt("requests-per-minute")
			dataPerDay, _ := cmd.Flags().GetInt64("max-data-per-day")
			serverConfig.RateLimit = &server.RateLimitConfig{
				RequestsPerMinute: rpm,
				MaxDataPerDay:     dataPerDay,
			}
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		detectionServer, err := server.NewServer(serverConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		defer func() { _ = detectionServer.Close() }()

		mux := http.NewServeMux()
		detectionServer.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(timeout) * time.Second,
			WriteTimeout:      time.Duration(timeout) * time.Second,
		}

		go func() {
			slog.Info("Starting detection server", "host", host, "port", port)
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

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		slog.Info("Shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}

		if err := detectionServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int64("max-data-per-day", 100*1024*1024, "maximum upload bytes per day per client")
}
