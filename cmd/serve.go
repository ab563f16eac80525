package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docparse/internal/api"
	"docparse/internal/logger"
	"docparse/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the document parsing HTTP API",
	Long: `Start the HTTP API on HTTP_ADDR (default :8080).

Routes live under /api/v1: health, upload, ocr, docai/config, docai/parse,
docai/parse/batch, pipeline, pipeline/{id}/status and results/{id}.
Prometheus metrics are served on /metrics.`,
	Example: `  docparse serve
  docparse serve --addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: HTTP_ADDR)")
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "Grace period for in-flight requests")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("server")

	addr, _ := cmd.Flags().GetString("addr")
	shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")

	reg, err := openRegistry(context.Background())
	if err != nil {
		return err
	}
	defer func() {
		if err := reg.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close clients")
		}
	}()

	if addr == "" {
		addr = reg.Config.HTTPAddr
	}

	opts := []api.Option{
		api.WithConfig(reg.Config),
		api.WithVersion(version),
	}
	if reg.OCR != nil {
		opts = append(opts, api.WithOCR(reg.OCR))
	}
	if reg.Stager != nil {
		opts = append(opts, api.WithStager(reg.Stager))
	}
	handler := api.NewHandler(pipeline.New(reg), opts...)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 15 * time.Second,
		// Pipeline runs are synchronous and can take minutes.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Str("version", version).
			Bool("docai", reg.DocAI != nil).
			Bool("ocr", reg.OCR != nil).
			Bool("staging", reg.Stager != nil).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exited")
	return nil
}
