package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sales-attribution-service/cmd/attributor/config"
	"sales-attribution-service/internal/attributor"
	"sales-attribution-service/internal/httpapi"
	"sales-attribution-service/pkg/errors"
	"sales-attribution-service/pkg/logger"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve attributions over HTTP",
	Long: `Serve starts an HTTP server exposing the attribution engine.

  GET  /healthz
  POST /v1/attributions[?format=json|xlsx|csv|markdown|html|console]

Matching settings (preset, threshold, workers, scorer, rules, owner-header) are read
from the config file or ATTRIBUTOR_* environment variables.

Examples:
  attributor serve --addr :8080
  ATTRIBUTOR_THRESHOLD=0.8 attributor serve`,

	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("addr", ":8080", "listen address")
	flags.Int64("max-body", httpapi.DefaultMaxBodyBytes, "maximum request body size in bytes")
	flags.Duration("request-timeout", 2*time.Minute, "per-request processing timeout")
	flags.Duration("shutdown-timeout", 15*time.Second, "graceful shutdown timeout")

	for _, name := range []string{"addr", "max-body", "request-timeout", "shutdown-timeout"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := loadSettings()
	attributorConfig, err := config.CreateAttributorConfig(s)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "serve", err.Error(), err)
	}

	log := logger.GetGlobalLogger()
	service, err := attributor.NewService(attributorConfig, log)
	if err != nil {
		return err
	}

	options := httpapi.DefaultOptions()
	options.MaxBodyBytes = viper.GetInt64("max-body")
	options.RequestTimeout = viper.GetDuration("request-timeout")
	options.OwnerHeader = attributorConfig.OwnerHeader

	server := &http.Server{
		Addr:              viper.GetString("addr"),
		Handler:           httpapi.NewServer(service, options, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("HTTP server listening")
		fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.InternalError(errors.CodeUnexpectedError, "http_server", err).
				WithSuggestion("check that the listen address is free").
				WithContext("addr", server.Addr)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("shutdown-timeout"))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "http_shutdown", err)
	}
	return nil
}
