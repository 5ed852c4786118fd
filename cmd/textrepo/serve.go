package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vault-md/textrepo/internal/logging"
	"github.com/vault-md/textrepo/internal/metrics"
	"github.com/vault-md/textrepo/internal/usecase"
)

func newServeCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep the index warm and push edit batches until interrupted",
		Long:  "Pre-warm the index, run the idle flush ticker, and optionally expose Prometheus metrics. SIGINT or SIGTERM triggers a final flush.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				settings.MetricsAddr = metricsAddr
			}
			logger := logging.Named("serve")

			r, err := usecase.Open(settings, usecase.Options{Logger: logging.L()})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r.Index.Prewarm(ctx)
			r.Sync.Start(ctx)

			var srv *http.Server
			if settings.MetricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				srv = &http.Server{
					Addr:              settings.MetricsAddr,
					Handler:           mux,
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics server failed", zap.Error(err))
					}
				}()
				logger.Info("metrics listening", zap.String("addr", settings.MetricsAddr))
			}

			logger.Info("serving",
				zap.String("repo", r.Git.Dir()),
				zap.String("branch", settings.Branch),
				zap.Duration("push_delay", settings.PushDelay.Duration),
			)
			<-ctx.Done()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if srv != nil {
				_ = srv.Shutdown(shutdownCtx)
			}
			err = r.Close(shutdownCtx)
			_ = logging.Sync()
			return err
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address for the Prometheus endpoint (overrides metrics_addr)")

	return cmd
}
