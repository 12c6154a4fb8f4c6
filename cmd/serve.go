package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/numsel/internal/adapters/httpapi"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(open appOpener) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the numbers over HTTP with a live event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := open(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			if addr == "" {
				addr = app.cfg.GetString(keyHTTPAddr)
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}

			return serveHTTP(ctx, app, ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default http.addr, :8080)")

	return cmd
}

// serveHTTP runs the API on ln until ctx is done. Request contexts derive
// from ctx so open event streams end on shutdown.
func serveHTTP(ctx context.Context, app *app, ln net.Listener) error {
	if err := app.ensureInitialized(ctx); err != nil {
		_ = ln.Close()
		return err
	}

	h := app.newHub()
	if err := h.Start(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("start sync: %w", err)
	}
	defer h.Close()

	limiter := httpapi.NewClientLimiter(app.cfg.GetFloat64(keyHTTPClaimRPS), app.cfg.GetInt(keyHTTPClaimBurst))
	limiter.StartJanitor(ctx)

	api, err := httpapi.NewServer(httpapi.Options{
		Reservations:       app.service,
		Channel:            h,
		Limiter:            limiter,
		Logger:             app.logger.Named("http"),
		Metrics:            app.metrics,
		MetricsSink:        app.metricsSink,
		TrustXForwardedFor: app.cfg.GetBool(keyHTTPTrustXFF),
	})
	if err != nil {
		_ = ln.Close()
		return err
	}

	srv := &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       90 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info("listening", "addr", ln.Addr().String(), "backend", app.cfg.GetString(keyStoreBackend), "total", app.service.Total())

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}

	app.logger.Info("server stopped")
	return nil
}
