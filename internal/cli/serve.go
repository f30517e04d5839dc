package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/employee-directory/internal/api"
	"github.com/JakeFAU/employee-directory/internal/app"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: withApp(func(cmd *cobra.Command, a *app.App) error {
			ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.Config.Server.Port))
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			server := api.NewServer(a.Store, a.Search, a.Reporter, a.Config, a.Logger)
			return serve(cmd.Context(), ln, server.Handler(), a.Logger)
		}),
	}
}

// serve runs srv on ln until ctx ends, then shuts down gracefully. Open
// performance streams see their request contexts cancelled.
func serve(ctx context.Context, ln net.Listener, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
