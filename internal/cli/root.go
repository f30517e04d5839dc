// Package cli defines the employeedir commands: serve, bench and version.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/employee-directory/internal/app"
	"github.com/JakeFAU/employee-directory/internal/config"
	"github.com/JakeFAU/employee-directory/internal/logging"
)

// Version is set at build time.
var Version = "dev"

type appKeyType string

const appKey appKeyType = "app"

// factories builds the pieces the commands need. Tests swap them out.
type factories struct {
	loadConfig func(path string) (config.Config, error)
	newLogger  func(development bool) (*zap.Logger, error)
	newApp     func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error)
}

func defaultFactories() factories {
	return factories{
		loadConfig: config.Load,
		newLogger:  logging.New,
		newApp: func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
			return app.New(ctx, cfg, logger, app.Options{})
		},
	}
}

// NewRootCmd creates the root command with production wiring.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultFactories())
}

func newRootCmd(f factories) *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "employeedir",
		Short: "Employee directory API and search performance tool",
		Long: `employeedir serves the employee directory HTTP API and can run the
repeated "John Smith" search benchmark from the command line.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Builds the shared services before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			cfg, err := f.loadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := f.newLogger(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			a, err := f.newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	cmd.AddCommand(newServeCmd(), newBenchCmd(), newVersionCmd())
	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, errors.New("application services are not initialized")
	}
	return a, nil
}

// withApp resolves the shared services for run and closes them once run
// returns, including when it fails. Cobra post-run hooks do not fire on error.
func withApp(run func(cmd *cobra.Command, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := resolveApp(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp(cmd.Context(), a)
		return run(cmd, a)
	}
}

func closeApp(ctx context.Context, a *app.App) {
	if err := a.Close(context.WithoutCancel(ctx)); err != nil {
		a.Logger.Warn("error closing application services", zap.Error(err))
	}
	_ = a.Logger.Sync()
}

// Execute runs the root command until it finishes or the process receives
// SIGINT/SIGTERM, and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
