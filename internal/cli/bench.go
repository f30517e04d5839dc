package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/employee-directory/internal/app"
	"github.com/JakeFAU/employee-directory/internal/perf"
)

func newBenchCmd() *cobra.Command {
	var queries int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the repeated search benchmark and print each event as a JSON line",
		RunE: withApp(func(cmd *cobra.Command, a *app.App) error {
			if !cmd.Flags().Changed("queries") {
				queries = a.Config.Perf.DefaultQueries
			}
			// Cancelling on return stops the producer if the output fails.
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			run, err := a.Reporter.Start(ctx, queries)
			if err != nil {
				return fmt.Errorf("start run: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			var last perf.Event
			for evt := range run.Events {
				if err := enc.Encode(evt); err != nil {
					return fmt.Errorf("write event: %w", err)
				}
				last = evt
			}

			if failed, ok := last.(*perf.ErrorSummary); ok {
				return fmt.Errorf("run %s aborted: %s", run.ID, failed.ErrorMessage)
			}
			if last == nil || !last.Terminal() {
				if err := ctx.Err(); err != nil {
					return fmt.Errorf("run %s interrupted: %w", run.ID, err)
				}
				return fmt.Errorf("run %s ended without a summary", run.ID)
			}
			return nil
		}),
	}
	cmd.Flags().IntVarP(&queries, "queries", "n", perf.DefaultQueries, "number of searches to run")
	return cmd
}
