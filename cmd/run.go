package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openpatata/scrapers/internal/task"

	// Register the scrape tasks.
	_ "github.com/openpatata/scrapers/internal/tasks"
)

// newRunCmd creates the 'run' subcommand, which executes scrape tasks
// sequentially and reports a per-task summary on stdout.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [task...]",
		Short: "Run scrape tasks",
		Long: `Runs the named scrape tasks in order, or every registered task when
none are named. Each task scrapes its sources and persists records to
the store. A failing task does not stop the ones after it.`,

		RunE: runRunCommand,
	}
	return cmd
}

func runRunCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	names := args
	if len(names) == 0 {
		names = task.Names()
	}

	runner := task.NewRunner(appInstance.Crawler(), appInstance.Store(), appInstance.Logger().Named("task"))
	summary, runErr := runner.Run(cmd.Context(), names...)

	out := cmd.OutOrStdout()
	for _, o := range summary.Outcomes {
		status := "ok"
		if o.Err != nil {
			status = "failed"
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", o.Task, status, o.Duration.Round(time.Millisecond))
	}

	if runErr != nil && len(summary.Outcomes) == 0 {
		return runErr
	}
	if n := summary.Failed(); n > 0 {
		return fmt.Errorf("%d of %d tasks failed", n, len(summary.Outcomes))
	}
	return nil
}
