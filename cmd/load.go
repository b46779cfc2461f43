package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openpatata/scrapers/internal/mirror"
)

// newLoadCmd creates the 'load' subcommand, which imports YAML files
// from the data directory into the record store.
func newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load [collection...]",
		Short: "Import the YAML data directory into the store",
		Long: `Reads every YAML file under the data directory for the named
collections, or for all known collections when none are named, and
upserts each record into the store. Files that do not parse into a
valid record are reported and skipped.`,

		RunE: runLoadCommand,
	}
	return cmd
}

func runLoadCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	reports, err := appInstance.Mirror().Load(cmd.Context(), args...)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return printMirrorReports(cmd, appInstance, reports)
}

func printMirrorReports(cmd *cobra.Command, appInstance App, reports []mirror.Report) error {
	out := cmd.OutOrStdout()
	failures := 0
	for _, r := range reports {
		fmt.Fprintf(out, "%s\t%d\t%d\n", r.Collection, r.Processed, len(r.Failures))
		for _, f := range r.Failures {
			failures++
			appInstance.Logger().Warn("record skipped",
				zap.String("collection", r.Collection),
				zap.String("file", f.File),
				zap.Error(f.Err))
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d records skipped", failures)
	}
	return nil
}
