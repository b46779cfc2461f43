package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newUnloadCmd creates the 'unload' subcommand, which exports the
// record store into the YAML data directory.
func newUnloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unload [collection...]",
		Short: "Export the store into the YAML data directory",
		Long: `Serializes every record in the named collections, or in all known
collections when none are named, to one canonical YAML file per record
under the data directory. Unloading the same store twice produces
byte-identical files.`,

		RunE: runUnloadCommand,
	}
	return cmd
}

func runUnloadCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	reports, err := appInstance.Mirror().Unload(cmd.Context(), args...)
	if err != nil {
		return fmt.Errorf("unload: %w", err)
	}
	return printMirrorReports(cmd, appInstance, reports)
}
