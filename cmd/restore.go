package cmd

import (
	"github.com/spf13/cobra"
)

var restoreMetaFileURL string

var restoreCmd = &cobra.Command{
	Use:   "restore <generated-id> <file-url>",
	Short: "Restore a database from an uploaded artifact",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := newEngine()
		if err != nil {
			return err
		}

		return engine.RunRestore(cmd.Context(), args[0], args[1], restoreMetaFileURL)
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restoreMetaFileURL, "meta-file", "", "URL of the .meta sidecar, if the artifact is encrypted")
}
