package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dbbackup-agent/internal/controlplane"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Push the current database inventory once and print what comes back",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, api, err := newEngine()
		if err != nil {
			return err
		}

		payloads := make([]controlplane.DatabasePayload, 0, len(key.Databases))
		for _, db := range key.Databases {
			payloads = append(payloads, controlplane.DatabasePayload{
				Name:        db.GeneratedID,
				Dbms:        string(db.Type),
				GeneratedID: db.GeneratedID,
			})
		}

		resp, err := api.Status(cmd.Context(), controlplane.StatusRequest{
			Version:   "1.0.0",
			Databases: payloads,
		})
		if err != nil {
			return err
		}

		fmt.Printf("agent: %s  last contact: %s\n", resp.Agent.ID, resp.Agent.LastContact)
		fmt.Printf("databases: %d\n", len(resp.Databases))
		for _, db := range resp.Databases {
			fmt.Printf("  %s (%s)  storages=%d  encrypt=%v\n", db.GeneratedID, db.Dbms, len(db.Storages), db.Encrypt)
			if db.Data.Backup.Action {
				fmt.Printf("    backup: cron=%q\n", db.Data.Backup.Cron)
			}
			if db.Data.Restore.Action {
				fmt.Printf("    restore: file=%q\n", db.Data.Restore.File)
			}
		}

		return nil
	},
}
