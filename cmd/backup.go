package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dbbackup-agent/internal/controlplane"
)

var backupCmd = &cobra.Command{
	Use:   "backup <generated-id>",
	Short: "Run a single backup immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, api, err := newEngine()
		if err != nil {
			return err
		}

		generatedID := args[0]
		dbCfg, ok := key.Find(generatedID)
		if !ok {
			return fmt.Errorf("no database configured with generated_id %s", generatedID)
		}

		// A manual trigger still needs to know which storages to upload to
		// and whether to encrypt, so pull the current directive for this
		// database from the control plane before running.
		resp, err := api.Status(cmd.Context(), controlplane.StatusRequest{
			Version: "1.0.0",
			Databases: []controlplane.DatabasePayload{{
				Name:        dbCfg.GeneratedID,
				Dbms:        string(dbCfg.Type),
				GeneratedID: dbCfg.GeneratedID,
			}},
		})
		if err != nil {
			return fmt.Errorf("cmd: fetch status before manual backup: %w", err)
		}

		var storages []controlplane.DatabaseStorage
		var encrypt bool
		for _, db := range resp.Databases {
			if db.GeneratedID == generatedID {
				storages = db.Storages
				encrypt = db.Encrypt
				break
			}
		}

		return engine.RunBackup(cmd.Context(), generatedID, controlplane.BackupManual, storages, encrypt)
	},
}
