package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/docqa-backend/internal/data/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and rewrite legacy session file lists",
	Long: `Runs the schema migration, then rewrites chat sessions whose file list
was stored in an older encoding into a canonical JSON array of ids.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	n, err := db.MigrateLegacySessionFileIDs(cmd.Context(), e.db, e.log)
	if err != nil {
		return err
	}
	cmd.Printf("Schema up to date; rewrote %d session(s)\n", n)
	return nil
}
