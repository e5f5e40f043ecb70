package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/docqa-backend/internal/app"
)

var embedCmd = &cobra.Command{
	Use:   "embed [file-id...]",
	Short: "Embed the stored chunks of one or more files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ids := make([]uuid.UUID, 0, len(args))
	for _, a := range args {
		id, err := uuid.Parse(a)
		if err != nil {
			return fmt.Errorf("invalid file id %q: %w", a, err)
		}
		ids = append(ids, id)
	}

	application, err := app.New()
	if err != nil {
		return err
	}
	defer application.Close()

	failed := 0
	for _, id := range ids {
		if err := application.Services.Ingest.Embed(cmd.Context(), id); err != nil {
			cmd.Printf("  %s: %v\n", id, err)
			failed++
			continue
		}
		cmd.Printf("  %s: embedded\n", id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(ids))
	}
	return nil
}
