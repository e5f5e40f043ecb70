package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/docqa-backend/internal/app"
	"github.com/yungbote/docqa-backend/internal/data/repos"
	"github.com/yungbote/docqa-backend/internal/pkg/dbctx"
	"github.com/yungbote/docqa-backend/internal/platform/vectorstore"
)

var vectorsCmd = &cobra.Command{
	Use:   "vectors",
	Short: "Compare stored chunks with indexed vectors per file",
	Args:  cobra.NoArgs,
	RunE:  runVectors,
}

func init() {
	rootCmd.AddCommand(vectorsCmd)
}

func runVectors(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	vs, err := app.ResolveVectorStore(ctx, e.log, e.cfg)
	if err != nil {
		return err
	}
	rs := repos.NewSet(e.db, e.log)
	dbc := dbctx.Context{Ctx: ctx}

	files, err := rs.Files.List(dbc)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		cmd.Println("No files")
		return nil
	}
	for _, f := range files {
		chunks, err := rs.Chunks.CountByFile(dbc, f.ID)
		if err != nil {
			return err
		}
		n, err := vs.Count(ctx, vectorstore.Eq("file_id", f.ID.String()))
		if err != nil {
			return err
		}
		cmd.Printf("%s  %-14s chunks=%-5d vectors=%-5d %s\n", f.ID, f.Status, chunks, n, f.Filename)
	}
	return nil
}
