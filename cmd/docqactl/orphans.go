package main

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/yungbote/docqa-backend/internal/data/repos"
	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/pkg/dbctx"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/services"
)

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Find chat sessions that reference deleted files",
	Long: `Lists file ids that appear in a chat session's file list but have no file
row. With --prune the ids are dropped from every session; sessions left with
no files are deleted with their messages.`,
	Args: cobra.NoArgs,
	RunE: runOrphans,
}

var orphansPrune bool

func init() {
	orphansCmd.Flags().BoolVar(&orphansPrune, "prune", false, "remove dangling ids from sessions")
	rootCmd.AddCommand(orphansCmd)
}

type orphanRef struct {
	FileID   uuid.UUID
	Sessions []uuid.UUID
}

func runOrphans(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	rs := repos.NewSet(e.db, e.log)
	refs, err := findOrphans(ctx, e.db, rs)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		cmd.Println("No orphaned file references")
		return nil
	}
	for _, r := range refs {
		cmd.Printf("  %s referenced by %d session(s)\n", r.FileID, len(r.Sessions))
	}
	if !orphansPrune {
		cmd.Printf("Total: %d orphaned file id(s); rerun with --prune to clean up\n", len(refs))
		return nil
	}

	pruned, deleted, err := pruneOrphans(ctx, e.log, e.db, rs, refs)
	if err != nil {
		return err
	}
	cmd.Printf("Pruned %d session(s), deleted %d empty session(s)\n", pruned, deleted)
	return nil
}

// findOrphans returns, sorted by file id, every id in a session file list
// with no matching file row. Sessions whose list does not decode are skipped;
// migrate rewrites them.
func findOrphans(ctx context.Context, gdb *gorm.DB, rs repos.Set) ([]orphanRef, error) {
	var sessions []*types.ChatSession
	if err := gdb.WithContext(ctx).Find(&sessions).Error; err != nil {
		return nil, err
	}

	bySession := map[uuid.UUID][]uuid.UUID{}
	seen := map[uuid.UUID]bool{}
	var all []uuid.UUID
	for _, s := range sessions {
		ids, err := s.FileIDList()
		if err != nil {
			continue
		}
		for _, raw := range ids {
			id, err := uuid.Parse(raw)
			if err != nil {
				continue
			}
			bySession[id] = append(bySession[id], s.ID)
			if !seen[id] {
				seen[id] = true
				all = append(all, id)
			}
		}
	}
	if len(all) == 0 {
		return nil, nil
	}

	existing, err := rs.Files.GetByIDs(dbctx.Context{Ctx: ctx}, all)
	if err != nil {
		return nil, err
	}
	for _, f := range existing {
		delete(bySession, f.ID)
	}

	out := make([]orphanRef, 0, len(bySession))
	for id, sids := range bySession {
		out = append(out, orphanRef{FileID: id, Sessions: sids})
	}
	slices.SortFunc(out, func(a, b orphanRef) int { return slices.Compare(a.FileID[:], b.FileID[:]) })
	return out, nil
}

func pruneOrphans(ctx context.Context, log *logger.Logger, gdb *gorm.DB, rs repos.Set, refs []orphanRef) (int, int, error) {
	sessions := services.NewSessionService(gdb, log, rs)
	var pruned, deleted int
	for _, r := range refs {
		p, d, err := sessions.PruneFile(dbctx.Context{Ctx: ctx}, r.FileID)
		if err != nil {
			return pruned, deleted, err
		}
		pruned += p
		deleted += d
	}
	return pruned, deleted, nil
}
