package main

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/docqa-backend/internal/data/repos"
	"github.com/yungbote/docqa-backend/internal/data/repos/testutil"
	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/pkg/dbctx"
	"github.com/yungbote/docqa-backend/internal/services"
)

func TestFindAndPruneOrphans(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.SQLite(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(gdb, log)
	sessions := services.NewSessionService(gdb, log, rs)

	keep := testutil.SeedFile(t, ctx, gdb, "keep.pdf", types.FileStatusCompleted)
	gone := testutil.SeedFile(t, ctx, gdb, "gone.pdf", types.FileStatusCompleted)
	shared, err := sessions.Create(ctx, []uuid.UUID{keep.ID, gone.ID}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	lonely, err := sessions.Create(ctx, []uuid.UUID{gone.ID}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := rs.Files.Delete(dbctx.Context{Ctx: ctx}, gone.ID); err != nil {
		t.Fatalf("delete file row: %v", err)
	}

	refs, err := findOrphans(ctx, gdb, rs)
	if err != nil {
		t.Fatalf("findOrphans: %v", err)
	}
	if len(refs) != 1 || refs[0].FileID != gone.ID || len(refs[0].Sessions) != 2 {
		t.Fatalf("orphans: got=%+v", refs)
	}

	pruned, deleted, err := pruneOrphans(ctx, log, gdb, rs, refs)
	if err != nil {
		t.Fatalf("pruneOrphans: %v", err)
	}
	if pruned != 1 || deleted != 1 {
		t.Fatalf("prune counts: pruned=%d deleted=%d", pruned, deleted)
	}
	ids, err := sessions.FileIDs(ctx, shared.ID)
	if err != nil || len(ids) != 1 || ids[0] != keep.ID {
		t.Fatalf("shared session files: ids=%v err=%v", ids, err)
	}
	if _, err := sessions.Get(ctx, lonely.ID); err == nil {
		t.Fatalf("emptied session should be deleted")
	}

	refs, err = findOrphans(ctx, gdb, rs)
	if err != nil || len(refs) != 0 {
		t.Fatalf("after prune: refs=%+v err=%v", refs, err)
	}
}
