package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/docqa-backend/internal/data/repos/testutil"
	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/platform/blob"
	"github.com/yungbote/docqa-backend/internal/platform/vectorstore"
)

func seedVectors(t *testing.T, e *env, f *types.File, n int) {
	t.Helper()
	vs := make([]vectorstore.Vector, 0, n)
	for i := 0; i < n; i++ {
		vs = append(vs, vectorstore.Vector{
			ID:       types.ChunkVectorID(f.ID, i),
			Values:   []float32{1, 0, 0},
			Text:     "chunk",
			Metadata: map[string]any{"file_id": f.ID.String(), "chunk_index": i, "chunk_type": types.ChunkTypeGeneral},
		})
	}
	if err := e.vectors.Upsert(context.Background(), vs); err != nil {
		t.Fatalf("seed vectors: %v", err)
	}
}

func TestListAndGetFiles(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := testutil.SeedFile(t, ctx, e.db, "a.pdf", types.FileStatusCompleted)
	seedVectors(t, e, a, 3)
	testutil.SeedFile(t, ctx, e.db, "b.pdf", types.FileStatusTextExtracted)

	list, err := e.files.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len: want=2 got=%d", len(list))
	}
	if list[0].Filename != "b.pdf" {
		t.Fatalf("order: want newest first got=%s", list[0].Filename)
	}

	info, err := e.files.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if info.TotalChunks != 3 || info.Status != types.FileStatusCompleted {
		t.Fatalf("info: got=%+v", info)
	}

	_, err = e.files.Get(ctx, uuid.New())
	requireAPIStatus(t, err, http.StatusNotFound)
}

func TestOpenPDF(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	f := testutil.SeedFile(t, ctx, e.db, "a.pdf", types.FileStatusCompleted)

	_, _, err := e.files.OpenPDF(ctx, f.ID)
	requireAPIStatus(t, err, http.StatusNotFound)

	if err := e.blobs.Put(ctx, f.BlobKey, bytes.NewReader(pdfBytes)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, rc, err := e.files.OpenPDF(ctx, f.ID)
	if err != nil {
		t.Fatalf("OpenPDF: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if got.ID != f.ID || !bytes.Equal(data, pdfBytes) {
		t.Fatalf("pdf: got id=%s bytes=%q", got.ID, data)
	}
}

func TestDeleteFileCascades(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := testutil.SeedFile(t, ctx, e.db, "a.pdf", types.FileStatusCompleted)
	b := testutil.SeedFile(t, ctx, e.db, "b.pdf", types.FileStatusCompleted)
	testutil.SeedChunks(t, ctx, e.db, a, "one", "two")
	testutil.SeedArea(t, ctx, e.db, a, types.AreaProblem, "p")
	seedVectors(t, e, a, 2)
	seedVectors(t, e, b, 1)
	if err := e.blobs.Put(ctx, a.BlobKey, bytes.NewReader(pdfBytes)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	solo, _ := e.sessions.Create(ctx, []uuid.UUID{a.ID}, "")
	shared, _ := e.sessions.Create(ctx, []uuid.UUID{a.ID, b.ID}, "")
	_, _ = e.sessions.AddMessage(ctx, solo.ID, types.RoleUser, "hi", nil, "")
	e.tracker.Start(a.ID.String(), a.Filename, 1)

	if err := e.files.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := e.rs.Files.GetByID(ctxDBC(ctx), a.ID); err == nil {
		t.Fatalf("file row should be gone")
	}
	if n, _ := e.rs.Chunks.CountByFile(ctxDBC(ctx), a.ID); n != 0 {
		t.Fatalf("chunks left: %d", n)
	}
	if areas, _ := e.rs.Areas.ListByFile(ctxDBC(ctx), a.ID, nil); len(areas) != 0 {
		t.Fatalf("areas left: %d", len(areas))
	}
	if n, _ := e.vectors.Count(ctx, vectorstore.Eq("file_id", a.ID.String())); n != 0 {
		t.Fatalf("vectors left: %d", n)
	}
	if n, _ := e.vectors.Count(ctx, vectorstore.Eq("file_id", b.ID.String())); n != 1 {
		t.Fatalf("other file vectors: want=1 got=%d", n)
	}
	if _, err := e.blobs.Open(ctx, a.BlobKey); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("blob: want ErrNotFound got=%v", err)
	}
	if _, err := e.sessions.Get(ctx, solo.ID); err == nil {
		t.Fatalf("single-file session should be deleted")
	}
	ids, _ := e.sessions.FileIDs(ctx, shared.ID)
	if len(ids) != 1 || ids[0] != b.ID {
		t.Fatalf("shared session: got=%v", ids)
	}
	if _, ok := e.tracker.Snapshot(a.ID.String()); ok {
		t.Fatalf("progress record should be dropped")
	}

	err := e.files.Delete(ctx, a.ID)
	requireAPIStatus(t, err, http.StatusNotFound)
}
