package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/platform/apierr"
	"github.com/yungbote/docqa-backend/internal/services"
)

func fileRouter(files *fakeFiles) http.Handler {
	h := NewFileHandler(nopLog(), files)
	r := testEngine()
	r.GET("/files", h.ListFiles)
	r.GET("/files/:id", h.GetFile)
	r.GET("/files/:id/pdf", h.GetPDF)
	r.DELETE("/files/:id", h.DeleteFile)
	return r
}

func TestListFilesNeverNull(t *testing.T) {
	r := fileRouter(&fakeFiles{})
	rec := doJSON(t, r, http.MethodGet, "/files", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != `{"files":[]}` {
		t.Fatalf("empty list: code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestGetFile(t *testing.T) {
	id := uuid.New()
	files := &fakeFiles{info: &services.FileInfo{FileID: id, Filename: "a.pdf", TotalChunks: 7}}
	r := fileRouter(files)

	rec := doJSON(t, r, http.MethodGet, "/files/"+id.String(), nil)
	got := decode[map[string]any](t, rec)
	if got["filename"] != "a.pdf" || got["total_chunks"] != float64(7) {
		t.Fatalf("info: got=%v", got)
	}

	files.err = apierr.NotFound("file_not_found", "File not found")
	rec = doJSON(t, r, http.MethodGet, "/files/"+id.String(), nil)
	requireErrorCode(t, rec, http.StatusNotFound, "file_not_found")

	files.err = errors.New("db down")
	rec = doJSON(t, r, http.MethodGet, "/files/"+id.String(), nil)
	requireErrorCode(t, rec, http.StatusInternalServerError, "get_file_failed")
}

func TestGetPDFStreamsBlob(t *testing.T) {
	id := uuid.New()
	files := &fakeFiles{file: &types.File{ID: id, Filename: "lecture 1.pdf"}, pdf: []byte("%PDF-1.7 body")}
	r := fileRouter(files)

	rec := doJSON(t, r, http.MethodGet, "/files/"+id.String()+"/pdf", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type: got=%q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `inline; filename="lecture 1.pdf"` {
		t.Fatalf("disposition: got=%q", cd)
	}
	if rec.Body.String() != "%PDF-1.7 body" {
		t.Fatalf("body: got=%q", rec.Body.String())
	}
}

func TestDeleteFile(t *testing.T) {
	id := uuid.New()
	files := &fakeFiles{}
	r := fileRouter(files)

	rec := doJSON(t, r, http.MethodDelete, "/files/"+id.String(), nil)
	if rec.Code != http.StatusOK || files.deleted != id {
		t.Fatalf("delete: code=%d deleted=%s", rec.Code, files.deleted)
	}
	rec = doJSON(t, r, http.MethodDelete, "/files/nope", nil)
	requireErrorCode(t, rec, http.StatusBadRequest, "invalid_file_id")
}
