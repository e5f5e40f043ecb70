package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/http/response"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/services"
)

// Fakes embed the service interface so only the methods under test need a
// body; anything else panics on the nil embedded value.

type fakeIngest struct {
	services.IngestService
	gotName  string
	gotBytes int
	result   *services.UploadResult
	err      error
	embedID  uuid.UUID
}

func (f *fakeIngest) UploadFast(_ context.Context, filename string, data []byte) (*services.UploadResult, error) {
	f.gotName, f.gotBytes = filename, len(data)
	return f.result, f.err
}

func (f *fakeIngest) Upload(ctx context.Context, filename string, data []byte) (*services.UploadResult, error) {
	return f.UploadFast(ctx, filename, data)
}

func (f *fakeIngest) StartEmbed(_ context.Context, fileID uuid.UUID) error {
	f.embedID = fileID
	return f.err
}

type fakeFiles struct {
	services.FileService
	list    []services.FileInfo
	info    *services.FileInfo
	file    *types.File
	pdf     []byte
	err     error
	deleted uuid.UUID
}

func (f *fakeFiles) List(context.Context) ([]services.FileInfo, error) { return f.list, f.err }

func (f *fakeFiles) Get(context.Context, uuid.UUID) (*services.FileInfo, error) { return f.info, f.err }

func (f *fakeFiles) OpenPDF(context.Context, uuid.UUID) (*types.File, io.ReadCloser, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.file, io.NopCloser(bytes.NewReader(f.pdf)), nil
}

func (f *fakeFiles) Delete(_ context.Context, id uuid.UUID) error {
	f.deleted = id
	return f.err
}

type fakeSessions struct {
	services.SessionService
	created  *types.ChatSession
	gotIDs   []uuid.UUID
	gotName  string
	list     []services.SessionSummary
	gotLimit int
	msgs     []*types.ChatMessage
	deleted  bool
	err      error
}

func (f *fakeSessions) Create(_ context.Context, ids []uuid.UUID, name string) (*types.ChatSession, error) {
	f.gotIDs, f.gotName = ids, name
	return f.created, f.err
}

func (f *fakeSessions) List(_ context.Context, limit int) ([]services.SessionSummary, error) {
	f.gotLimit = limit
	return f.list, f.err
}

func (f *fakeSessions) Messages(context.Context, uuid.UUID) ([]*types.ChatMessage, error) {
	return f.msgs, f.err
}

func (f *fakeSessions) Delete(context.Context, uuid.UUID) (bool, error) { return f.deleted, f.err }

type fakeChat struct {
	services.ChatService
	gotSession uuid.UUID
	gotFile    uuid.UUID
	gotInput   services.ChatInput
	reply      *services.ChatReply
	err        error
}

func (f *fakeChat) Chat(_ context.Context, id uuid.UUID, in services.ChatInput) (*services.ChatReply, error) {
	f.gotSession, f.gotInput = id, in
	return f.reply, f.err
}

func (f *fakeChat) ChatWithFile(_ context.Context, id uuid.UUID, msg string) (*services.ChatReply, error) {
	f.gotFile, f.gotInput = id, services.ChatInput{Message: msg}
	return f.reply, f.err
}

type fakeAreas struct {
	services.AreaService
	gotInput services.AreaInput
	gotType  string
	gotPage  int
	area     *types.DocumentArea
	list     []*types.DocumentArea
	text     string
	err      error
}

func (f *fakeAreas) Add(_ context.Context, _ uuid.UUID, in services.AreaInput) (*types.DocumentArea, error) {
	f.gotInput = in
	return f.area, f.err
}

func (f *fakeAreas) List(_ context.Context, _ uuid.UUID, areaType string) ([]*types.DocumentArea, error) {
	f.gotType = areaType
	return f.list, f.err
}

func (f *fakeAreas) Delete(context.Context, uuid.UUID, uuid.UUID) error { return f.err }

func (f *fakeAreas) ExtractText(_ context.Context, _ uuid.UUID, page int, _ *types.Coordinates) (string, error) {
	f.gotPage = page
	return f.text, f.err
}

type fakeTranslate struct {
	out *services.Translation
	err error
}

func (f *fakeTranslate) Translate(context.Context, string, string) (*services.Translation, error) {
	return f.out, f.err
}

func testEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func nopLog() *logger.Logger { return logger.Nop() }

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func doMultipart(t *testing.T, r http.Handler, path, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v body=%s", err, rec.Body.String())
	}
	return out
}

func requireErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status: want=%d got=%d body=%s", status, rec.Code, rec.Body.String())
	}
	env := decode[response.ErrorEnvelope](t, rec)
	if env.Error.Code != code {
		t.Fatalf("code: want=%q got=%q", code, env.Error.Code)
	}
}
