package services

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/docqa-backend/internal/data/repos/testutil"
	types "github.com/yungbote/docqa-backend/internal/domain"
)

func TestCreateSessionNames(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := testutil.SeedFile(t, ctx, e.db, "a.pdf", types.FileStatusCompleted)
	b := testutil.SeedFile(t, ctx, e.db, "b.pdf", types.FileStatusCompleted)

	one, err := e.sessions.Create(ctx, []uuid.UUID{a.ID}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if one.Name != "Chat with document" {
		t.Fatalf("name: got=%q", one.Name)
	}
	two, err := e.sessions.Create(ctx, []uuid.UUID{b.ID, a.ID}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if two.Name != "Multi-doc chat (2 documents)" {
		t.Fatalf("name: got=%q", two.Name)
	}
	ids, err := e.sessions.FileIDs(ctx, two.ID)
	if err != nil {
		t.Fatalf("FileIDs: %v", err)
	}
	if !slices.Equal(ids, []uuid.UUID{b.ID, a.ID}) {
		t.Fatalf("file order: got=%v", ids)
	}
	named, _ := e.sessions.Create(ctx, []uuid.UUID{a.ID}, "Exam prep")
	if named.Name != "Exam prep" {
		t.Fatalf("explicit name: got=%q", named.Name)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := testutil.SeedFile(t, ctx, e.db, "a.pdf", types.FileStatusCompleted)

	_, err := e.sessions.Create(ctx, nil, "")
	requireAPIStatus(t, err, http.StatusBadRequest)
	_, err = e.sessions.Create(ctx, []uuid.UUID{a.ID, uuid.New()}, "")
	requireAPIStatus(t, err, http.StatusNotFound)
	_, err = e.sessions.FileIDs(ctx, uuid.New())
	requireAPIStatus(t, err, http.StatusNotFound)
}

func TestAddMessageAndHistory(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := testutil.SeedFile(t, ctx, e.db, "a.pdf", types.FileStatusCompleted)
	sess, _ := e.sessions.Create(ctx, []uuid.UUID{a.ID}, "")

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	e.sessions.(*sessionService).now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	for i, content := range []string{"q1", "a1", "q2", "a2", "q3", "a3", "q4", "a4"} {
		role := types.RoleUser
		var sources []string
		if i%2 == 1 {
			role = types.RoleAssistant
			sources = []string{"From a.pdf: x"}
		}
		if _, err := e.sessions.AddMessage(ctx, sess.ID, role, content, sources, types.ModeSingleDoc); err != nil {
			t.Fatalf("AddMessage %d: %v", i, err)
		}
	}

	hist, err := e.sessions.History(ctx, sess.ID, 6)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var got []string
	for _, m := range hist {
		got = append(got, m.Content)
	}
	if want := []string{"q2", "a2", "q3", "a3", "q4", "a4"}; !slices.Equal(got, want) {
		t.Fatalf("history: want=%v got=%v", want, got)
	}
	if src := hist[1].SourceList(); len(src) != 1 {
		t.Fatalf("sources: got=%v", src)
	}

	reloaded, _ := e.sessions.Get(ctx, sess.ID)
	if !reloaded.LastActivity.Equal(base.Add(8 * time.Minute)) {
		t.Fatalf("last_activity: got=%v", reloaded.LastActivity)
	}

	_, err = e.sessions.AddMessage(ctx, uuid.New(), types.RoleUser, "x", nil, "")
	requireAPIStatus(t, err, http.StatusNotFound)
}

func TestListSessionsByActivity(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := testutil.SeedFile(t, ctx, e.db, "a.pdf", types.FileStatusCompleted)
	older, _ := e.sessions.Create(ctx, []uuid.UUID{a.ID}, "older")
	newer, _ := e.sessions.Create(ctx, []uuid.UUID{a.ID}, "newer")

	e.sessions.(*sessionService).now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	if _, err := e.sessions.AddMessage(ctx, older.ID, types.RoleUser, "bump", nil, ""); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	list, err := e.sessions.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != older.ID || list[1].ID != newer.ID {
		t.Fatalf("order: got=%+v", list)
	}
	if !slices.Equal(list[0].FileIDs, []string{a.ID.String()}) {
		t.Fatalf("file ids: got=%v", list[0].FileIDs)
	}
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := testutil.SeedFile(t, ctx, e.db, "a.pdf", types.FileStatusCompleted)
	sess, _ := e.sessions.Create(ctx, []uuid.UUID{a.ID}, "")
	_, _ = e.sessions.AddMessage(ctx, sess.ID, types.RoleUser, "hi", nil, "")

	ok, err := e.sessions.Delete(ctx, sess.ID)
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	msgs, _ := e.rs.Messages.ListBySession(ctxDBC(ctx), sess.ID)
	if len(msgs) != 0 {
		t.Fatalf("messages left: %d", len(msgs))
	}
	ok, err = e.sessions.Delete(ctx, sess.ID)
	if err != nil || ok {
		t.Fatalf("second Delete: want false got ok=%v err=%v", ok, err)
	}
}

func TestPruneFile(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := testutil.SeedFile(t, ctx, e.db, "a.pdf", types.FileStatusCompleted)
	b := testutil.SeedFile(t, ctx, e.db, "b.pdf", types.FileStatusCompleted)
	only, _ := e.sessions.Create(ctx, []uuid.UUID{a.ID}, "")
	mixed, _ := e.sessions.Create(ctx, []uuid.UUID{a.ID, b.ID}, "")
	other, _ := e.sessions.Create(ctx, []uuid.UUID{b.ID}, "")
	_, _ = e.sessions.AddMessage(ctx, only.ID, types.RoleUser, "hi", nil, "")

	pruned, deleted, err := e.sessions.PruneFile(ctxDBC(ctx), a.ID)
	if err != nil {
		t.Fatalf("PruneFile: %v", err)
	}
	if pruned != 1 || deleted != 1 {
		t.Fatalf("counts: want pruned=1 deleted=1 got %d %d", pruned, deleted)
	}
	if _, err := e.sessions.Get(ctx, only.ID); err == nil {
		t.Fatalf("emptied session should be gone")
	}
	ids, _ := e.sessions.FileIDs(ctx, mixed.ID)
	if !slices.Equal(ids, []uuid.UUID{b.ID}) {
		t.Fatalf("mixed: got=%v", ids)
	}
	ids, _ = e.sessions.FileIDs(ctx, other.ID)
	if !slices.Equal(ids, []uuid.UUID{b.ID}) {
		t.Fatalf("other: got=%v", ids)
	}
}

func TestAddTurnIsAtomic(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := testutil.SeedFile(t, ctx, e.db, "a.pdf", types.FileStatusCompleted)
	sess, _ := e.sessions.Create(ctx, []uuid.UUID{a.ID}, "")

	if err := e.sessions.AddTurn(ctx, sess.ID, "q1", "a1", []string{"From a.pdf: x"}, types.ModeSingleDoc); err != nil {
		t.Fatalf("AddTurn: %v", err)
	}

	err := e.db.Callback().Create().Before("gorm:create").Register("test:reject_answers", func(tx *gorm.DB) {
		if m, ok := tx.Statement.Dest.(*types.ChatMessage); ok && m.Role == types.RoleAssistant {
			_ = tx.AddError(errors.New("disk full"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	if err := e.sessions.AddTurn(ctx, sess.ID, "q2", "a2", nil, types.ModeSingleDoc); err == nil {
		t.Fatalf("want error when the answer cannot be stored")
	}

	msgs, err := e.sessions.Messages(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	var got []string
	for _, m := range msgs {
		got = append(got, m.Content)
	}
	if want := []string{"q1", "a1"}; !slices.Equal(got, want) {
		t.Fatalf("messages: want=%v got=%v", want, got)
	}
}
