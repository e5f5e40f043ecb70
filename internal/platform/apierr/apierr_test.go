package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorMessageFallbacks(t *testing.T) {
	if got := New(400, "bad", errors.New("boom")).Error(); got != "boom" {
		t.Fatalf("with err: got=%q", got)
	}
	if got := New(400, "bad", nil).Error(); got != "bad" {
		t.Fatalf("with code: got=%q", got)
	}
	if got := New(418, "", nil).Error(); got != "api error (418)" {
		t.Fatalf("with status: got=%q", got)
	}
}

func TestAsThroughWrap(t *testing.T) {
	wrapped := fmt.Errorf("create session: %w", NotFound("file_not_found", "file x not found"))
	ae, ok := As(wrapped)
	if !ok {
		t.Fatalf("As: expected match")
	}
	if ae.Status != http.StatusNotFound || ae.Code != "file_not_found" {
		t.Fatalf("As: got status=%d code=%s", ae.Status, ae.Code)
	}
}
