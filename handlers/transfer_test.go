package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"showlog/handlers"
	"showlog/models"
	"showlog/services/sessions"
	"showlog/services/transfer"
)

type fakeTransfer struct {
	doc     models.ExportDocument
	summary models.ImportSummary
	err     error
}

func (f *fakeTransfer) Export(profileID string) (models.ExportDocument, error) {
	return f.doc, f.err
}

func (f *fakeTransfer) Import(ctx context.Context, profileID string, payload []byte) (models.ImportSummary, error) {
	return f.summary, f.err
}

func TestExportSetsAttachmentHeaders(t *testing.T) {
	svc := &fakeTransfer{doc: models.ExportDocument{Version: 1, ExportedAt: time.Now().UTC()}}
	h := handlers.NewTransferHandler(svc, &fakeSessions{profileID: "p1"}, nil)

	rec := httptest.NewRecorder()
	h.Export(rec, authedRequest(http.MethodGet, "/api/export", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("expected attachment disposition, got %q", cd)
	}
}

func TestImportUnrecognizedPayloadIs400(t *testing.T) {
	h := handlers.NewTransferHandler(&fakeTransfer{err: transfer.ErrUnrecognizedPayload},
		&fakeSessions{profileID: "p1"}, nil)

	rec := httptest.NewRecorder()
	h.Import(rec, authedRequest(http.MethodPost, "/api/import", []byte("garbage")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unrecognized payload, got %d", rec.Code)
	}
}

func TestImportRequiresSession(t *testing.T) {
	h := handlers.NewTransferHandler(&fakeTransfer{}, &fakeSessions{err: sessions.ErrSessionNotFound}, nil)

	rec := httptest.NewRecorder()
	h.Import(rec, httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader("[1]")))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session, got %d", rec.Code)
	}
}
