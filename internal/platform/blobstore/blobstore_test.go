package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/ehrapp/internal/platform/apperr"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func seedBlob(t *testing.T, store Store, owner uuid.UUID, content []byte) *Metadata {
	t.Helper()
	meta, err := store.Put(context.Background(), Metadata{OwnerID: owner, FileName: "avatar.png"}, bytes.NewReader(content))
	if err != nil {
		t.Fatalf("seedBlob: %v", err)
	}
	return meta
}

func TestMemoryStore_PutAndGet(t *testing.T) {
	store := NewMemoryStore()
	owner := uuid.New()
	meta := seedBlob(t, store, owner, pngHeader)

	if meta.ID == uuid.Nil {
		t.Fatal("expected ID to be assigned")
	}
	if meta.ContentType != "image/png" {
		t.Errorf("expected sniffed image/png, got %q", meta.ContentType)
	}
	if meta.Size != int64(len(pngHeader)) {
		t.Errorf("expected size %d, got %d", len(pngHeader), meta.Size)
	}
	sum := sha256.Sum256(pngHeader)
	if meta.Hash != hex.EncodeToString(sum[:]) {
		t.Errorf("unexpected hash %q", meta.Hash)
	}
	if meta.URL() != "/api/blobs/"+meta.ID.String() {
		t.Errorf("unexpected URL %q", meta.URL())
	}

	got, data, err := store.Get(context.Background(), meta.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OwnerID != owner {
		t.Errorf("expected owner %s, got %s", owner, got.OwnerID)
	}
	if !bytes.Equal(data, pngHeader) {
		t.Error("content mismatch")
	}
}

func TestMemoryStore_AcceptsJPEG(t *testing.T) {
	store := NewMemoryStore()
	meta := seedBlob(t, store, uuid.New(), []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"))
	if meta.ContentType != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", meta.ContentType)
	}
}

func TestMemoryStore_RejectsNonImage(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Put(context.Background(), Metadata{FileName: "notes.txt"}, strings.NewReader("plain text"))
	if !errors.Is(err, ErrInvalidContentType) {
		t.Fatalf("expected ErrInvalidContentType, got %v", err)
	}
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation kind, got %v", apperr.KindOf(err))
	}
}

func TestMemoryStore_FileTooLarge(t *testing.T) {
	store := NewMemoryStore()
	big := make([]byte, MaxFileSize+1)
	copy(big, pngHeader)
	_, err := store.Put(context.Background(), Metadata{FileName: "big.png"}, bytes.NewReader(big))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestMemoryStore_MissingFileName(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Put(context.Background(), Metadata{}, bytes.NewReader(pngHeader))
	if !errors.Is(err, ErrMissingFileName) {
		t.Fatalf("expected ErrMissingFileName, got %v", err)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	meta := seedBlob(t, store, uuid.New(), pngHeader)

	if err := store.Delete(context.Background(), meta.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := store.Get(context.Background(), meta.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := store.Delete(context.Background(), meta.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	var wg sync.WaitGroup
	ids := make(chan uuid.UUID, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			meta, err := store.Put(context.Background(), Metadata{FileName: "a.png"}, bytes.NewReader(pngHeader))
			if err != nil {
				t.Errorf("Put: %v", err)
				return
			}
			ids <- meta.ID
		}()
	}
	wg.Wait()
	close(ids)
	for id := range ids {
		if _, _, err := store.Get(context.Background(), id); err != nil {
			t.Errorf("Get %s: %v", id, err)
		}
	}
}

func TestHandler_Download(t *testing.T) {
	store := NewMemoryStore()
	meta := seedBlob(t, store, uuid.New(), pngHeader)
	h := NewHandler(store)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(meta.ID.String())

	if err := h.Download(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), pngHeader) {
		t.Error("body mismatch")
	}
}

func TestHandler_Download_NotModified(t *testing.T) {
	store := NewMemoryStore()
	meta := seedBlob(t, store, uuid.New(), pngHeader)
	h := NewHandler(store)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("If-None-Match", `"`+meta.Hash+`"`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(meta.ID.String())

	if err := h.Download(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", rec.Code)
	}
}

func TestHandler_Download_Errors(t *testing.T) {
	h := NewHandler(NewMemoryStore())
	e := echo.New()

	tests := []struct {
		name  string
		param string
		kind  apperr.Kind
	}{
		{"malformed id", "not-a-uuid", apperr.KindValidation},
		{"unknown id", uuid.New().String(), apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("id")
			c.SetParamValues(tt.param)

			err := h.Download(c)
			if apperr.KindOf(err) != tt.kind {
				t.Errorf("expected kind %v, got %v (%v)", tt.kind, apperr.KindOf(err), err)
			}
		})
	}
}
