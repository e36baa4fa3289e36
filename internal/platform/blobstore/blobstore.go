// Package blobstore keeps small binary uploads (profile pictures) and serves
// them back over HTTP. Content lives in Postgres; an in-memory Store backs
// tests and local runs without a database.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/ehr/ehrapp/internal/platform/apperr"
	"github.com/ehr/ehrapp/internal/platform/db"
)

var (
	ErrFileTooLarge       = &apperr.Error{Kind: apperr.KindValidation, Msg: "file exceeds maximum allowed size"}
	ErrInvalidContentType = &apperr.Error{Kind: apperr.KindValidation, Msg: "only JPG and PNG images are allowed"}
	ErrMissingFileName    = &apperr.Error{Kind: apperr.KindValidation, Msg: "file name is required"}
)

// MaxFileSize is the largest accepted upload (5 MB).
const MaxFileSize = 5 * 1024 * 1024

// AllowedContentTypes lists the sniffed MIME types accepted for upload.
var AllowedContentTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
}

// Metadata describes a stored blob.
type Metadata struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"ownerId"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Hash        string    `json:"sha256"`
	CreatedAt   time.Time `json:"createdAt"`
}

// URL is the path the blob is served from.
func (m *Metadata) URL() string {
	return "/api/blobs/" + m.ID.String()
}

// Store is the contract for blob storage backends.
type Store interface {
	Put(ctx context.Context, meta Metadata, content io.Reader) (*Metadata, error)
	Get(ctx context.Context, id uuid.UUID) (*Metadata, []byte, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// prepare reads and validates an upload. The content type is sniffed from
// the bytes; the client-supplied header is not trusted.
func prepare(meta Metadata, content io.Reader) (Metadata, []byte, error) {
	if meta.FileName == "" {
		return meta, nil, ErrMissingFileName
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return meta, nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return meta, nil, ErrFileTooLarge
	}

	ct := http.DetectContentType(data)
	if !AllowedContentTypes[ct] {
		return meta, nil, apperr.Wrap(ErrInvalidContentType, "got %s", ct)
	}

	h := sha256.Sum256(data)
	meta.ID = uuid.New()
	meta.ContentType = ct
	meta.Size = int64(len(data))
	meta.Hash = hex.EncodeToString(h[:])
	meta.CreatedAt = time.Now().UTC()
	return meta, data, nil
}

// =========== Postgres ===========

type pgStore struct{ pool *pgxpool.Pool }

// NewPGStore returns a Store writing to the blobs table.
func NewPGStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const blobCols = `id, owner_id, file_name, content_type, size, sha256, created_at`

func (s *pgStore) Put(ctx context.Context, meta Metadata, content io.Reader) (*Metadata, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}
	_, err = db.Conn(ctx, s.pool).Exec(ctx, `
		INSERT INTO blobs (id, owner_id, file_name, content_type, size, sha256, data, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		meta.ID, meta.OwnerID, meta.FileName, meta.ContentType, meta.Size, meta.Hash, data, meta.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert blob: %w", err)
	}
	return &meta, nil
}

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (*Metadata, []byte, error) {
	var m Metadata
	var data []byte
	err := db.Conn(ctx, s.pool).QueryRow(ctx, `SELECT `+blobCols+`, data FROM blobs WHERE id = $1`, id).
		Scan(&m.ID, &m.OwnerID, &m.FileName, &m.ContentType, &m.Size, &m.Hash, &m.CreatedAt, &data)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil, apperr.Wrap(apperr.ErrNotFound, "blob %s", id)
		}
		return nil, nil, err
	}
	return &m, data, nil
}

func (s *pgStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, s.pool).Exec(ctx, `DELETE FROM blobs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Wrap(apperr.ErrNotFound, "blob %s", id)
	}
	return nil
}

// =========== In-memory ===========

type storedBlob struct {
	metadata Metadata
	content  []byte
}

// MemoryStore is a thread-safe Store for tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[uuid.UUID]*storedBlob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[uuid.UUID]*storedBlob)}
}

func (s *MemoryStore) Put(_ context.Context, meta Metadata, content io.Reader) (*Metadata, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.blobs[meta.ID] = &storedBlob{metadata: meta, content: data}
	s.mu.Unlock()
	out := meta
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Metadata, []byte, error) {
	s.mu.RLock()
	b, ok := s.blobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, apperr.Wrap(apperr.ErrNotFound, "blob %s", id)
	}
	meta := b.metadata
	return &meta, b.content, nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		return apperr.Wrap(apperr.ErrNotFound, "blob %s", id)
	}
	delete(s.blobs, id)
	return nil
}

// =========== HTTP ===========

// Handler serves stored blobs. Profile pictures are shown in the public
// doctor and patient directories, so downloads need no credential.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/blobs/:id", h.Download)
}

func (h *Handler) Download(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Wrap(apperr.ErrInvalidID, "blob id")
	}
	meta, data, err := h.store.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}

	resp := c.Response()
	resp.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, meta.FileName))
	resp.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	resp.Header().Set("ETag", `"`+meta.Hash+`"`)
	if c.Request().Header.Get("If-None-Match") == `"`+meta.Hash+`"` {
		return c.NoContent(http.StatusNotModified)
	}
	return c.Stream(http.StatusOK, meta.ContentType, bytes.NewReader(data))
}
