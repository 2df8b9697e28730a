package cms

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Document is a stored article.
type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Excerpt    string    `json:"excerpt,omitempty"`
	Status     string    `json:"status"`
	CategoryID string    `json:"category_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DocumentRef locates a created document.
type DocumentRef struct {
	ID      string `json:"id"`
	EditURL string `json:"edit_url"`
	ViewURL string `json:"view_url"`
}

// Store is the data access layer for documents and categories.
type Store struct {
	db      *DB
	baseURL string
}

// NewStore creates a Store. baseURL is used to build edit/view locators.
func NewStore(db *DB, baseURL string) *Store {
	return &Store{db: db, baseURL: baseURL}
}

// CreateDocument inserts a document and its metadata in one transaction and
// returns locators for it.
func (s *Store) CreateDocument(ctx context.Context, doc *Document, meta map[string]string) (*DocumentRef, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.Status == "" {
		doc.Status = StatusDraft
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var categoryID any
	if doc.CategoryID != "" {
		categoryID = doc.CategoryID
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, title, content, excerpt, status, category_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Content, doc.Excerpt, doc.Status, categoryID, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}

	for key, value := range meta {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO document_meta (document_id, key, value) VALUES (?, ?, ?)`,
			doc.ID, key, value)
		if err != nil {
			return nil, fmt.Errorf("failed to insert meta %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &DocumentRef{
		ID:      doc.ID,
		EditURL: fmt.Sprintf("%s/documents/%s/edit", s.baseURL, doc.ID),
		ViewURL: fmt.Sprintf("%s/documents/%s", s.baseURL, doc.ID),
	}, nil
}

// GetDocument fetches a document by id, nil when unknown.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	var categoryID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, excerpt, status, category_id, created_at, updated_at
		 FROM documents WHERE id = ?`, id).
		Scan(&doc.ID, &doc.Title, &doc.Content, &doc.Excerpt, &doc.Status, &categoryID, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc.CategoryID = categoryID.String
	return &doc, nil
}

// GetDocumentMeta returns all metadata pairs for a document.
func (s *Store) GetDocumentMeta(ctx context.Context, id string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM document_meta WHERE document_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		meta[key] = value
	}
	return meta, rows.Err()
}

// FetchItem exposes a stored document as rewrite source material. This is
// the fetch-by-reference collaborator for item-sourced tasks.
func (s *Store) FetchItem(ctx context.Context, ref string) (title, content string, err error) {
	doc, err := s.GetDocument(ctx, ref)
	if err != nil {
		return "", "", err
	}
	if doc == nil {
		return "", "", fmt.Errorf("item %s not found", ref)
	}
	return doc.Title, doc.Content, nil
}
