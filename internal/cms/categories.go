package cms

import (
	"context"
	"database/sql"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Category is a taxonomy entry.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// GetCategory fetches a category by id, nil when unknown.
func (s *Store) GetCategory(ctx context.Context, id string) (*Category, error) {
	return s.queryCategory(ctx, `SELECT id, name, slug, created_at FROM categories WHERE id = ?`, id)
}

// GetCategoryByName fetches a category by exact name, nil when unknown.
func (s *Store) GetCategoryByName(ctx context.Context, name string) (*Category, error) {
	return s.queryCategory(ctx, `SELECT id, name, slug, created_at FROM categories WHERE name = ?`, name)
}

// GetCategoryBySlug fetches a category by slug, nil when unknown.
func (s *Store) GetCategoryBySlug(ctx context.Context, slug string) (*Category, error) {
	return s.queryCategory(ctx, `SELECT id, name, slug, created_at FROM categories WHERE slug = ?`, slug)
}

func (s *Store) queryCategory(ctx context.Context, query string, arg any) (*Category, error) {
	var c Category
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ResolveOrCreateCategory resolves a category name to an entry: exact name
// match first, then slug match, otherwise a fresh category is created.
func (s *Store) ResolveOrCreateCategory(ctx context.Context, name string) (*Category, error) {
	c, err := s.GetCategoryByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return c, nil
	}

	slug := Slugify(name)
	c, err = s.GetCategoryBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return c, nil
	}

	c = &Category{
		ID:        uuid.New().String(),
		Name:      name,
		Slug:      slug,
		CreatedAt: time.Now(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, slug, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Slug, c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Slugify lowercases a name and replaces runs of non-alphanumerics with a
// single hyphen.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
