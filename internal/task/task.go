package task

import (
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusExtracting Status = "extracting"
	StatusRewriting  Status = "rewriting"
	StatusPublishing Status = "publishing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Step returns the human-facing stage label for a status. The task stores the
// label separately so UI wording can change without touching the enum.
func (s Status) Step() string {
	switch s {
	case StatusPending:
		return "Queued"
	case StatusExtracting:
		return "Extracting content"
	case StatusRewriting:
		return "Rewriting"
	case StatusPublishing:
		return "Publishing"
	case StatusCompleted:
		return "Done"
	case StatusFailed:
		return "Failed"
	}
	return string(s)
}

type SourceKind string

const (
	SourceURL  SourceKind = "url"
	SourceText SourceKind = "text"
	SourceItem SourceKind = "item"
)

// Source identifies what the pipeline should rewrite: a page to fetch,
// inline text, or a reference to an already stored item.
type Source struct {
	Kind  SourceKind `json:"kind"`
	Value string     `json:"value,omitempty"`
	Ref   string     `json:"ref,omitempty"`
}

// Options are caller-supplied parameters. The pipeline treats them as opaque
// except where prompt construction or publishing needs them.
type Options struct {
	Provider      string `json:"provider,omitempty"`
	Model         string `json:"model,omitempty"`
	Language      string `json:"language,omitempty"`
	Category      string `json:"category,omitempty"`
	TemplateID    string `json:"template_id,omitempty"`
	PublishStatus string `json:"publish_status,omitempty"`
}

// Result is populated only once the task has completed.
type Result struct {
	DocumentID string `json:"document_id"`
	EditURL    string `json:"edit_url,omitempty"`
	ViewURL    string `json:"view_url,omitempty"`
	Category   string `json:"category,omitempty"`
}

type Task struct {
	ID        string    `json:"id"`
	Source    Source    `json:"source"`
	Options   Options   `json:"options"`
	Status    Status    `json:"status"`
	Step      string    `json:"step"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Canceled  bool      `json:"canceled,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
