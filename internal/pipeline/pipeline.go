// Package pipeline runs one rewrite task end to end: extract the source
// content, rewrite it through the AI provider (chunked when too long), and
// publish the result as a document. Progress is written to the task store at
// every stage boundary so pollers see it live.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dkotova/rewritepipe/internal/ai"
	"github.com/dkotova/rewritepipe/internal/chunk"
	"github.com/dkotova/rewritepipe/internal/cms"
	"github.com/dkotova/rewritepipe/internal/extract"
	"github.com/dkotova/rewritepipe/internal/task"
)

const (
	DefaultChunkSize    = 12000
	DefaultChunkOverlap = 200
)

var errCanceled = errors.New("canceled")

// TaskStore is the slice of the queue the pipeline needs.
type TaskStore interface {
	Get(ctx context.Context, id string) (*task.Task, error)
	Update(ctx context.Context, t *task.Task) error
}

// URLExtractor fetches readable content from a URL.
type URLExtractor interface {
	Fetch(ctx context.Context, url string) (*extract.Result, error)
}

// ItemFetcher resolves an item reference to stored source material.
type ItemFetcher interface {
	FetchItem(ctx context.Context, ref string) (title, content string, err error)
}

// DocumentStore is the publishing collaborator.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *cms.Document, meta map[string]string) (*cms.DocumentRef, error)
	ResolveOrCreateCategory(ctx context.Context, name string) (*cms.Category, error)
}

// Config wires the pipeline's collaborators. All of them are required except
// the chunking parameters, which default to DefaultChunkSize/Overlap.
type Config struct {
	Tasks        TaskStore
	Extractor    URLExtractor
	Items        ItemFetcher
	Generator    ai.Generator
	Documents    DocumentStore
	ChunkSize    int
	ChunkOverlap int
}

type Pipeline struct {
	tasks        TaskStore
	extractor    URLExtractor
	items        ItemFetcher
	generator    ai.Generator
	documents    DocumentStore
	chunkSize    int
	chunkOverlap int
}

func New(cfg Config) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	return &Pipeline{
		tasks:        cfg.Tasks,
		extractor:    cfg.Extractor,
		items:        cfg.Items,
		generator:    cfg.Generator,
		documents:    cfg.Documents,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
	}
}

// Run executes one task to a terminal state. A missing task or one that is
// no longer pending is a no-op: that is the whole duplicate-trigger guard,
// so a retried dispatch signal can never process a task twice.
func (p *Pipeline) Run(ctx context.Context, taskID string) error {
	t, err := p.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if t == nil {
		log.Printf("Task %s not found, skipping", taskID)
		return nil
	}
	if t.Status != task.StatusPending {
		log.Printf("Task %s is %s, not pending, skipping duplicate trigger", taskID, t.Status)
		return nil
	}

	if err := p.advance(ctx, t, task.StatusExtracting, 10, "extracting content"); err != nil {
		return err
	}

	title, content, err := p.extractStage(ctx, t)
	if err != nil {
		return p.fail(ctx, t, err)
	}

	if err := p.checkCanceled(ctx, t); err != nil {
		return p.fail(ctx, t, err)
	}
	if err := p.advance(ctx, t, task.StatusRewriting, 40, "rewriting"); err != nil {
		return err
	}

	article, err := p.rewriteStage(ctx, t, title, content)
	if err != nil {
		return p.fail(ctx, t, err)
	}

	if err := p.checkCanceled(ctx, t); err != nil {
		return p.fail(ctx, t, err)
	}
	if err := p.advance(ctx, t, task.StatusPublishing, 80, "publishing document"); err != nil {
		return err
	}

	result, err := p.publishStage(ctx, t, title, article)
	if err != nil {
		return p.fail(ctx, t, err)
	}

	t.Status = task.StatusCompleted
	t.Progress = 100
	t.Message = "done"
	t.Result = result
	if err := p.tasks.Update(ctx, t); err != nil {
		return err
	}

	log.Printf("Task %s completed, document %s", t.ID, result.DocumentID)
	return nil
}

// extractStage resolves the source to (title, content) per its kind.
func (p *Pipeline) extractStage(ctx context.Context, t *task.Task) (string, string, error) {
	var title, content string

	switch t.Source.Kind {
	case task.SourceURL:
		res, err := p.extractor.Fetch(ctx, t.Source.Value)
		if err != nil {
			return "", "", fmt.Errorf("extraction failed: %w", err)
		}
		title, content = res.Title, res.Content

	case task.SourceText:
		content = strings.TrimSpace(t.Source.Value)
		title = extract.DeriveTitle(content)

	case task.SourceItem:
		var err error
		title, content, err = p.items.FetchItem(ctx, t.Source.Ref)
		if err != nil {
			return "", "", fmt.Errorf("extraction failed: %w", err)
		}

	default:
		return "", "", fmt.Errorf("unknown source kind %q", t.Source.Kind)
	}

	if err := extract.Validate(content); err != nil {
		return "", "", err
	}
	return title, content, nil
}

// rewriteStage produces the article payload. Short content goes through one
// generation call with the full payload prompt; long content is split and
// each chunk rewritten sequentially, in order, so progress stays honest and
// a failure aborts cleanly with nothing half-published.
func (p *Pipeline) rewriteStage(ctx context.Context, t *task.Task, title, content string) (*ai.Article, error) {
	genOpts := ai.Options{Model: t.Options.Model}
	promptOpts := ai.PromptOptions{Language: t.Options.Language, TemplateID: t.Options.TemplateID}

	if len(content) <= p.chunkSize {
		resp, err := p.generator.Generate(ctx, ai.BuildRewritePrompt(title, content, promptOpts), genOpts)
		if err != nil {
			return nil, fmt.Errorf("ai generation failed: %w", err)
		}
		return ai.ParseArticle(resp.Text), nil
	}

	chunks, err := chunk.Split(content, p.chunkSize, p.chunkOverlap)
	if err != nil {
		return nil, err
	}

	for i := range chunks {
		if err := p.checkCanceled(ctx, t); err != nil {
			return nil, err
		}

		prompt := ai.BuildChunkPrompt(title, chunks[i].Content, i, len(chunks), promptOpts)
		resp, err := p.generator.Generate(ctx, prompt, genOpts)
		if err != nil {
			return nil, fmt.Errorf("ai generation failed on chunk %d/%d: %w", i+1, len(chunks), err)
		}
		chunks[i].ProcessedContent = strings.TrimSpace(resp.Text)

		t.Progress = 40 + (i+1)*40/len(chunks)
		t.Message = fmt.Sprintf("rewriting part %d/%d", i+1, len(chunks))
		if err := p.tasks.Update(ctx, t); err != nil {
			log.Printf("Task %s: progress update failed: %v", t.ID, err)
		}
	}

	return &ai.Article{Title: title, Content: chunk.Merge(chunks)}, nil
}

// publishStage creates the document and assembles the task result. Category
// priority: explicit caller option, then the AI suggestion, else none.
func (p *Pipeline) publishStage(ctx context.Context, t *task.Task, sourceTitle string, article *ai.Article) (*task.Result, error) {
	var categoryID, categoryName string
	name := t.Options.Category
	if name == "" {
		name = article.Category
	}
	if name != "" {
		cat, err := p.documents.ResolveOrCreateCategory(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("category resolution failed: %w", err)
		}
		categoryID, categoryName = cat.ID, cat.Name
	}

	title := article.Title
	if title == "" {
		title = sourceTitle
	}
	if title == "" {
		title = "Untitled"
	}

	status := t.Options.PublishStatus
	if status == "" {
		status = cms.StatusDraft
	}

	meta := map[string]string{
		"source_kind":  string(t.Source.Kind),
		"rewritten_at": time.Now().Format(time.RFC3339),
	}
	if t.Source.Kind == task.SourceURL {
		meta["source_url"] = t.Source.Value
	}
	if sourceTitle != "" {
		meta["source_title"] = sourceTitle
	}
	if t.Options.Provider != "" {
		meta["provider"] = t.Options.Provider
	}
	if article.SEOTitle != "" {
		meta["seo_title"] = article.SEOTitle
	}
	if article.SEODescription != "" {
		meta["seo_description"] = article.SEODescription
	}
	if len(article.Tags) > 0 {
		meta["tags"] = strings.Join(article.Tags, ",")
	}

	ref, err := p.documents.CreateDocument(ctx, &cms.Document{
		Title:      title,
		Content:    article.Content,
		Excerpt:    article.Excerpt,
		Status:     status,
		CategoryID: categoryID,
	}, meta)
	if err != nil {
		return nil, fmt.Errorf("document creation failed: %w", err)
	}

	return &task.Result{
		DocumentID: ref.ID,
		EditURL:    ref.EditURL,
		ViewURL:    ref.ViewURL,
		Category:   categoryName,
	}, nil
}

// advance moves the task into the next stage and records it.
func (p *Pipeline) advance(ctx context.Context, t *task.Task, status task.Status, progress int, message string) error {
	t.Status = status
	t.Progress = progress
	t.Message = message
	return p.tasks.Update(ctx, t)
}

// checkCanceled re-reads the record and honors a cooperative cancel request.
func (p *Pipeline) checkCanceled(ctx context.Context, t *task.Task) error {
	fresh, err := p.tasks.Get(ctx, t.ID)
	if err != nil || fresh == nil {
		return nil
	}
	if fresh.Canceled {
		t.Canceled = true
		return errCanceled
	}
	return nil
}

// fail records a terminal failure. Progress stays frozen at its last value.
func (p *Pipeline) fail(ctx context.Context, t *task.Task, cause error) error {
	t.Status = task.StatusFailed
	t.Error = cause.Error()
	t.Message = "failed"
	if err := p.tasks.Update(ctx, t); err != nil {
		log.Printf("Task %s: failed to record error: %v", t.ID, err)
	}
	log.Printf("Task %s failed: %v", t.ID, cause)
	return cause
}
