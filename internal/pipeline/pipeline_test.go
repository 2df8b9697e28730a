package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkotova/rewritepipe/internal/ai"
	"github.com/dkotova/rewritepipe/internal/cms"
	"github.com/dkotova/rewritepipe/internal/extract"
	"github.com/dkotova/rewritepipe/internal/queue"
	"github.com/dkotova/rewritepipe/internal/task"
)

const defaultPayload = "```json\n{\"title\":\"Rewritten Title\",\"content\":\"Rewritten body.\",\"excerpt\":\"Summary.\",\"category\":\"Suggested\",\"tags\":[\"one\",\"two\"]}\n```"

type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	response string
	failOn   int // 1-based call number that fails, 0 for never
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, opts ai.Options) (*ai.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failOn > 0 && g.calls == g.failOn {
		return nil, errors.New("model exploded")
	}
	text := g.response
	if text == "" {
		text = defaultPayload
	}
	return &ai.Response{Text: text, Tokens: 100}, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeExtractor struct {
	result *extract.Result
	err    error
}

func (f *fakeExtractor) Fetch(ctx context.Context, url string) (*extract.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// recordingTasks wraps the real queue and records every status/progress
// write so tests can assert the transition sequence.
type recordingTasks struct {
	q        *queue.Queue
	mu       sync.Mutex
	statuses []task.Status
	progress []int
}

func (r *recordingTasks) Get(ctx context.Context, id string) (*task.Task, error) {
	return r.q.Get(ctx, id)
}

func (r *recordingTasks) Update(ctx context.Context, t *task.Task) error {
	r.mu.Lock()
	r.statuses = append(r.statuses, t.Status)
	r.progress = append(r.progress, t.Progress)
	r.mu.Unlock()
	return r.q.Update(ctx, t)
}

// countingDocs counts document creations on top of the real store.
type countingDocs struct {
	*cms.Store
	created int
}

func (c *countingDocs) CreateDocument(ctx context.Context, doc *cms.Document, meta map[string]string) (*cms.DocumentRef, error) {
	c.created++
	return c.Store.CreateDocument(ctx, doc, meta)
}

type env struct {
	pipeline *Pipeline
	queue    *queue.Queue
	tasks    *recordingTasks
	docs     *countingDocs
	gen      *fakeGenerator
}

func setup(t *testing.T, gen *fakeGenerator, ext URLExtractor, mod func(*Config)) *env {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	q, err := queue.New(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	db, err := cms.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := cms.NewStore(db, "http://cms.local")
	docs := &countingDocs{Store: store}
	tasks := &recordingTasks{q: q}

	cfg := Config{
		Tasks:     tasks,
		Extractor: ext,
		Items:     store,
		Generator: gen,
		Documents: docs,
	}
	if mod != nil {
		mod(&cfg)
	}

	return &env{
		pipeline: New(cfg),
		queue:    q,
		tasks:    tasks,
		docs:     docs,
		gen:      gen,
	}
}

func TestRun_ShortTextCompletes(t *testing.T) {
	gen := &fakeGenerator{}
	e := setup(t, gen, &fakeExtractor{}, nil)
	ctx := context.Background()

	// 50 characters: a single chunk, single generation call.
	source := "Fifty characters of source text to be rewritten!!!"
	require.Len(t, source, 50)

	created, err := e.queue.Create(ctx, task.Source{Kind: task.SourceText, Value: source}, task.Options{Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, created.Status)
	assert.Equal(t, 0, created.Progress)

	require.NoError(t, e.pipeline.Run(ctx, created.ID))

	final, err := e.queue.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, final)

	assert.Equal(t, task.StatusCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	require.NotNil(t, final.Result)
	assert.NotEmpty(t, final.Result.DocumentID)
	assert.Empty(t, final.Error)
	assert.Equal(t, 1, gen.callCount())

	// Every stage was visited, in order, with monotone progress.
	assert.Equal(t, []task.Status{
		task.StatusExtracting,
		task.StatusRewriting,
		task.StatusPublishing,
		task.StatusCompleted,
	}, e.tasks.statuses)
	prev := -1
	for _, p := range e.tasks.progress {
		assert.GreaterOrEqual(t, p, prev)
		prev = p
	}

	doc, err := e.docs.GetDocument(ctx, final.Result.DocumentID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Rewritten Title", doc.Title)
	assert.Equal(t, "Rewritten body.", doc.Content)
}

func TestRun_ChunkFailureAbortsWithoutPublishing(t *testing.T) {
	gen := &fakeGenerator{failOn: 2}
	e := setup(t, gen, &fakeExtractor{}, func(cfg *Config) {
		cfg.ChunkSize = 100
		cfg.ChunkOverlap = 0
	})
	ctx := context.Background()

	para := strings.Repeat("Sentence text here. ", 4) // ~80 chars
	source := strings.TrimSpace(para) + "\n\n" + strings.TrimSpace(para) + "\n\n" + strings.TrimSpace(para)

	created, err := e.queue.Create(ctx, task.Source{Kind: task.SourceText, Value: source}, task.Options{})
	require.NoError(t, err)

	err = e.pipeline.Run(ctx, created.ID)
	require.Error(t, err)

	final, err := e.queue.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, final.Status)
	assert.Contains(t, final.Error, "chunk 2/3")
	assert.Nil(t, final.Result)

	// Publishing never happened.
	assert.Equal(t, 0, e.docs.created)
}

func TestRun_ChunkedTextMergesSequentially(t *testing.T) {
	gen := &fakeGenerator{response: "rewritten part"}
	e := setup(t, gen, &fakeExtractor{}, func(cfg *Config) {
		cfg.ChunkSize = 100
		cfg.ChunkOverlap = 0
	})
	ctx := context.Background()

	para := strings.TrimSpace(strings.Repeat("Sentence text here. ", 4))
	source := para + "\n\n" + para + "\n\n" + para

	created, err := e.queue.Create(ctx, task.Source{Kind: task.SourceText, Value: source}, task.Options{})
	require.NoError(t, err)

	require.NoError(t, e.pipeline.Run(ctx, created.ID))

	final, _ := e.queue.Get(ctx, created.ID)
	require.Equal(t, task.StatusCompleted, final.Status)
	assert.Equal(t, 3, gen.callCount())

	doc, err := e.docs.GetDocument(ctx, final.Result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "rewritten part\n\nrewritten part\n\nrewritten part", doc.Content)
}

func TestRun_ContentTooShortFailsBeforeAnyAICall(t *testing.T) {
	gen := &fakeGenerator{}
	e := setup(t, gen, &fakeExtractor{}, nil)
	ctx := context.Background()

	created, err := e.queue.Create(ctx, task.Source{Kind: task.SourceText, Value: "way too short"}, task.Options{})
	require.NoError(t, err)

	err = e.pipeline.Run(ctx, created.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, extract.ErrTooShort)

	final, _ := e.queue.Get(ctx, created.ID)
	assert.Equal(t, task.StatusFailed, final.Status)
	assert.Contains(t, final.Error, "too short")
	assert.Equal(t, 0, gen.callCount())
	assert.Equal(t, 0, e.docs.created)
}

func TestRun_ExtractionErrorPreservedVerbatim(t *testing.T) {
	gen := &fakeGenerator{}
	ext := &fakeExtractor{err: errors.New("connection refused by origin")}
	e := setup(t, gen, ext, nil)
	ctx := context.Background()

	created, err := e.queue.Create(ctx, task.Source{Kind: task.SourceURL, Value: "https://example.com/a"}, task.Options{})
	require.NoError(t, err)

	require.Error(t, e.pipeline.Run(ctx, created.ID))

	final, _ := e.queue.Get(ctx, created.ID)
	assert.Equal(t, task.StatusFailed, final.Status)
	assert.Contains(t, final.Error, "connection refused by origin")
	assert.Equal(t, 0, gen.callCount())
}

func TestRun_UnparseableResponseDegradesToRawBody(t *testing.T) {
	raw := "The model just wrote prose instead of the payload we asked for."
	gen := &fakeGenerator{response: raw}
	e := setup(t, gen, &fakeExtractor{}, nil)
	ctx := context.Background()

	source := "Some source material that is clearly long enough to rewrite."
	created, err := e.queue.Create(ctx, task.Source{Kind: task.SourceText, Value: source}, task.Options{})
	require.NoError(t, err)

	require.NoError(t, e.pipeline.Run(ctx, created.ID))

	final, _ := e.queue.Get(ctx, created.ID)
	require.Equal(t, task.StatusCompleted, final.Status)

	doc, err := e.docs.GetDocument(ctx, final.Result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, raw, doc.Content)
	// Title falls back to the one derived from the source.
	assert.Equal(t, extract.DeriveTitle(source), doc.Title)
}

func TestRun_DuplicateTriggerIsNoOp(t *testing.T) {
	gen := &fakeGenerator{}
	e := setup(t, gen, &fakeExtractor{}, nil)
	ctx := context.Background()

	source := "Enough source material here for one complete rewrite run."
	created, err := e.queue.Create(ctx, task.Source{Kind: task.SourceText, Value: source}, task.Options{})
	require.NoError(t, err)

	require.NoError(t, e.pipeline.Run(ctx, created.ID))
	require.NoError(t, e.pipeline.Run(ctx, created.ID))

	assert.Equal(t, 1, gen.callCount())
	assert.Equal(t, 1, e.docs.created)

	final, _ := e.queue.Get(ctx, created.ID)
	assert.Equal(t, task.StatusCompleted, final.Status)
}

func TestRun_UnknownTaskIsNoOp(t *testing.T) {
	gen := &fakeGenerator{}
	e := setup(t, gen, &fakeExtractor{}, nil)

	require.NoError(t, e.pipeline.Run(context.Background(), "no-such-task"))
	assert.Equal(t, 0, gen.callCount())
}

func TestRun_CancelBetweenStages(t *testing.T) {
	gen := &fakeGenerator{}
	e := setup(t, gen, &fakeExtractor{}, nil)
	ctx := context.Background()

	source := "Source material long enough to pass the extraction length check."
	created, err := e.queue.Create(ctx, task.Source{Kind: task.SourceText, Value: source}, task.Options{})
	require.NoError(t, err)

	_, err = e.queue.Cancel(ctx, created.ID)
	require.NoError(t, err)

	require.Error(t, e.pipeline.Run(ctx, created.ID))

	final, _ := e.queue.Get(ctx, created.ID)
	assert.Equal(t, task.StatusFailed, final.Status)
	assert.Equal(t, "canceled", final.Error)
	assert.Equal(t, 0, gen.callCount())
}

func TestRun_ItemSource(t *testing.T) {
	gen := &fakeGenerator{}
	e := setup(t, gen, &fakeExtractor{}, nil)
	ctx := context.Background()

	stored, err := e.docs.Store.CreateDocument(ctx, &cms.Document{
		Title:   "Stored Item",
		Content: "Stored item body with enough text to clear the minimum length.",
	}, nil)
	require.NoError(t, err)

	created, err := e.queue.Create(ctx, task.Source{Kind: task.SourceItem, Ref: stored.ID}, task.Options{})
	require.NoError(t, err)

	require.NoError(t, e.pipeline.Run(ctx, created.ID))

	final, _ := e.queue.Get(ctx, created.ID)
	assert.Equal(t, task.StatusCompleted, final.Status)
}

func TestRun_ExplicitCategoryBeatsSuggestion(t *testing.T) {
	gen := &fakeGenerator{} // payload suggests "Suggested"
	e := setup(t, gen, &fakeExtractor{}, nil)
	ctx := context.Background()

	source := "Source material that is long enough for the rewrite pipeline."
	created, err := e.queue.Create(ctx,
		task.Source{Kind: task.SourceText, Value: source},
		task.Options{Category: "Explicit"})
	require.NoError(t, err)

	require.NoError(t, e.pipeline.Run(ctx, created.ID))

	final, _ := e.queue.Get(ctx, created.ID)
	require.Equal(t, task.StatusCompleted, final.Status)
	assert.Equal(t, "Explicit", final.Result.Category)

	suggested, err := e.docs.GetCategoryByName(ctx, "Suggested")
	require.NoError(t, err)
	assert.Nil(t, suggested)
}

func TestRun_SuggestedCategoryUsedWhenNoOption(t *testing.T) {
	gen := &fakeGenerator{}
	e := setup(t, gen, &fakeExtractor{}, nil)
	ctx := context.Background()

	source := "Source material that is long enough for the rewrite pipeline."
	created, err := e.queue.Create(ctx, task.Source{Kind: task.SourceText, Value: source}, task.Options{})
	require.NoError(t, err)

	require.NoError(t, e.pipeline.Run(ctx, created.ID))

	final, _ := e.queue.Get(ctx, created.ID)
	require.Equal(t, task.StatusCompleted, final.Status)
	assert.Equal(t, "Suggested", final.Result.Category)
}

func TestRun_PublishMetadataAttached(t *testing.T) {
	gen := &fakeGenerator{}
	e := setup(t, gen, &fakeExtractor{
		result: &extract.Result{
			URL:     "https://example.com/post",
			Title:   "Original Title",
			Content: strings.Repeat("Original content with plenty of substance. ", 5),
		},
	}, nil)
	ctx := context.Background()

	created, err := e.queue.Create(ctx,
		task.Source{Kind: task.SourceURL, Value: "https://example.com/post"},
		task.Options{Provider: "openai"})
	require.NoError(t, err)

	require.NoError(t, e.pipeline.Run(ctx, created.ID))

	final, _ := e.queue.Get(ctx, created.ID)
	require.Equal(t, task.StatusCompleted, final.Status)

	meta, err := e.docs.GetDocumentMeta(ctx, final.Result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/post", meta["source_url"])
	assert.Equal(t, "Original Title", meta["source_title"])
	assert.Equal(t, "openai", meta["provider"])
	assert.Equal(t, "one,two", meta["tags"])
	assert.NotEmpty(t, meta["rewritten_at"])
}

func TestRun_ChunkErrorMessageMentionsIndexAndTotal(t *testing.T) {
	// Direct check of the format used for diagnosability.
	err := fmt.Errorf("ai generation failed on chunk %d/%d: %w", 2, 3, errors.New("boom"))
	assert.Contains(t, err.Error(), "2")
	assert.Contains(t, err.Error(), "3")
}
