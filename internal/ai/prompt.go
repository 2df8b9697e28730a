package ai

import (
	"fmt"
	"strings"
)

// PromptOptions carry the caller hints that shape the rewrite prompt.
type PromptOptions struct {
	Language   string
	TemplateID string
}

// BuildRewritePrompt builds the full-article rewrite prompt. The model is
// asked for a fenced JSON payload; ParseArticle handles whatever comes back.
func BuildRewritePrompt(title, content string, opts PromptOptions) string {
	var hints []string
	if opts.Language != "" {
		hints = append(hints, fmt.Sprintf("Write the article in %s.", opts.Language))
	}
	if opts.TemplateID != "" {
		hints = append(hints, fmt.Sprintf("Follow the structure of template %q.", opts.TemplateID))
	}
	hintBlock := ""
	if len(hints) > 0 {
		hintBlock = "\n" + strings.Join(hints, "\n") + "\n"
	}

	return fmt.Sprintf(`You are an experienced editor. Rewrite the source material below as an original, well-structured article. Do not copy sentences verbatim; preserve all facts.

SOURCE TITLE:
%s

SOURCE MATERIAL:
%s
%s
OUTPUT REQUIREMENTS:
Return a single JSON object inside a fenced code block with this exact structure:
{
  "title": "Rewritten article title",
  "content": "Full article body in markdown",
  "excerpt": "One or two sentence summary",
  "seo_title": "Title optimized for search, max 60 characters",
  "seo_description": "Meta description, max 160 characters",
  "category": "One suggested category name",
  "tags": ["three", "to", "five", "tags"]
}

Return ONLY the fenced JSON block, no explanation before or after.`, title, content, hintBlock)
}

// BuildChunkPrompt builds the per-chunk prompt used when the source exceeds
// the single-call limit. Chunk rewrites return plain markdown, not JSON;
// the merged body is assembled by the caller.
func BuildChunkPrompt(title, content string, index, total int, opts PromptOptions) string {
	language := ""
	if opts.Language != "" {
		language = fmt.Sprintf(" Write in %s.", opts.Language)
	}

	return fmt.Sprintf(`You are an experienced editor rewriting a long article titled %q in parts. This is part %d of %d. Rewrite the following section as original, well-structured markdown prose. Do not copy sentences verbatim; preserve all facts. Do not add an introduction or conclusion for the whole article, only rewrite this section.%s

SECTION:
%s

Return ONLY the rewritten section text.`, title, index+1, total, language, content)
}
