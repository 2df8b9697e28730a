package ai

import (
	"encoding/json"
	"strings"
)

// Article is the structured payload a rewrite response is expected to carry.
type Article struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Excerpt        string   `json:"excerpt"`
	SEOTitle       string   `json:"seo_title"`
	SEODescription string   `json:"seo_description"`
	Category       string   `json:"category"`
	Tags           []string `json:"tags"`
}

// ParseArticle extracts the structured payload from a raw model response.
// It tries a fenced code block first, then the whole response as JSON, then
// the outermost brace pair. When nothing parses, the raw text becomes the
// article body and every other field stays empty. ParseArticle never fails.
func ParseArticle(raw string) *Article {
	candidates := []string{}

	if block, ok := extractFencedBlock(raw); ok {
		candidates = append(candidates, block)
	}
	candidates = append(candidates, strings.TrimSpace(raw))

	trimmed := strings.TrimSpace(raw)
	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start >= 0 && end > start {
		candidates = append(candidates, trimmed[start:end+1])
	}

	for _, candidate := range candidates {
		var a Article
		if err := json.Unmarshal([]byte(candidate), &a); err == nil && strings.TrimSpace(a.Content) != "" {
			return &a
		}
	}

	return &Article{Content: strings.TrimSpace(raw)}
}

// extractFencedBlock returns the contents of the first fenced code block,
// dropping an optional language tag after the opening fence.
func extractFencedBlock(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]

	if nl := strings.Index(rest, "\n"); nl >= 0 {
		// Anything between the fence and the newline is a language tag.
		rest = rest[nl+1:]
	}

	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}

	return strings.TrimSpace(rest[:end]), true
}
