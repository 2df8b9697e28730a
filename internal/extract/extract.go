// Package extract pulls readable content out of web pages and raw text for
// the rewrite pipeline.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/naozine/nz-html-fetch/pkg/htmlfetch"
)

// MinContentLength is the smallest amount of extracted text worth sending to
// the AI provider. Anything shorter fails the task before any AI call.
const MinContentLength = 40

// maxTitleLength bounds titles derived from content.
const maxTitleLength = 120

// ErrTooShort is returned when extraction produced too little content.
var ErrTooShort = errors.New("extracted content is too short")

// Result is what extraction hands to the pipeline.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Options configure the underlying browser fetcher.
type Options struct {
	Stealth     bool
	Proxy       string
	BrowserPath string
	WaitTime    time.Duration
}

// Client fetches pages headlessly and converts them to markdown.
type Client struct {
	fetcher *htmlfetch.Fetcher
}

func NewClient(opts *Options) (*Client, error) {
	var fetcherOpts []htmlfetch.Option

	if opts != nil {
		if opts.BrowserPath != "" {
			fetcherOpts = append(fetcherOpts, htmlfetch.WithBrowserPath(opts.BrowserPath))
		}
		if opts.Proxy != "" {
			fetcherOpts = append(fetcherOpts, htmlfetch.WithProxy(opts.Proxy))
		}
		fetcherOpts = append(fetcherOpts, htmlfetch.WithStealth(opts.Stealth))
	}

	fetcher := htmlfetch.New(fetcherOpts...)

	if err := fetcher.Start(); err != nil {
		return nil, err
	}

	return &Client{fetcher: fetcher}, nil
}

func (c *Client) Close() error {
	if c.fetcher != nil {
		return c.fetcher.Close()
	}
	return nil
}

// Fetch retrieves a URL as markdown and derives a title from its content.
func (c *Client) Fetch(ctx context.Context, url string) (*Result, error) {
	result, err := c.fetcher.Fetch(ctx, url, htmlfetch.WithMarkdown())
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	content := strings.TrimSpace(result.Markdown)
	if err := Validate(content); err != nil {
		return nil, err
	}

	return &Result{
		URL:     result.FinalURL,
		Title:   DeriveTitle(content),
		Content: content,
	}, nil
}

// Validate checks the minimum useful length.
func Validate(content string) error {
	if len(strings.TrimSpace(content)) < MinContentLength {
		return fmt.Errorf("%w: %d characters, need at least %d", ErrTooShort, len(content), MinContentLength)
	}
	return nil
}

// DeriveTitle takes the first non-empty line, strips markdown heading
// markers, and truncates to a readable length.
func DeriveTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(line, "#"))
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > maxTitleLength {
			line = string(runes[:maxTitleLength])
		}
		return line
	}
	return ""
}
