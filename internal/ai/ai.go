// Package ai talks to the completion provider and interprets its output.
package ai

import "context"

// Options tune a single generation call.
type Options struct {
	Model       string
	Temperature float64
}

// Response is the provider's answer to one prompt.
type Response struct {
	Text   string
	Tokens int
}

// Generator is implemented by completion providers.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (*Response, error)
}
