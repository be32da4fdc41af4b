package repository

import "context"

// Summarizer defines the contract for the remote language-model service.
type Summarizer interface {
	// Summarize returns a natural-language summary of text produced by model.
	Summarize(ctx context.Context, text, model string) (string, error)
}
