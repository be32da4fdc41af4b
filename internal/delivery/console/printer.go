package console

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/user/glance/internal/entity"
)

// Printer writes summaries to the terminal the user is watching.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Emit writes s as "Summary for <addr>:" followed by the text.
func (p *Printer) Emit(_ context.Context, s entity.Summary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprintf(p.w, "\nSummary for %s:\n%s\n", s.Address, s.Text); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
