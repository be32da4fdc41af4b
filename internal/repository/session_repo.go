package repository

import (
	"context"

	"github.com/user/glance/internal/entity"
)

// BrowserSession defines the contract for the single long-lived browser the user drives.
type BrowserSession interface {
	// CurrentAddress returns the raw location of the active page.
	CurrentAddress(ctx context.Context) (string, error)
	// ExtractText reads the visible text of the page at addr, navigating there first
	// if the browser has moved elsewhere.
	ExtractText(ctx context.Context, addr entity.Address) (*entity.PageContent, error)
	// Close releases the browser. It is safe to call more than once.
	Close() error
}
