package entity

import "time"

// PageContent is the visible text read from one observation of an Address.
// It lives for a single pipeline tick and is discarded after summarization.
type PageContent struct {
	Address     Address
	Title       string
	Text        string
	ExtractedAt time.Time
}
