package entity

import "time"

// Summary is the language-model digest of one PageContent.
// It is emitted once and never stored.
type Summary struct {
	Address   Address
	Model     string
	Text      string
	CreatedAt time.Time
}
