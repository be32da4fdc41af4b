package entity

// ProcessedStatus reports whether an address was summarized during the current run.
type ProcessedStatus struct {
	URL       string
	ID        string
	Processed bool
}
