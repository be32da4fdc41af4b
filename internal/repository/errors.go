package repository

import "errors"

var (
	ErrSessionUnavailable  = errors.New("browser session unavailable")
	ErrExtractionFailed    = errors.New("page text extraction failed")
	ErrNavigationRace      = errors.New("page changed while reading text")
	ErrEmptyContent        = errors.New("page has no visible text")
	ErrSummarizationFailed = errors.New("summarization failed")
	ErrInterrupted         = errors.New("interrupted")
)

// fatalError marks a failure that will not go away by retrying, such as rejected credentials.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err as unrecoverable. A nil err stays nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether any error in err's chain was marked with Fatal.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
