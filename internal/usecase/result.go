package usecase

import "github.com/user/glance/internal/repository"

// Outcome classifies how a pipeline stage ended.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTransient
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransient:
		return "transient"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// StageResult is the explicit result of one stage of a tick.
type StageResult[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

func succeeded[T any](v T) StageResult[T] {
	return StageResult[T]{Value: v, Outcome: OutcomeSuccess}
}

func failed[T any](err error) StageResult[T] {
	outcome := OutcomeTransient
	if repository.IsFatal(err) {
		outcome = OutcomeFatal
	}
	return StageResult[T]{Outcome: outcome, Err: err}
}

// OK reports whether the stage succeeded.
func (r StageResult[T]) OK() bool { return r.Outcome == OutcomeSuccess }
