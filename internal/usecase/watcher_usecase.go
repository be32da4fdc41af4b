package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/user/glance/internal/entity"
	"github.com/user/glance/internal/repository"
	"github.com/user/glance/pkg/utils"
)

// ObservationStatus is the outcome of one location read.
type ObservationStatus int

const (
	// ObservationReady carries a usable address.
	ObservationReady ObservationStatus = iota
	// ObservationInvalid means the location was empty or a browser-internal page.
	ObservationInvalid
	// ObservationUnavailable means the session could not be read.
	ObservationUnavailable
)

func (s ObservationStatus) String() string {
	switch s {
	case ObservationReady:
		return "ready"
	case ObservationInvalid:
		return "invalid"
	case ObservationUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Observation is what the watcher saw on one poll.
type Observation struct {
	Address entity.Address
	Status  ObservationStatus
	Err     error
}

// NavigationWatcher reads the session's current location and filters out
// locations that are not worth summarizing.
type NavigationWatcher struct {
	session  repository.BrowserSession
	prefixes []string
	logger   *zap.Logger
}

// NewNavigationWatcher creates a watcher. Locations starting with any of
// ignoredPrefixes are reported as invalid.
func NewNavigationWatcher(session repository.BrowserSession, ignoredPrefixes []string, logger *zap.Logger) *NavigationWatcher {
	return &NavigationWatcher{
		session:  session,
		prefixes: ignoredPrefixes,
		logger:   logger.Named("watcher"),
	}
}

// Observe polls the session once.
func (w *NavigationWatcher) Observe(ctx context.Context) Observation {
	raw, err := w.session.CurrentAddress(ctx)
	if err != nil {
		return Observation{
			Status: ObservationUnavailable,
			Err:    fmt.Errorf("%w: %w", repository.ErrSessionUnavailable, err),
		}
	}

	loc := strings.TrimSpace(raw)
	if loc == "" || utils.HasAnyPrefix(loc, w.prefixes) {
		w.logger.Debug("Ignoring location", zap.String("url", loc))
		return Observation{Status: ObservationInvalid}
	}

	return Observation{Address: entity.Address(loc), Status: ObservationReady}
}
