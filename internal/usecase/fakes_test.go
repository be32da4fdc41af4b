package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/user/glance/internal/entity"
)

type fakeSession struct {
	mu        sync.Mutex
	locations []string
	calls     int
	locErr    error
	extract   func(ctx context.Context, addr entity.Address) (*entity.PageContent, error)
	extracted []entity.Address
	closed    int
}

// CurrentAddress walks through locations and then repeats the last one.
func (s *fakeSession) CurrentAddress(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locErr != nil {
		return "", s.locErr
	}
	if len(s.locations) == 0 {
		return "", nil
	}
	i := s.calls
	if i >= len(s.locations) {
		i = len(s.locations) - 1
	}
	s.calls++
	return s.locations[i], nil
}

func (s *fakeSession) ExtractText(ctx context.Context, addr entity.Address) (*entity.PageContent, error) {
	s.mu.Lock()
	s.extracted = append(s.extracted, addr)
	fn := s.extract
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, addr)
	}
	return &entity.PageContent{Address: addr, Text: "text of " + addr.String()}, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

type fakeSummarizer struct {
	mu     sync.Mutex
	inputs []string
	models []string
	fn     func(ctx context.Context, text string) (string, error)
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text, model string) (string, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, text)
	f.models = append(f.models, model)
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, text)
	}
	return "summary of " + text, nil
}

type fakeEmitter struct {
	mu      sync.Mutex
	emitted []entity.Summary
	err     error
}

func (e *fakeEmitter) Emit(_ context.Context, s entity.Summary) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.emitted = append(e.emitted, s)
	return nil
}

func (e *fakeEmitter) addresses() []entity.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]entity.Address, 0, len(e.emitted))
	for _, s := range e.emitted {
		out = append(out, s.Address)
	}
	return out
}

// fakeSleeper never waits. It cancels the run after cancelAfter sleeps when set.
type fakeSleeper struct {
	slept       []time.Duration
	cancelAfter int
	cancel      context.CancelFunc
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	if s.cancel != nil && len(s.slept) >= s.cancelAfter {
		s.cancel()
	}
	return ctx.Err()
}

// brokenSet fails the operations that have an error configured.
type brokenSet struct {
	containsErr error
	addErr      error
	seen        map[entity.Address]bool
	closed      int
}

func newBrokenSet() *brokenSet { return &brokenSet{seen: map[entity.Address]bool{}} }

func (s *brokenSet) Contains(_ context.Context, addr entity.Address) (bool, error) {
	if s.containsErr != nil {
		return false, s.containsErr
	}
	return s.seen[addr], nil
}

func (s *brokenSet) Add(_ context.Context, addr entity.Address) error {
	if s.addErr != nil {
		return s.addErr
	}
	s.seen[addr] = true
	return nil
}

func (s *brokenSet) Len(context.Context) (int, error) { return len(s.seen), nil }

func (s *brokenSet) Close(context.Context) error {
	s.closed++
	return nil
}

var errBoom = errors.New("boom")
