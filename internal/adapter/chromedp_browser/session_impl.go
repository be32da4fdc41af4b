package chromedp_browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/glance/internal/adapter/htmltext"
	"github.com/user/glance/internal/entity"
	"github.com/user/glance/internal/repository"
	"github.com/user/glance/pkg/logger"
)

// Extraction modes.
const (
	ModeVisible = "visible"
	ModeHTML    = "html"
)

var errNotLaunched = errors.New("browser not launched")

// Options configures the chromedp session.
type Options struct {
	// RemoteURL attaches to an already running Chrome through its DevTools websocket
	// instead of launching one.
	RemoteURL string
	Headless  bool
	// StartURL is opened right after launch. Empty leaves the blank tab.
	StartURL        string
	Mode            string
	ReadTimeout     time.Duration
	LocationTimeout time.Duration
	// SettleDelay gives late scripts a moment to render before the text is read.
	SettleDelay time.Duration
}

// SessionImpl drives one Chrome tab through the DevTools protocol.
type SessionImpl struct {
	opts   Options
	logger *zap.Logger

	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	closeOnce sync.Once
	now       func() time.Time
}

// NewSession creates a session. Nothing is started until Launch.
func NewSession(opts Options, l *zap.Logger) *SessionImpl {
	if opts.Mode == "" {
		opts.Mode = ModeVisible
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.LocationTimeout <= 0 {
		opts.LocationTimeout = 5 * time.Second
	}
	return &SessionImpl{
		opts:   opts,
		logger: l.Named("chromedp"),
		now:    time.Now,
	}
}

// Launch starts Chrome, or attaches to RemoteURL, and opens the tab the user will drive.
func (s *SessionImpl) Launch(ctx context.Context) error {
	var allocCtx context.Context
	if s.opts.RemoteURL != "" {
		allocCtx, s.allocCancel = chromedp.NewRemoteAllocator(context.Background(), s.opts.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", s.opts.Headless),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	debugf := logger.Printf(s.logger)
	s.browserCtx, s.browserCancel = chromedp.NewContext(allocCtx,
		chromedp.WithLogf(debugf),
		chromedp.WithErrorf(debugf),
	)

	// The first Run allocates the browser; a timeout on it would tear the browser
	// down later, so only the caller's cancellation is honoured here.
	stop := context.AfterFunc(ctx, s.browserCancel)
	err := chromedp.Run(s.browserCtx)
	stop()
	if err == nil && s.opts.StartURL != "" {
		err = s.run(ctx, s.opts.ReadTimeout, chromedp.Navigate(s.opts.StartURL))
	}
	if err != nil {
		s.Close()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	s.logger.Info("Browser launched", zap.Bool("headless", s.opts.Headless), zap.Bool("remote", s.opts.RemoteURL != ""))
	return nil
}

// CurrentAddress returns the URL of the tab's current navigation entry. The history is
// read instead of document.location so that it works while a page is still loading.
func (s *SessionImpl) CurrentAddress(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, s.opts.LocationTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		idx, entries, err := page.GetNavigationHistory().Do(ctx)
		if err != nil {
			return err
		}
		if idx < 0 || int(idx) >= len(entries) {
			return fmt.Errorf("navigation history has no entry %d", idx)
		}
		loc = entries[idx].URL
		return nil
	}))
	if err != nil {
		return "", fmt.Errorf("failed to read current location: %w", err)
	}
	return loc, nil
}

// ExtractText reads the tab's text for addr. The tab is only navigated when it is no
// longer showing addr, so a page the user is reading is not reloaded.
func (s *SessionImpl) ExtractText(ctx context.Context, addr entity.Address) (*entity.PageContent, error) {
	loc, err := s.CurrentAddress(ctx)
	if err != nil {
		return nil, err
	}
	if loc != addr.String() {
		s.logger.Debug("Navigating back before reading", zap.String("url", addr.String()), zap.String("current", loc))
		if err := s.run(ctx, s.opts.ReadTimeout, chromedp.Navigate(addr.String())); err != nil {
			return nil, fmt.Errorf("navigation to %s failed: %w", addr, err)
		}
	}

	var title, text, rawHTML string
	actions := []chromedp.Action{chromedp.WaitReady("body", chromedp.ByQuery)}
	if s.opts.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(s.opts.SettleDelay))
	}
	actions = append(actions, chromedp.Title(&title))
	if s.opts.Mode == ModeHTML {
		actions = append(actions, chromedp.OuterHTML("html", &rawHTML, chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.Text("body", &text, chromedp.ByQuery))
	}

	if err := s.run(ctx, s.opts.ReadTimeout+s.opts.SettleDelay, actions...); err != nil {
		return nil, fmt.Errorf("reading %s failed: %w", addr, err)
	}

	if s.opts.Mode == ModeHTML {
		p, err := htmltext.Extract(rawHTML)
		if err != nil {
			return nil, fmt.Errorf("parsing %s failed: %w", addr, err)
		}
		text = p.Text
		if title == "" {
			title = p.Title
		}
	}

	after, err := s.CurrentAddress(ctx)
	if err != nil {
		return nil, err
	}
	if after != addr.String() {
		return nil, fmt.Errorf("%w: expected %s, now at %s", repository.ErrNavigationRace, addr, after)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: %s", repository.ErrEmptyContent, addr)
	}

	return &entity.PageContent{
		Address:     addr,
		Title:       title,
		Text:        text,
		ExtractedAt: s.now(),
	}, nil
}

// Close shuts the browser down, or detaches from a remote one. Only the first call does work.
func (s *SessionImpl) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.browserCtx != nil {
			err = chromedp.Cancel(s.browserCtx)
			s.browserCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
		s.logger.Info("Browser session released")
	})
	return err
}

// run executes actions against the tab, bounded by timeout and by the caller's context.
func (s *SessionImpl) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if s.browserCtx == nil {
		return errNotLaunched
	}
	runCtx, cancel := context.WithTimeout(s.browserCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
