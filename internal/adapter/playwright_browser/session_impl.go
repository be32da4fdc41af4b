package playwright_browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/user/glance/internal/adapter/htmltext"
	"github.com/user/glance/internal/entity"
	"github.com/user/glance/internal/repository"
)

// Extraction modes.
const (
	ModeVisible = "visible"
	ModeHTML    = "html"
)

var errNotLaunched = errors.New("browser not launched")

// Options configures the Playwright session.
type Options struct {
	Headless bool
	StartURL string
	Mode     string
	// Install downloads the driver and Chromium before the first run.
	Install     bool
	ReadTimeout time.Duration
	SettleDelay time.Duration
}

// SessionImpl drives one Chromium page through Playwright.
type SessionImpl struct {
	opts   Options
	logger *zap.Logger

	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page

	// Playwright objects are not safe for concurrent use.
	mu        sync.Mutex
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
	return &SessionImpl{
		opts:   opts,
		logger: l.Named("playwright"),
		now:    time.Now,
	}
}

// Launch starts the Playwright driver, a Chromium instance, and the page the user will drive.
func (s *SessionImpl) Launch(ctx context.Context) error {
	return s.await(ctx, func() error {
		runOpts := &playwright.RunOptions{
			Verbose: false,
			Stdout:  io.Discard,
			Stderr:  io.Discard,
		}
		if s.opts.Install {
			if err := playwright.Install(runOpts); err != nil {
				return fmt.Errorf("failed to install playwright: %w", err)
			}
		}

		pw, err := playwright.Run(runOpts)
		if err != nil {
			return fmt.Errorf("failed to start playwright: %w", err)
		}
		s.pw = pw

		browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: &s.opts.Headless,
		})
		if err != nil {
			s.shutdown()
			return fmt.Errorf("failed to launch browser: %w", err)
		}
		s.browser = browser

		bctx, err := browser.NewContext()
		if err != nil {
			s.shutdown()
			return fmt.Errorf("failed to create context: %w", err)
		}
		s.bctx = bctx

		page, err := bctx.NewPage()
		if err != nil {
			s.shutdown()
			return fmt.Errorf("failed to create page: %w", err)
		}
		page.SetDefaultTimeout(float64(s.opts.ReadTimeout.Milliseconds()))
		s.page = page

		if s.opts.StartURL != "" {
			if err := s.gotoLocked(s.opts.StartURL); err != nil {
				s.shutdown()
				return err
			}
		}

		s.logger.Info("Browser launched", zap.Bool("headless", s.opts.Headless))
		return nil
	})
}

// CurrentAddress returns the page's URL.
func (s *SessionImpl) CurrentAddress(ctx context.Context) (string, error) {
	var loc string
	err := s.await(ctx, func() error {
		if s.page == nil {
			return errNotLaunched
		}
		if s.page.IsClosed() {
			return errors.New("page closed")
		}
		loc = s.page.URL()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to read current location: %w", err)
	}
	return loc, nil
}

// ExtractText reads the page's text for addr, navigating back first if the user has moved on.
func (s *SessionImpl) ExtractText(ctx context.Context, addr entity.Address) (*entity.PageContent, error) {
	var content *entity.PageContent
	err := s.await(ctx, func() error {
		if s.page == nil {
			return errNotLaunched
		}
		if s.page.URL() != addr.String() {
			if err := s.gotoLocked(addr.String()); err != nil {
				return err
			}
		}

		state := playwright.LoadStateLoad
		if err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{State: state}); err != nil {
			return fmt.Errorf("waiting for %s failed: %w", addr, err)
		}
		if s.opts.SettleDelay > 0 {
			s.page.WaitForTimeout(float64(s.opts.SettleDelay.Milliseconds()))
		}

		title, err := s.page.Title()
		if err != nil {
			return fmt.Errorf("reading title of %s failed: %w", addr, err)
		}

		var text string
		if s.opts.Mode == ModeHTML {
			raw, err := s.page.Content()
			if err != nil {
				return fmt.Errorf("reading %s failed: %w", addr, err)
			}
			p, err := htmltext.Extract(raw)
			if err != nil {
				return fmt.Errorf("parsing %s failed: %w", addr, err)
			}
			text = p.Text
		} else {
			text, err = s.page.Locator("body").InnerText()
			if err != nil {
				return fmt.Errorf("reading %s failed: %w", addr, err)
			}
		}

		if after := s.page.URL(); after != addr.String() {
			return fmt.Errorf("%w: expected %s, now at %s", repository.ErrNavigationRace, addr, after)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			return fmt.Errorf("%w: %s", repository.ErrEmptyContent, addr)
		}

		content = &entity.PageContent{
			Address:     addr,
			Title:       title,
			Text:        text,
			ExtractedAt: s.now(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

// Close releases the page, the browser and the driver. Only the first call does work.
func (s *SessionImpl) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		err = s.shutdown()
		s.logger.Info("Browser session released")
	})
	return err
}

func (s *SessionImpl) gotoLocked(url string) error {
	waitUntil := playwright.WaitUntilStateLoad
	if _, err := s.page.Goto(url, playwright.PageGotoOptions{WaitUntil: waitUntil}); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (s *SessionImpl) shutdown() error {
	var errs []error
	if s.page != nil {
		errs = append(errs, s.page.Close())
		s.page = nil
	}
	if s.bctx != nil {
		errs = append(errs, s.bctx.Close())
		s.bctx = nil
	}
	if s.browser != nil {
		errs = append(errs, s.browser.Close())
		s.browser = nil
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
		s.pw = nil
	}
	return errors.Join(errs...)
}

// await runs fn under the session lock and returns early when ctx is done.
// Playwright calls cannot be cancelled, so fn keeps the lock until its own
// timeouts expire; Close waits for it.
func (s *SessionImpl) await(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
