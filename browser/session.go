package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/quizwalker/extract"
	"github.com/use-agent/quizwalker/models"
)

// Session drives one page of a browser it owns exclusively.
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	router   *rod.HijackRouter
	console  *consoleLog
	log      *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return categorizeError(err, "navigation to quiz URL failed", "")
	}
	if err := p.WaitLoad(); err != nil {
		return categorizeError(err, "page did not finish loading", "")
	}
	return nil
}

// PageInfo returns the current document title and URL.
func (s *Session) PageInfo(ctx context.Context) (string, string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", "", categorizeError(err, "failed to read page info", "")
	}
	return info.Title, info.URL, nil
}

// WaitVisible polls until selector matches a visible element or ctx ends.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return categorizeError(err, "element did not appear", selector)
	}
	if err := el.WaitVisible(); err != nil {
		return categorizeError(err, "element did not become visible", selector)
	}
	return nil
}

// Click waits for selector and clicks the element.
func (s *Session) Click(ctx context.Context, selector string) error {
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return categorizeError(err, "element did not appear", selector)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return categorizeError(err, "click failed", selector)
	}
	return nil
}

// ClickIfPresent clicks selector only if it is in the DOM and visible now.
// It never waits for the element to appear.
func (s *Session) ClickIfPresent(ctx context.Context, selector string) (bool, error) {
	p := s.page.Context(ctx)
	has, el, err := p.Has(selector)
	if err != nil {
		return false, categorizeError(err, "element lookup failed", selector)
	}
	if !has {
		return false, nil
	}
	visible, err := el.Visible()
	if err != nil {
		return false, categorizeError(err, "visibility check failed", selector)
	}
	if !visible {
		return false, nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, categorizeError(err, "click failed", selector)
	}
	return true, nil
}

// Text returns the rendered text of selector.
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return "", categorizeError(err, "element did not appear", selector)
	}
	text, err := el.Text()
	if err != nil {
		return "", categorizeError(err, "failed to read text", selector)
	}
	return text, nil
}

// OptionLabels snapshots the page HTML once and parses every match of
// selector from it, which costs one round trip regardless of option count.
func (s *Session) OptionLabels(ctx context.Context, selector string) ([]string, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to read page HTML", "")
	}
	labels, err := extract.OptionLabels(html, selector)
	if err != nil {
		return nil, models.NewWalkError(models.ErrCodeScript, "failed to parse options", err)
	}
	return labels, nil
}

// ClickNth clicks the index-th match of selector.
func (s *Session) ClickNth(ctx context.Context, selector string, index int) error {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return categorizeError(err, "element query failed", selector)
	}
	if index < 0 || index >= len(els) {
		return models.NewWalkError(
			models.ErrCodeElementNotFound,
			fmt.Sprintf("option %d of %q not found (%d present)", index, selector, len(els)),
			nil,
		)
	}
	if err := els[index].Click(proto.InputMouseButtonLeft, 1); err != nil {
		return categorizeError(err, "click failed", selector)
	}
	return nil
}

// HasClass evaluates classList.contains on the live element. A missing
// element is an error, not false.
func (s *Session) HasClass(ctx context.Context, selector, class string) (bool, error) {
	res, err := s.page.Context(ctx).Eval(`(sel, cls) => {
		const el = document.querySelector(sel);
		return el ? el.classList.contains(cls) : null;
	}`, selector, class)
	if err != nil {
		return false, categorizeError(err, "class check failed", selector)
	}
	if res.Value.Nil() {
		return false, models.NewWalkError(models.ErrCodeElementNotFound, fmt.Sprintf("element %q not found", selector), nil)
	}
	return res.Value.Bool(), nil
}

// InnerHTML returns the inner HTML of selector.
func (s *Session) InnerHTML(ctx context.Context, selector string) (string, error) {
	res, err := s.page.Context(ctx).Eval(`(sel) => {
		const el = document.querySelector(sel);
		return el ? el.innerHTML : null;
	}`, selector)
	if err != nil {
		return "", categorizeError(err, "failed to read inner HTML", selector)
	}
	if res.Value.Nil() {
		return "", models.NewWalkError(models.ErrCodeElementNotFound, fmt.Sprintf("element %q not found", selector), nil)
	}
	return res.Value.Str(), nil
}

// Screenshot captures the visible viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	png, err := s.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, categorizeError(err, "screenshot failed", "")
	}
	return png, nil
}

// ConsoleMessages returns the console output captured so far.
func (s *Session) ConsoleMessages() ([]string, error) {
	if s.console == nil {
		return nil, models.NewWalkError(models.ErrCodeUnsupported, "console capture is disabled", nil)
	}
	return s.console.snapshot(), nil
}

// Close stops event consumers, closes the page and the browser, and removes
// the launcher's temporary profile. Subsequent calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.console != nil {
			s.console.stop()
		}
		if s.router != nil {
			_ = s.router.Stop()
		}
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				s.log.Debug("page close failed", "error", err)
			}
		}
		if err := s.browser.Close(); err != nil {
			s.closeErr = models.NewWalkError(models.ErrCodeBrowserCrash, "failed to close browser", err)
			s.launcher.Kill()
		}
		s.launcher.Cleanup()
	})
	return s.closeErr
}

// categorizeError wraps raw rod errors into typed WalkErrors.
func categorizeError(err error, msg, selector string) *models.WalkError {
	if selector != "" {
		msg = fmt.Sprintf("%s: %s", msg, selector)
	}

	var notFound *rod.ElementNotFoundError
	var evalErr *rod.EvalError
	switch {
	case errors.As(err, &notFound):
		return models.NewWalkError(models.ErrCodeElementNotFound, msg, err)
	case errors.Is(err, context.DeadlineExceeded):
		if selector != "" {
			return models.NewWalkError(models.ErrCodeElementNotFound, msg, err)
		}
		return models.NewWalkError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewWalkError(models.ErrCodeCanceled, "walk canceled", err)
	case errors.As(err, &evalErr):
		return models.NewWalkError(models.ErrCodeScript, msg, err)
	default:
		return models.NewWalkError(models.ErrCodeNavigation, msg, err)
	}
}
