package screener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/root4loot/goutils/log"
)

func init() {
	register(playwrightEngine{})
	timeoutErrors = append(timeoutErrors, playwright.ErrTimeout)
}

const hideElementScript = `element => element.style.display = "none"`

type playwrightEngine struct{}

func (playwrightEngine) Name() string { return "playwright" }

// Open starts a Playwright driver and a WebKit browser context.
func (playwrightEngine) Open(ctx context.Context, options Options) (Session, error) {
	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"webkit"}}); err != nil {
		return nil, fmt.Errorf("install playwright: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.WebKit.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(options.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	contextOptions := playwright.BrowserNewContextOptions{
		Viewport:          &playwright.Size{Width: options.CaptureWidth, Height: options.CaptureHeight},
		IsMobile:          playwright.Bool(options.Mobile),
		IgnoreHttpsErrors: playwright.Bool(!options.RespectCertificateErrors),
	}
	if options.UserAgent != "" {
		contextOptions.UserAgent = playwright.String(options.UserAgent)
	}

	browserContext, err := browser.NewContext(contextOptions)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("new context: %w", err)
	}

	page, err := browserContext.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("new page: %w", err)
	}
	page.SetDefaultNavigationTimeout(milliseconds(options.NavigationTimeout))

	log.Debug("playwright: webkit ready")

	return &playwrightSession{
		ctx:            ctx,
		pw:             pw,
		browser:        browser,
		browserContext: browserContext,
		page:           page,
	}, nil
}

type playwrightSession struct {
	ctx            context.Context
	pw             *playwright.Playwright
	browser        playwright.Browser
	browserContext playwright.BrowserContext
	page           playwright.Page
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Milliseconds())
}

func (s *playwrightSession) Navigate(url string) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	// Start from a blank document so fragment-only URL changes still reload.
	if _, err := s.page.Goto("about:blank"); err != nil {
		return fmt.Errorf("error navigating to %s: %w", url, err)
	}

	if _, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("error navigating to %s: %w", url, err)
	}
	return nil
}

func (s *playwrightSession) waitFor(locator playwright.Locator, state *playwright.WaitForSelectorState, timeout time.Duration) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	return locator.WaitFor(playwright.LocatorWaitForOptions{
		State:   state,
		Timeout: playwright.Float(milliseconds(timeout)),
	})
}

func (s *playwrightSession) WaitVisible(selector string, timeout time.Duration) error {
	locator := s.page.Locator(selector).First()
	if err := s.waitFor(locator, playwright.WaitForSelectorStateVisible, timeout); err != nil {
		return fmt.Errorf("%s not visible after %v: %w", selector, timeout, err)
	}
	return nil
}

func (s *playwrightSession) hide(locator playwright.Locator, state *playwright.WaitForSelectorState, timeout time.Duration) (Presence, error) {
	if p, err := presence(s.waitFor(locator, state, timeout)); p == Absent {
		return p, err
	}

	if _, err := locator.Evaluate(hideElementScript, nil); err != nil {
		return Found, fmt.Errorf("error hiding element: %w", err)
	}
	return Found, nil
}

func (s *playwrightSession) HideIfVisible(selector string, timeout time.Duration) (Presence, error) {
	return s.hide(s.page.Locator(selector).First(), playwright.WaitForSelectorStateVisible, timeout)
}

func (s *playwrightSession) HideWithin(container, selector string, timeout time.Duration) (Presence, error) {
	locator := s.page.Locator(container).First().Locator(selector).First()
	return s.hide(locator, playwright.WaitForSelectorStateAttached, timeout)
}

func (s *playwrightSession) Screenshot(selector string) ([]byte, error) {
	img, err := s.page.Locator(selector).First().Screenshot(playwright.LocatorScreenshotOptions{
		Animations: playwright.ScreenshotAnimationsDisabled,
		Type:       playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("error capturing screenshot of %s: %w", selector, err)
	}
	return img, nil
}

func (s *playwrightSession) Close() error {
	return errors.Join(
		s.browserContext.Close(),
		s.browser.Close(),
		s.pw.Stop(),
	)
}
