package screener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/root4loot/goutils/log"
)

func init() {
	register(rodEngine{})
}

type rodEngine struct{}

func (rodEngine) Name() string { return "rod" }

// Open launches a local Chromium through the rod launcher and opens one page.
func (rodEngine) Open(ctx context.Context, options Options) (Session, error) {
	l := launcher.New().
		Context(ctx).
		Headless(options.Headless).
		NoSandbox(true)

	if path, has := launcher.LookPath(); has {
		l = l.Bin(path)
	}

	if options.UserAgent != "" {
		l.Set("user-agent", options.UserAgent)
	}

	if !options.RespectCertificateErrors {
		l.Set("ignore-certificate-errors", "true")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("error launching browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("error connecting to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("error opening page: %w", err)
	}

	if options.CaptureWidth != 0 && options.CaptureHeight != 0 {
		viewport := &proto.EmulationSetDeviceMetricsOverride{
			Width:             options.CaptureWidth,
			Height:            options.CaptureHeight,
			DeviceScaleFactor: 1,
			Mobile:            options.Mobile,
		}

		if err := page.SetViewport(viewport); err != nil {
			_ = browser.Close()
			l.Cleanup()
			return nil, fmt.Errorf("error setting viewport: %w", err)
		}
	}

	log.Debugf("rod: browser ready at %s", controlURL)

	return &rodSession{
		ctx:      ctx,
		launcher: l,
		browser:  browser,
		page:     page,
		options:  options,
	}, nil
}

type rodSession struct {
	ctx      context.Context
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	options  Options
}

func (s *rodSession) Navigate(url string) error {
	page := s.page.Timeout(s.options.NavigationTimeout)
	defer page.CancelTimeout()

	// Start from a blank document so fragment-only URL changes still reload.
	if err := page.Navigate("about:blank"); err != nil {
		return fmt.Errorf("error navigating to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("error navigating to %s: %w", url, err)
	}

	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("error navigating to %s: %w", url, err)
	}
	wait()

	if err := page.GetContext().Err(); err != nil {
		return fmt.Errorf("%s did not load: %w", url, err)
	}
	return nil
}

// visible returns the first element matching selector once it is visible.
func (s *rodSession) visible(selector string, timeout time.Duration) (*rod.Element, error) {
	page := s.page.Timeout(timeout)
	defer page.CancelTimeout()

	el, err := page.Element(selector)
	if err != nil {
		return nil, err
	}
	if err := el.WaitVisible(); err != nil {
		return nil, err
	}
	return el.Context(s.ctx), nil
}

func (s *rodSession) WaitVisible(selector string, timeout time.Duration) error {
	if _, err := s.visible(selector, timeout); err != nil {
		return fmt.Errorf("%s not visible after %v: %w", selector, timeout, err)
	}
	return nil
}

func (s *rodSession) HideIfVisible(selector string, timeout time.Duration) (Presence, error) {
	el, err := s.visible(selector, timeout)
	if p, err := presence(err); p == Absent {
		return p, err
	}

	if _, err := el.Eval(hideScript); err != nil {
		return Found, fmt.Errorf("error hiding %s: %w", selector, err)
	}
	return Found, nil
}

func (s *rodSession) HideWithin(container, selector string, timeout time.Duration) (Presence, error) {
	page := s.page.Timeout(timeout)
	defer page.CancelTimeout()

	parent, err := page.Element(container)
	if p, err := presence(err); p == Absent {
		return p, err
	}

	el, err := parent.Element(selector)
	if p, err := presence(err); p == Absent {
		return p, err
	}

	if _, err := el.Context(s.ctx).Eval(hideScript); err != nil {
		return Found, fmt.Errorf("error hiding %s: %w", selector, err)
	}
	return Found, nil
}

func (s *rodSession) Screenshot(selector string) ([]byte, error) {
	el, err := s.visible(selector, s.options.NavigationTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s not visible: %w", selector, err)
	}

	if _, err := s.page.Eval(noAnimationScript); err != nil {
		return nil, fmt.Errorf("error disabling animations: %w", err)
	}

	img, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("error capturing screenshot of %s: %w", selector, err)
	}
	return img, nil
}

func (s *rodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Cleanup()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
