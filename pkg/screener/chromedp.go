package screener

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/root4loot/goutils/log"
)

func init() {
	register(chromedpEngine{})
	timeoutErrors = append(timeoutErrors, chromedp.ErrPollingTimeout)
}

type chromedpEngine struct{}

func (chromedpEngine) Name() string { return "chromedp" }

// CustomFlags returns the exec allocator flags derived from options.
func CustomFlags(options Options) []chromedp.ExecAllocatorOption {
	var customFlags []chromedp.ExecAllocatorOption

	// Headless mode
	customFlags = append(customFlags, chromedp.Flag("headless", options.Headless))

	if !options.RespectCertificateErrors {
		customFlags = append(customFlags, chromedp.Flag("ignore-certificate-errors", true))
	}

	if options.UserAgent != "" {
		customFlags = append(customFlags, chromedp.UserAgent(options.UserAgent))
	}

	return customFlags
}

// Open starts Chrome through an exec allocator and applies the viewport.
func (chromedpEngine) Open(ctx context.Context, options Options) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], CustomFlags(options)...)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	cctx, cancelContext := chromedp.NewContext(allocCtx)

	s := &chromedpSession{
		ctx:     cctx,
		options: options,
		cancel: func() {
			cancelContext()
			cancelAlloc()
		},
	}

	var emulate []chromedp.EmulateViewportOption
	if options.Mobile {
		emulate = append(emulate, chromedp.EmulateMobile, chromedp.EmulateTouch)
	}

	if err := chromedp.Run(cctx, chromedp.EmulateViewport(int64(options.CaptureWidth), int64(options.CaptureHeight), emulate...)); err != nil {
		s.cancel()
		return nil, fmt.Errorf("error starting browser: %w", err)
	}

	log.Debug("chromedp: browser ready")
	return s, nil
}

type chromedpSession struct {
	ctx     context.Context
	cancel  func()
	options Options
}

func (s *chromedpSession) Navigate(url string) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.options.NavigationTimeout)
	defer cancel()

	// Start from a blank document so fragment-only URL changes still reload.
	if err := chromedp.Run(ctx, chromedp.Navigate("about:blank")); err != nil {
		return fmt.Errorf("error navigating to %s: %w", url, err)
	}

	loaded := make(chan struct{}, 1)
	lctx, stopListening := context.WithCancel(ctx)
	defer stopListening()

	chromedp.ListenTarget(lctx, func(ev interface{}) {
		if _, ok := ev.(*page.EventDomContentEventFired); ok {
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errorText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("page load error %s", errorText)
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("error navigating to %s: %w", url, err)
	}

	select {
	case <-loaded:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s did not load: %w", url, ctx.Err())
	}
}

func (s *chromedpSession) WaitVisible(selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%s not visible after %v: %w", selector, timeout, err)
	}
	return nil
}

func (s *chromedpSession) HideIfVisible(selector string, timeout time.Duration) (Presence, error) {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	var nodes []*cdp.Node
	err := chromedp.Run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.NodeVisible))
	if p, err := presence(err); p == Absent {
		return p, err
	}

	if err := s.callOn(nodes[0], hideScript); err != nil {
		return Found, fmt.Errorf("error hiding %s: %w", selector, err)
	}
	return Found, nil
}

func (s *chromedpSession) HideWithin(container, selector string, timeout time.Duration) (Presence, error) {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	var parents, nodes []*cdp.Node
	err := chromedp.Run(ctx,
		chromedp.Nodes(container, &parents, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.FromNode(parents[0])).Do(ctx)
		}),
	)
	if p, err := presence(err); p == Absent {
		return p, err
	}

	if err := s.callOn(nodes[0], hideScript); err != nil {
		return Found, fmt.Errorf("error hiding %s: %w", selector, err)
	}
	return Found, nil
}

// callOn runs the function declaration fn with the node bound to this.
func (s *chromedpSession) callOn(node *cdp.Node, fn string) error {
	return chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(node.NodeID).Do(ctx)
		if err != nil {
			return err
		}

		_, exception, err := runtime.CallFunctionOn(fn).WithObjectID(obj.ObjectID).Do(ctx)
		if err != nil {
			return err
		}
		if exception != nil {
			return exception
		}
		return nil
	}))
}

func (s *chromedpSession) Screenshot(selector string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.options.NavigationTimeout)
	defer cancel()

	var img []byte
	err := chromedp.Run(ctx,
		chromedp.Evaluate("("+noAnimationScript+")()", nil),
		chromedp.Screenshot(selector, &img, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil {
		return nil, fmt.Errorf("error capturing screenshot of %s: %w", selector, err)
	}
	return img, nil
}

func (s *chromedpSession) Close() error {
	defer s.cancel()
	return chromedp.Cancel(s.ctx)
}
