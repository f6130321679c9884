package screener

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrUnknownEngine is returned by EngineByName for unsupported engine names.
var ErrUnknownEngine = errors.New("unknown engine")

// Presence is the outcome of looking up an optional element.
type Presence int

const (
	Absent Presence = iota
	Found
)

func (p Presence) String() string {
	if p == Found {
		return "found"
	}
	return "absent"
}

// Engine launches browser sessions.
type Engine interface {
	Name() string
	Open(ctx context.Context, options Options) (Session, error)
}

// Session is a single browser page reused for every capture of a run.
type Session interface {
	// Navigate loads url and returns once the DOM has been parsed.
	Navigate(url string) error
	// WaitVisible waits for the first element matching selector to be visible.
	WaitVisible(selector string, timeout time.Duration) error
	// HideIfVisible hides selector if it becomes visible within timeout.
	HideIfVisible(selector string, timeout time.Duration) (Presence, error)
	// HideWithin hides selector inside container if it is attached within timeout.
	HideWithin(container, selector string, timeout time.Duration) (Presence, error)
	// Screenshot returns a PNG of the element matching selector.
	Screenshot(selector string) ([]byte, error)
	Close() error
}

// Options configure the browser launched by an Engine.
type Options struct {
	CaptureWidth             int    // Viewport width
	CaptureHeight            int    // Viewport height
	Mobile                   bool   // Emulate a mobile device
	Headless                 bool   // Run without a window
	UserAgent                string // User agent override
	RespectCertificateErrors bool   // Respect certificate errors
	NavigationTimeout        time.Duration
}

// NewOptions returns Options initialized with default values.
func NewOptions() Options {
	return Options{
		CaptureWidth:      1920,
		CaptureHeight:     1080,
		Mobile:            true,
		Headless:          true,
		NavigationTimeout: 30 * time.Second,
	}
}

var engines = map[string]Engine{}

func register(e Engine) {
	engines[e.Name()] = e
}

// EngineByName returns the engine registered under name.
func EngineByName(name string) (Engine, error) {
	e, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownEngine, name, EngineNames())
	}
	return e, nil
}

// EngineNames lists the registered engines.
func EngineNames() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// presence maps the error of a bounded lookup to a Presence. Only an expired
// wait counts as absent.
func presence(err error) (Presence, error) {
	switch {
	case err == nil:
		return Found, nil
	case IsTimeout(err):
		return Absent, nil
	default:
		return Absent, err
	}
}

// Scripts shared by the engines. hideScript and noAnimationScript are function
// bodies run with the element bound to this.
const (
	hideScript = `function() { this.style.display = "none"; }`

	noAnimationScript = `function() {
	if (document.getElementById("atlasshot-no-animation")) {
		return;
	}
	const style = document.createElement("style");
	style.id = "atlasshot-no-animation";
	style.textContent = "*, *::before, *::after {" +
		"animation-duration: 0s !important; animation-delay: 0s !important;" +
		"animation-iteration-count: 1 !important;" +
		"transition-duration: 0s !important; transition-delay: 0s !important;" +
		"caret-color: transparent !important; }";
	document.head.appendChild(style);
}`
)

// timeoutErrors holds the engine specific errors that signal an expired wait.
var timeoutErrors = []error{context.DeadlineExceeded}

// IsTimeout reports whether err means a bounded wait expired.
func IsTimeout(err error) bool {
	for _, target := range timeoutErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
