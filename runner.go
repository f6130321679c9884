package atlasshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/root4loot/atlasshot/pkg/graph"
	"github.com/root4loot/atlasshot/pkg/municipio"
	"github.com/root4loot/atlasshot/pkg/screener"
	"github.com/root4loot/goutils/log"
	"github.com/root4loot/goutils/urlutil"
)

const (
	// WaitTimeout bounds every wait for an element.
	WaitTimeout = 5 * time.Second

	// NavigationTimeout bounds a single page load.
	NavigationTimeout = 30 * time.Second
)

type Runner struct {
	Options *Options
	Engine  screener.Engine // overrides Options.Engine when set

	seen map[graph.Spec][]fingerprint
}

// Options contains options for the runner
type Options struct {
	URLTemplate              string       // Report URL, {id} is replaced with the municipio id
	Graphs                   []graph.Spec // Charts to capture, in order
	HideSelectors            []string     // Elements hidden inside each chart before capture
	CookieBanner             string       // Consent banner hidden after navigation
	OutputFolder             string       // Root folder for screenshots
	Engine                   string       // Browser engine name
	CaptureWidth             int          // Viewport width
	CaptureHeight            int          // Viewport height
	Mobile                   bool         // Emulate a mobile device
	Headless                 bool         // Run in headless mode
	UserAgent                string       // User agent to use
	RespectCertificateErrors bool         // Respect certificate errors
	KeepGoing                bool         // Continue with the next municipio after a failure
	WarnDuplicates           bool         // Warn when a chart looks like another municipio's
	DuplicateThreshold       int          // Similarity score (1-100) for WarnDuplicates
	Silence                  bool         // Silence output
	Verbose                  bool         // Verbose logging
}

type Result struct {
	Municipio municipio.Municipio
	Graph     graph.Spec
	Path      string
	Image     screener.Image
	Similar   string // Name of a municipio with a near identical capture
	Error     error
}

// CaptureError reports the municipio and chart a capture failed on.
type CaptureError struct {
	Municipio municipio.Municipio
	Graph     graph.Spec
	Err       error
}

func (e *CaptureError) Error() string {
	if e.Graph == "" {
		return fmt.Sprintf("%s: %v", e.Municipio, e.Err)
	}
	return fmt.Sprintf("%s: graph %s: %v", e.Municipio, e.Graph, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

func init() {
	log.Init("atlasshot")
}

// DefaultOptions returns default options
func DefaultOptions() *Options {
	return &Options{
		URLTemplate:        graph.DefaultURLTemplate,
		Graphs:             append([]graph.Spec(nil), graph.DefaultGraphs...),
		HideSelectors:      append([]string(nil), graph.DefaultHideSelectors...),
		CookieBanner:       graph.CookieBannerSelector,
		OutputFolder:       "graph",
		Engine:             "rod",
		CaptureWidth:       1920,
		CaptureHeight:      1080,
		Mobile:             true,
		Headless:           true,
		DuplicateThreshold: 96,
	}
}

// NewRunner returns a new runner
func NewRunner() *Runner {
	return &Runner{
		Options: DefaultOptions(),
		seen:    make(map[graph.Spec][]fingerprint),
	}
}

// NewRunnerWithOptions returns a new runner with the specified options
func NewRunnerWithOptions(options Options) *Runner {
	SetLogLevel(&options)
	log.Debug("Creating new runner with options...")

	return &Runner{
		Options: &options,
		seen:    make(map[graph.Spec][]fingerprint),
	}
}

// Validate checks the options before a run.
func (o *Options) Validate() error {
	if !urlutil.HasScheme(o.URLTemplate) {
		return fmt.Errorf("url template %q has no scheme", o.URLTemplate)
	}
	if !graph.HasPlaceholder(o.URLTemplate) {
		return fmt.Errorf("url template %q has no {id} placeholder", o.URLTemplate)
	}
	if len(o.Graphs) == 0 {
		return errors.New("no graphs to capture")
	}
	if o.OutputFolder == "" {
		return errors.New("no output folder")
	}
	if o.WarnDuplicates && (o.DuplicateThreshold < 1 || o.DuplicateThreshold > 100) {
		return fmt.Errorf("invalid duplicate threshold: %d. Must be between 1 and 100", o.DuplicateThreshold)
	}
	return nil
}

func (r *Runner) sessionOptions() screener.Options {
	options := screener.NewOptions()
	options.CaptureWidth = r.Options.CaptureWidth
	options.CaptureHeight = r.Options.CaptureHeight
	options.Mobile = r.Options.Mobile
	options.Headless = r.Options.Headless
	options.UserAgent = r.Options.UserAgent
	options.RespectCertificateErrors = r.Options.RespectCertificateErrors
	options.NavigationTimeout = NavigationTimeout
	return options
}

func (r *Runner) engine() (screener.Engine, error) {
	if r.Engine != nil {
		return r.Engine, nil
	}
	return screener.EngineByName(r.Options.Engine)
}

// RunSelected narrows list down to selector (an id or a name, empty for all)
// and captures the result. A selector that matches nothing fails before a
// browser is started.
func (r *Runner) RunSelected(ctx context.Context, selector string, list []municipio.Municipio) ([]Result, error) {
	selected, err := municipio.Select(selector, list)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, selected)
}

// Run captures every graph of every municipio and returns the results.
func (r *Runner) Run(ctx context.Context, municipios []municipio.Municipio) ([]Result, error) {
	resultsChan := make(chan Result)
	done := make(chan struct{})

	var err error
	go func() {
		defer close(done)
		err = r.RunStream(ctx, resultsChan, municipios...)
	}()

	var results []Result
	for result := range resultsChan {
		results = append(results, result)
	}
	<-done

	return results, err
}

// RunStream captures municipios in order on a single browser session and
// streams one Result per graph. resultsChan is closed on return.
func (r *Runner) RunStream(ctx context.Context, resultsChan chan<- Result, municipios ...municipio.Municipio) error {
	defer close(resultsChan)

	if err := r.Options.Validate(); err != nil {
		return err
	}

	engine, err := r.engine()
	if err != nil {
		return err
	}

	if r.seen == nil {
		r.seen = make(map[graph.Spec][]fingerprint)
	}

	var session screener.Session
	defer func() {
		if session == nil {
			return
		}
		if cerr := session.Close(); cerr != nil {
			log.Debugf("Error closing browser: %v", cerr)
		}
	}()

	var errs []error
	for _, m := range municipios {
		if !m.Valid() {
			log.Debugf("Skipping municipio with missing id or nombre: %+v", m)
			continue
		}

		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}

		if session == nil {
			log.Debugf("Starting %s browser...", engine.Name())
			session, err = engine.Open(ctx, r.sessionOptions())
			if err != nil {
				return fmt.Errorf("error starting %s browser: %w", engine.Name(), err)
			}
		}

		if err := r.captureMunicipio(session, m, resultsChan); err != nil {
			if !r.Options.KeepGoing {
				return err
			}
			log.Warnf("Skipping rest of %s: %v", m, err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// SetLogLevel initiates the logger and sets the log level based on the options
func SetLogLevel(options *Options) {
	if options.Silence {
		log.SetLevel(log.FatalLevel)
	} else if options.Verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}
