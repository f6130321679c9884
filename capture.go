package atlasshot

import (
	"errors"
	"os"

	"github.com/root4loot/atlasshot/pkg/graph"
	"github.com/root4loot/atlasshot/pkg/municipio"
	"github.com/root4loot/atlasshot/pkg/screener"
	"github.com/root4loot/goutils/log"
)

// ErrEmptyScreenshot is returned when an engine hands back no image data.
var ErrEmptyScreenshot = errors.New("empty screenshot")

type fingerprint struct {
	hash   string
	nombre string
}

// captureMunicipio loads the report of m and captures every graph. It stops at
// the first graph that fails.
func (r *Runner) captureMunicipio(session screener.Session, m municipio.Municipio, resultsChan chan<- Result) error {
	url := graph.URLFor(r.Options.URLTemplate, string(m.ID))
	log.Debugf("Navigating to %s for %s", url, m)

	if err := session.Navigate(url); err != nil {
		return &CaptureError{Municipio: m, Err: err}
	}

	if r.Options.CookieBanner != "" {
		p, err := session.HideIfVisible(r.Options.CookieBanner, WaitTimeout)
		if err != nil {
			return &CaptureError{Municipio: m, Err: err}
		}
		log.Debugf("Cookie banner %s on %s", p, url)
	}

	for _, g := range r.Options.Graphs {
		result := r.worker(session, m, g)
		resultsChan <- result
		if result.Error != nil {
			return result.Error
		}
	}

	return nil
}

func (r *Runner) worker(session screener.Session, m municipio.Municipio, g graph.Spec) Result {
	log.Debugf("Running worker on %s for %s", g, m)

	result := Result{Municipio: m, Graph: g}
	container := g.ContainerSelector()

	if err := session.WaitVisible(container, WaitTimeout); err != nil {
		result.Error = &CaptureError{Municipio: m, Graph: g, Err: err}
		return result
	}

	for _, selector := range r.Options.HideSelectors {
		p, err := session.HideWithin(container, selector, WaitTimeout)
		if err != nil {
			result.Error = &CaptureError{Municipio: m, Graph: g, Err: err}
			return result
		}
		log.Debugf("%s in %s: %s", selector, g, p)
	}

	// Create a folder for the municipio if it doesn't exist.
	if err := os.MkdirAll(graph.OutputDir(r.Options.OutputFolder, m.Nombre), os.ModePerm); err != nil {
		result.Error = &CaptureError{Municipio: m, Graph: g, Err: err}
		return result
	}

	img, err := session.Screenshot(container)
	if err != nil {
		result.Error = &CaptureError{Municipio: m, Graph: g, Err: err}
		return result
	}
	result.Image = img

	result.Path, err = result.WriteToFolder(r.Options.OutputFolder)
	if err != nil {
		result.Error = &CaptureError{Municipio: m, Graph: g, Err: err}
		return result
	}

	if r.Options.WarnDuplicates {
		r.checkDuplicate(&result)
	}

	return result
}

// WriteToFolder writes the image to folderPath/<municipio>/<graph>.png,
// replacing any earlier capture. The municipio folder must already exist.
func (result Result) WriteToFolder(folderPath string) (string, error) {
	if len(result.Image) == 0 {
		return "", ErrEmptyScreenshot
	}

	filename := graph.OutputPath(folderPath, result.Municipio.Nombre, result.Graph)
	if err := os.WriteFile(filename, result.Image, 0o644); err != nil {
		return "", err
	}

	return filename, nil
}

// checkDuplicate warns when the capture is nearly identical to the same graph
// of another municipio, which usually means the page did not switch data.
func (r *Runner) checkDuplicate(result *Result) {
	hash, err := result.Image.Fingerprint()
	if err != nil {
		log.Debugf("Could not fingerprint %s: %v", result.Path, err)
		return
	}

	seen := r.seen[result.Graph]
	hashes := make([]string, len(seen))
	for i, f := range seen {
		if f.nombre != result.Municipio.Nombre {
			hashes[i] = f.hash
		}
	}

	idx, score, err := screener.MostSimilar(hash, hashes, r.Options.DuplicateThreshold)
	if err != nil {
		log.Warnf("Could not perform duplicate check: %v", err)
		return
	}

	if idx >= 0 {
		result.Similar = seen[idx].nombre
		log.Warnf("%s looks like the capture for %s (score %d). The page may not have refreshed.", result.Path, result.Similar, score)
	}

	r.seen[result.Graph] = append(seen, fingerprint{hash: hash, nombre: result.Municipio.Nombre})
}
