package graph

import (
	"path/filepath"
	"strings"
)

// Spec identifies a chart component on the dashboard report page.
type Spec string

const (
	// DefaultURLTemplate is the report page for a single municipality. {id} is
	// replaced with the municipality id.
	DefaultURLTemplate = "https://atlasau.mitma.gob.es/#c=report&chapter=p03&report=r01&selgeo1=mun.{id}"

	// CookieBannerSelector matches the consent banner that overlays the page.
	CookieBannerSelector = ".cookie-notice-container"

	idPlaceholder = "{id}"
)

// DefaultGraphs are the charts captured for every municipality.
var DefaultGraphs = []Spec{
	"p03*dv003b002_A.A",
	"p03*dv003b003_A.B",
	"p03*dv003b004_A.C",
}

// DefaultHideSelectors are hidden inside each chart container before capture.
var DefaultHideSelectors = []string{
	".datavizHeader>a",
	".no-display.filter-axis",
}

// ShortName returns the part of the spec after the last ".".
func (s Spec) ShortName() string {
	str := string(s)
	if i := strings.LastIndex(str, "."); i >= 0 {
		return str[i+1:]
	}
	return str
}

// ContainerSelector returns the CSS selector of the chart container.
func (s Spec) ContainerSelector() string {
	return "[id='" + string(s) + "'] article"
}

// FileName returns the PNG file name for the chart.
func (s Spec) FileName() string {
	return s.ShortName() + ".png"
}

// HasPlaceholder reports whether the template contains the {id} placeholder.
func HasPlaceholder(template string) bool {
	return strings.Contains(template, idPlaceholder)
}

// URLFor substitutes id into the URL template.
func URLFor(template, id string) string {
	return strings.ReplaceAll(template, idPlaceholder, id)
}

// SanitizeName makes a municipality name safe to use as a single directory name.
func SanitizeName(nombre string) string {
	return strings.NewReplacer("/", "-", `\`, "-").Replace(nombre)
}

// OutputDir returns the folder holding every chart of a municipality.
func OutputDir(root, nombre string) string {
	return filepath.Join(root, SanitizeName(nombre))
}

// OutputPath returns the file a chart of a municipality is written to.
func OutputPath(root, nombre string, s Spec) string {
	return filepath.Join(OutputDir(root, nombre), s.FileName())
}
