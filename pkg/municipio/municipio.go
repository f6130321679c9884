package municipio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/root4loot/goutils/fileutil"
)

// ErrNotFound is returned by Select when no record matches the selector.
var ErrNotFound = errors.New("no matching municipio found")

// ID is a municipality identifier. The dataset stores it either as a string or
// as a number; numbers keep their literal text.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrapf(err, "invalid municipio id %s", data)
	}
	*id = ID(n.String())
	return nil
}

// Municipio is one entry of the dataset.
type Municipio struct {
	ID     ID     `json:"id"`
	Nombre string `json:"nombre"`
}

// Valid reports whether both the id and the name are present.
func (m Municipio) Valid() bool {
	return strings.TrimSpace(string(m.ID)) != "" && strings.TrimSpace(m.Nombre) != ""
}

func (m Municipio) String() string {
	return m.Nombre + " (" + string(m.ID) + ")"
}

type document struct {
	Municipio  []Municipio `json:"municipio"`
	Municipios []Municipio `json:"municipios"`
}

// list prefers the "municipio" key and falls back to "municipios".
func (doc document) list() []Municipio {
	if doc.Municipio != nil {
		return doc.Municipio
	}
	return doc.Municipios
}

// Parse decodes a dataset document and returns its records in file order.
func Parse(r io.Reader) ([]Municipio, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode municipio list")
	}
	return doc.list(), nil
}

// Load reads the dataset at path.
func Load(path string) ([]Municipio, error) {
	var doc document
	if err := fileutil.DeserializeFromFile(path, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed to load municipio list %s", path)
	}
	return doc.list(), nil
}

// Select returns the records whose id or name equals selector, keeping their
// order. An empty selector selects every record.
func Select(selector string, list []Municipio) ([]Municipio, error) {
	selector = strings.TrimSpace(selector)

	selected := list
	if selector != "" {
		selected = nil
		for _, m := range list {
			if string(m.ID) == selector || m.Nombre == selector {
				selected = append(selected, m)
			}
		}
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNotFound, selector)
	}
	return selected, nil
}
