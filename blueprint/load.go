package blueprint

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/sbl8/ssccs/field"
	"github.com/sbl8/ssccs/scheme"
)

// Format names a blueprint source format.
type Format string

// Source formats
const (
	FormatYAML Format = "yaml"
	FormatDSL  Format = "dsl"
)

// FormatOf picks the format from the extension of location; anything that
// is not .ssd is read as YAML.
func FormatOf(location string) Format {
	if strings.EqualFold(path.Ext(location), ".ssd") {
		return FormatDSL
	}
	return FormatYAML
}

// Parse decodes and validates a blueprint. A DSL source becomes a document
// holding only the scheme.
func Parse(data []byte, format Format) (*Document, error) {
	doc := &Document{}
	switch format {
	case FormatDSL:
		spec, err := ParseDSL(data)
		if err != nil {
			return nil, fmt.Errorf("blueprint: %w", err)
		}
		doc.Scheme = *spec
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(doc); err != nil {
			return nil, fmt.Errorf("blueprint: decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("blueprint: unknown format %q", format)
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Load downloads the blueprint at URL through fs, which may be nil for the
// default service. Local paths and any scheme afs supports are accepted.
func Load(ctx context.Context, fs afs.Service, URL string) (*Document, error) {
	if fs == nil {
		fs = afs.New()
	}
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("blueprint: load %s: %w", URL, err)
	}
	doc, err := Parse(data, FormatOf(URL))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", URL, err)
	}
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(path.Base(URL), path.Ext(URL))
	}
	return doc, nil
}

// BuildScheme builds the described scheme.
func (d *Document) BuildScheme() (scheme.Scheme, error) {
	return d.Scheme.Build()
}

// BuildField builds the described field, or an empty one.
func (d *Document) BuildField() (*field.Field, error) {
	return d.Field.Build()
}
