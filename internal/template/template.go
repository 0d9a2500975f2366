// Package template loads SES email templates from disk and renders them.
//
// A template is a descriptor file named after the template, holding
// Subject.Data, Body.Text.Data and Body.Html.Data. Rendering replaces every
// literal "{{key}}" with the caller's value for key. Values are inserted
// unescaped, exactly as SES does; this is not an HTML sanitizer.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no descriptor exists for a template name.
var ErrNotFound = errors.New("template not found")

// Content is a Data-wrapped string, as in the descriptor files.
type Content struct {
	Data string `json:"Data" yaml:"Data"`
}

// Body holds the optional text and html variants of a template.
type Body struct {
	Text *Content `json:"Text,omitempty" yaml:"Text,omitempty"`
	HTML *Content `json:"Html,omitempty" yaml:"Html,omitempty"`
}

// Template is a loaded descriptor.
type Template struct {
	Subject Content `json:"Subject" yaml:"Subject"`
	Body    Body    `json:"Body" yaml:"Body"`
}

// Locator resolves the directory holding template descriptors.
type Locator interface {
	Dir() string
}

// DirLocator looks templates up in a directory, relative to the working
// directory unless absolute.
type DirLocator struct {
	Path string
}

func (l DirLocator) Dir() string { return l.Path }

// MountLocator looks templates up under a mount root, for setups where the
// templates directory is mounted into a container (e.g. /sls-offline/<path>).
type MountLocator struct {
	Root string
	Path string
}

func (l MountLocator) Dir() string { return filepath.Join(l.Root, l.Path) }

// NewLocator returns a MountLocator when path is set and a DirLocator otherwise.
func NewLocator(dir, mountRoot, path string) Locator {
	if path != "" {
		return MountLocator{Root: mountRoot, Path: path}
	}
	return DirLocator{Path: dir}
}

// descriptorExts are tried in order; JSON is the SES-native format.
var descriptorExts = []string{".json", ".yaml", ".yml"}

// Resolver loads templates through a Locator. Templates are read on every
// call so edits on disk apply to the next send.
type Resolver struct {
	locator Locator
}

// NewResolver creates a Resolver.
func NewResolver(l Locator) *Resolver {
	return &Resolver{locator: l}
}

// Load reads the descriptor for name.
func (r *Resolver) Load(name string) (*Template, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid template name %q", name)
	}

	dir := r.locator.Dir()
	for _, ext := range descriptorExts {
		path := filepath.Join(dir, name+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", path, err)
		}

		var t Template
		if ext == ".json" {
			err = json.Unmarshal(data, &t)
		} else {
			err = yaml.Unmarshal(data, &t)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", path, err)
		}
		return &t, nil
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, name, dir)
}

// Resolve loads the template for name and renders it with data.
func (r *Resolver) Resolve(name string, data map[string]string) (*Template, error) {
	t, err := r.Load(name)
	if err != nil {
		return nil, err
	}
	return t.Render(data), nil
}

// Render returns a copy of t with every {{key}} replaced by data[key].
// Placeholders without a value are left as they are.
func (t *Template) Render(data map[string]string) *Template {
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	rep := strings.NewReplacer(pairs...)

	out := &Template{Subject: Content{Data: rep.Replace(t.Subject.Data)}}
	if t.Body.Text != nil {
		out.Body.Text = &Content{Data: rep.Replace(t.Body.Text.Data)}
	}
	if t.Body.HTML != nil {
		out.Body.HTML = &Content{Data: rep.Replace(t.Body.HTML.Data)}
	}
	return out
}

// ParseData decodes a TemplateData JSON object. String values are used as-is;
// any other value is used as its literal JSON text (42, true, null, {...}).
func ParseData(raw string) (map[string]string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("invalid TemplateData: %w", err)
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if len(v) > 0 && v[0] == '"' {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				out[k] = s
				continue
			}
		}
		out[k] = string(v)
	}
	return out, nil
}

// ParseDataValue is ParseData for a TemplateData already decoded from a JSON
// body, where it may arrive as a string or as an inline object.
func ParseDataValue(v any) (map[string]string, error) {
	switch v := v.(type) {
	case nil:
		return map[string]string{}, nil
	case string:
		return ParseData(v)
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TemplateData: %w", err)
		}
		return ParseData(string(b))
	default:
		return nil, fmt.Errorf("invalid TemplateData: expected JSON object, got %T", v)
	}
}
