// Package schema implements the structural request validation used by the SES
// operations. A Schema declares, per field, the expected kind and an optional
// pattern, plus the set of required fields. Validation is type-level only: it
// never inspects address syntax, list bounds or cross-field consistency.
// Fields not declared by a schema are accepted as-is.
package schema

import (
	"fmt"
	"regexp"
	"sort"
)

// Kind is the JSON type a field must have.
type Kind int

const (
	KindString Kind = iota
	KindObject
	KindArray
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field describes one property of a schema.
type Field struct {
	Kind    Kind
	Pattern *regexp.Regexp // strings only
	Items   Kind           // element kind for arrays
	Schema  *Schema        // nested shape for objects
}

// Schema is the declared shape of one operation's request body.
type Schema struct {
	Name     string
	Fields   map[string]Field
	Required []string
}

// ValidationError reports the first field that does not match the schema.
type ValidationError struct {
	Schema string
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Schema, e.Path, e.Reason)
}

// String is a string field with no pattern.
func String() Field { return Field{Kind: KindString} }

// Literal is a string field that must match pattern.
func Literal(pattern string) Field {
	return Field{Kind: KindString, Pattern: regexp.MustCompile(pattern)}
}

// Object is a nested object field.
func Object(s *Schema) Field { return Field{Kind: KindObject, Schema: s} }

// ArrayOf is an array field whose elements all have the given kind.
func ArrayOf(k Kind) Field { return Field{Kind: KindArray, Items: k} }

// Valid reports whether body matches the schema.
func (s *Schema) Valid(body map[string]any) bool {
	return s.Validate(body) == nil
}

// Validate checks body against the schema and returns a *ValidationError
// describing the first mismatch, or nil.
func (s *Schema) Validate(body map[string]any) error {
	return s.validate(body, "")
}

func (s *Schema) validate(body map[string]any, prefix string) error {
	for _, name := range s.Required {
		if _, ok := body[name]; !ok {
			return s.fail(prefix+name, "is required")
		}
	}

	// Deterministic order keeps error details stable between runs.
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v, ok := body[name]
		if !ok {
			continue
		}
		if err := s.check(s.Fields[name], v, prefix+name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schema) check(f Field, v any, path string) error {
	if !hasKind(v, f.Kind) {
		return s.fail(path, "must be of type "+f.Kind.String())
	}
	switch f.Kind {
	case KindString:
		if f.Pattern != nil && !f.Pattern.MatchString(v.(string)) {
			return s.fail(path, fmt.Sprintf("must match pattern %q", f.Pattern.String()))
		}
	case KindObject:
		if f.Schema != nil {
			if err := f.Schema.validate(v.(map[string]any), path+"."); err != nil {
				if ve, ok := err.(*ValidationError); ok {
					ve.Schema = s.Name
				}
				return err
			}
		}
	case KindArray:
		for i, item := range v.([]any) {
			if !hasKind(item, f.Items) {
				return s.fail(fmt.Sprintf("%s[%d]", path, i), "must be of type "+f.Items.String())
			}
		}
	}
	return nil
}

func (s *Schema) fail(path, reason string) error {
	return &ValidationError{Schema: s.Name, Path: path, Reason: reason}
}

func hasKind(v any, k Kind) bool {
	switch k {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindObject:
		_, ok := v.(map[string]any)
		return ok
	case KindArray:
		_, ok := v.([]any)
		return ok
	case KindNumber:
		_, ok := v.(float64)
		return ok
	case KindBool:
		_, ok := v.(bool)
		return ok
	}
	return false
}
