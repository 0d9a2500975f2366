package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Field is one top-level key/value pair of a legacy request body.
type Field struct {
	Key   string
	Value any
}

// Fields is a legacy request body in wire order. Order matters: indexed list
// members are collected in the order the client sent them.
type Fields []Field

// ParseForm parses an application/x-www-form-urlencoded body, keeping the
// order of its pairs.
func ParseForm(body []byte) (Fields, error) {
	var out Fields
	for _, pair := range strings.Split(string(body), "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("invalid form key %q: %w", k, err)
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("invalid form value for %q: %w", key, err)
		}
		out = append(out, Field{Key: key, Value: val})
	}
	return out, nil
}

// ParseJSONFields parses a flat JSON object, keeping the order of its keys.
// Nested values are decoded as generic JSON values.
func ParseJSONFields(body []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("invalid JSON body: expected object")
	}

	var out Fields
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("invalid JSON body: expected key, got %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("invalid JSON value for %q: %w", key, err)
		}
		out = append(out, Field{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return out, nil
}

// Get returns the string value of the first field named key, or "".
func (f Fields) Get(key string) string {
	for _, fld := range f {
		if fld.Key == key {
			return stringify(fld.Value)
		}
	}
	return ""
}

// Has reports whether a field named key is present.
func (f Fields) Has(key string) bool {
	for _, fld := range f {
		if fld.Key == key {
			return true
		}
	}
	return false
}

// WithPrefix returns the values of every field whose name starts with prefix,
// in wire order. An empty prefix matches nothing.
func (f Fields) WithPrefix(prefix string) []string {
	out := make([]string, 0)
	if prefix == "" {
		return out
	}
	for _, fld := range f {
		if strings.HasPrefix(fld.Key, prefix) {
			out = append(out, stringify(fld.Value))
		}
	}
	return out
}

// Map returns the fields as a generic JSON object for schema validation.
// A key repeated in a form body becomes an array of its values.
func (f Fields) Map() map[string]any {
	m := make(map[string]any, len(f))
	for _, fld := range f {
		prev, seen := m[fld.Key]
		if !seen {
			m[fld.Key] = fld.Value
			continue
		}
		if arr, ok := prev.([]any); ok {
			m[fld.Key] = append(arr, fld.Value)
		} else {
			m[fld.Key] = []any{prev, fld.Value}
		}
	}
	return m
}

func stringify(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
