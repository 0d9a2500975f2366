package template

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestResolveSubstitutes(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "greeting.json", `{"Subject":{"Data":"Hi {{name}}"},"Body":{"Text":{"Data":"Bye {{name}}, {{name}}"}}}`)

	r := NewResolver(DirLocator{Path: dir})
	got, err := r.Resolve("greeting", map[string]string{"name": "Joe"})
	require.NoError(t, err)

	assert.Equal(t, "Hi Joe", got.Subject.Data)
	require.NotNil(t, got.Body.Text)
	assert.Equal(t, "Bye Joe, Joe", got.Body.Text.Data)
	assert.Nil(t, got.Body.HTML)
}

func TestRenderUnmatchedPlaceholderAndUnusedKey(t *testing.T) {
	tpl := &Template{
		Subject: Content{Data: "Hello {{first}} {{last}}"},
		Body:    Body{HTML: &Content{Data: "<b>{{first}}</b>"}},
	}
	got := tpl.Render(map[string]string{"first": "Ada", "unused": "x"})

	assert.Equal(t, "Hello Ada {{last}}", got.Subject.Data)
	assert.Equal(t, "<b>Ada</b>", got.Body.HTML.Data)
	// The source template is untouched.
	assert.Equal(t, "Hello {{first}} {{last}}", tpl.Subject.Data)
}

func TestRenderDoesNotEscape(t *testing.T) {
	tpl := &Template{Body: Body{HTML: &Content{Data: "<p>{{v}}</p>"}}}
	got := tpl.Render(map[string]string{"v": "<script>&"})
	assert.Equal(t, "<p><script>&</p>", got.Body.HTML.Data)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "welcome.yaml", "Subject:\n  Data: Welcome {{user}}\nBody:\n  Html:\n    Data: <h1>{{user}}</h1>\n")

	got, err := NewResolver(DirLocator{Path: dir}).Resolve("welcome", map[string]string{"user": "kim"})
	require.NoError(t, err)
	assert.Equal(t, "Welcome kim", got.Subject.Data)
	assert.Equal(t, "<h1>kim</h1>", got.Body.HTML.Data)
	assert.Nil(t, got.Body.Text)
}

func TestLoadNotFound(t *testing.T) {
	_, err := NewResolver(DirLocator{Path: t.TempDir()}).Load("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "broken.json", `{"Subject":`)

	_, err := NewResolver(DirLocator{Path: dir}).Load("broken")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestLoadRejectsPathTraversal(t *testing.T) {
	r := NewResolver(DirLocator{Path: t.TempDir()})
	for _, name := range []string{"", "../etc/passwd", "a/b", ".."} {
		_, err := r.Load(name)
		assert.Error(t, err, "name %q", name)
	}
}

func TestNewLocator(t *testing.T) {
	assert.Equal(t, DirLocator{Path: "email-templates"}, NewLocator("email-templates", "/sls-offline", ""))

	l := NewLocator("email-templates", "/sls-offline", "templates/ses")
	assert.Equal(t, filepath.Join("/sls-offline", "templates/ses"), l.Dir())
}

func TestMountLocatorResolves(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tpl"), 0o755))
	writeTemplate(t, filepath.Join(root, "tpl"), "t.json", `{"Subject":{"Data":"s"},"Body":{"Text":{"Data":"b"}}}`)

	got, err := NewResolver(MountLocator{Root: root, Path: "tpl"}).Resolve("t", nil)
	require.NoError(t, err)
	assert.Equal(t, "s", got.Subject.Data)
}

func TestParseData(t *testing.T) {
	got, err := ParseData(`{"name":"Joe","count":3,"ok":true,"none":null}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Joe", "count": "3", "ok": "true", "none": "null"}, got)

	got, err = ParseData(`{}`)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseData(`not json`)
	assert.Error(t, err)
}

func TestParseDataValue(t *testing.T) {
	got, err := ParseDataValue(map[string]any{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "b"}, got)

	got, err = ParseDataValue(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseDataValue(float64(1))
	assert.Error(t, err)
}
