package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args []string, files ...string) (*Config, error) {
	t.Helper()
	var cfg Config
	parser, err := kong.New(&cfg, kong.Name("twin-ses"), kong.Configuration(YAML, files...))
	require.NoError(t, err)
	_, err = parser.Parse(args)
	return &cfg, err
}

// unsetPort clears PORT for the test, restoring it afterwards.
func unsetPort(t *testing.T) {
	t.Helper()
	t.Setenv("PORT", "")
	os.Unsetenv("PORT")
}

func TestDefaults(t *testing.T) {
	unsetPort(t)
	cfg, err := parse(t, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, "email-templates", cfg.TemplatesDir)
	assert.Equal(t, "/sls-offline", cfg.TemplatesMount)
	assert.Empty(t, cfg.TemplatesPath)
	assert.Equal(t, 0, cfg.SMTPPort)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestFlags(t *testing.T) {
	unsetPort(t)
	cfg, err := parse(t, []string{"--port", "9001", "--latency", "250ms", "--fail-rate", "0.5", "--templates-path", "tpl", "--log-level", "DEBUG"})
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Latency)
	assert.Equal(t, 0.5, cfg.FailRate)
	assert.Equal(t, "tpl", cfg.TemplatesPath)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestEnvPort(t *testing.T) {
	t.Setenv("PORT", "7777")
	cfg, err := parse(t, nil)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Port)
}

func TestYAMLFile(t *testing.T) {
	unsetPort(t)
	path := filepath.Join(t.TempDir(), "twin-ses.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9100\ntemplates_dir: ./tpl\nverbose: true\nlatency: 1s\n"), 0o644))

	cfg, err := parse(t, nil, path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "./tpl", cfg.TemplatesDir)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, time.Second, cfg.Latency)
}

func TestFlagsOverrideYAML(t *testing.T) {
	unsetPort(t)
	path := filepath.Join(t.TempDir(), "twin-ses.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9100\n"), 0o644))

	cfg, err := parse(t, []string{"--port", "9200"}, path)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid", Config{Port: 8005}, true},
		{"bad port", Config{Port: 70000}, false},
		{"bad fail rate", Config{Port: 8005, FailRate: 1.5}, false},
		{"negative latency", Config{Port: 8005, Latency: -time.Second}, false},
		{"same smtp port", Config{Port: 8005, SMTPPort: 8005}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewLoggerVerbose(t *testing.T) {
	cfg := &Config{Verbose: true}
	logger, level := cfg.NewLogger()
	require.NotNil(t, logger)
	assert.Equal(t, slog.LevelDebug, level.Level())
}
