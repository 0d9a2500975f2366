// Package config defines the twin's command-line configuration, its YAML
// config-file loader and logger construction.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

// DefaultPort is the port SES clients are conventionally pointed at.
const DefaultPort = 8005

// DefaultConfigFiles are read, when present, before flags and environment.
var DefaultConfigFiles = []string{"twin-ses.yaml", "~/.wondertwin/twin-ses.yaml"}

// Config holds the twin configuration. Values come from flags, then
// environment, then a YAML config file, then defaults.
type Config struct {
	ConfigFile kong.ConfigFlag `name:"config" help:"Path to a YAML configuration file." env:"TWIN_SES_CONFIG" optional:""`

	Port           int    `name:"port" help:"HTTP listen port." env:"PORT" default:"8005"`
	TemplatesDir   string `name:"templates-dir" help:"Directory holding email templates, relative to the working directory." env:"TWIN_SES_TEMPLATES_DIR" default:"email-templates"`
	TemplatesPath  string `name:"templates-path" help:"Template directory below --templates-mount; overrides --templates-dir." env:"TWIN_SES_TEMPLATES_PATH" optional:""`
	TemplatesMount string `name:"templates-mount" help:"Mount root used with --templates-path." env:"TWIN_SES_TEMPLATES_MOUNT" default:"/sls-offline"`
	SMTPPort       int    `name:"smtp-port" help:"Also accept mail over SMTP on this port (0 disables)." env:"TWIN_SES_SMTP_PORT" default:"0"`

	Latency       time.Duration `name:"latency" help:"Base simulated latency." env:"TWIN_SES_LATENCY" default:"0s"`
	FailRate      float64       `name:"fail-rate" help:"Random failure rate 0.0-1.0." env:"TWIN_SES_FAIL_RATE" default:"0"`
	WebhookURL    string        `name:"webhook-url" help:"URL notified of every accepted email." env:"TWIN_SES_WEBHOOK_URL" optional:""`
	WebhookSecret string        `name:"webhook-secret" help:"HMAC secret for webhook signatures." env:"TWIN_SES_WEBHOOK_SECRET" optional:""`
	SeedFile      string        `name:"seed-file" help:"Path to JSON fixture for initial state." env:"TWIN_SES_SEED_FILE" optional:""`
	Verbose       bool          `name:"verbose" help:"Enable request/response logging." env:"TWIN_SES_VERBOSE"`
	LogLevel      slog.Level    `name:"log-level" help:"Log level." env:"TWIN_SES_LOG_LEVEL" default:"INFO" enum:"DEBUG,INFO,WARN,ERROR"`

	Name string `kong:"-"`
}

// Validate implements kong's validation hook.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.SMTPPort < 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("smtp-port %d out of range", c.SMTPPort)
	}
	if c.SMTPPort != 0 && c.SMTPPort == c.Port {
		return errors.New("smtp-port must differ from port")
	}
	if c.FailRate < 0 || c.FailRate > 1 {
		return errors.New("fail-rate must be between 0.0 and 1.0")
	}
	if c.Latency < 0 {
		return errors.New("latency must not be negative")
	}
	return nil
}

// NewLogger builds the twin logger: coloured text on a terminal, JSON on
// stdout otherwise. The returned LevelVar lets the level change at runtime.
func (c *Config) NewLogger() (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(c.LogLevel)
	if c.Verbose {
		level.Set(slog.LevelDebug)
	}

	var handler slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) {
		handler = tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{Level: level, TimeFormat: time.TimeOnly})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler), level
}

// YAML is a kong.ConfigurationLoader reading flat YAML files whose keys are
// flag names, e.g. "templates-dir: ./tpl" (underscores are accepted too).
func YAML(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return kong.ResolverFunc(func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		for _, key := range []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")} {
			v, ok := values[key]
			if !ok || v == nil {
				continue
			}
			return fmt.Sprint(v), nil
		}
		return nil, nil
	}), nil
}
