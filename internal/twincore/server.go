// Package twincore provides the HTTP server, middleware chain and response
// helpers of the SES twin.
package twincore

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wondertwin-ai/twin-ses/internal/config"
)

// SESNamespace is the XML namespace of every legacy SES response.
const SESNamespace = "http://ses.amazonaws.com/doc/2010-12-01/"

// Settings is the subset of the configuration that can change at runtime.
type Settings struct {
	Latency    time.Duration
	FailRate   float64
	Verbose    bool
	WebhookURL string
}

// Twin is the base server. It wraps a chi router with the common middleware
// and provides lifecycle management.
type Twin struct {
	Config *config.Config
	Router *chi.Mux
	Logger *slog.Logger

	level    *slog.LevelVar
	mw       *Middleware
	mu       sync.RWMutex // protects settings
	settings Settings
	onUpdate []func(Settings)
}

// New creates a new Twin. level may be nil; when set, toggling "verbose" at
// runtime switches it between debug and the configured level.
func New(cfg *config.Config, logger *slog.Logger, level *slog.LevelVar) *Twin {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Twin{
		Config: cfg,
		Router: chi.NewRouter(),
		Logger: logger,
		level:  level,
		settings: Settings{
			Latency:    cfg.Latency,
			FailRate:   cfg.FailRate,
			Verbose:    cfg.Verbose,
			WebhookURL: cfg.WebhookURL,
		},
	}
	t.mw = NewMiddleware(t, logger)

	// Latency and failure middleware are always mounted; they check the
	// current settings on every request.
	t.Router.Use(chimw.RequestID)
	t.Router.Use(chimw.RealIP)
	t.Router.Use(t.mw.CORS)
	t.Router.Use(t.mw.RequestLog)
	t.Router.Use(t.mw.LatencyInjection)
	t.Router.Use(t.mw.RandomFailure)
	return t
}

// Middleware returns the middleware instance for external access (e.g., fault injection).
func (t *Twin) Middleware() *Middleware {
	return t.mw
}

// Settings returns the current runtime settings.
func (t *Twin) Settings() Settings {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.settings
}

// OnUpdate registers fn to be called after every successful UpdateConfig.
func (t *Twin) OnUpdate(fn func(Settings)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onUpdate = append(t.onUpdate, fn)
}

// GetConfig returns the current runtime configuration as a map.
// This implements the admin.ConfigProvider interface.
func (t *Twin) GetConfig() map[string]any {
	s := t.Settings()
	return map[string]any{
		"name":            t.Config.Name,
		"port":            t.Config.Port,
		"smtp_port":       t.Config.SMTPPort,
		"templates_dir":   t.Config.TemplatesDir,
		"templates_path":  t.Config.TemplatesPath,
		"templates_mount": t.Config.TemplatesMount,
		"latency":         s.Latency.String(),
		"fail_rate":       s.FailRate,
		"webhook_url":     s.WebhookURL,
		"verbose":         s.Verbose,
	}
}

// UpdateConfig updates runtime settings from a map.
// This implements the admin.ConfigProvider interface.
// All fields are validated before any are applied.
func (t *Twin) UpdateConfig(updates map[string]any) error {
	t.mu.RLock()
	next := t.settings
	t.mu.RUnlock()

	for k, v := range updates {
		switch k {
		case "latency":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("latency must be a duration string")
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("invalid latency duration: %w", err)
			}
			if d < 0 {
				return fmt.Errorf("latency must not be negative")
			}
			next.Latency = d
		case "fail_rate":
			f, ok := v.(float64)
			if !ok {
				return fmt.Errorf("fail_rate must be a number")
			}
			if f < 0 || f > 1 {
				return fmt.Errorf("fail_rate must be between 0.0 and 1.0")
			}
			next.FailRate = f
		case "verbose":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("verbose must be a boolean")
			}
			next.Verbose = b
		case "webhook_url":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("webhook_url must be a string")
			}
			next.WebhookURL = s
		case "name", "port", "smtp_port", "templates_dir", "templates_path", "templates_mount":
			return fmt.Errorf("%s cannot be changed at runtime", k)
		default:
			return fmt.Errorf("unknown config key: %s", k)
		}
	}

	t.mu.Lock()
	t.settings = next
	hooks := t.onUpdate
	t.mu.Unlock()

	if t.level != nil {
		if next.Verbose {
			t.level.Set(slog.LevelDebug)
		} else {
			t.level.Set(t.Config.LogLevel)
		}
	}
	for _, fn := range hooks {
		fn(next)
	}
	return nil
}

// Serve listens on the configured port and serves until ctx is cancelled,
// then shuts down gracefully.
func (t *Twin) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", t.Config.Port))
	if err != nil {
		return err
	}
	return t.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (t *Twin) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      t.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		t.Logger.Info("starting twin", "name", t.Config.Name, "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	t.Logger.Info("shutting down twin", "name", t.Config.Name)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeHTTP implements http.Handler so Twin can be used directly in tests.
func (t *Twin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.Router.ServeHTTP(w, r)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    http.StatusText(status),
			"code":    status,
		},
	})
}

// XML writes v as an XML document with the given status code.
func XML(w http.ResponseWriter, status int, v any) {
	body, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(status)
	w.Write([]byte(xml.Header))
	w.Write(body)
}

// ResponseMetadata is appended to every legacy SES response.
type ResponseMetadata struct {
	RequestID string `xml:"RequestId"`
}

// SESErrorResponse is the legacy SES error document.
type SESErrorResponse struct {
	XMLName   xml.Name `xml:"ErrorResponse"`
	Xmlns     string   `xml:"xmlns,attr"`
	Error     SESErrorDetail
	RequestID string `xml:"RequestId"`
}

// SESErrorDetail is the Error element of an SESErrorResponse.
type SESErrorDetail struct {
	XMLName xml.Name `xml:"Error"`
	Type    string   `xml:"Type"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

// SESError writes an error in the legacy SES query API format.
func SESError(w http.ResponseWriter, r *http.Request, status int, errType, code, message string) {
	XML(w, status, SESErrorResponse{
		Xmlns: SESNamespace,
		Error: SESErrorDetail{
			Type:    errType,
			Code:    code,
			Message: message,
		},
		RequestID: chimw.GetReqID(r.Context()),
	})
}
