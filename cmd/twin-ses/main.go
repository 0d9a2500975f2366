// twin-ses is a WonderTwin twin that simulates Amazon SES.
// It implements the v1 query API (SendEmail, SendRawEmail, SendTemplatedEmail)
// with form-encoded requests and XML responses, and the v2 SendEmail JSON API.
// Accepted emails are kept in memory and served from GET /store.
//
// SDK compatibility target: @aws-sdk/client-ses, @aws-sdk/client-sesv2, aws-sdk-go-v2
// Integration method: point the SDK endpoint at http://localhost:8005
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/wondertwin-ai/twin-ses/internal/admin"
	"github.com/wondertwin-ai/twin-ses/internal/api"
	"github.com/wondertwin-ai/twin-ses/internal/config"
	"github.com/wondertwin-ai/twin-ses/internal/smtpsink"
	"github.com/wondertwin-ai/twin-ses/internal/store"
	"github.com/wondertwin-ai/twin-ses/internal/template"
	"github.com/wondertwin-ai/twin-ses/internal/twincore"
	"github.com/wondertwin-ai/twin-ses/internal/webhook"
)

func main() {
	var cfg config.Config
	kongCtx := kong.Parse(&cfg,
		kong.Name("twin-ses"),
		kong.Description("Local twin of the Amazon SES email API."),
		kong.Configuration(config.YAML, config.DefaultConfigFiles...),
	)
	cfg.Name = "twin-ses"

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, level := cfg.NewLogger()
	twin := twincore.New(&cfg, logger, level)
	memStore := store.New()

	// Template lookup: ./<templates-dir> or <templates-mount>/<templates-path>
	locator := template.NewLocator(cfg.TemplatesDir, cfg.TemplatesMount, cfg.TemplatesPath)
	resolver := template.NewResolver(locator)

	// Webhook notification of every stored email
	dispatcher := webhook.NewDispatcher(webhook.Config{
		URL:         cfg.WebhookURL,
		Secret:      cfg.WebhookSecret,
		Logger:      logger,
		AutoDeliver: cfg.WebhookURL != "",
	})
	memStore.Observe(dispatcher.NotifySent)
	twin.OnUpdate(func(s twincore.Settings) {
		dispatcher.SetURL(s.WebhookURL)
	})

	// API handlers
	apiHandler := api.NewHandler(memStore, twin.Middleware(), resolver, logger)

	// Admin control plane
	adminHandler := admin.NewHandler(memStore, twin.Middleware(), memStore.Clock)
	adminHandler.SetFlusher(dispatcher)
	adminHandler.SetConfigProvider(twin)
	adminHandler.Routes(twin.Router)
	apiHandler.Routes(twin.Router)

	// Load seed data if provided
	if cfg.SeedFile != "" {
		data, err := os.ReadFile(cfg.SeedFile)
		kongCtx.FatalIfErrorf(err, "failed to read seed file")
		kongCtx.FatalIfErrorf(memStore.LoadState(data), "failed to load seed data")
		logger.Info("loaded seed data", "file", cfg.SeedFile, "emails", memStore.Count())
	}

	logger.Info("twin-ses ready",
		"port", cfg.Port,
		"smtp_port", cfg.SMTPPort,
		"templates", locator.Dir(),
		"webhook_url", cfg.WebhookURL,
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return twin.Serve(egCtx)
	})
	if cfg.SMTPPort > 0 {
		sink := smtpsink.New(memStore, smtpsink.WithLogger(logger))
		eg.Go(func() error {
			return sink.ListenAndServe(egCtx, fmt.Sprintf(":%d", cfg.SMTPPort))
		})
	}

	err := eg.Wait()
	dispatcher.Wait()
	kongCtx.FatalIfErrorf(err, "server error")
}
