// Package webhook notifies an HTTP endpoint of every email the twin accepts,
// with retry and optional HMAC signing.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/wondertwin-ai/twin-ses/internal/store"
)

// SignatureHeader carries the HMAC signature of a delivery.
const SignatureHeader = "X-Twin-Signature"

// EventTypeSend is the event type of an accepted email, as in SES event publishing.
const EventTypeSend = "Send"

// maxHistory bounds the delivered-event history and the delivery log.
const maxHistory = 1000

// Signer signs webhook payloads.
type Signer interface {
	// Sign returns headers to add to the webhook request for signature verification.
	Sign(payload []byte, secret string) map[string]string
}

// HMACSigner signs payloads as "t={unix},v1={hex hmac-sha256(secret, t.payload)}".
type HMACSigner struct {
	now func() time.Time
}

// NewHMACSigner creates a new HMACSigner.
func NewHMACSigner() *HMACSigner {
	return &HMACSigner{now: time.Now}
}

// Sign implements Signer.
func (s *HMACSigner) Sign(payload []byte, secret string) map[string]string {
	ts := s.now().Unix()
	return map[string]string{
		SignatureHeader: fmt.Sprintf("t=%d,v1=%s", ts, ComputeSignature(ts, payload, secret)),
	}
}

// ComputeSignature returns the hex HMAC-SHA256 of "{timestamp}.{payload}".
func ComputeSignature(timestamp int64, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Event is one notification.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"eventType"`
	Mail      Mail      `json:"mail"`
	CreatedAt time.Time `json:"created_at"`
}

// Mail is the SES-style mail object of an event.
type Mail struct {
	MessageID     string        `json:"messageId"`
	Source        string        `json:"source"`
	Destination   []string      `json:"destination"`
	Timestamp     string        `json:"timestamp"`
	CommonHeaders CommonHeaders `json:"commonHeaders"`
}

// CommonHeaders mirrors SES's commonHeaders block.
type CommonHeaders struct {
	From    []string `json:"from"`
	To      []string `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	Bcc     []string `json:"bcc,omitempty"`
	ReplyTo []string `json:"replyTo,omitempty"`
	Subject string   `json:"subject"`
}

// MailFromRecord builds the event mail object of a stored email.
func MailFromRecord(rec store.EmailRecord) Mail {
	dest := make([]string, 0, len(rec.Destination.To)+len(rec.Destination.Cc)+len(rec.Destination.Bcc))
	dest = append(dest, rec.Destination.To...)
	dest = append(dest, rec.Destination.Cc...)
	dest = append(dest, rec.Destination.Bcc...)
	return Mail{
		MessageID:   rec.MessageID,
		Source:      rec.From,
		Destination: dest,
		Timestamp:   time.Unix(rec.At, 0).UTC().Format(time.RFC3339),
		CommonHeaders: CommonHeaders{
			From:    []string{rec.From},
			To:      rec.Destination.To,
			Cc:      rec.Destination.Cc,
			Bcc:     rec.Destination.Bcc,
			ReplyTo: rec.ReplyTo,
			Subject: rec.Subject,
		},
	}
}

// Delivery records a webhook delivery attempt.
type Delivery struct {
	EventID    string    `json:"event_id"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	Error      string    `json:"error,omitempty"`
	Attempt    int       `json:"attempt"`
	Timestamp  time.Time `json:"timestamp"`
}

// Config configures the dispatcher.
type Config struct {
	URL         string
	Secret      string
	Signer      Signer
	Logger      *slog.Logger
	MaxRetries  int
	RetryDelay  time.Duration
	AutoDeliver bool // deliver in the background as soon as an event is enqueued
}

// Dispatcher manages outbound webhook delivery.
type Dispatcher struct {
	mu          sync.RWMutex
	url         string
	secret      string
	signer      Signer
	logger      *slog.Logger
	queue       []Event
	history     []Event
	deliveries  []Delivery
	maxRetries  int
	retryDelay  time.Duration
	client      *http.Client
	counter     int
	autoDeliver bool
	wg          sync.WaitGroup
}

// NewDispatcher creates a new webhook dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 1 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Signer == nil {
		cfg.Signer = NewHMACSigner()
	}

	return &Dispatcher{
		url:         cfg.URL,
		secret:      cfg.Secret,
		signer:      cfg.Signer,
		logger:      cfg.Logger,
		queue:       make([]Event, 0),
		deliveries:  make([]Delivery, 0),
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		client:      &http.Client{Timeout: 30 * time.Second},
		autoDeliver: cfg.AutoDeliver,
	}
}

// SetURL updates the webhook delivery URL.
func (d *Dispatcher) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

// URL returns the webhook delivery URL.
func (d *Dispatcher) URL() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.url
}

// NotifySent enqueues a Send event for rec. It is a no-op while no URL is set.
func (d *Dispatcher) NotifySent(rec store.EmailRecord) {
	if d.URL() == "" {
		return
	}
	d.Enqueue(EventTypeSend, MailFromRecord(rec))
}

// Enqueue adds an event. With AutoDeliver it is delivered in the background,
// otherwise it waits for Flush.
func (d *Dispatcher) Enqueue(eventType string, mail Mail) Event {
	d.mu.Lock()
	d.counter++
	evt := Event{
		ID:        fmt.Sprintf("evt_%06d", d.counter),
		Type:      eventType,
		Mail:      mail,
		CreatedAt: time.Now(),
	}
	auto := d.autoDeliver
	if auto {
		d.remember(evt)
	} else {
		d.queue = append(d.queue, evt)
	}
	d.mu.Unlock()

	if auto {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.deliverEvent(context.Background(), evt); err != nil {
				d.logger.Warn("webhook delivery failed", "event_id", evt.ID, "err", err)
			}
		}()
	}
	return evt
}

// remember appends evt to the bounded history. Callers hold d.mu.
func (d *Dispatcher) remember(evt Event) {
	if len(d.history) >= maxHistory {
		d.history = d.history[1:]
	}
	d.history = append(d.history, evt)
}

// Flush delivers all queued events synchronously and returns the last error.
func (d *Dispatcher) Flush(ctx context.Context) error {
	d.mu.Lock()
	events := d.queue
	d.queue = make([]Event, 0)
	for _, evt := range events {
		d.remember(evt)
	}
	d.mu.Unlock()

	var lastErr error
	for _, evt := range events {
		if err := d.deliverEvent(ctx, evt); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// FlushWebhooks implements admin.WebhookFlusher.
func (d *Dispatcher) FlushWebhooks() error {
	return d.Flush(context.Background())
}

// Wait blocks until background deliveries have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliverEvent(ctx context.Context, evt Event) error {
	d.mu.RLock()
	url := d.url
	secret := d.secret
	signer := d.signer
	d.mu.RUnlock()

	if url == "" {
		d.logger.Debug("no webhook URL configured, skipping delivery", "event_id", evt.ID)
		return nil
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if signer != nil && secret != "" {
			for k, v := range signer.Sign(payload, secret) {
				req.Header.Set(k, v)
			}
		}

		resp, err := d.client.Do(req)
		delivery := Delivery{
			EventID:   evt.ID,
			URL:       url,
			Attempt:   attempt,
			Timestamp: time.Now(),
		}
		if err != nil {
			delivery.Error = err.Error()
			lastErr = err
		} else {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			delivery.StatusCode = resp.StatusCode
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				d.record(delivery)
				return nil
			}
			lastErr = fmt.Errorf("webhook delivery failed: status %d", resp.StatusCode)
		}
		d.record(delivery)

		if attempt < d.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.retryDelay):
			}
		}
	}
	return lastErr
}

func (d *Dispatcher) record(delivery Delivery) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.deliveries) >= maxHistory {
		d.deliveries = d.deliveries[1:]
	}
	d.deliveries = append(d.deliveries, delivery)
}

// Deliveries returns all delivery records.
func (d *Dispatcher) Deliveries() []Delivery {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Delivery, len(d.deliveries))
	copy(out, d.deliveries)
	return out
}

// QueuedEvents returns all queued but undelivered events.
func (d *Dispatcher) QueuedEvents() []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Event, len(d.queue))
	copy(out, d.queue)
	return out
}

// Events returns delivered (or delivering) events followed by queued ones.
func (d *Dispatcher) Events() []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Event, 0, len(d.history)+len(d.queue))
	out = append(out, d.history...)
	out = append(out, d.queue...)
	return out
}

// Reset clears all events, deliveries, and the queue.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = make([]Event, 0)
	d.history = nil
	d.deliveries = make([]Delivery, 0)
	d.counter = 0
}
