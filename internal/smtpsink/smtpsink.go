// Package smtpsink accepts mail over SMTP and records it in the email store,
// so applications that speak SMTP to SES can be tested against the twin.
package smtpsink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/mhale/smtpd"

	"github.com/wondertwin-ai/twin-ses/internal/rawmail"
	"github.com/wondertwin-ai/twin-ses/internal/store"
)

const appName = "twin-ses"

// Sink is an SMTP server that stores every accepted message.
type Sink struct {
	store    *store.MemoryStore
	logger   *slog.Logger
	hostname string
	maxSize  int
}

// OptionFunc configures a Sink.
type OptionFunc func(s *Sink)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) OptionFunc {
	return func(s *Sink) {
		s.logger = logger
	}
}

// WithHostname sets the hostname announced in the SMTP greeting.
func WithHostname(hostname string) OptionFunc {
	return func(s *Sink) {
		s.hostname = hostname
	}
}

// New creates a Sink writing into st.
func New(st *store.MemoryStore, options ...OptionFunc) *Sink {
	s := &Sink{
		store:   st,
		logger:  slog.Default(),
		maxSize: 25 << 20,
	}
	for _, option := range options {
		option(s)
	}
	if s.hostname == "" {
		s.hostname, _ = os.Hostname()
	}
	return s
}

// Handle records one SMTP transaction. Header recipients fill to and cc;
// envelope recipients named in no header become bcc.
func (s *Sink) Handle(origin net.Addr, from string, to []string, data []byte) error {
	msg, err := rawmail.Parse(data)
	if err != nil {
		return fmt.Errorf("parsing message from %s: %w", origin, err)
	}

	sender := from
	if sender == "" {
		sender = msg.From
	}
	dest := store.Destination{To: msg.To, Cc: msg.Cc, Bcc: []string{}}
	if len(dest.To) == 0 && len(dest.Cc) == 0 {
		dest.To = to
	} else {
		named := headerAddresses(msg.To, msg.Cc)
		for _, rcpt := range to {
			if !named[strings.ToLower(rcpt)] {
				dest.Bcc = append(dest.Bcc, rcpt)
			}
		}
	}

	rec := s.store.Append(store.EmailRecord{
		MessageID:   s.store.NextMessageID(),
		From:        sender,
		ReplyTo:     msg.ReplyTo,
		Destination: dest,
		Subject:     msg.Subject,
		Body: store.Body{
			Text: store.NewContent(msg.Text),
			HTML: store.NewContent(msg.HTML),
		},
	})
	s.logger.Debug("smtp message stored",
		slog.String("message_id", rec.MessageID),
		slog.String("origin", origin.String()),
		slog.String("from", from),
		slog.Any("to", to),
	)
	return nil
}

// headerAddresses returns the bare, lower-cased addresses of the given
// header lists.
func headerAddresses(lists ...[]string) map[string]bool {
	out := make(map[string]bool)
	for _, l := range lists {
		for _, a := range l {
			if addr, err := mail.ParseAddress(a); err == nil {
				out[strings.ToLower(addr.Address)] = true
			} else {
				out[strings.ToLower(a)] = true
			}
		}
	}
	return out
}

func (s *Sink) newServer() *smtpd.Server {
	return &smtpd.Server{
		Appname:  appName,
		Hostname: s.hostname,
		Handler:  s.Handle,
		Timeout:  5 * time.Minute,
		MaxSize:  s.maxSize,
	}
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Sink) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts SMTP connections on ln until ctx is cancelled.
func (s *Sink) Serve(ctx context.Context, ln net.Listener) error {
	srv := s.newServer()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("failed to shut down smtp sink", slog.Any("error", err))
		}
		ln.Close()
	}()

	s.logger.Info("starting smtp sink", slog.String("addr", ln.Addr().String()))
	err := srv.Serve(ln)
	if err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, smtpd.ErrServerClosed) {
		return nil
	}
	return err
}
