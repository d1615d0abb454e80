// Package notify delivers import summaries to recruiters over Gmail, Amazon SES
// or the application log.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Driver names accepted by New
const (
	DriverLog   = "log"
	DriverGmail = "gmail"
	DriverSES   = "ses"
)

// DefaultMaxRetries is used when Options.MaxRetries is not positive
const DefaultMaxRetries = 3

// Message is a rendered email
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Notifier sends a rendered message
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Options selects and configures a notifier
type Options struct {
	Driver     string
	From       string
	MaxRetries int

	GmailCredentialsFile string
	GmailTokenFile       string

	SESRegion string
}

// New builds the notifier named by opts.Driver, wrapped in Retrying for the
// remote drivers.
func New(ctx context.Context, opts Options, log zerolog.Logger) (Notifier, error) {
	var n Notifier
	switch strings.ToLower(opts.Driver) {
	case "", DriverLog:
		return NewLogNotifier(log), nil
	case DriverGmail:
		g, err := NewGmailNotifier(ctx, opts.GmailCredentialsFile, opts.GmailTokenFile, opts.From)
		if err != nil {
			return nil, err
		}
		n = g
	case DriverSES:
		s, err := NewSESNotifier(ctx, opts.SESRegion, opts.From)
		if err != nil {
			return nil, err
		}
		n = s
	default:
		return nil, fmt.Errorf("unknown notify driver %q", opts.Driver)
	}
	return NewRetrying(n, opts.MaxRetries, log), nil
}

// LogNotifier writes messages to the log instead of sending them
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Send(_ context.Context, msg Message) error {
	l.log.Info().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Text).
		Msg("import summary")
	return nil
}

// Retrying retries a notifier with a linear backoff of half a second per attempt
type Retrying struct {
	next       Notifier
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
}

func NewRetrying(next Notifier, maxRetries int, log zerolog.Logger) *Retrying {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Retrying{next: next, maxRetries: maxRetries, backoff: 500 * time.Millisecond, log: log}
}

// Send skips messages without recipients. It gives up after maxRetries attempts
// or as soon as ctx is done.
func (r *Retrying) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		r.log.Debug().Str("subject", msg.Subject).Msg("no recipients, notification skipped")
		return nil
	}

	var err error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		if err = r.next.Send(ctx, msg); err == nil {
			return nil
		}
		r.log.Warn().Err(err).Int("attempt", attempt).Msg("notification failed")
		if attempt == r.maxRetries {
			break
		}

		timer := time.NewTimer(r.backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("notification failed after %d attempts: %w", r.maxRetries, err)
}
