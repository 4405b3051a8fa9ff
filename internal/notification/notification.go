// Package notification sends batch run summaries through shoutrrr service URLs.
package notification

import (
	"context"
	"io"
	"log"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/logger"
)

// DefaultTimeout bounds a single send across all URLs.
const DefaultTimeout = 10 * time.Second

// Sender delivers a message to every configured service.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// Message is a notification.
type Message struct {
	Title string
	Body  string
}

// Notifier sends messages when enabled. A nil or disabled Notifier is a no-op.
type Notifier struct {
	sender Sender
	log    logger.Logger
}

// New creates a notifier from settings. It returns a disabled notifier when
// notifications are off or no URLs are configured.
func New(cfg conf.NotificationSettings, log logger.Logger) (*Notifier, error) {
	if log == nil {
		log = logger.Global().Module("notification")
	}
	if !cfg.Enabled || len(cfg.URLs) == 0 {
		return &Notifier{log: log}, nil
	}

	sender, err := newShoutrrrSender(slices.Clone(cfg.URLs), cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return NewWithSender(sender, log), nil
}

// NewWithSender wraps an existing sender.
func NewWithSender(sender Sender, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.Global().Module("notification")
	}
	return &Notifier{sender: sender, log: log}
}

// Enabled reports whether messages will be delivered.
func (n *Notifier) Enabled() bool {
	return n != nil && n.sender != nil
}

// Notify delivers msg. Every service is attempted; the first failure is returned.
func (n *Notifier) Notify(ctx context.Context, msg Message) error {
	if !n.Enabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{}
	if msg.Title != "" {
		params.SetTitle(msg.Title)
	}

	var firstErr error
	failed := 0
	for _, err := range n.sender.Send(msg.Body, &params) {
		if err == nil {
			continue
		}
		failed++
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		n.log.Debug("notification sent", logger.String("title", msg.Title))
		return nil
	}

	// Service URLs carry tokens, keep them out of logs and telemetry.
	sanitized := logger.RedactSensitiveData(firstErr.Error())
	return errors.Newf("%d notification service(s) failed: %s", failed, sanitized).
		Component("notification").
		Category(errors.CategoryNotification).
		Build()
}

func newShoutrrrSender(urls []string, timeout time.Duration) (Sender, error) {
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.Newf("invalid notification url: %s", logger.RedactSensitiveData(err.Error())).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	sender.Timeout = timeout
	sender.SetLogger(log.New(io.Discard, "", 0))
	return sender, nil
}
