package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"farewatch/internal/domain"
	"farewatch/internal/notify"
	"farewatch/internal/storage"
)

// Broadcaster pushes a delivered alert to live subscribers. The websocket
// hub implements it; a nil Broadcaster disables live fan-out.
type Broadcaster interface {
	BroadcastAlert(alert domain.AlertRecord)
}

// Options configures a Dispatcher.
type Options struct {
	Alerts      storage.AlertStore
	Notifier    notify.Notifier
	Broadcaster Broadcaster
	Logger      zerolog.Logger

	// MaxRetries bounds delivery attempts per alert beyond the first try.
	MaxRetries uint64
	// RetryInterval is the initial backoff between delivery attempts.
	RetryInterval time.Duration
}

// Result summarizes one dispatch batch.
type Result struct {
	Delivered int
	Failed    int
	Errors    []string
}

// Dispatcher persists alerts and delivers them through the configured
// notifier. A failure on one alert never blocks the rest of the batch.
type Dispatcher struct {
	alerts      storage.AlertStore
	notifier    notify.Notifier
	broadcaster Broadcaster
	logger      zerolog.Logger

	maxRetries    uint64
	retryInterval time.Duration
}

func New(opts Options) *Dispatcher {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 2 * time.Second
	}
	return &Dispatcher{
		alerts:        opts.Alerts,
		notifier:      opts.Notifier,
		broadcaster:   opts.Broadcaster,
		logger:        opts.Logger,
		maxRetries:    opts.MaxRetries,
		retryInterval: opts.RetryInterval,
	}
}

// Dispatch persists and delivers each alert in order. The alert row is
// written before the first delivery attempt so the dedupe key survives a
// crash mid-delivery; undelivered rows keep Delivered=false.
func (d *Dispatcher) Dispatch(ctx context.Context, alerts []domain.AlertRecord) Result {
	var res Result
	for _, alert := range alerts {
		if err := d.dispatchOne(ctx, alert); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("alert %s: %v", alert.AlertID, err))
			d.logger.Error().Err(err).
				Str("alert_id", alert.AlertID).
				Str("route", alert.Origin+"-"+alert.Destination).
				Msg("alert delivery failed")
			continue
		}
		res.Delivered++
	}
	return res
}

func (d *Dispatcher) dispatchOne(ctx context.Context, alert domain.AlertRecord) error {
	alert.Delivered = false
	if err := d.alerts.Insert(ctx, &alert); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil
		}
		return fmt.Errorf("persist alert: %w", err)
	}

	if d.notifier != nil {
		expo := backoff.NewExponentialBackOff()
		expo.InitialInterval = d.retryInterval
		policy := backoff.WithContext(backoff.WithMaxRetries(expo, d.maxRetries), ctx)
		send := func() error {
			return d.notifier.Send(ctx, FormatAlert(alert))
		}
		if err := backoff.Retry(send, policy); err != nil {
			return fmt.Errorf("deliver alert: %w", err)
		}
	}

	if err := d.alerts.MarkDelivered(ctx, alert.AlertID); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}

	if d.broadcaster != nil {
		alert.Delivered = true
		d.broadcaster.BroadcastAlert(alert)
	}
	return nil
}

// FormatAlert renders the human-readable notification text.
func FormatAlert(alert domain.AlertRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Price drop on %s-%s\n", alert.Origin, alert.Destination)
	fmt.Fprintf(&b, "Now %.2f %s (baseline %.2f, down %.1f%%)",
		alert.CurrentPrice, alert.Currency, alert.PreviousPrice, alert.DropPercent)
	if alert.ZScore > 0 {
		fmt.Fprintf(&b, "\nz-score %.2f", alert.ZScore)
	}
	return b.String()
}
