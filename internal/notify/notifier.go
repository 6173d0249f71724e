// Package notify delivers alert messages to the configured notification
// channels.
package notify

import "context"

// Notifier sends a free-form text payload to one channel.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Nop discards every message. Used when notifications are disabled.
type Nop struct{}

// Send does nothing.
func (Nop) Send(context.Context, string) error { return nil }

// Multi fans a message out to several notifiers. Every notifier is
// attempted; the first error is returned after all sends complete.
type Multi []Notifier

// Send delivers the message to all underlying notifiers.
func (m Multi) Send(ctx context.Context, text string) error {
	var firstErr error
	for _, n := range m {
		if err := n.Send(ctx, text); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
