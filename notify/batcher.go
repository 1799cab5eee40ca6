/*
batcher.go - Throttled bulk sending

PURPOSE:
  Bulk sends (monthly payment reminders go to every family with an
  outstanding invoice) are chunked into fixed-size batches with a pause
  between batches, so a burst never trips downstream rate limits. Per-item
  failures are collected, not fatal: one bad address must not stop the
  other reminders.
*/
package notify

import (
	"context"
	"time"
)

// SendFailure records one message that could not be delivered.
type SendFailure struct {
	Recipient string
	Reason    string
}

// BatchResult is the outcome of a bulk send.
type BatchResult struct {
	Sent     int
	Failed   []SendFailure
	Duration time.Duration
}

// Batcher throttles bulk sends through a Notifier.
type Batcher struct {
	Notifier  Notifier
	BatchSize int
	// Delay is the pause between batches, not between messages.
	Delay time.Duration
}

// NewBatcher returns a Batcher with sensible throttling defaults.
func NewBatcher(n Notifier) *Batcher {
	return &Batcher{Notifier: n, BatchSize: 25, Delay: time.Second}
}

// SendAll delivers every message, pausing between batches. Context
// cancellation stops between sends; messages already delivered stay
// counted in the result.
func (b *Batcher) SendAll(ctx context.Context, msgs []Message) (*BatchResult, error) {
	size := b.BatchSize
	if size <= 0 {
		size = 25
	}

	start := time.Now()
	result := &BatchResult{}
	for i, msg := range msgs {
		if i > 0 && i%size == 0 && b.Delay > 0 {
			select {
			case <-time.After(b.Delay):
			case <-ctx.Done():
				result.Duration = time.Since(start)
				return result, ctx.Err()
			}
		}

		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		if err := b.Notifier.Send(ctx, msg); err != nil {
			result.Failed = append(result.Failed, SendFailure{Recipient: msg.Recipient, Reason: err.Error()})
			continue
		}
		result.Sent++
	}
	result.Duration = time.Since(start)
	return result, nil
}
