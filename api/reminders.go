/*
reminders.go - Automated overdue detection and payment reminders

PURPOSE:
  Periodically sweeps outstanding invoices, flips sent/partial invoices
  past their due date to overdue, and sends payment reminders for the
  newly overdue ones.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Overdue detection is idempotent: an invoice flips once and stays
  - Reminders go out only on the flip, never again on later sweeps
  - Manual reminder sends remain available via POST /api/invoices/reminders

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  sched := NewReminderScheduler(store, notifier, log)
  sched.Start()
  // ... later
  sched.Stop()

SEE ALSO:
  - handlers.go: SendReminders endpoint (manual sends)
  - notify: Batcher used for throttled delivery
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/invoicing"
	"github.com/brightpath/tutorbill/notify"
	"github.com/brightpath/tutorbill/store/sqlite"
)

// ReminderScheduler flips overdue invoices and notifies their families.
type ReminderScheduler struct {
	Store         *sqlite.Store
	Notifier      notify.Notifier
	Log           *logrus.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReminderScheduler creates a new scheduler.
func NewReminderScheduler(store *sqlite.Store, notifier notify.Notifier, log *logrus.Logger) *ReminderScheduler {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &ReminderScheduler{
		Store:         store,
		Notifier:      notifier,
		Log:           log,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *ReminderScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Log.Info("reminder scheduler disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	rs.Log.WithField("interval", rs.CheckInterval).Info("reminder scheduler started")
}

// Stop stops the scheduler and waits for the sweep goroutine.
func (rs *ReminderScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.Log.Info("reminder scheduler stopped")
	}
}

func (rs *ReminderScheduler) run() {
	defer rs.wg.Done()

	// Sweep immediately on start
	rs.sweep()

	for {
		select {
		case <-rs.ticker.C:
			rs.sweep()
		case <-rs.stop:
			return
		}
	}
}

// sweep flips past-due invoices to overdue and sends one reminder each.
func (rs *ReminderScheduler) sweep() {
	ctx := context.Background()
	today := dates.Today()

	outstanding, err := rs.Store.ListInvoicesByStatus(ctx, invoicing.StatusSent, invoicing.StatusPartial)
	if err != nil {
		rs.Log.WithError(err).Error("reminder sweep: failed to list outstanding invoices")
		return
	}

	var flipped []invoicing.Invoice
	for i := range outstanding {
		inv := outstanding[i]
		if !inv.DueDate.Before(today) {
			continue
		}
		inv.Status = invoicing.StatusOverdue
		if err := rs.Store.UpdateInvoice(ctx, &inv); err != nil {
			rs.Log.WithError(err).WithField("invoice_id", inv.ID).Error("reminder sweep: failed to mark overdue")
			continue
		}
		flipped = append(flipped, inv)
	}

	if len(flipped) == 0 {
		return
	}

	var msgs []notify.Message
	for i := range flipped {
		inv := &flipped[i]
		family, err := rs.Store.GetFamily(ctx, inv.FamilyID)
		if err != nil || family == nil || family.Email == "" {
			continue
		}
		msgs = append(msgs, notify.Message{
			Recipient: family.Email,
			Subject:   fmt.Sprintf("Overdue invoice %s", inv.Number),
			Body: fmt.Sprintf("Invoice %s was due %s and has an outstanding balance of %s.",
				inv.Number, inv.DueDate, inv.BalanceDue()),
			Kind: "overdue_notice",
		})
	}

	result, err := notify.NewBatcher(rs.Notifier).SendAll(ctx, msgs)
	if err != nil {
		rs.Log.WithError(err).Error("reminder sweep: send interrupted")
		return
	}

	rs.Log.WithFields(logrus.Fields{
		"overdue": len(flipped),
		"sent":    result.Sent,
		"failed":  len(result.Failed),
	}).Info("reminder sweep completed")
}

// RunNow triggers an immediate sweep (for testing/admin).
func (rs *ReminderScheduler) RunNow() {
	rs.sweep()
}
