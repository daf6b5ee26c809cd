/*
scheduler.go - Automated ledger audit scheduler

PURPOSE:
  Periodically reconstructs every credit line's principal and interest
  from its event history and compares them with the stored running
  balances. Discrepancies are logged and, when the store keeps an audit
  log, every run is recorded for the UI.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - The audit reads a snapshot and never mutates the ledger

CONFIGURATION:
  - CheckInterval: How often to audit (default: 1 hour)
  - Enabled: Whether scheduler is active (AUDIT_INTERVAL=0 disables)

USAGE:
  scheduler := NewAuditScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - reports.go: GET /api/audit (manual run), GET /api/audit/runs
  - ledger/audit.go: Reconstruct and Audit
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tarjetacolmado/ledger/ledger"
)

// AuditScheduler runs the ledger audit on a ticker.
type AuditScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAuditScheduler creates a new scheduler.
func NewAuditScheduler(handler *Handler) *AuditScheduler {
	return &AuditScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (as *AuditScheduler) Start() {
	as.mu.Lock()
	defer as.mu.Unlock()

	log := as.Handler.Log
	if !as.Enabled || as.CheckInterval <= 0 {
		log.Info().Msg("audit scheduler disabled")
		return
	}
	if as.ticker != nil {
		return
	}

	as.ticker = time.NewTicker(as.CheckInterval)
	as.wg.Add(1)

	go as.run()

	log.Info().Dur("interval", as.CheckInterval).Msg("audit scheduler started")
}

// Stop stops the scheduler and waits for an in-flight audit to finish.
func (as *AuditScheduler) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.ticker != nil {
		as.ticker.Stop()
		close(as.stop)
		as.wg.Wait()
		as.ticker = nil
		as.Handler.Log.Info().Msg("audit scheduler stopped")
	}
}

func (as *AuditScheduler) run() {
	defer as.wg.Done()

	// Run immediately on start
	as.RunNow()

	for {
		select {
		case <-as.ticker.C:
			as.RunNow()
		case <-as.stop:
			return
		}
	}
}

// RunNow performs one audit and logs the outcome.
func (as *AuditScheduler) RunNow() {
	if _, err := as.Handler.runAudit(context.Background()); err != nil {
		as.Handler.Log.Error().Err(err).Msg("audit run not recorded")
	}
}

// runAudit audits the current snapshot and records the run. The run is
// returned even when recording it fails.
func (h *Handler) runAudit(ctx context.Context) (ledger.AuditRun, error) {
	s := h.snapshot()
	run := ledger.AuditRun{
		ID:            "audit-" + uuid.NewString(),
		At:            time.Now().UTC(),
		LinesChecked:  len(s.CreditLines),
		Discrepancies: ledger.Audit(s),
	}
	if run.Discrepancies == nil {
		run.Discrepancies = []ledger.Discrepancy{}
	}

	if run.Clean() {
		h.Log.Info().Str("run", run.ID).Int("lines", run.LinesChecked).Msg("audit clean")
	} else {
		for _, d := range run.Discrepancies {
			h.Log.Warn().
				Str("run", run.ID).
				Str("credit_line", string(d.CreditLineID)).
				Str("stored_principal", d.StoredPrincipal.StringFixed(2)).
				Str("expected_principal", d.ExpectedPrincipal.StringFixed(2)).
				Str("stored_interest", d.StoredInterest.StringFixed(2)).
				Str("expected_interest", d.ExpectedInterest.StringFixed(2)).
				Msg("audit discrepancy")
		}
	}

	if h.AuditLog != nil {
		if err := h.AuditLog.SaveAuditRun(ctx, run); err != nil {
			return run, fmt.Errorf("save audit run %s: %w", run.ID, err)
		}
	}
	return run, nil
}
