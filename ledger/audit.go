package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Discrepancy is a credit line whose running balances disagree with the
// balances rebuilt from its event history.
type Discrepancy struct {
	CreditLineID      CreditLineID    `json:"creditLineId"`
	StoredPrincipal   decimal.Decimal `json:"storedPrincipal"`
	ExpectedPrincipal decimal.Decimal `json:"expectedPrincipal"`
	StoredInterest    decimal.Decimal `json:"storedInterest"`
	ExpectedInterest  decimal.Decimal `json:"expectedInterest"`
}

// Reconstruct rebuilds principal and interest from the line's opening
// balance plus its events. Approval resets balances to zero and happens
// before any event, so the history is a plain sum.
func Reconstruct(line CreditLine, consumptions []ConsumptionEvent, payments []PaymentEvent) (principal, interest decimal.Decimal) {
	id := line.ID
	principal, interest = decimal.Zero, decimal.Zero
	if line.Opening != nil {
		principal, interest = line.Opening.Principal, line.Opening.Interest
	}
	for _, c := range consumptions {
		if c.CreditLineID == id {
			principal = principal.Add(c.Amount)
			interest = interest.Add(c.InterestGenerated)
		}
	}
	for _, p := range payments {
		if p.CreditLineID == id {
			principal = principal.Sub(p.PrincipalPortion)
			interest = interest.Sub(p.InterestPortion)
		}
	}
	return principal, interest
}

// Audit checks every credit line in s against its history.
func Audit(s *State) []Discrepancy {
	var out []Discrepancy
	for _, l := range s.CreditLines {
		p, i := Reconstruct(l, s.Consumptions, s.Payments)
		if IsSettled(p.Sub(l.PrincipalUtilized)) && IsSettled(i.Sub(l.InterestOwed)) {
			continue
		}
		out = append(out, Discrepancy{
			CreditLineID:      l.ID,
			StoredPrincipal:   l.PrincipalUtilized,
			ExpectedPrincipal: p,
			StoredInterest:    l.InterestOwed,
			ExpectedInterest:  i,
		})
	}
	return out
}

// Audit runs Audit over a consistent snapshot of the repository.
func (r *Repository) Audit() []Discrepancy {
	return Audit(r.Snapshot())
}

// AuditRun is the outcome of one audit pass.
type AuditRun struct {
	ID            string        `json:"id"`
	At            time.Time     `json:"at"`
	LinesChecked  int           `json:"linesChecked"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

// Clean reports whether every line matched its history.
func (a AuditRun) Clean() bool { return len(a.Discrepancies) == 0 }

// AuditLog is implemented by stores that keep a history of audit runs.
type AuditLog interface {
	SaveAuditRun(ctx context.Context, run AuditRun) error
	// AuditRuns returns the most recent runs first, at most limit of them.
	AuditRuns(ctx context.Context, limit int) ([]AuditRun, error)
}
