/*
transition.go - Pure balance transitions on a CreditLine

PURPOSE:
  Each function takes a CreditLine by value and returns the next value.
  Nothing here touches collections, clocks or storage; the Engine wraps
  these with lookup, event append and persistence.

RULES:
  Approve:  pending -> active, balances reset to zero
  Consume:  reject if amount > ApprovedLimit - PrincipalUtilized;
            interest = amount * InterestRate, frozen into the event
  Pay:      interest-first waterfall; principal clamps at zero and the
            unapplied remainder is reported as Excess
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Allocation is how a payment was split.
type Allocation struct {
	Interest  decimal.Decimal
	Principal decimal.Decimal
	Excess    decimal.Decimal
}

// Approve activates a pending line.
func Approve(line CreditLine, at time.Time) (CreditLine, error) {
	if line.State != StatePending {
		return line, invalid("state", "credit line is "+string(line.State)+", not pending")
	}
	line.State = StateActive
	line.PrincipalUtilized = decimal.Zero
	line.InterestOwed = decimal.Zero
	line.Opening = nil
	approved := at
	line.ApprovedAt = &approved
	return line, nil
}

// Consume charges amount against the line and returns the interest generated.
// The whole amount is rejected when it does not fit in the available balance.
func Consume(line CreditLine, amount decimal.Decimal) (CreditLine, decimal.Decimal, error) {
	if !amount.IsPositive() {
		return line, decimal.Zero, invalid("amount", "must be greater than zero")
	}
	if line.State != StateActive {
		return line, decimal.Zero, invalid("state", "credit line is "+string(line.State)+", not active")
	}

	available := line.Available()
	if available.LessThan(amount) {
		return line, decimal.Zero, &InsufficientBalanceError{
			CreditLineID: line.ID,
			Available:    available,
			Requested:    amount,
			Shortfall:    amount.Sub(available),
		}
	}

	interest := amount.Mul(line.InterestRate)
	line.PrincipalUtilized = line.PrincipalUtilized.Add(amount)
	line.InterestOwed = line.InterestOwed.Add(interest)
	return line, interest, nil
}

// Pay applies amount to interest first, then principal. Principal never goes
// below zero: whatever remains after both are cleared is returned as Excess.
func Pay(line CreditLine, amount decimal.Decimal) (CreditLine, Allocation, error) {
	if !amount.IsPositive() {
		return line, Allocation{}, invalid("amount", "must be greater than zero")
	}

	owed := decimal.Max(line.InterestOwed, decimal.Zero)
	toInterest := decimal.Min(amount, owed)
	remainder := amount.Sub(toInterest)

	principal := decimal.Max(line.PrincipalUtilized, decimal.Zero)
	toPrincipal := decimal.Min(remainder, principal)
	excess := remainder.Sub(toPrincipal)

	line.InterestOwed = line.InterestOwed.Sub(toInterest)
	line.PrincipalUtilized = line.PrincipalUtilized.Sub(toPrincipal)
	return line, Allocation{Interest: toInterest, Principal: toPrincipal, Excess: excess}, nil
}
