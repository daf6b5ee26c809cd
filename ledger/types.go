/*
Package ledger provides the credit-ledger accounting engine.

PURPOSE:
  Store owners ("colmados") extend revolving credit to customers. This
  package owns how a credit line's principal-utilized and interest-owed
  balances evolve in response to approval, consumption and payment events,
  and the in-memory repository those balances live in.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal amounts, never floats
  - Actor: the resolved identity (Administrator or StoreOperator)
  - CreditLine: running balances owned by one customer
  - ConsumptionEvent / PaymentEvent: immutable, append-only history

DESIGN PRINCIPLES:
  1. Precision: every amount is a decimal.Decimal
  2. Immutability: events are never modified or deleted once appended
  3. Type Safety: distinct ID types for every collection
  4. Auditability: running balances are reconstructible from events

SEE ALSO:
  - transition.go: pure balance transitions
  - engine.go: operations that look up, transition, append and persist
  - repository.go: in-memory collections and durable persistence
  - visibility.go: which customers an actor may see
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// Epsilon is the tolerance used when deciding that a balance is settled.
var Epsilon = decimal.RequireFromString("0.01")

// DefaultInterestRate applies when a request does not carry its own rate.
var DefaultInterestRate = decimal.RequireFromString("0.15")

// NewMoney converts a float literal. Use only for constants and tests.
func NewMoney(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// IsSettled reports whether |d| is within Epsilon of zero.
func IsSettled(d decimal.Decimal) bool { return d.Abs().LessThanOrEqual(Epsilon) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type StoreID string
type CustomerID string
type CreditLineID string
type EventID string

// BootstrapAdminID is the administrator created on first run. It cannot be deleted.
const BootstrapAdminID UserID = "admin1"

// =============================================================================
// USERS AND ACTORS
// =============================================================================

type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleStore         Role = "store"
)

func (r Role) Valid() bool { return r == RoleAdministrator || r == RoleStore }

type User struct {
	ID           UserID    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	Role         Role      `json:"role"`
	StoreID      StoreID   `json:"storeId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Actor is the closed set of identities the ledger trusts. The only
// implementations are Administrator and StoreOperator.
type Actor interface {
	User() UserID
	isActor()
}

type Administrator struct {
	ID UserID
}

type StoreOperator struct {
	ID    UserID
	Store StoreID
}

func (a Administrator) User() UserID { return a.ID }
func (a StoreOperator) User() UserID { return a.ID }
func (Administrator) isActor()       {}
func (StoreOperator) isActor()       {}

// Actor resolves the user's role into an Actor.
func (u User) Actor() (Actor, error) {
	switch u.Role {
	case RoleAdministrator:
		return Administrator{ID: u.ID}, nil
	case RoleStore:
		if u.StoreID == "" {
			return nil, &ValidationError{Field: "storeId", Message: "store user has no store"}
		}
		return StoreOperator{ID: u.ID, Store: u.StoreID}, nil
	default:
		return nil, &ValidationError{Field: "role", Message: "unknown role " + string(u.Role)}
	}
}

// =============================================================================
// STORES AND CUSTOMERS
// =============================================================================

// Store is a colmado in the network.
type Store struct {
	ID          StoreID   `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	ContactName string    `json:"contactName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Customer holds credit at one store, or at every store when VIP.
type Customer struct {
	ID         CustomerID `json:"id"`
	Name       string     `json:"name"`
	NationalID string     `json:"nationalId"`
	Address    string     `json:"address"`
	Phone      string     `json:"phone"`
	StoreID    StoreID    `json:"storeId,omitempty"` // empty for VIP customers created by an administrator
	VIP        bool       `json:"vip"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// CustomerProfile carries the fields supplied when a customer is created.
type CustomerProfile struct {
	Name       string
	NationalID string
	Address    string
	Phone      string
}

// =============================================================================
// CREDIT LINE
// =============================================================================

type LineState string

const (
	StatePending LineState = "pending"
	StateActive  LineState = "active"
	// StatePaid is derived for display and never stored.
	StatePaid LineState = "paid"
)

// CreditLine owns the running balances for one customer.
//
// INVARIANT (active lines): 0 <= PrincipalUtilized <= ApprovedLimit.
type CreditLine struct {
	ID                CreditLineID    `json:"id"`
	CustomerID        CustomerID      `json:"customerId"`
	StoreID           StoreID         `json:"storeId,omitempty"`
	ApprovedLimit     decimal.Decimal `json:"approvedLimit"`
	PrincipalUtilized decimal.Decimal `json:"principalUtilized"`
	InterestOwed      decimal.Decimal `json:"interestOwed"`
	InterestRate      decimal.Decimal `json:"interestRate"`
	State             LineState       `json:"state"`
	RequestedAt       time.Time       `json:"requestedAt"`
	ApprovedAt        *time.Time      `json:"approvedAt,omitempty"`
	// Opening is the balance a migrated line carried before any recorded
	// event. Nil for lines created by the engine.
	Opening *OpeningBalance `json:"opening,omitempty"`
}

// OpeningBalance is the starting point for rebuilding a line from its events.
type OpeningBalance struct {
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
}

// Available is the amount that can still be consumed.
func (c CreditLine) Available() decimal.Decimal {
	return c.ApprovedLimit.Sub(c.PrincipalUtilized)
}

// TotalDebt is principal plus unpaid interest.
func (c CreditLine) TotalDebt() decimal.Decimal {
	return c.PrincipalUtilized.Add(c.InterestOwed)
}

// HasDebt reports whether principal or interest exceeds the settlement tolerance.
func (c CreditLine) HasDebt() bool {
	return c.PrincipalUtilized.GreaterThan(Epsilon) || c.InterestOwed.GreaterThan(Epsilon)
}

// DerivedState projects the stored state for display: an active line whose
// principal and total debt are both settled reads as paid.
func (c CreditLine) DerivedState() LineState {
	if c.State == StateActive && IsSettled(c.PrincipalUtilized) && IsSettled(c.TotalDebt()) {
		return StatePaid
	}
	return c.State
}

// =============================================================================
// EVENTS - append-only history
// =============================================================================

// ConsumptionEvent is a purchase against a credit line. InterestGenerated is
// frozen at the rate in force when the purchase happened.
type ConsumptionEvent struct {
	ID                EventID         `json:"id"`
	CreditLineID      CreditLineID    `json:"creditLineId"`
	Amount            decimal.Decimal `json:"amount"`
	InterestGenerated decimal.Decimal `json:"interestGenerated"`
	Description       string          `json:"description"`
	At                time.Time       `json:"at"`
	StoreID           StoreID         `json:"storeId,omitempty"`
}

// PaymentEvent records money applied interest-first. Excess is the part of
// Total that exceeded the whole debt and was not applied.
type PaymentEvent struct {
	ID               EventID         `json:"id"`
	CreditLineID     CreditLineID    `json:"creditLineId"`
	Total            decimal.Decimal `json:"total"`
	InterestPortion  decimal.Decimal `json:"interestPortion"`
	PrincipalPortion decimal.Decimal `json:"principalPortion"`
	Excess           decimal.Decimal `json:"excess"`
	At               time.Time       `json:"at"`
	StoreID          StoreID         `json:"storeId,omitempty"`
}

// Applied is the part of the payment that reduced debt; Excess is not included.
func (p PaymentEvent) Applied() decimal.Decimal {
	return p.InterestPortion.Add(p.PrincipalPortion)
}
