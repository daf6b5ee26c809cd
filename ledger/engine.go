/*
engine.go - Credit ledger operations

PURPOSE:
  The operation surface consumed by the API: approve, request, consume,
  pay, and the composite customer+credit creation. Each operation is
  validate-then-commit inside one Repository.Update, so it either applies
  completely (balances, appended event, persisted collections) or not at all.

FAILURES:
  NotFound            - the credit line, customer or store does not exist
  InsufficientBalance - consumption larger than what is available
  Validation          - non-positive amounts, wrong state, missing fields
  Persistence         - the durable store refused the write

EXAMPLE:
  engine := ledger.NewEngine(repo)
  ev, line, err := engine.RecordConsumption(ctx, ledger.Consumption{
      CreditLineID: "cred-1",
      Amount:       decimal.NewFromInt(1000),
      Description:  "groceries",
      StoreID:      "store-1",
  })
*/
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine applies ledger operations to a Repository.
type Engine struct {
	repo  *Repository
	rate  decimal.Decimal
	now   func() time.Time
	newID func(prefix string) string
	log   zerolog.Logger
	cost  int
}

type EngineOption func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) EngineOption { return func(e *Engine) { e.now = now } }

// WithDefaultRate sets the rate used when a request does not carry one.
func WithDefaultRate(rate decimal.Decimal) EngineOption { return func(e *Engine) { e.rate = rate } }

func WithLogger(l zerolog.Logger) EngineOption { return func(e *Engine) { e.log = l } }

// WithPasswordCost sets the bcrypt cost for users created through the engine.
func WithPasswordCost(cost int) EngineOption { return func(e *Engine) { e.cost = cost } }

func NewEngine(repo *Repository, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:  repo,
		rate:  DefaultInterestRate,
		now:   time.Now,
		newID: func(prefix string) string { return prefix + "-" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Repository exposes the underlying repository for read-side consumers.
func (e *Engine) Repository() *Repository { return e.repo }

// =============================================================================
// REQUEST / APPROVE
// =============================================================================

// CreditRequest opens a pending line for an existing customer.
type CreditRequest struct {
	CustomerID    CustomerID
	StoreID       StoreID
	ApprovedLimit decimal.Decimal
	InterestRate  *decimal.Decimal // nil means the engine default
}

// RequestCredit creates a pending credit line with zero balances.
func (e *Engine) RequestCredit(ctx context.Context, req CreditRequest) (CreditLine, error) {
	var line CreditLine
	err := e.repo.Update(ctx, func(s *State) ([]Collection, error) {
		if s.CustomerIndex(req.CustomerID) < 0 {
			return nil, notFound("customer", string(req.CustomerID))
		}
		if err := e.checkStore(s, req.StoreID); err != nil {
			return nil, err
		}
		var err error
		line, err = e.newLine(req.CustomerID, req.StoreID, req.ApprovedLimit, req.InterestRate)
		if err != nil {
			return nil, err
		}
		s.CreditLines = append(s.CreditLines, line)
		return []Collection{CollCreditLines}, nil
	})
	if err != nil {
		return CreditLine{}, err
	}
	e.log.Info().Str("credit_line", string(line.ID)).Str("customer", string(line.CustomerID)).
		Str("limit", line.ApprovedLimit.String()).Msg("credit requested")
	return line, nil
}

// Application is a store-submitted request that creates the customer too.
type Application struct {
	Profile       CustomerProfile
	StoreID       StoreID
	ApprovedLimit decimal.Decimal
	InterestRate  *decimal.Decimal
}

// RequestCreditForNewCustomer creates a non-VIP customer owned by the store
// and a pending credit line for it, atomically.
func (e *Engine) RequestCreditForNewCustomer(ctx context.Context, app Application) (Customer, CreditLine, error) {
	var (
		cust Customer
		line CreditLine
	)
	err := e.repo.Update(ctx, func(s *State) ([]Collection, error) {
		if app.StoreID == "" {
			return nil, invalid("storeId", "is required")
		}
		if err := e.checkStore(s, app.StoreID); err != nil {
			return nil, err
		}
		var err error
		if cust, err = e.newCustomer(app.Profile, app.StoreID, false); err != nil {
			return nil, err
		}
		if line, err = e.newLine(cust.ID, app.StoreID, app.ApprovedLimit, app.InterestRate); err != nil {
			return nil, err
		}
		s.Customers = append(s.Customers, cust)
		s.CreditLines = append(s.CreditLines, line)
		return []Collection{CollCustomers, CollCreditLines}, nil
	})
	if err != nil {
		return Customer{}, CreditLine{}, err
	}
	e.log.Info().Str("credit_line", string(line.ID)).Str("customer", string(cust.ID)).
		Str("store", string(app.StoreID)).Msg("credit application submitted")
	return cust, line, nil
}

// OpenVIPCredit creates a VIP customer with no owning store and an active
// credit line, skipping the approval step. Administrator use.
func (e *Engine) OpenVIPCredit(ctx context.Context, profile CustomerProfile, limit decimal.Decimal, rate *decimal.Decimal) (Customer, CreditLine, error) {
	var (
		cust Customer
		line CreditLine
	)
	err := e.repo.Update(ctx, func(s *State) ([]Collection, error) {
		var err error
		if cust, err = e.newCustomer(profile, "", true); err != nil {
			return nil, err
		}
		if line, err = e.newLine(cust.ID, "", limit, rate); err != nil {
			return nil, err
		}
		if line, err = Approve(line, line.RequestedAt); err != nil {
			return nil, err
		}
		s.Customers = append(s.Customers, cust)
		s.CreditLines = append(s.CreditLines, line)
		return []Collection{CollCustomers, CollCreditLines}, nil
	})
	if err != nil {
		return Customer{}, CreditLine{}, err
	}
	e.log.Info().Str("credit_line", string(line.ID)).Str("customer", string(cust.ID)).Msg("vip credit opened")
	return cust, line, nil
}

// ApproveCredit moves a pending line to active with zero balances.
func (e *Engine) ApproveCredit(ctx context.Context, id CreditLineID) (CreditLine, error) {
	var line CreditLine
	err := e.repo.Update(ctx, func(s *State) ([]Collection, error) {
		i := s.CreditLineIndex(id)
		if i < 0 {
			return nil, notFound("credit line", string(id))
		}
		var err error
		if line, err = Approve(s.CreditLines[i], e.now()); err != nil {
			return nil, err
		}
		s.CreditLines[i] = line
		return []Collection{CollCreditLines}, nil
	})
	if err != nil {
		return CreditLine{}, err
	}
	e.log.Info().Str("credit_line", string(id)).Msg("credit approved")
	return line, nil
}

// =============================================================================
// CONSUMPTION / PAYMENT
// =============================================================================

// Consumption is a purchase against a credit line.
type Consumption struct {
	CreditLineID CreditLineID
	Amount       decimal.Decimal
	Description  string
	StoreID      StoreID
}

// RecordConsumption charges the line and appends a ConsumptionEvent with the
// interest frozen at the line's current rate.
func (e *Engine) RecordConsumption(ctx context.Context, c Consumption) (ConsumptionEvent, CreditLine, error) {
	var (
		ev   ConsumptionEvent
		line CreditLine
	)
	err := e.repo.Update(ctx, func(s *State) ([]Collection, error) {
		i := s.CreditLineIndex(c.CreditLineID)
		if i < 0 {
			return nil, notFound("credit line", string(c.CreditLineID))
		}
		if err := e.checkStore(s, c.StoreID); err != nil {
			return nil, err
		}
		next, interest, err := Consume(s.CreditLines[i], c.Amount)
		if err != nil {
			return nil, err
		}
		line = next
		ev = ConsumptionEvent{
			ID:                EventID(e.newID("cons")),
			CreditLineID:      line.ID,
			Amount:            c.Amount,
			InterestGenerated: interest,
			Description:       strings.TrimSpace(c.Description),
			At:                e.now(),
			StoreID:           c.StoreID,
		}
		s.CreditLines[i] = line
		s.Consumptions = append(s.Consumptions, ev)
		return []Collection{CollCreditLines, CollConsumptions}, nil
	})
	if err != nil {
		return ConsumptionEvent{}, CreditLine{}, err
	}
	e.log.Info().Str("credit_line", string(line.ID)).Str("amount", ev.Amount.String()).
		Str("interest", ev.InterestGenerated.String()).Str("store", string(ev.StoreID)).Msg("consumption recorded")
	return ev, line, nil
}

// Payment is money received against a credit line.
type Payment struct {
	CreditLineID CreditLineID
	Amount       decimal.Decimal
	StoreID      StoreID
}

// RecordPayment applies the amount interest-first and appends a PaymentEvent.
// Any amount beyond the whole debt is kept on the event as Excess and is not
// applied; principal never goes negative.
func (e *Engine) RecordPayment(ctx context.Context, p Payment) (PaymentEvent, CreditLine, error) {
	var (
		ev   PaymentEvent
		line CreditLine
	)
	err := e.repo.Update(ctx, func(s *State) ([]Collection, error) {
		i := s.CreditLineIndex(p.CreditLineID)
		if i < 0 {
			return nil, notFound("credit line", string(p.CreditLineID))
		}
		if err := e.checkStore(s, p.StoreID); err != nil {
			return nil, err
		}
		next, alloc, err := Pay(s.CreditLines[i], p.Amount)
		if err != nil {
			return nil, err
		}
		line = next
		ev = PaymentEvent{
			ID:               EventID(e.newID("pago")),
			CreditLineID:     line.ID,
			Total:            p.Amount,
			InterestPortion:  alloc.Interest,
			PrincipalPortion: alloc.Principal,
			Excess:           alloc.Excess,
			At:               e.now(),
			StoreID:          p.StoreID,
		}
		s.CreditLines[i] = line
		s.Payments = append(s.Payments, ev)
		return []Collection{CollCreditLines, CollPayments}, nil
	})
	if err != nil {
		return PaymentEvent{}, CreditLine{}, err
	}
	if ev.Excess.IsPositive() {
		e.log.Warn().Str("credit_line", string(line.ID)).Str("excess", ev.Excess.String()).
			Msg("payment exceeded total debt; principal clamped at zero")
	}
	e.log.Info().Str("credit_line", string(line.ID)).Str("total", ev.Total.String()).
		Str("interest", ev.InterestPortion.String()).Str("principal", ev.PrincipalPortion.String()).
		Msg("payment recorded")
	return ev, line, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (e *Engine) checkStore(s *State, id StoreID) error {
	if id != "" && s.StoreIndex(id) < 0 {
		return notFound("store", string(id))
	}
	return nil
}

// newLine builds a pending line. A nil rate takes the engine default; an
// explicit zero is an interest-free line.
func (e *Engine) newLine(customer CustomerID, store StoreID, limit decimal.Decimal, requested *decimal.Decimal) (CreditLine, error) {
	if !limit.IsPositive() {
		return CreditLine{}, invalid("approvedLimit", "must be greater than zero")
	}
	rate := e.rate
	if requested != nil {
		rate = *requested
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return CreditLine{}, invalid("interestRate", "must be between 0 and 1")
	}
	return CreditLine{
		ID:                CreditLineID(e.newID("cred")),
		CustomerID:        customer,
		StoreID:           store,
		ApprovedLimit:     limit,
		PrincipalUtilized: decimal.Zero,
		InterestOwed:      decimal.Zero,
		InterestRate:      rate,
		State:             StatePending,
		RequestedAt:       e.now(),
	}, nil
}

func (e *Engine) newCustomer(p CustomerProfile, store StoreID, vip bool) (Customer, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return Customer{}, invalid("name", "is required")
	}
	return Customer{
		ID:         CustomerID(e.newID("cli")),
		Name:       name,
		NationalID: strings.TrimSpace(p.NationalID),
		Address:    strings.TrimSpace(p.Address),
		Phone:      strings.TrimSpace(p.Phone),
		StoreID:    store,
		VIP:        vip,
		CreatedAt:  e.now(),
	}, nil
}
