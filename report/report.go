/*
Package report derives read-only summaries from the ledger collections.

PURPOSE:
  Every report is a pure function of a ledger.State snapshot plus its
  inputs (store scope, date window, search term). Running a report twice
  against an unchanged event log yields identical output.

REPORTS:
  Consumptions      - consumption events attributed to a store in a window
  Revenue           - interest collected by a store in a window x share
  CustomerStatement - one visible customer's line and events in a window
  Dashboard         - network-wide totals (dashboard.go)
  MonthlyRevenue    - interest collected in a calendar month x platform share
  CreditDetail      - one line with its full history
  CreditSummaries   - visible lines with names and derived state
  History           - visible consumptions / payments, optional window

DATE WINDOWS:
  All windows are ledger.Window values: calendar-day inclusive on both ends
  in the configured zone.

SEE ALSO:
  - ledger/window.go: the window rule
  - ledger/visibility.go: which customers an actor sees
  - pdf.go: printable statements
*/
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tarjetacolmado/ledger/ledger"
)

// =============================================================================
// AGGREGATOR
// =============================================================================

// Source yields consistent snapshots. *ledger.Repository satisfies it.
type Source interface {
	Snapshot() *ledger.State
}

// Options are the deployment constants reports depend on.
type Options struct {
	// StoreShare is the fraction of collected interest credited to a store.
	StoreShare decimal.Decimal
	// PlatformShare is the fraction of collected interest kept by the platform.
	PlatformShare decimal.Decimal
	Location      *time.Location
}

// Aggregator runs reports against the latest snapshot of a Source.
type Aggregator struct {
	src  Source
	opts Options
}

func New(src Source, opts Options) *Aggregator {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Aggregator{src: src, opts: opts}
}

func (a *Aggregator) Location() *time.Location { return a.opts.Location }

func (a *Aggregator) Consumptions(store ledger.StoreID, w ledger.Window) ConsumptionReport {
	return Consumptions(a.src.Snapshot(), store, w)
}

func (a *Aggregator) Revenue(store ledger.StoreID, w ledger.Window) RevenueReport {
	return Revenue(a.src.Snapshot(), store, w, a.opts.StoreShare)
}

func (a *Aggregator) CustomerStatement(actor ledger.Actor, store ledger.StoreID, w ledger.Window, search string) (Statement, error) {
	return CustomerStatement(a.src.Snapshot(), actor, store, w, search)
}

func (a *Aggregator) Dashboard() Dashboard {
	return BuildDashboard(a.src.Snapshot())
}

func (a *Aggregator) MonthlyRevenue(year int, month time.Month) MonthlyRevenueReport {
	return MonthlyRevenue(a.src.Snapshot(), year, month, a.opts.Location, a.opts.PlatformShare)
}

func (a *Aggregator) CreditDetail(actor ledger.Actor, id ledger.CreditLineID) (Detail, error) {
	return CreditDetail(a.src.Snapshot(), actor, id)
}

func (a *Aggregator) CreditSummaries(actor ledger.Actor, status ledger.LineState, search string) []CreditSummary {
	return CreditSummaries(a.src.Snapshot(), actor, status, search)
}

func (a *Aggregator) ConsumptionHistory(actor ledger.Actor, w *ledger.Window, search string) []ConsumptionItem {
	return ConsumptionHistory(a.src.Snapshot(), actor, w, search)
}

func (a *Aggregator) PaymentHistory(actor ledger.Actor, w *ledger.Window, search string) []PaymentItem {
	return PaymentHistory(a.src.Snapshot(), actor, w, search)
}

// =============================================================================
// ANNOTATED EVENTS
// =============================================================================

// ConsumptionItem is a consumption event with the names a reader needs.
type ConsumptionItem struct {
	ledger.ConsumptionEvent
	CustomerID   ledger.CustomerID `json:"customerId"`
	CustomerName string            `json:"customerName"`
	StoreName    string            `json:"storeName,omitempty"`
}

// PaymentItem is a payment event with the names a reader needs.
type PaymentItem struct {
	ledger.PaymentEvent
	CustomerID   ledger.CustomerID `json:"customerId"`
	CustomerName string            `json:"customerName"`
	StoreName    string            `json:"storeName,omitempty"`
}

// index resolves ids to records for one snapshot.
type index struct {
	customers map[ledger.CustomerID]ledger.Customer
	stores    map[ledger.StoreID]ledger.Store
	lines     map[ledger.CreditLineID]ledger.CreditLine
}

func newIndex(s *ledger.State) index {
	ix := index{
		customers: make(map[ledger.CustomerID]ledger.Customer, len(s.Customers)),
		stores:    make(map[ledger.StoreID]ledger.Store, len(s.Stores)),
		lines:     make(map[ledger.CreditLineID]ledger.CreditLine, len(s.CreditLines)),
	}
	for _, c := range s.Customers {
		ix.customers[c.ID] = c
	}
	for _, st := range s.Stores {
		ix.stores[st.ID] = st
	}
	for _, l := range s.CreditLines {
		ix.lines[l.ID] = l
	}
	return ix
}

// customerOf follows event -> credit line -> customer. Lines deleted with
// their customer resolve to an empty customer.
func (ix index) customerOf(id ledger.CreditLineID) ledger.Customer {
	return ix.customers[ix.lines[id].CustomerID]
}

func (ix index) consumption(ev ledger.ConsumptionEvent) ConsumptionItem {
	c := ix.customerOf(ev.CreditLineID)
	return ConsumptionItem{
		ConsumptionEvent: ev,
		CustomerID:       c.ID,
		CustomerName:     c.Name,
		StoreName:        ix.stores[ev.StoreID].Name,
	}
}

func (ix index) payment(ev ledger.PaymentEvent) PaymentItem {
	c := ix.customerOf(ev.CreditLineID)
	return PaymentItem{
		PaymentEvent: ev,
		CustomerID:   c.ID,
		CustomerName: c.Name,
		StoreName:    ix.stores[ev.StoreID].Name,
	}
}

// Newest first; ties broken by id so output is deterministic.
func sortConsumptions(items []ConsumptionItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].At.Equal(items[j].At) {
			return items[i].At.After(items[j].At)
		}
		return items[i].ID > items[j].ID
	})
}

func sortPayments(items []PaymentItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].At.Equal(items[j].At) {
			return items[i].At.After(items[j].At)
		}
		return items[i].ID > items[j].ID
	})
}

// matchStore treats an empty scope as every store.
func matchStore(scope, got ledger.StoreID) bool {
	return scope == "" || scope == got
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// =============================================================================
// CONSUMPTION REPORT
// =============================================================================

type ConsumptionReport struct {
	StoreID       ledger.StoreID    `json:"storeId,omitempty"`
	From          time.Time         `json:"from"`
	To            time.Time         `json:"to"`
	Items         []ConsumptionItem `json:"items"`
	Total         decimal.Decimal   `json:"total"`
	InterestTotal decimal.Decimal   `json:"interestTotal"`
}

// Consumptions lists the consumption events attributed to store inside w,
// newest first. An empty store means every store.
func Consumptions(s *ledger.State, store ledger.StoreID, w ledger.Window) ConsumptionReport {
	ix := newIndex(s)
	r := ConsumptionReport{
		StoreID: store, From: w.From, To: w.To,
		Items: []ConsumptionItem{}, Total: decimal.Zero, InterestTotal: decimal.Zero,
	}
	for _, ev := range s.Consumptions {
		if !matchStore(store, ev.StoreID) || !w.Contains(ev.At) {
			continue
		}
		r.Items = append(r.Items, ix.consumption(ev))
		r.Total = r.Total.Add(ev.Amount)
		r.InterestTotal = r.InterestTotal.Add(ev.InterestGenerated)
	}
	sortConsumptions(r.Items)
	return r
}

// =============================================================================
// REVENUE REPORT
// =============================================================================

type RevenueReport struct {
	StoreID       ledger.StoreID  `json:"storeId,omitempty"`
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Payments      []PaymentItem   `json:"payments"`
	PaymentsTotal decimal.Decimal `json:"paymentsTotal"`
	InterestTotal decimal.Decimal `json:"interestTotal"`
	Share         decimal.Decimal `json:"share"`
	StoreRevenue  decimal.Decimal `json:"storeRevenue"`
}

// Revenue sums the interest portions of payments attributed to store inside
// w and credits share of it to the store.
func Revenue(s *ledger.State, store ledger.StoreID, w ledger.Window, share decimal.Decimal) RevenueReport {
	ix := newIndex(s)
	r := RevenueReport{
		StoreID: store, From: w.From, To: w.To,
		Payments: []PaymentItem{}, PaymentsTotal: decimal.Zero, InterestTotal: decimal.Zero,
		Share: share,
	}
	for _, ev := range s.Payments {
		if !matchStore(store, ev.StoreID) || !w.Contains(ev.At) {
			continue
		}
		r.Payments = append(r.Payments, ix.payment(ev))
		r.PaymentsTotal = r.PaymentsTotal.Add(ev.Applied())
		r.InterestTotal = r.InterestTotal.Add(ev.InterestPortion)
	}
	sortPayments(r.Payments)
	r.StoreRevenue = r.InterestTotal.Mul(share).Round(2)
	return r
}

// =============================================================================
// CUSTOMER STATEMENT
// =============================================================================

type Statement struct {
	Customer      ledger.Customer    `json:"customer"`
	StoreID       ledger.StoreID     `json:"storeId,omitempty"`
	From          time.Time          `json:"from"`
	To            time.Time          `json:"to"`
	CreditLine    *ledger.CreditLine `json:"creditLine,omitempty"`
	Status        ledger.LineState   `json:"status,omitempty"`
	Available     decimal.Decimal    `json:"available"`
	TotalDebt     decimal.Decimal    `json:"totalDebt"`
	Consumptions  []ConsumptionItem  `json:"consumptions"`
	Payments      []PaymentItem      `json:"payments"`
	ConsumedTotal decimal.Decimal    `json:"consumedTotal"`
	PaidTotal     decimal.Decimal    `json:"paidTotal"`
}

// CustomerStatement finds the first customer visible to actor whose name
// contains search (case-insensitive) and returns its credit line with the
// events inside w attributed to store. An empty store keeps every store's
// events. A customer without a credit line yields an empty statement.
func CustomerStatement(s *ledger.State, actor ledger.Actor, store ledger.StoreID, w ledger.Window, search string) (Statement, error) {
	search = strings.TrimSpace(search)
	if search == "" {
		return Statement{}, &ledger.ValidationError{Field: "search", Message: "a customer name is required"}
	}

	var (
		cust  ledger.Customer
		found bool
	)
	for _, c := range ledger.VisibleCustomers(actor, s.Customers) {
		if containsFold(c.Name, search) {
			cust, found = c, true
			break
		}
	}
	if !found {
		return Statement{}, &ledger.NotFoundError{Kind: "customer", ID: search}
	}

	st := Statement{
		Customer: cust, StoreID: store, From: w.From, To: w.To,
		Available: decimal.Zero, TotalDebt: decimal.Zero,
		Consumptions: []ConsumptionItem{}, Payments: []PaymentItem{},
		ConsumedTotal: decimal.Zero, PaidTotal: decimal.Zero,
	}
	line, ok := s.CreditLineFor(cust.ID)
	if !ok {
		return st, nil
	}
	st.CreditLine = &line
	st.Status = line.DerivedState()
	st.Available = line.Available()
	st.TotalDebt = line.TotalDebt()

	ix := newIndex(s)
	for _, ev := range s.Consumptions {
		if ev.CreditLineID == line.ID && matchStore(store, ev.StoreID) && w.Contains(ev.At) {
			st.Consumptions = append(st.Consumptions, ix.consumption(ev))
			st.ConsumedTotal = st.ConsumedTotal.Add(ev.Amount)
		}
	}
	for _, ev := range s.Payments {
		if ev.CreditLineID == line.ID && matchStore(store, ev.StoreID) && w.Contains(ev.At) {
			st.Payments = append(st.Payments, ix.payment(ev))
			st.PaidTotal = st.PaidTotal.Add(ev.Applied())
		}
	}
	sortConsumptions(st.Consumptions)
	sortPayments(st.Payments)
	return st, nil
}
