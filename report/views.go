package report

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tarjetacolmado/ledger/ledger"
)

// recentLimit bounds the "latest activity" lists on the dashboard.
const recentLimit = 5

// =============================================================================
// CREDIT SUMMARIES
// =============================================================================

// CreditSummary is a credit line with the figures shown in listings.
type CreditSummary struct {
	ledger.CreditLine
	CustomerName string           `json:"customerName"`
	StoreName    string           `json:"storeName,omitempty"`
	VIP          bool             `json:"vip"`
	Status       ledger.LineState `json:"status"`
	Available    decimal.Decimal  `json:"available"`
	TotalDebt    decimal.Decimal  `json:"totalDebt"`
}

func (ix index) summary(l ledger.CreditLine) CreditSummary {
	c := ix.customers[l.CustomerID]
	return CreditSummary{
		CreditLine:   l,
		CustomerName: c.Name,
		StoreName:    ix.stores[l.StoreID].Name,
		VIP:          c.VIP,
		Status:       l.DerivedState(),
		Available:    l.Available(),
		TotalDebt:    l.TotalDebt(),
	}
}

// CreditSummaries lists the lines visible to actor. status filters on the
// derived state (empty keeps all); search matches customer names.
func CreditSummaries(s *ledger.State, actor ledger.Actor, status ledger.LineState, search string) []CreditSummary {
	ix := newIndex(s)
	search = strings.TrimSpace(search)
	out := []CreditSummary{}
	for _, l := range ledger.VisibleCreditLines(actor, s.Customers, s.CreditLines) {
		sum := ix.summary(l)
		if status != "" && sum.Status != status {
			continue
		}
		if search != "" && !containsFold(sum.CustomerName, search) {
			continue
		}
		out = append(out, sum)
	}
	return out
}

// =============================================================================
// CREDIT DETAIL
// =============================================================================

// Detail is one credit line with its complete history.
type Detail struct {
	CreditSummary
	Customer     ledger.Customer   `json:"customer"`
	Consumptions []ConsumptionItem `json:"consumptions"`
	Payments     []PaymentItem     `json:"payments"`
}

// CreditDetail returns the line if actor can see its customer. Lines the
// actor cannot see are reported as not found.
func CreditDetail(s *ledger.State, actor ledger.Actor, id ledger.CreditLineID) (Detail, error) {
	ix := newIndex(s)
	line, ok := ix.lines[id]
	if !ok {
		return Detail{}, &ledger.NotFoundError{Kind: "credit line", ID: string(id)}
	}
	cust := ix.customers[line.CustomerID]
	if !ledger.CanSeeCustomer(actor, cust) {
		return Detail{}, &ledger.NotFoundError{Kind: "credit line", ID: string(id)}
	}

	d := Detail{
		CreditSummary: ix.summary(line),
		Customer:      cust,
		Consumptions:  []ConsumptionItem{},
		Payments:      []PaymentItem{},
	}
	for _, ev := range s.Consumptions {
		if ev.CreditLineID == id {
			d.Consumptions = append(d.Consumptions, ix.consumption(ev))
		}
	}
	for _, ev := range s.Payments {
		if ev.CreditLineID == id {
			d.Payments = append(d.Payments, ix.payment(ev))
		}
	}
	sortConsumptions(d.Consumptions)
	sortPayments(d.Payments)
	return d, nil
}

// =============================================================================
// HISTORY
// =============================================================================

func visibleLineIDs(s *ledger.State, actor ledger.Actor) map[ledger.CreditLineID]bool {
	ids := make(map[ledger.CreditLineID]bool)
	for _, l := range ledger.VisibleCreditLines(actor, s.Customers, s.CreditLines) {
		ids[l.ID] = true
	}
	return ids
}

// ConsumptionHistory lists consumptions on lines visible to actor, newest
// first. A nil window keeps all dates; search matches the customer name or
// the description.
func ConsumptionHistory(s *ledger.State, actor ledger.Actor, w *ledger.Window, search string) []ConsumptionItem {
	ix := newIndex(s)
	visible := visibleLineIDs(s, actor)
	search = strings.TrimSpace(search)
	out := []ConsumptionItem{}
	for _, ev := range s.Consumptions {
		if !visible[ev.CreditLineID] || (w != nil && !w.Contains(ev.At)) {
			continue
		}
		item := ix.consumption(ev)
		if search != "" && !containsFold(item.CustomerName, search) && !containsFold(ev.Description, search) {
			continue
		}
		out = append(out, item)
	}
	sortConsumptions(out)
	return out
}

// PaymentHistory lists payments on lines visible to actor, newest first.
func PaymentHistory(s *ledger.State, actor ledger.Actor, w *ledger.Window, search string) []PaymentItem {
	ix := newIndex(s)
	visible := visibleLineIDs(s, actor)
	search = strings.TrimSpace(search)
	out := []PaymentItem{}
	for _, ev := range s.Payments {
		if !visible[ev.CreditLineID] || (w != nil && !w.Contains(ev.At)) {
			continue
		}
		item := ix.payment(ev)
		if search != "" && !containsFold(item.CustomerName, search) {
			continue
		}
		out = append(out, item)
	}
	sortPayments(out)
	return out
}

// =============================================================================
// MONTHLY REVENUE
// =============================================================================

type MonthlyRevenueReport struct {
	Year            int             `json:"year"`
	Month           time.Month      `json:"month"`
	Payments        int             `json:"payments"`
	InterestTotal   decimal.Decimal `json:"interestTotal"`
	Share           decimal.Decimal `json:"share"`
	PlatformRevenue decimal.Decimal `json:"platformRevenue"`
}

// MonthlyRevenue sums interest collected network-wide in one calendar month
// and applies the platform share.
func MonthlyRevenue(s *ledger.State, year int, month time.Month, loc *time.Location, share decimal.Decimal) MonthlyRevenueReport {
	w := ledger.MonthWindow(year, month, loc)
	r := MonthlyRevenueReport{Year: year, Month: month, InterestTotal: decimal.Zero, Share: share}
	for _, ev := range s.Payments {
		if w.Contains(ev.At) {
			r.Payments++
			r.InterestTotal = r.InterestTotal.Add(ev.InterestPortion)
		}
	}
	r.PlatformRevenue = r.InterestTotal.Mul(share).Round(2)
	return r
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Dashboard is the administrator's network overview. Balance totals cover
// active lines only.
type Dashboard struct {
	Stores             int               `json:"stores"`
	Customers          int               `json:"customers"`
	ActiveLines        int               `json:"activeLines"`
	ApprovedTotal      decimal.Decimal   `json:"approvedTotal"`
	PrincipalTotal     decimal.Decimal   `json:"principalTotal"`
	InterestTotal      decimal.Decimal   `json:"interestTotal"`
	OutstandingDebt    decimal.Decimal   `json:"outstandingDebt"`
	ConsumedTotal      decimal.Decimal   `json:"consumedTotal"`
	PaidTotal          decimal.Decimal   `json:"paidTotal"`
	UtilizationPercent decimal.Decimal   `json:"utilizationPercent"`
	PendingRequests    []CreditSummary   `json:"pendingRequests"`
	RecentLines        []CreditSummary   `json:"recentLines"`
	RecentConsumptions []ConsumptionItem `json:"recentConsumptions"`
	RecentPayments     []PaymentItem     `json:"recentPayments"`
}

func BuildDashboard(s *ledger.State) Dashboard {
	ix := newIndex(s)
	d := Dashboard{
		Stores:          len(s.Stores),
		Customers:       len(s.Customers),
		ApprovedTotal:   decimal.Zero,
		PrincipalTotal:  decimal.Zero,
		InterestTotal:   decimal.Zero,
		OutstandingDebt: decimal.Zero,
		ConsumedTotal:   decimal.Zero,
		PaidTotal:       decimal.Zero,
		PendingRequests: []CreditSummary{},
	}

	for _, l := range s.CreditLines {
		switch l.State {
		case ledger.StateActive:
			d.ActiveLines++
			d.ApprovedTotal = d.ApprovedTotal.Add(l.ApprovedLimit)
			d.PrincipalTotal = d.PrincipalTotal.Add(l.PrincipalUtilized)
			d.InterestTotal = d.InterestTotal.Add(l.InterestOwed)
		case ledger.StatePending:
			d.PendingRequests = append(d.PendingRequests, ix.summary(l))
		}
	}
	d.OutstandingDebt = d.PrincipalTotal.Add(d.InterestTotal)
	d.UtilizationPercent = decimal.Zero
	if d.ApprovedTotal.IsPositive() {
		d.UtilizationPercent = d.PrincipalTotal.Div(d.ApprovedTotal).Mul(decimal.NewFromInt(100)).Round(2)
	}

	for _, ev := range s.Consumptions {
		d.ConsumedTotal = d.ConsumedTotal.Add(ev.Amount)
	}
	for _, ev := range s.Payments {
		d.PaidTotal = d.PaidTotal.Add(ev.Applied())
	}

	lines := append([]ledger.CreditLine(nil), s.CreditLines...)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].RequestedAt.After(lines[j].RequestedAt) })
	d.RecentLines = make([]CreditSummary, 0, recentLimit)
	for i := 0; i < len(lines) && i < recentLimit; i++ {
		d.RecentLines = append(d.RecentLines, ix.summary(lines[i]))
	}

	consumptions := make([]ConsumptionItem, 0, len(s.Consumptions))
	for _, ev := range s.Consumptions {
		consumptions = append(consumptions, ix.consumption(ev))
	}
	sortConsumptions(consumptions)
	d.RecentConsumptions = consumptions[:min(recentLimit, len(consumptions))]

	payments := make([]PaymentItem, 0, len(s.Payments))
	for _, ev := range s.Payments {
		payments = append(payments, ix.payment(ev))
	}
	sortPayments(payments)
	d.RecentPayments = payments[:min(recentLimit, len(payments))]
	return d
}
