package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarjetacolmado/ledger/ledger"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func at(day, hour int) time.Time { return time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC) }

// fixture: two stores, a local customer at each, one VIP customer.
func fixture() *ledger.State {
	approved := at(1, 8)
	line := func(id ledger.CreditLineID, cust ledger.CustomerID, store ledger.StoreID, principal, interest string) ledger.CreditLine {
		return ledger.CreditLine{
			ID: id, CustomerID: cust, StoreID: store,
			ApprovedLimit: d("5000"), PrincipalUtilized: d(principal), InterestOwed: d(interest),
			InterestRate: d("0.15"), State: ledger.StateActive,
			RequestedAt: at(1, 8), ApprovedAt: &approved,
		}
	}
	return &ledger.State{
		Stores: []ledger.Store{{ID: "c1", Name: "Colmado Uno"}, {ID: "c2", Name: "Colmado Dos"}},
		Customers: []ledger.Customer{
			{ID: "a", Name: "Ana Pérez", StoreID: "c1"},
			{ID: "b", Name: "Bruno Díaz", StoreID: "c2"},
			{ID: "v", Name: "Victor VIP", VIP: true},
			{ID: "n", Name: "Ana Nueva", StoreID: "c1"},
		},
		CreditLines: []ledger.CreditLine{
			line("la", "a", "c1", "850", "0"),
			line("lb", "b", "c2", "200", "30"),
			line("lv", "v", "", "0", "0"),
			{ID: "lp", CustomerID: "n", StoreID: "c1", ApprovedLimit: d("300"), PrincipalUtilized: d("0"),
				InterestOwed: d("0"), InterestRate: d("0.15"), State: ledger.StatePending, RequestedAt: at(20, 9)},
		},
		Consumptions: []ledger.ConsumptionEvent{
			{ID: "e1", CreditLineID: "la", Amount: d("1000"), InterestGenerated: d("150"), Description: "arroz", At: at(2, 10), StoreID: "c1"},
			{ID: "e2", CreditLineID: "lb", Amount: d("200"), InterestGenerated: d("30"), Description: "aceite", At: at(3, 10), StoreID: "c2"},
			{ID: "e3", CreditLineID: "lv", Amount: d("100"), InterestGenerated: d("15"), Description: "pan", At: at(31, 23), StoreID: "c1"},
		},
		Payments: []ledger.PaymentEvent{
			{ID: "p1", CreditLineID: "la", Total: d("100"), InterestPortion: d("100"), PrincipalPortion: d("0"), Excess: d("0"), At: at(4, 9), StoreID: "c1"},
			{ID: "p2", CreditLineID: "la", Total: d("200"), InterestPortion: d("50"), PrincipalPortion: d("150"), Excess: d("0"), At: at(5, 9), StoreID: "c1"},
			{ID: "p3", CreditLineID: "lv", Total: d("115"), InterestPortion: d("15"), PrincipalPortion: d("100"), Excess: d("0"), At: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), StoreID: "c2"},
		},
	}
}

func march(t *testing.T) ledger.Window {
	t.Helper()
	w, err := ledger.ParseWindow("2026-03-01", "2026-03-31", time.UTC)
	require.NoError(t, err)
	return w
}

func TestConsumptions_StoreAndWindow(t *testing.T) {
	// GIVEN: Consumptions at two stores, one on the last second of the window
	s := fixture()

	// WHEN: Reporting on store c1 for March
	r := Consumptions(s, "c1", march(t))

	// THEN: Both c1 events are included, newest first, with customer names
	require.Len(t, r.Items, 2)
	assert.Equal(t, ledger.EventID("e3"), r.Items[0].ID)
	assert.Equal(t, "Victor VIP", r.Items[0].CustomerName)
	assert.Equal(t, "Ana Pérez", r.Items[1].CustomerName)
	assert.True(t, r.Total.Equal(d("1100")))
	assert.True(t, r.InterestTotal.Equal(d("165")))
}

func TestConsumptions_InclusiveSingleDay(t *testing.T) {
	s := fixture()
	w, err := ledger.ParseWindow("2026-03-31", "2026-03-31", time.UTC)
	require.NoError(t, err)

	r := Consumptions(s, "", w)

	require.Len(t, r.Items, 1)
	assert.Equal(t, ledger.EventID("e3"), r.Items[0].ID)
}

func TestConsumptions_Idempotent(t *testing.T) {
	s := fixture()
	w := march(t)

	assert.Equal(t, Consumptions(s, "c1", w), Consumptions(s, "c1", w))
	assert.Equal(t, Revenue(s, "c1", w, d("0.035")), Revenue(s, "c1", w, d("0.035")))
}

func TestRevenue_ShareIsParameter(t *testing.T) {
	s := fixture()
	w := march(t)

	// p3 falls on April 1st and is outside the window
	r := Revenue(s, "c1", w, d("0.035"))
	require.Len(t, r.Payments, 2)
	assert.True(t, r.InterestTotal.Equal(d("150")))
	assert.True(t, r.StoreRevenue.Equal(d("5.25")))

	r = Revenue(s, "c1", w, d("0.6667"))
	assert.True(t, r.StoreRevenue.Equal(d("100.01")))

	empty := Revenue(s, "c2", w, d("0.035"))
	assert.Empty(t, empty.Payments)
	assert.True(t, empty.StoreRevenue.IsZero())
}

func TestCustomerStatement(t *testing.T) {
	s := fixture()
	w := march(t)
	storeOne := ledger.StoreOperator{ID: "u1", Store: "c1"}

	t.Run("first visible match", func(t *testing.T) {
		st, err := CustomerStatement(s, storeOne, "c1", w, "ana")
		require.NoError(t, err)
		assert.Equal(t, ledger.CustomerID("a"), st.Customer.ID)
		require.NotNil(t, st.CreditLine)
		assert.Len(t, st.Consumptions, 1)
		assert.Len(t, st.Payments, 2)
		assert.True(t, st.PaidTotal.Equal(d("300")))
		assert.True(t, st.Available.Equal(d("4150")))
	})

	t.Run("VIP visible at any store", func(t *testing.T) {
		st, err := CustomerStatement(s, ledger.StoreOperator{ID: "u2", Store: "c2"}, "c2", w, "victor")
		require.NoError(t, err)
		assert.Equal(t, ledger.CustomerID("v"), st.Customer.ID)
		// the VIP's consumption was attributed to c1
		assert.Empty(t, st.Consumptions)
	})

	t.Run("other store's customer is not found", func(t *testing.T) {
		_, err := CustomerStatement(s, storeOne, "c1", w, "bruno")
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("empty search", func(t *testing.T) {
		_, err := CustomerStatement(s, storeOne, "c1", w, "  ")
		assert.ErrorIs(t, err, ledger.ErrValidation)
	})
}

func TestCreditSummaries_Visibility(t *testing.T) {
	s := fixture()

	all := CreditSummaries(s, ledger.Administrator{ID: "admin1"}, "", "")
	assert.Len(t, all, 4)

	storeTwo := CreditSummaries(s, ledger.StoreOperator{ID: "u2", Store: "c2"}, "", "")
	ids := []ledger.CreditLineID{}
	for _, l := range storeTwo {
		ids = append(ids, l.ID)
	}
	assert.ElementsMatch(t, []ledger.CreditLineID{"lb", "lv"}, ids)

	paid := CreditSummaries(s, ledger.Administrator{ID: "admin1"}, ledger.StatePaid, "")
	require.Len(t, paid, 1)
	assert.Equal(t, ledger.CreditLineID("lv"), paid[0].ID)

	pending := CreditSummaries(s, ledger.Administrator{ID: "admin1"}, ledger.StatePending, "nueva")
	require.Len(t, pending, 1)
	assert.Equal(t, "Colmado Uno", pending[0].StoreName)
}

func TestCreditDetail(t *testing.T) {
	s := fixture()

	det, err := CreditDetail(s, ledger.Administrator{ID: "admin1"}, "la")
	require.NoError(t, err)
	assert.Equal(t, "Ana Pérez", det.Customer.Name)
	assert.Len(t, det.Consumptions, 1)
	require.Len(t, det.Payments, 2)
	assert.Equal(t, ledger.EventID("p2"), det.Payments[0].ID)

	_, err = CreditDetail(s, ledger.StoreOperator{ID: "u2", Store: "c2"}, "la")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = CreditDetail(s, ledger.Administrator{ID: "admin1"}, "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestHistory_SearchAndWindow(t *testing.T) {
	s := fixture()
	admin := ledger.Administrator{ID: "admin1"}

	got := ConsumptionHistory(s, admin, nil, "aceite")
	require.Len(t, got, 1)
	assert.Equal(t, ledger.EventID("e2"), got[0].ID)

	w := march(t)
	payments := PaymentHistory(s, admin, &w, "")
	assert.Len(t, payments, 2)
	assert.Len(t, PaymentHistory(s, admin, nil, ""), 3)

	storeTwo := ConsumptionHistory(s, ledger.StoreOperator{ID: "u2", Store: "c2"}, nil, "")
	assert.Len(t, storeTwo, 2) // own customer plus the VIP
}

func TestMonthlyRevenue(t *testing.T) {
	s := fixture()

	r := MonthlyRevenue(s, 2026, time.April, time.UTC, d("0.6667"))

	assert.Equal(t, 1, r.Payments)
	assert.True(t, r.InterestTotal.Equal(d("15")))
	assert.True(t, r.PlatformRevenue.Equal(d("10")))
}

func TestBuildDashboard(t *testing.T) {
	s := fixture()

	dash := BuildDashboard(s)

	assert.Equal(t, 2, dash.Stores)
	assert.Equal(t, 3, dash.ActiveLines)
	assert.True(t, dash.ApprovedTotal.Equal(d("15000")))
	assert.True(t, dash.PrincipalTotal.Equal(d("1050")))
	assert.True(t, dash.OutstandingDebt.Equal(d("1080")))
	assert.True(t, dash.UtilizationPercent.Equal(d("7")))
	assert.True(t, dash.ConsumedTotal.Equal(d("1300")))
	assert.True(t, dash.PaidTotal.Equal(d("415")))
	require.Len(t, dash.PendingRequests, 1)
	assert.Equal(t, "Ana Nueva", dash.PendingRequests[0].CustomerName)
	assert.Equal(t, ledger.CreditLineID("lp"), dash.RecentLines[0].ID)
	assert.Equal(t, ledger.EventID("e3"), dash.RecentConsumptions[0].ID)
	assert.Len(t, dash.RecentPayments, 3)
}

func TestPaidTotals_ExcludeExcess(t *testing.T) {
	// GIVEN a payment of 1200 against 1150 owed
	s := fixture()
	s.Payments = append(s.Payments, ledger.PaymentEvent{
		ID: "p4", CreditLineID: "lb", Total: d("1200"), InterestPortion: d("30"), PrincipalPortion: d("200"),
		Excess: d("970"), At: at(6, 9), StoreID: "c2",
	})
	w := march(t)

	// WHEN totals are built
	st, err := CustomerStatement(s, ledger.Administrator{ID: "admin"}, "", w, "bruno")
	require.NoError(t, err)
	dash := BuildDashboard(s)
	rev := Revenue(s, "c2", w, d("0.035"))

	// THEN only the applied portions count as paid
	assert.True(t, st.PaidTotal.Equal(d("230")), st.PaidTotal.String())
	assert.True(t, dash.PaidTotal.Equal(d("645")), dash.PaidTotal.String())
	assert.True(t, rev.PaymentsTotal.Equal(d("230")), rev.PaymentsTotal.String())
}

func TestAggregator_UsesSnapshot(t *testing.T) {
	agg := New(staticSource{fixture()}, Options{StoreShare: d("0.035"), PlatformShare: d("0.6667"), Location: time.UTC})

	r := agg.Revenue("c1", march(t))
	assert.True(t, r.StoreRevenue.Equal(d("5.25")))
	assert.Equal(t, time.UTC, agg.Location())
}

func TestWriteStatementPDF(t *testing.T) {
	s := fixture()
	st, err := CustomerStatement(s, ledger.Administrator{ID: "admin1"}, "", march(t), "ana pérez")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteStatementPDF(&buf, st))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

type staticSource struct{ s *ledger.State }

func (src staticSource) Snapshot() *ledger.State { return src.s.Clone() }
