/*
reports.go - Read-only report and history endpoints

ENDPOINTS:
  GET /api/consumptions?from=&to=&search=        Visible consumption history
  GET /api/payments?from=&to=&search=            Visible payment history
  GET /api/reports/consumption?from=&to=&store_id=
  GET /api/reports/revenue?from=&to=&store_id=
  GET /api/reports/statement?from=&to=&q=&store_id=
  GET /api/reports/statement.pdf?...             Same statement as a PDF
  GET /api/dashboard                             Network totals (admin)
  GET /api/revenue/monthly?year=&month=          Platform revenue (admin)
  GET /api/audit                                 Run the ledger audit (admin)
  GET /api/audit/runs?limit=                     Audit history (admin)

STORE SCOPE:
  Store operators always report on their own store. Administrators pass
  store_id; an empty store_id means every store.

DATES:
  from/to are YYYY-MM-DD calendar dates in the configured zone, inclusive.
*/
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tarjetacolmado/ledger/ledger"
	"github.com/tarjetacolmado/ledger/report"
)

// =============================================================================
// HISTORY
// =============================================================================

// ListConsumptions returns visible consumptions, newest first.
func (h *Handler) ListConsumptions(w http.ResponseWriter, r *http.Request) {
	win, ok := h.optionalWindow(w, r)
	if !ok {
		return
	}
	items := h.Reports.ConsumptionHistory(actorFrom(r.Context()), win, r.URL.Query().Get("search"))
	writeJSON(w, http.StatusOK, nonNil(items))
}

// ListPayments returns visible payments, newest first.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	win, ok := h.optionalWindow(w, r)
	if !ok {
		return
	}
	items := h.Reports.PaymentHistory(actorFrom(r.Context()), win, r.URL.Query().Get("search"))
	writeJSON(w, http.StatusOK, nonNil(items))
}

// =============================================================================
// STORE REPORTS
// =============================================================================

func (h *Handler) ConsumptionReport(w http.ResponseWriter, r *http.Request) {
	win, ok := h.requiredWindow(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Reports.Consumptions(reportScope(r), win))
}

func (h *Handler) RevenueReport(w http.ResponseWriter, r *http.Request) {
	win, ok := h.requiredWindow(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Reports.Revenue(reportScope(r), win))
}

func (h *Handler) StatementReport(w http.ResponseWriter, r *http.Request) {
	st, ok := h.statement(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// StatementPDF renders the statement for printing.
func (h *Handler) StatementPDF(w http.ResponseWriter, r *http.Request) {
	st, ok := h.statement(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="estado-%s.pdf"`, st.Customer.ID))
	if err := report.WriteStatementPDF(w, st); err != nil {
		h.Log.Error().Err(err).Str("customer", string(st.Customer.ID)).Msg("statement pdf failed")
	}
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) (report.Statement, bool) {
	win, ok := h.requiredWindow(w, r)
	if !ok {
		return report.Statement{}, false
	}
	st, err := h.Reports.CustomerStatement(actorFrom(r.Context()), reportScope(r), win, r.URL.Query().Get("q"))
	if err != nil {
		writeLedgerError(w, err)
		return report.Statement{}, false
	}
	return st, true
}

// reportScope is the caller's own store for operators, the store_id query
// parameter for administrators.
func reportScope(r *http.Request) ledger.StoreID {
	return ledger.AttributingStore(actorFrom(r.Context()), ledger.StoreID(r.URL.Query().Get("store_id")))
}

// =============================================================================
// ADMIN REPORTS
// =============================================================================

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Reports.Dashboard())
}

// MonthlyRevenue defaults to the current month in the configured zone.
// GET /api/revenue/monthly?year=2026&month=3
func (h *Handler) MonthlyRevenue(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(h.Reports.Location())
	year, month := now.Year(), int(now.Month())

	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 2000 || n > 9999 {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = n
	}
	if v := q.Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			writeError(w, http.StatusBadRequest, "Invalid month", err)
			return
		}
		month = n
	}
	writeJSON(w, http.StatusOK, h.Reports.MonthlyRevenue(year, time.Month(month)))
}

// RunAudit reconstructs every line from its events and records the run.
// GET /api/audit
func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	run, err := h.runAudit(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record audit run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListAuditRuns returns recorded audit runs, newest first.
// GET /api/audit/runs?limit=20
func (h *Handler) ListAuditRuns(w http.ResponseWriter, r *http.Request) {
	if h.AuditLog == nil {
		writeJSON(w, http.StatusOK, []ledger.AuditRun{})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}
	runs, err := h.AuditLog.AuditRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit runs", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(runs))
}

// =============================================================================
// WINDOW PARSING
// =============================================================================

func (h *Handler) requiredWindow(w http.ResponseWriter, r *http.Request) (ledger.Window, bool) {
	q := r.URL.Query()
	win, err := ledger.ParseWindow(q.Get("from"), q.Get("to"), h.Reports.Location())
	if err != nil {
		writeLedgerError(w, err)
		return ledger.Window{}, false
	}
	return win, true
}

// optionalWindow returns nil when neither from nor to is given.
func (h *Handler) optionalWindow(w http.ResponseWriter, r *http.Request) (*ledger.Window, bool) {
	q := r.URL.Query()
	if q.Get("from") == "" && q.Get("to") == "" {
		return nil, true
	}
	win, ok := h.requiredWindow(w, r)
	if !ok {
		return nil, false
	}
	return &win, true
}
