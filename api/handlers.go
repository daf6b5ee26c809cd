/*
handlers.go - HTTP API handlers for the credit ledger

PURPOSE:
  Exposes the ledger engine and report aggregator via REST API. Handles
  HTTP request/response, JSON binding and validation, and delegates to the
  ledger. Every route except login runs with a resolved ledger.Actor.

ENDPOINTS:
  Auth:
    POST   /api/auth/login                  Login, returns a bearer token
    GET    /api/auth/stores                 Store list for the login form
    GET    /api/auth/me                     Current user

  Admin:
    GET/POST        /api/stores             List / create stores
    PUT/DELETE      /api/stores/{id}        Edit / delete a store
    GET/POST        /api/users              List / create users
    PUT/DELETE      /api/users/{id}         Edit / delete a user
    POST   /api/credits/{id}/approve        Approve a pending line
    POST   /api/vip-credits                 VIP customer with an active line
    POST   /api/impersonate/{storeID}       Token for a store's operator

  Any actor (visibility-filtered):
    GET/POST        /api/customers          List / create customers
    PUT/DELETE      /api/customers/{id}     Edit / delete a customer
    GET    /api/credits                     Credit summaries
    GET    /api/credits/{id}                Credit detail with history
    POST   /api/credits                     Request credit for a customer
    POST   /api/credit-requests             New customer + pending credit
    POST   /api/credits/{id}/consumptions   Record a purchase
    POST   /api/credits/{id}/payments       Record a payment

REQUEST FLOW:
  1. Resolve actor (middleware)
  2. Bind and validate JSON
  3. Check visibility and resolve the attributing store
  4. Call the ledger engine
  5. Serialize response or map the ledger error

ERROR HANDLING:
  - 400: ledger.ErrValidation, malformed JSON
  - 401: missing or invalid token
  - 403: administrator-only route
  - 404: ledger.ErrNotFound, or a record the actor may not see
  - 409: ledger.ErrInsufficientBalance, ledger.ErrReferentialConflict
  - 422: request DTO failed its validator tags
  - 500: persistence and other internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - reports.go: Report endpoints
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tarjetacolmado/ledger/auth"
	"github.com/tarjetacolmado/ledger/ledger"
	"github.com/tarjetacolmado/ledger/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *ledger.Engine
	Reports *report.Aggregator
	Issuer  *auth.Issuer
	// AuditLog keeps audit history; nil when the store has none.
	AuditLog ledger.AuditLog
	Log      zerolog.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. auditLog may be nil.
func NewHandler(engine *ledger.Engine, reports *report.Aggregator, issuer *auth.Issuer, auditLog ledger.AuditLog, logger zerolog.Logger) *Handler {
	return &Handler{Engine: engine, Reports: reports, Issuer: issuer, AuditLog: auditLog, Log: logger}
}

func (h *Handler) snapshot() *ledger.State { return h.Engine.Repository().Snapshot() }

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login checks credentials and issues a token.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !bindJSON(w, r, &req) {
		return
	}

	user, err := auth.Authenticate(h.snapshot().Users, req.Username, req.Password, ledger.StoreID(req.StoreID))
	if err != nil {
		h.Log.Warn().Str("username", req.Username).Msg("login rejected")
		writeError(w, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}
	h.issue(w, user, "")
}

// ListStoreOptions returns store ids and names for the login form.
// GET /api/auth/stores
func (h *Handler) ListStoreOptions(w http.ResponseWriter, r *http.Request) {
	stores := h.snapshot().Stores
	dtos := make([]StoreOptionDTO, len(stores))
	for i, st := range stores {
		dtos[i] = StoreOptionDTO{ID: string(st.ID), Name: st.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Me returns the authenticated user.
// GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	s := h.snapshot()
	i := s.UserIndex(actorFrom(r.Context()).User())
	if i < 0 {
		writeError(w, http.StatusUnauthorized, "User no longer exists", nil)
		return
	}
	resp := map[string]any{"user": toUserDTO(s.Users[i])}
	if c := claimsFrom(r.Context()); c != nil && c.ImpersonatedBy != "" {
		resp["impersonated_by"] = c.ImpersonatedBy
	}
	writeJSON(w, http.StatusOK, resp)
}

// Impersonate issues a token for the store's first operator.
// POST /api/impersonate/{storeID}
func (h *Handler) Impersonate(w http.ResponseWriter, r *http.Request) {
	store := ledger.StoreID(chi.URLParam(r, "storeID"))
	s := h.snapshot()
	if s.StoreIndex(store) < 0 {
		writeLedgerError(w, &ledger.NotFoundError{Kind: "store", ID: string(store)})
		return
	}
	user, err := auth.Impersonate(s.Users, store)
	if err != nil {
		writeError(w, http.StatusNotFound, "Store has no operator", err)
		return
	}
	admin := actorFrom(r.Context()).User()
	h.Log.Info().Str("admin", string(admin)).Str("store", string(store)).Msg("impersonating store")
	h.issue(w, user, admin)
}

func (h *Handler) issue(w http.ResponseWriter, u ledger.User, impersonator ledger.UserID) {
	token, expires, err := h.Issuer.Issue(u, impersonator)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:          token,
		ExpiresAt:      expires,
		User:           toUserDTO(u),
		ImpersonatedBy: string(impersonator),
	})
}

// =============================================================================
// STORE HANDLERS (admin)
// =============================================================================

// ListStores returns all stores.
func (h *Handler) ListStores(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.snapshot().Stores))
}

func (h *Handler) CreateStore(w http.ResponseWriter, r *http.Request) {
	var req StoreRequest
	if !bindJSON(w, r, &req) {
		return
	}
	st, err := h.Engine.CreateStore(r.Context(), req.fields())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *Handler) UpdateStore(w http.ResponseWriter, r *http.Request) {
	var req StoreRequest
	if !bindJSON(w, r, &req) {
		return
	}
	st, err := h.Engine.UpdateStore(r.Context(), ledger.StoreID(chi.URLParam(r, "id")), req.fields())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) DeleteStore(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteStore(r.Context(), ledger.StoreID(chi.URLParam(r, "id"))); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// USER HANDLERS (admin)
// =============================================================================

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users := h.snapshot().Users
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !bindJSON(w, r, &req) {
		return
	}
	u, err := h.Engine.CreateUser(r.Context(), ledger.NewUser{
		Username: req.Username,
		Password: req.Password,
		Role:     ledger.Role(req.Role),
		StoreID:  ledger.StoreID(req.StoreID),
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !bindJSON(w, r, &req) {
		return
	}
	u, err := h.Engine.UpdateUser(r.Context(), ledger.UserID(chi.URLParam(r, "id")), req.changes())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteUser(r.Context(), ledger.UserID(chi.URLParam(r, "id"))); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns the customers visible to the actor.
// GET /api/customers?search=
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search")))
	out := []ledger.Customer{}
	for _, c := range ledger.VisibleCustomers(actorFrom(r.Context()), h.snapshot().Customers) {
		if search == "" || strings.Contains(strings.ToLower(c.Name), search) || strings.Contains(c.NationalID, search) {
			out = append(out, c)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateCustomer adds a customer without credit. Store operators always
// create non-VIP customers of their own store.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if !bindJSON(w, r, &req) {
		return
	}
	actor := actorFrom(r.Context())
	store := ledger.AttributingStore(actor, ledger.StoreID(req.StoreID))
	vip := req.VIP
	if _, ok := actor.(ledger.StoreOperator); ok {
		vip = false
	}
	c, err := h.Engine.CreateCustomer(r.Context(), req.profile(), store, vip)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req UpdateCustomerRequest
	if !bindJSON(w, r, &req) {
		return
	}
	actor := actorFrom(r.Context())
	id := ledger.CustomerID(chi.URLParam(r, "id"))
	if err := ownsCustomer(h.snapshot(), actor, id); err != nil {
		writeLedgerError(w, err)
		return
	}
	if _, ok := actor.(ledger.StoreOperator); ok && req.VIP != nil {
		writeError(w, http.StatusForbidden, "Only administrators can change the VIP flag", nil)
		return
	}
	c, err := h.Engine.UpdateCustomer(r.Context(), id, req.changes())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))
	if err := ownsCustomer(h.snapshot(), actorFrom(r.Context()), id); err != nil {
		writeLedgerError(w, err)
		return
	}
	if err := h.Engine.DeleteCustomer(r.Context(), id); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownsCustomer allows administrators everything and store operators only
// their own store's customers. Anything else reads as not found.
func ownsCustomer(s *ledger.State, actor ledger.Actor, id ledger.CustomerID) error {
	i := s.CustomerIndex(id)
	if i < 0 {
		return &ledger.NotFoundError{Kind: "customer", ID: string(id)}
	}
	if op, ok := actor.(ledger.StoreOperator); ok && s.Customers[i].StoreID != op.Store {
		return &ledger.NotFoundError{Kind: "customer", ID: string(id)}
	}
	return nil
}

// =============================================================================
// CREDIT HANDLERS
// =============================================================================

// ListCredits returns credit summaries visible to the actor.
// GET /api/credits?status=&search=
func (h *Handler) ListCredits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := ledger.LineState(q.Get("status"))
	switch status {
	case "", ledger.StatePending, ledger.StateActive, ledger.StatePaid:
	default:
		writeError(w, http.StatusBadRequest, "status must be pending, active or paid", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.Reports.CreditSummaries(actorFrom(r.Context()), status, q.Get("search")))
}

// GetCredit returns one line with its history.
// GET /api/credits/{id}
func (h *Handler) GetCredit(w http.ResponseWriter, r *http.Request) {
	d, err := h.Reports.CreditDetail(actorFrom(r.Context()), ledger.CreditLineID(chi.URLParam(r, "id")))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// RequestCredit opens a pending line for an existing, visible customer.
// POST /api/credits
func (h *Handler) RequestCredit(w http.ResponseWriter, r *http.Request) {
	var req CreditRequest
	if !bindJSON(w, r, &req) {
		return
	}
	actor := actorFrom(r.Context())
	s := h.snapshot()
	i := s.CustomerIndex(ledger.CustomerID(req.CustomerID))
	if i < 0 || !ledger.CanSeeCustomer(actor, s.Customers[i]) {
		writeLedgerError(w, &ledger.NotFoundError{Kind: "customer", ID: req.CustomerID})
		return
	}
	line, err := h.Engine.RequestCredit(r.Context(), ledger.CreditRequest{
		CustomerID:    ledger.CustomerID(req.CustomerID),
		StoreID:       ledger.AttributingStore(actor, ledger.StoreID(req.StoreID)),
		ApprovedLimit: req.ApprovedLimit,
		InterestRate:  req.InterestRate,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

// SubmitApplication creates a customer and a pending line together.
// POST /api/credit-requests
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	var req CreditApplicationRequest
	if !bindJSON(w, r, &req) {
		return
	}
	cust, line, err := h.Engine.RequestCreditForNewCustomer(r.Context(), ledger.Application{
		Profile:       req.profile(),
		StoreID:       ledger.AttributingStore(actorFrom(r.Context()), ledger.StoreID(req.StoreID)),
		ApprovedLimit: req.ApprovedLimit,
		InterestRate:  req.InterestRate,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"customer": cust, "credit_line": line})
}

// OpenVIPCredit creates a VIP customer with an active line.
// POST /api/vip-credits
func (h *Handler) OpenVIPCredit(w http.ResponseWriter, r *http.Request) {
	var req VIPCreditRequest
	if !bindJSON(w, r, &req) {
		return
	}
	cust, line, err := h.Engine.OpenVIPCredit(r.Context(), ledger.CustomerProfile{
		Name: req.Name, NationalID: req.NationalID, Address: req.Address, Phone: req.Phone,
	}, req.ApprovedLimit, req.InterestRate)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"customer": cust, "credit_line": line})
}

// ApproveCredit activates a pending line.
// POST /api/credits/{id}/approve
func (h *Handler) ApproveCredit(w http.ResponseWriter, r *http.Request) {
	line, err := h.Engine.ApproveCredit(r.Context(), ledger.CreditLineID(chi.URLParam(r, "id")))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

// RecordConsumption charges a purchase to a visible line.
// POST /api/credits/{id}/consumptions
func (h *Handler) RecordConsumption(w http.ResponseWriter, r *http.Request) {
	var req ConsumptionRequest
	if !bindJSON(w, r, &req) {
		return
	}
	actor := actorFrom(r.Context())
	id := ledger.CreditLineID(chi.URLParam(r, "id"))
	store, err := h.movementScope(actor, id, req.StoreID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	ev, line, err := h.Engine.RecordConsumption(r.Context(), ledger.Consumption{
		CreditLineID: id,
		Amount:       req.Amount,
		Description:  req.Description,
		StoreID:      store,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, MovementResponse{Event: ev, CreditLine: line})
}

// RecordPayment applies a payment to a visible line, interest first.
// POST /api/credits/{id}/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !bindJSON(w, r, &req) {
		return
	}
	actor := actorFrom(r.Context())
	id := ledger.CreditLineID(chi.URLParam(r, "id"))
	store, err := h.movementScope(actor, id, req.StoreID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	ev, line, err := h.Engine.RecordPayment(r.Context(), ledger.Payment{
		CreditLineID: id,
		Amount:       req.Amount,
		StoreID:      store,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	resp := MovementResponse{Event: ev, CreditLine: line}
	if ev.Excess.IsPositive() {
		resp.Warning = "payment exceeded the total debt by " + ev.Excess.StringFixed(2) + "; the excess was not applied"
	}
	writeJSON(w, http.StatusCreated, resp)
}

// movementScope checks the actor can see the line and resolves the store
// the movement is attributed to.
func (h *Handler) movementScope(actor ledger.Actor, id ledger.CreditLineID, requested string) (ledger.StoreID, error) {
	s := h.snapshot()
	i := s.CreditLineIndex(id)
	if i < 0 {
		return "", &ledger.NotFoundError{Kind: "credit line", ID: string(id)}
	}
	ci := s.CustomerIndex(s.CreditLines[i].CustomerID)
	if ci < 0 || !ledger.CanSeeCustomer(actor, s.Customers[ci]) {
		return "", &ledger.NotFoundError{Kind: "credit line", ID: string(id)}
	}
	store := ledger.AttributingStore(actor, ledger.StoreID(requested))
	if store == "" {
		return "", &ledger.ValidationError{Field: "store_id", Message: "is required"}
	}
	return store, nil
}

// =============================================================================
// HELPERS
// =============================================================================

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// gt=0 and lte=1 work on amounts and rates.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindJSON decodes the body and runs validator tags. It writes the error
// response itself and returns false on failure.
func bindJSON(w http.ResponseWriter, r *http.Request, req any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "Invalid request", err)
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "Validation failed",
			Code:    "validation",
			Details: fields,
		})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError maps ledger errors onto HTTP statuses.
func writeLedgerError(w http.ResponseWriter, err error) {
	var ib *ledger.InsufficientBalanceError
	switch {
	case errors.As(err, &ib):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: "Insufficient balance",
			Code:  "insufficient_balance",
			Details: map[string]string{
				"available": ib.Available.StringFixed(2),
				"requested": ib.Requested.StringFixed(2),
				"shortfall": ib.Shortfall.StringFixed(2),
			},
		})
	case errors.Is(err, ledger.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, ledger.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation"})
	case errors.Is(err, ledger.ErrReferentialConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "conflict"})
	case errors.Is(err, ledger.ErrPersistence):
		writeError(w, http.StatusInternalServerError, "Failed to persist changes", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
