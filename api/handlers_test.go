/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Login, token checks and administrator-only routes
- Store, user and customer administration
- Credit requests, approval, consumptions and payments end to end
- Visibility of other stores' customers
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarjetacolmado/ledger/auth"
	"github.com/tarjetacolmado/ledger/ledger"
	"github.com/tarjetacolmado/ledger/report"
	"github.com/tarjetacolmado/ledger/store/memory"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// TEST SERVER
// =============================================================================

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
	store   *memory.Store
}

// setupTestServer returns a server over a memory store seeded with the demo
// store, its operator and an active RD$5,000 line.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	clock := func() time.Time { return testNow }
	repo := ledger.NewRepository(store, ledger.Options{
		Seed:         ledger.SeedOptions{AdminPassword: "admin", Demo: true},
		PasswordCost: bcrypt.MinCost,
		Now:          clock,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, repo.Load(context.Background()))

	engine := ledger.NewEngine(repo, ledger.WithClock(clock), ledger.WithPasswordCost(bcrypt.MinCost))
	reports := report.New(repo, report.Options{
		StoreShare:    decimal.RequireFromString("0.035"),
		PlatformShare: decimal.RequireFromString("0.6667"),
		Location:      time.UTC,
	})
	h := NewHandler(engine, reports, auth.NewIssuer("test-secret", time.Hour), store, zerolog.Nop())
	return &testServer{t: t, handler: h, router: NewRouter(h, []string{"*"}), store: store}
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(username, password, store string) string {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: username, Password: password, StoreID: store})
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[LoginResponse](ts.t, rec).Token
}

func (ts *testServer) admin() string { return ts.login("admin", "admin", "") }

func (ts *testServer) operator() string {
	return ts.login(ledger.DemoStoreUsername, ledger.DemoStorePassword, string(ledger.DemoStoreID))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type movementBody struct {
	Event      json.RawMessage   `json:"event"`
	CreditLine ledger.CreditLine `json:"credit_line"`
	Warning    string            `json:"warning"`
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin(t *testing.T) {
	ts := setupTestServer(t)

	t.Run("administrator", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "admin", Password: "admin"})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[LoginResponse](t, rec)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "administrator", resp.User.Role)
		assert.NotContains(t, rec.Body.String(), "passwordHash")
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "admin", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("operator at another store", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/auth/login", "", LoginRequest{
			Username: ledger.DemoStoreUsername, Password: ledger.DemoStorePassword, StoreID: "store-other",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin"})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decode[struct {
			Details map[string]string `json:"details"`
		}](t, rec)
		assert.Equal(t, "required", resp.Details["Password"])
	})
}

func TestAuthRequired(t *testing.T) {
	ts := setupTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/credits", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/credits", "garbage", nil).Code)

	// The store list for the login form is public.
	rec := ts.do(http.MethodGet, "/api/auth/stores", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stores := decode[[]StoreOptionDTO](t, rec)
	require.Len(t, stores, 1)
	assert.Equal(t, string(ledger.DemoStoreID), stores[0].ID)
}

func TestAdminOnlyRoutes(t *testing.T) {
	ts := setupTestServer(t)
	op := ts.operator()

	for _, path := range []string{"/api/stores", "/api/users", "/api/dashboard", "/api/revenue/monthly", "/api/audit", "/api/scenarios"} {
		rec := ts.do(http.MethodGet, path, op, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
	rec := ts.do(http.MethodPost, "/api/credits/"+string(ledger.DemoCreditLineID)+"/approve", op, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeletedUserTokenStopsWorking(t *testing.T) {
	ts := setupTestServer(t)
	admin := ts.admin()
	op := ts.operator()

	// GIVEN: The operator's token works
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/auth/me", op, nil).Code)

	// WHEN: An administrator deletes the operator
	rec := ts.do(http.MethodDelete, "/api/users/"+string(ledger.DemoUserID), admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// THEN: The token no longer resolves to an actor
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/auth/me", op, nil).Code)
}

func TestImpersonate(t *testing.T) {
	ts := setupTestServer(t)
	admin := ts.admin()

	rec := ts.do(http.MethodPost, "/api/impersonate/"+string(ledger.DemoStoreID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[LoginResponse](t, rec)
	assert.Equal(t, "store", resp.User.Role)
	assert.Equal(t, string(ledger.BootstrapAdminID), resp.ImpersonatedBy)

	me := decode[map[string]any](t, ts.do(http.MethodGet, "/api/auth/me", resp.Token, nil))
	assert.Equal(t, string(ledger.BootstrapAdminID), me["impersonated_by"])

	rec = ts.do(http.MethodPost, "/api/impersonate/missing", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// ADMINISTRATION
// =============================================================================

func TestStoreLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	admin := ts.admin()

	// GIVEN: A new store
	rec := ts.do(http.MethodPost, "/api/stores", admin, StoreRequest{Name: "Colmado El Sol"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ledger.Store](t, rec)

	// WHEN: Renaming it
	rec = ts.do(http.MethodPut, "/api/stores/"+string(created.ID), admin, StoreRequest{Name: "Colmado El Sol II"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Colmado El Sol II", decode[ledger.Store](t, rec).Name)

	// THEN: An unreferenced store can be deleted, the demo store cannot
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/stores/"+string(created.ID), admin, nil).Code)

	rec = ts.do(http.MethodDelete, "/api/stores/"+string(ledger.DemoStoreID), admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decode[ErrorResponse](t, rec).Code)
	assert.Len(t, ts.handler.snapshot().Stores, 1)
}

func TestUserAdministration(t *testing.T) {
	ts := setupTestServer(t)
	admin := ts.admin()

	rec := ts.do(http.MethodPost, "/api/users", admin, CreateUserRequest{
		Username: "cajero", Password: "secreto", Role: "store", StoreID: string(ledger.DemoStoreID),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[UserDTO](t, rec)

	// The new user can log in at its store
	ts.login("cajero", "secreto", string(ledger.DemoStoreID))

	// Store role without a store fails the DTO check
	rec = ts.do(http.MethodPost, "/api/users", admin, CreateUserRequest{Username: "otro", Password: "secreto", Role: "store"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Duplicate username is a ledger validation error
	rec = ts.do(http.MethodPost, "/api/users", admin, CreateUserRequest{Username: "CAJERO", Password: "secreto", Role: "administrator"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Bootstrap administrator is protected
	rec = ts.do(http.MethodDelete, "/api/users/"+string(ledger.BootstrapAdminID), admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	newPassword := "otraclave"
	rec = ts.do(http.MethodPut, "/api/users/"+created.ID, admin, UpdateUserRequest{Password: &newPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	ts.login("cajero", "otraclave", string(ledger.DemoStoreID))
}

func TestTokenRejectedAfterRoleOrStoreChange(t *testing.T) {
	ts := setupTestServer(t)
	admin := ts.admin()
	op := ts.operator()

	// GIVEN: A second store
	rec := ts.do(http.MethodPost, "/api/stores", admin, StoreRequest{Name: "Colmado El Sol"})
	require.Equal(t, http.StatusCreated, rec.Code)
	other := decode[ledger.Store](t, rec)

	// WHEN: The operator is moved to it
	storeID := string(other.ID)
	rec = ts.do(http.MethodPut, "/api/users/"+string(ledger.DemoUserID), admin, UpdateUserRequest{StoreID: &storeID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The token issued for the old store stops working, a fresh login works
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/customers", op, nil).Code)
	fresh := ts.login(ledger.DemoStoreUsername, ledger.DemoStorePassword, storeID)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/customers", fresh, nil).Code)

	// A password change alone keeps existing sessions
	password := "nuevaclave"
	rec = ts.do(http.MethodPut, "/api/users/"+string(ledger.DemoUserID), admin, UpdateUserRequest{Password: &password})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/customers", fresh, nil).Code)
}

func TestCustomerPermissions(t *testing.T) {
	ts := setupTestServer(t)
	admin := ts.admin()
	op := ts.operator()

	// GIVEN: A second store with its own customer
	rec := ts.do(http.MethodPost, "/api/stores", admin, StoreRequest{Name: "Colmado El Sol"})
	require.Equal(t, http.StatusCreated, rec.Code)
	other := decode[ledger.Store](t, rec)
	rec = ts.do(http.MethodPost, "/api/customers", admin, CustomerRequest{Name: "Bruno Díaz", StoreID: string(other.ID)})
	require.Equal(t, http.StatusCreated, rec.Code)
	bruno := decode[ledger.Customer](t, rec)

	// WHEN: The demo operator lists and edits customers
	list := decode[[]ledger.Customer](t, ts.do(http.MethodGet, "/api/customers", op, nil))

	// THEN: Only its own customer is visible and the other store's is not found
	require.Len(t, list, 1)
	assert.Equal(t, ledger.DemoCustomerID, list[0].ID)

	name := "Bruno"
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPut, "/api/customers/"+string(bruno.ID), op, UpdateCustomerRequest{Name: &name}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/customers/"+string(bruno.ID), op, nil).Code)

	vip := true
	rec = ts.do(http.MethodPut, "/api/customers/"+string(ledger.DemoCustomerID), op, UpdateCustomerRequest{VIP: &vip})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Operators always create customers at their own store, never VIP
	rec = ts.do(http.MethodPost, "/api/customers", op, CustomerRequest{Name: "Ana", StoreID: string(other.ID), VIP: true})
	require.Equal(t, http.StatusCreated, rec.Code)
	ana := decode[ledger.Customer](t, rec)
	assert.Equal(t, ledger.DemoStoreID, ana.StoreID)
	assert.False(t, ana.VIP)
}

// =============================================================================
// CREDIT FLOW
// =============================================================================

func TestConsumptionAndPaymentFlow(t *testing.T) {
	ts := setupTestServer(t)
	op := ts.operator()
	path := "/api/credits/" + string(ledger.DemoCreditLineID)

	// GIVEN: An active line with limit 5000 at 15%
	// WHEN: Consuming 1000
	rec := ts.do(http.MethodPost, path+"/consumptions", op, ConsumptionRequest{Amount: dec("1000"), Description: "Compra"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode[movementBody](t, rec)

	// THEN: Principal 1000, interest 150
	assert.True(t, body.CreditLine.PrincipalUtilized.Equal(dec("1000")))
	assert.True(t, body.CreditLine.InterestOwed.Equal(dec("150")))
	var cons ledger.ConsumptionEvent
	require.NoError(t, json.Unmarshal(body.Event, &cons))
	assert.True(t, cons.InterestGenerated.Equal(dec("150")))
	assert.Equal(t, ledger.DemoStoreID, cons.StoreID)

	// Payment of 100 goes entirely to interest
	rec = ts.do(http.MethodPost, path+"/payments", op, PaymentRequest{Amount: dec("100")})
	require.Equal(t, http.StatusCreated, rec.Code)
	body = decode[movementBody](t, rec)
	assert.True(t, body.CreditLine.InterestOwed.Equal(dec("50")))
	assert.True(t, body.CreditLine.PrincipalUtilized.Equal(dec("1000")))

	// Payment of 200 clears interest and pays 150 principal
	rec = ts.do(http.MethodPost, path+"/payments", op, PaymentRequest{Amount: dec("200")})
	require.Equal(t, http.StatusCreated, rec.Code)
	body = decode[movementBody](t, rec)
	var pay ledger.PaymentEvent
	require.NoError(t, json.Unmarshal(body.Event, &pay))
	assert.True(t, pay.InterestPortion.Equal(dec("50")))
	assert.True(t, pay.PrincipalPortion.Equal(dec("150")))
	assert.True(t, body.CreditLine.InterestOwed.IsZero())
	assert.True(t, body.CreditLine.PrincipalUtilized.Equal(dec("850")))

	// The detail view carries the full history
	rec = ts.do(http.MethodGet, path, op, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[struct {
		Consumptions []json.RawMessage `json:"consumptions"`
		Payments     []json.RawMessage `json:"payments"`
	}](t, rec)
	assert.Len(t, detail.Consumptions, 1)
	assert.Len(t, detail.Payments, 2)
}

func TestConsumption_InsufficientBalance(t *testing.T) {
	ts := setupTestServer(t)
	op := ts.operator()
	path := "/api/credits/" + string(ledger.DemoCreditLineID) + "/consumptions"

	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, path, op, ConsumptionRequest{Amount: dec("4950")}).Code)

	// WHEN: Consuming more than the 50 still available
	rec := ts.do(http.MethodPost, path, op, ConsumptionRequest{Amount: dec("100")})

	// THEN: 409 with the shortfall, and nothing recorded
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}](t, rec)
	assert.Equal(t, "insufficient_balance", resp.Code)
	assert.Equal(t, "50.00", resp.Details["available"])
	assert.Equal(t, "50.00", resp.Details["shortfall"])

	s := ts.handler.snapshot()
	assert.Len(t, s.Consumptions, 1)
}

func TestMovementValidation(t *testing.T) {
	ts := setupTestServer(t)
	op := ts.operator()
	admin := ts.admin()
	path := "/api/credits/" + string(ledger.DemoCreditLineID)

	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodPost, path+"/consumptions", op, ConsumptionRequest{Amount: dec("0")}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodPost, path+"/payments", op, PaymentRequest{Amount: dec("-5")}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/api/credits/missing/payments", op, PaymentRequest{Amount: dec("5")}).Code)

	// Administrators must say which store the movement belongs to
	rec := ts.do(http.MethodPost, path+"/consumptions", admin, ConsumptionRequest{Amount: dec("10")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(http.MethodPost, path+"/consumptions", admin, ConsumptionRequest{Amount: dec("10"), StoreID: string(ledger.DemoStoreID)})
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(http.MethodPost, path+"/consumptions", admin, ConsumptionRequest{Amount: dec("10"), StoreID: "store-missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Unknown JSON fields are rejected
	req := map[string]any{"amount": "10", "extra": true}
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, path+"/consumptions", op, req).Code)
}

func TestOverpaymentWarning(t *testing.T) {
	ts := setupTestServer(t)
	op := ts.operator()
	path := "/api/credits/" + string(ledger.DemoCreditLineID)

	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, path+"/consumptions", op, ConsumptionRequest{Amount: dec("100")}).Code)

	rec := ts.do(http.MethodPost, path+"/payments", op, PaymentRequest{Amount: dec("200")})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode[movementBody](t, rec)
	assert.Contains(t, body.Warning, "85.00")
	assert.True(t, body.CreditLine.PrincipalUtilized.IsZero())
	assert.Equal(t, ledger.StatePaid, body.CreditLine.DerivedState())
}

func TestApplicationAndApproval(t *testing.T) {
	ts := setupTestServer(t)
	op := ts.operator()
	admin := ts.admin()

	// GIVEN: A store submits an application for a new customer
	rec := ts.do(http.MethodPost, "/api/credit-requests", op, CreditApplicationRequest{Name: "Luisa", ApprovedLimit: dec("2000")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Customer   ledger.Customer   `json:"customer"`
		CreditLine ledger.CreditLine `json:"credit_line"`
	}](t, rec)
	assert.Equal(t, ledger.StatePending, created.CreditLine.State)
	assert.Equal(t, ledger.DemoStoreID, created.Customer.StoreID)

	path := "/api/credits/" + string(created.CreditLine.ID)

	// WHEN: Consuming before approval
	rec = ts.do(http.MethodPost, path+"/consumptions", op, ConsumptionRequest{Amount: dec("10")})

	// THEN: Rejected
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	pending := decode[[]report.CreditSummary](t, ts.do(http.MethodGet, "/api/credits?status=pending", admin, nil))
	require.Len(t, pending, 1)

	rec = ts.do(http.MethodPost, path+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ledger.StateActive, decode[ledger.CreditLine](t, rec).State)

	assert.Equal(t, http.StatusCreated, ts.do(http.MethodPost, path+"/consumptions", op, ConsumptionRequest{Amount: dec("10")}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/credits?status=bogus", admin, nil).Code)
}

func TestVIPVisibleAcrossStores(t *testing.T) {
	ts := setupTestServer(t)
	admin := ts.admin()
	op := ts.operator()

	// GIVEN: A VIP customer opened by an administrator
	rec := ts.do(http.MethodPost, "/api/vip-credits", admin, VIPCreditRequest{Name: "Carlos", ApprovedLimit: dec("10000")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	vip := decode[struct {
		Customer   ledger.Customer   `json:"customer"`
		CreditLine ledger.CreditLine `json:"credit_line"`
	}](t, rec)
	assert.True(t, vip.Customer.VIP)
	assert.Equal(t, ledger.StateActive, vip.CreditLine.State)

	// WHEN: The demo store operator lists credits
	lines := decode[[]report.CreditSummary](t, ts.do(http.MethodGet, "/api/credits", op, nil))

	// THEN: The VIP line is there and can be charged
	ids := []ledger.CreditLineID{}
	for _, l := range lines {
		ids = append(ids, l.ID)
	}
	assert.ElementsMatch(t, []ledger.CreditLineID{ledger.DemoCreditLineID, vip.CreditLine.ID}, ids)

	rec = ts.do(http.MethodPost, "/api/credits/"+string(vip.CreditLine.ID)+"/consumptions", op, ConsumptionRequest{Amount: dec("500")})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestVIPCredit_InterestRate(t *testing.T) {
	ts := setupTestServer(t)
	admin := ts.admin()

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantRate string
	}{
		{"explicit zero is interest free", `{"name":"Rosa","approved_limit":"1000","interest_rate":"0"}`, http.StatusCreated, "0"},
		{"omitted takes the default", `{"name":"Rosa","approved_limit":"1000"}`, http.StatusCreated, "0.15"},
		{"explicit rate", `{"name":"Rosa","approved_limit":"1000","interest_rate":"0.05"}`, http.StatusCreated, "0.05"},
		{"above one", `{"name":"Rosa","approved_limit":"1000","interest_rate":"1.5"}`, http.StatusUnprocessableEntity, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/vip-credits", admin, json.RawMessage(tt.body))
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantRate == "" {
				return
			}
			got := decode[struct {
				CreditLine ledger.CreditLine `json:"credit_line"`
			}](t, rec)
			assert.True(t, got.CreditLine.InterestRate.Equal(dec(tt.wantRate)), got.CreditLine.InterestRate.String())
		})
	}
}

func TestPersistenceFailureReturns500(t *testing.T) {
	ts := setupTestServer(t)
	op := ts.operator()
	ts.store.FailOn(ledger.CollConsumptions, assert.AnError)

	rec := ts.do(http.MethodPost, "/api/credits/"+string(ledger.DemoCreditLineID)+"/consumptions", op, ConsumptionRequest{Amount: dec("100")})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	line, _ := ts.handler.snapshot().CreditLineFor(ledger.DemoCustomerID)
	assert.True(t, line.PrincipalUtilized.IsZero())
}
