/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that replace the ledger with realistic data
	for demos. Each scenario starts from the first-run state and then drives
	the real engine operations, so balances and events are always consistent.

AVAILABLE SCENARIOS:

	clean-network:   Bootstrap administrator only
	demo-store:      One store, its operator, one customer with an active line
	interest-first:  Purchases and partial payments applied interest first
	paid-off:        A line paid in full, displayed as paid
	vip-two-stores:  A VIP customer buying at two different stores
	pending-queue:   Applications waiting for administrator approval

HOW SCENARIOS WORK:
 1. Build the first-run state (admin, optional demo store)
 2. Replace the repository contents and persist every collection
 3. Run engine operations (consumptions, payments, applications)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "interest-first"}

NOTE:

	Scenarios overwrite every collection. Only use in development/demo
	environments.

SEE ALSO:
  - ledger/seed.go: First-run state
  - ledger/engine.go: Operations the loaders call
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/tarjetacolmado/ledger/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "clean-network",
		Name:        "Clean Network",
		Description: "Only the bootstrap administrator; no stores or customers",
	},
	{
		ID:          "demo-store",
		Name:        "Demo Store",
		Description: "One colmado with its operator and a customer holding an active RD$5,000 line",
	},
	{
		ID:          "interest-first",
		Name:        "Interest First",
		Description: "RD$1,000 purchase at 15%, then payments of RD$100 and RD$200 split interest first",
	},
	{
		ID:          "paid-off",
		Name:        "Paid Off",
		Description: "RD$1,000 purchase paid back with RD$1,150; the line reads as paid",
	},
	{
		ID:          "vip-two-stores",
		Name:        "VIP at Two Stores",
		Description: "A VIP customer consumes at two colmados and pays at one of them",
	},
	{
		ID:          "pending-queue",
		Name:        "Pending Queue",
		Description: "Two credit applications waiting for administrator approval",
	},
}

type scenarioLoader func(ctx context.Context, h *Handler) error

var scenarioLoaders = map[string]scenarioLoader{
	"clean-network":  loadCleanNetworkScenario,
	"demo-store":     loadDemoStoreScenario,
	"interest-first": loadInterestFirstScenario,
	"paid-off":       loadPaidOffScenario,
	"vip-two-stores": loadVIPTwoStoresScenario,
	"pending-queue":  loadPendingQueueScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario replaces the ledger with a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !bindJSON(w, r, &req) {
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.currentScenario = ""
	if err := load(r.Context(), h); err != nil {
		h.Log.Error().Err(err).Str("scenario", req.ScenarioID).Msg("scenario load failed")
		writeLedgerError(w, err)
		return
	}
	h.currentScenario = req.ScenarioID
	h.Log.Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// =============================================================================
// LOADERS
// =============================================================================

// resetter is implemented by every store backend.
type resetter interface {
	Reset(ctx context.Context) error
}

// reset wipes the backend, audit history included, and installs the
// first-run state.
func reset(ctx context.Context, h *Handler, demo bool) error {
	repo := h.Engine.Repository()
	s, err := repo.Bootstrap(demo)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if r, ok := h.AuditLog.(resetter); ok {
		if err := r.Reset(ctx); err != nil {
			return fmt.Errorf("reset store: %w", err)
		}
	}
	return repo.Replace(ctx, s)
}

func loadCleanNetworkScenario(ctx context.Context, h *Handler) error {
	return reset(ctx, h, false)
}

func loadDemoStoreScenario(ctx context.Context, h *Handler) error {
	return reset(ctx, h, true)
}

func loadInterestFirstScenario(ctx context.Context, h *Handler) error {
	if err := reset(ctx, h, true); err != nil {
		return err
	}
	return h.movements(ctx, ledger.DemoCreditLineID, ledger.DemoStoreID,
		consume("1000", "Compra del mes"),
		pay("100"),
		pay("200"),
	)
}

func loadPaidOffScenario(ctx context.Context, h *Handler) error {
	if err := reset(ctx, h, true); err != nil {
		return err
	}
	return h.movements(ctx, ledger.DemoCreditLineID, ledger.DemoStoreID,
		consume("1000", "Compra del mes"),
		pay("1150"),
	)
}

func loadVIPTwoStoresScenario(ctx context.Context, h *Handler) error {
	if err := reset(ctx, h, true); err != nil {
		return err
	}
	second, err := h.Engine.CreateStore(ctx, ledger.StoreFields{
		Name:        "Colmado El Sol",
		Address:     "Av. Independencia 80, Santo Domingo",
		Phone:       "809-555-0200",
		ContactName: "Ramona Castillo",
	})
	if err != nil {
		return err
	}
	if _, err := h.Engine.CreateUser(ctx, ledger.NewUser{
		Username: "elsol",
		Password: "elsol123",
		Role:     ledger.RoleStore,
		StoreID:  second.ID,
	}); err != nil {
		return err
	}
	_, line, err := h.Engine.OpenVIPCredit(ctx, ledger.CustomerProfile{
		Name:       "Carlos Jiménez",
		NationalID: "001-0000002-2",
		Phone:      "809-555-0300",
	}, decimal.NewFromInt(10000), nil)
	if err != nil {
		return err
	}
	if err := h.movements(ctx, line.ID, ledger.DemoStoreID, consume("500", "Víveres")); err != nil {
		return err
	}
	return h.movements(ctx, line.ID, second.ID, consume("300", "Refrescos"), pay("200"))
}

func loadPendingQueueScenario(ctx context.Context, h *Handler) error {
	if err := reset(ctx, h, true); err != nil {
		return err
	}
	for _, app := range []struct {
		name  string
		limit int64
	}{
		{"Luisa Fernández", 3000},
		{"Pedro Martínez", 1500},
	} {
		if _, _, err := h.Engine.RequestCreditForNewCustomer(ctx, ledger.Application{
			Profile:       ledger.CustomerProfile{Name: app.name},
			StoreID:       ledger.DemoStoreID,
			ApprovedLimit: decimal.NewFromInt(app.limit),
		}); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

type movement struct {
	amount      decimal.Decimal
	description string
	payment     bool
}

func consume(amount, description string) movement {
	return movement{amount: decimal.RequireFromString(amount), description: description}
}

func pay(amount string) movement {
	return movement{amount: decimal.RequireFromString(amount), payment: true}
}

func (h *Handler) movements(ctx context.Context, line ledger.CreditLineID, store ledger.StoreID, ms ...movement) error {
	for _, m := range ms {
		var err error
		if m.payment {
			_, _, err = h.Engine.RecordPayment(ctx, ledger.Payment{CreditLineID: line, Amount: m.amount, StoreID: store})
		} else {
			_, _, err = h.Engine.RecordConsumption(ctx, ledger.Consumption{
				CreditLineID: line, Amount: m.amount, Description: m.description, StoreID: store,
			})
		}
		if err != nil {
			return err
		}
	}
	return nil
}
