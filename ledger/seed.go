package ledger

import (
	"github.com/shopspring/decimal"
)

// Demo records created when SeedOptions.Demo is set.
const (
	DemoStoreID      StoreID      = "store-demo"
	DemoUserID       UserID       = "user-demo"
	DemoCustomerID   CustomerID   = "cust-demo"
	DemoCreditLineID CreditLineID = "cred-demo"

	DemoStoreUsername = "colmado"
	DemoStorePassword = "colmado123"
)

// buildSeed returns the first-run contents of every collection: the
// bootstrap administrator and, for demo deployments, one store with its
// operator, one customer and an active credit line.
func buildSeed(opts Options) (*State, error) {
	now := opts.Now()
	password := opts.Seed.AdminPassword
	if password == "" {
		password = "admin"
	}
	hash, err := HashPassword(password, opts.PasswordCost)
	if err != nil {
		return nil, err
	}

	s := &State{
		Users: []User{{
			ID:           BootstrapAdminID,
			Username:     "admin",
			PasswordHash: hash,
			Role:         RoleAdministrator,
			CreatedAt:    now,
		}},
	}
	if !opts.Seed.Demo {
		return s, nil
	}

	storeHash, err := HashPassword(DemoStorePassword, opts.PasswordCost)
	if err != nil {
		return nil, err
	}
	s.Stores = []Store{{
		ID:          DemoStoreID,
		Name:        "Colmado La Esquina",
		Address:     "Calle Duarte 12, Santo Domingo",
		Phone:       "809-555-0101",
		ContactName: "José Pérez",
		CreatedAt:   now,
	}}
	s.Users = append(s.Users, User{
		ID:           DemoUserID,
		Username:     DemoStoreUsername,
		PasswordHash: storeHash,
		Role:         RoleStore,
		StoreID:      DemoStoreID,
		CreatedAt:    now,
	})
	s.Customers = []Customer{{
		ID:         DemoCustomerID,
		Name:       "María Rodríguez",
		NationalID: "001-0000001-1",
		Address:    "Calle Duarte 14",
		Phone:      "809-555-0102",
		StoreID:    DemoStoreID,
		CreatedAt:  now,
	}}
	approved := now
	s.CreditLines = []CreditLine{{
		ID:                DemoCreditLineID,
		CustomerID:        DemoCustomerID,
		StoreID:           DemoStoreID,
		ApprovedLimit:     decimal.NewFromInt(5000),
		PrincipalUtilized: decimal.Zero,
		InterestOwed:      decimal.Zero,
		InterestRate:      opts.DefaultRate,
		State:             StateActive,
		RequestedAt:       now,
		ApprovedAt:        &approved,
	}}
	return s, nil
}

func copySeed(dst, seed *State, c Collection) {
	switch c {
	case CollUsers:
		dst.Users = append([]User(nil), seed.Users...)
	case CollStores:
		dst.Stores = append([]Store(nil), seed.Stores...)
	case CollCustomers:
		dst.Customers = append([]Customer(nil), seed.Customers...)
	case CollCreditLines:
		dst.CreditLines = append([]CreditLine(nil), seed.CreditLines...)
	case CollConsumptions:
		dst.Consumptions = append([]ConsumptionEvent(nil), seed.Consumptions...)
	case CollPayments:
		dst.Payments = append([]PaymentEvent(nil), seed.Payments...)
	}
}
