package ledger

import (
	"context"
	"strings"
)

// =============================================================================
// STORES
// =============================================================================

// StoreFields are the editable fields of a store.
type StoreFields struct {
	Name        string
	Address     string
	Phone       string
	ContactName string
}

func (e *Engine) CreateStore(ctx context.Context, f StoreFields) (Store, error) {
	var st Store
	err := e.repo.Update(ctx, func(s *State) ([]Collection, error) {
		if strings.TrimSpace(f.Name) == "" {
			return nil, invalid("name", "is required")
		}
		st = Store{
			ID:          StoreID(e.newID("c")),
			Name:        strings.TrimSpace(f.Name),
			Address:     strings.TrimSpace(f.Address),
			Phone:       strings.TrimSpace(f.Phone),
			ContactName: strings.TrimSpace(f.ContactName),
			CreatedAt:   e.now(),
		}
		s.Stores = append(s.Stores, st)
		return []Collection{CollStores}, nil
	})
	return st, err
}

func (e *Engine) UpdateStore(ctx context.Context, id StoreID, f StoreFields) (Store, error) {
	var st Store
	err := e.repo.Update(ctx, func(s *State) ([]Collection, error) {
		i := s.StoreIndex(id)
		if i < 0 {
			return nil, notFound("store", string(id))
		}
		if strings.TrimSpace(f.Name) == "" {
			return nil, invalid("name", "is required")
		}
		st = s.Stores[i]
		st.Name = strings.TrimSpace(f.Name)
		st.Address = strings.TrimSpace(f.Address)
		st.Phone = strings.TrimSpace(f.Phone)
		st.ContactName = strings.TrimSpace(f.ContactName)
		s.Stores[i] = st
		return []Collection{CollStores}, nil
	})
	return st, err
}

// DeleteStore refuses while any credit line or user references the store.
func (e *Engine) DeleteStore(ctx context.Context, id StoreID) error {
	return e.repo.Update(ctx, func(s *State) ([]Collection, error) {
		i := s.StoreIndex(id)
		if i < 0 {
			return nil, notFound("store", string(id))
		}
		for _, l := range s.CreditLines {
			if l.StoreID == id {
				return nil, &ConflictError{Kind: "store", ID: string(id), Reason: "credit lines reference it"}
			}
		}
		for _, u := range s.Users {
			if u.StoreID == id {
				return nil, &ConflictError{Kind: "store", ID: string(id), Reason: "users reference it"}
			}
		}
		s.Stores = append(s.Stores[:i], s.Stores[i+1:]...)
		return []Collection{CollStores}, nil
	})
}

// =============================================================================
// USERS
// =============================================================================

type NewUser struct {
	Username string
	Password string
	Role     Role
	StoreID  StoreID
}

// UserChanges carries optional edits; nil fields are left alone.
type UserChanges struct {
	Username *string
	Password *string
	Role     *Role
	StoreID  *StoreID
}

func (e *Engine) CreateUser(ctx context.Context, nu NewUser) (User, error) {
	hash, err := HashPassword(nu.Password, e.cost)
	if err != nil {
		return User{}, err
	}
	var u User
	err = e.repo.Update(ctx, func(s *State) ([]Collection, error) {
		u = User{
			ID:           UserID(e.newID("user")),
			Username:     strings.TrimSpace(nu.Username),
			PasswordHash: hash,
			Role:         nu.Role,
			StoreID:      nu.StoreID,
			CreatedAt:    e.now(),
		}
		if err := checkUser(s, u); err != nil {
			return nil, err
		}
		s.Users = append(s.Users, u)
		return []Collection{CollUsers}, nil
	})
	return u, err
}

func (e *Engine) UpdateUser(ctx context.Context, id UserID, ch UserChanges) (User, error) {
	var hash string
	if ch.Password != nil {
		var err error
		if hash, err = HashPassword(*ch.Password, e.cost); err != nil {
			return User{}, err
		}
	}
	var u User
	err := e.repo.Update(ctx, func(s *State) ([]Collection, error) {
		i := s.UserIndex(id)
		if i < 0 {
			return nil, notFound("user", string(id))
		}
		u = s.Users[i]
		if ch.Username != nil {
			u.Username = strings.TrimSpace(*ch.Username)
		}
		if ch.Role != nil {
			u.Role = *ch.Role
		}
		if ch.StoreID != nil {
			u.StoreID = *ch.StoreID
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		if id == BootstrapAdminID && u.Role != RoleAdministrator {
			return nil, invalid("role", "the bootstrap administrator must stay an administrator")
		}
		if err := checkUser(s, u); err != nil {
			return nil, err
		}
		s.Users[i] = u
		return []Collection{CollUsers}, nil
	})
	return u, err
}

// DeleteUser removes a user. The bootstrap administrator is protected.
func (e *Engine) DeleteUser(ctx context.Context, id UserID) error {
	return e.repo.Update(ctx, func(s *State) ([]Collection, error) {
		if id == BootstrapAdminID {
			return nil, &ConflictError{Kind: "user", ID: string(id), Reason: "bootstrap administrator is protected"}
		}
		i := s.UserIndex(id)
		if i < 0 {
			return nil, notFound("user", string(id))
		}
		s.Users = append(s.Users[:i], s.Users[i+1:]...)
		return []Collection{CollUsers}, nil
	})
}

func checkUser(s *State, u User) error {
	if u.Username == "" {
		return invalid("username", "is required")
	}
	if !u.Role.Valid() {
		return invalid("role", "must be administrator or store")
	}
	for _, other := range s.Users {
		if other.ID != u.ID && strings.EqualFold(other.Username, u.Username) {
			return invalid("username", "already taken")
		}
	}
	switch u.Role {
	case RoleStore:
		if u.StoreID == "" {
			return invalid("storeId", "is required for store users")
		}
		if s.StoreIndex(u.StoreID) < 0 {
			return notFound("store", string(u.StoreID))
		}
	case RoleAdministrator:
		if u.StoreID != "" {
			return invalid("storeId", "administrators are not tied to a store")
		}
	}
	return nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

// CreateCustomer adds a customer without a credit line.
func (e *Engine) CreateCustomer(ctx context.Context, p CustomerProfile, store StoreID, vip bool) (Customer, error) {
	var c Customer
	err := e.repo.Update(ctx, func(s *State) ([]Collection, error) {
		if err := e.checkStore(s, store); err != nil {
			return nil, err
		}
		if !vip && store == "" {
			return nil, invalid("storeId", "is required for non-VIP customers")
		}
		var err error
		if c, err = e.newCustomer(p, store, vip); err != nil {
			return nil, err
		}
		s.Customers = append(s.Customers, c)
		return []Collection{CollCustomers}, nil
	})
	return c, err
}

// CustomerChanges carries optional edits; nil fields are left alone.
type CustomerChanges struct {
	Name       *string
	NationalID *string
	Address    *string
	Phone      *string
	VIP        *bool
}

func (e *Engine) UpdateCustomer(ctx context.Context, id CustomerID, ch CustomerChanges) (Customer, error) {
	var c Customer
	err := e.repo.Update(ctx, func(s *State) ([]Collection, error) {
		i := s.CustomerIndex(id)
		if i < 0 {
			return nil, notFound("customer", string(id))
		}
		c = s.Customers[i]
		if ch.Name != nil {
			if strings.TrimSpace(*ch.Name) == "" {
				return nil, invalid("name", "is required")
			}
			c.Name = strings.TrimSpace(*ch.Name)
		}
		if ch.NationalID != nil {
			c.NationalID = strings.TrimSpace(*ch.NationalID)
		}
		if ch.Address != nil {
			c.Address = strings.TrimSpace(*ch.Address)
		}
		if ch.Phone != nil {
			c.Phone = strings.TrimSpace(*ch.Phone)
		}
		if ch.VIP != nil {
			if !*ch.VIP && c.StoreID == "" {
				return nil, invalid("vip", "customer has no owning store")
			}
			c.VIP = *ch.VIP
		}
		s.Customers[i] = c
		return []Collection{CollCustomers}, nil
	})
	return c, err
}

// DeleteCustomer removes a customer and its credit lines, refusing while any
// of those lines still carries principal or interest above Epsilon. Events
// are history and stay.
func (e *Engine) DeleteCustomer(ctx context.Context, id CustomerID) error {
	return e.repo.Update(ctx, func(s *State) ([]Collection, error) {
		i := s.CustomerIndex(id)
		if i < 0 {
			return nil, notFound("customer", string(id))
		}
		kept := s.CreditLines[:0:0]
		for _, l := range s.CreditLines {
			if l.CustomerID != id {
				kept = append(kept, l)
				continue
			}
			if l.HasDebt() {
				return nil, &ConflictError{Kind: "customer", ID: string(id), Reason: "credit line has outstanding debt"}
			}
		}
		s.Customers = append(s.Customers[:i], s.Customers[i+1:]...)
		s.CreditLines = kept
		return []Collection{CollCustomers, CollCreditLines}, nil
	})
}
