/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Request types carry
  go-playground/validator tags checked by bindJSON before any ledger call.
  Ledger and report types are returned as-is, except users, whose password
  hash never leaves the server.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Auth:        LoginRequest, LoginResponse, UserDTO, StoreOptionDTO
  Admin:       StoreRequest, CreateUserRequest, UpdateUserRequest
  Customers:   CustomerRequest, UpdateCustomerRequest
  Credit:      CreditRequest, CreditApplicationRequest, VIPCreditRequest
  Movements:   ConsumptionRequest, PaymentRequest
  Scenarios:   ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain types returned directly
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tarjetacolmado/ledger/ledger"
)

// =============================================================================
// AUTH
// =============================================================================

// LoginRequest is the login form. StoreID is the store a store operator
// picked; administrators leave it empty.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	StoreID  string `json:"store_id"`
}

type LoginResponse struct {
	Token          string    `json:"token"`
	ExpiresAt      time.Time `json:"expires_at"`
	User           UserDTO   `json:"user"`
	ImpersonatedBy string    `json:"impersonated_by,omitempty"`
}

// UserDTO is a user without its password hash.
type UserDTO struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	StoreID   string    `json:"store_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserDTO(u ledger.User) UserDTO {
	return UserDTO{
		ID:        string(u.ID),
		Username:  u.Username,
		Role:      string(u.Role),
		StoreID:   string(u.StoreID),
		CreatedAt: u.CreatedAt,
	}
}

// StoreOptionDTO is what the login form needs to list stores.
type StoreOptionDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// =============================================================================
// ADMIN
// =============================================================================

type StoreRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Address     string `json:"address" validate:"max=200"`
	Phone       string `json:"phone" validate:"max=40"`
	ContactName string `json:"contact_name" validate:"max=120"`
}

func (r StoreRequest) fields() ledger.StoreFields {
	return ledger.StoreFields{Name: r.Name, Address: r.Address, Phone: r.Phone, ContactName: r.ContactName}
}

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=60"`
	Password string `json:"password" validate:"required,min=4"`
	Role     string `json:"role" validate:"required,oneof=administrator store"`
	StoreID  string `json:"store_id" validate:"required_if=Role store"`
}

// UpdateUserRequest carries optional changes; omitted fields are kept.
type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=60"`
	Password *string `json:"password" validate:"omitempty,min=4"`
	Role     *string `json:"role" validate:"omitempty,oneof=administrator store"`
	StoreID  *string `json:"store_id"`
}

func (r UpdateUserRequest) changes() ledger.UserChanges {
	ch := ledger.UserChanges{Username: r.Username, Password: r.Password}
	if r.Role != nil {
		role := ledger.Role(*r.Role)
		ch.Role = &role
	}
	if r.StoreID != nil {
		store := ledger.StoreID(*r.StoreID)
		ch.StoreID = &store
	}
	return ch
}

// =============================================================================
// CUSTOMERS
// =============================================================================

type CustomerRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	NationalID string `json:"national_id" validate:"max=40"`
	Address    string `json:"address" validate:"max=200"`
	Phone      string `json:"phone" validate:"max=40"`
	StoreID    string `json:"store_id"`
	VIP        bool   `json:"vip"`
}

func (r CustomerRequest) profile() ledger.CustomerProfile {
	return ledger.CustomerProfile{Name: r.Name, NationalID: r.NationalID, Address: r.Address, Phone: r.Phone}
}

type UpdateCustomerRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=120"`
	NationalID *string `json:"national_id" validate:"omitempty,max=40"`
	Address    *string `json:"address" validate:"omitempty,max=200"`
	Phone      *string `json:"phone" validate:"omitempty,max=40"`
	VIP        *bool   `json:"vip"`
}

func (r UpdateCustomerRequest) changes() ledger.CustomerChanges {
	return ledger.CustomerChanges{Name: r.Name, NationalID: r.NationalID, Address: r.Address, Phone: r.Phone, VIP: r.VIP}
}

// =============================================================================
// CREDIT
// =============================================================================

// CreditRequest opens a pending line for an existing customer.
type CreditRequest struct {
	CustomerID    string          `json:"customer_id" validate:"required"`
	StoreID       string          `json:"store_id"`
	ApprovedLimit decimal.Decimal `json:"approved_limit" validate:"required,gt=0"`
	InterestRate  *decimal.Decimal `json:"interest_rate" validate:"omitempty,gte=0,lte=1"`
}

// CreditApplicationRequest creates the customer and a pending line.
type CreditApplicationRequest struct {
	Name          string          `json:"name" validate:"required,max=120"`
	NationalID    string          `json:"national_id" validate:"max=40"`
	Address       string          `json:"address" validate:"max=200"`
	Phone         string          `json:"phone" validate:"max=40"`
	StoreID       string          `json:"store_id"`
	ApprovedLimit decimal.Decimal `json:"approved_limit" validate:"required,gt=0"`
	InterestRate  *decimal.Decimal `json:"interest_rate" validate:"omitempty,gte=0,lte=1"`
}

func (r CreditApplicationRequest) profile() ledger.CustomerProfile {
	return ledger.CustomerProfile{Name: r.Name, NationalID: r.NationalID, Address: r.Address, Phone: r.Phone}
}

// VIPCreditRequest creates a VIP customer with an active line.
type VIPCreditRequest struct {
	Name          string          `json:"name" validate:"required,max=120"`
	NationalID    string          `json:"national_id" validate:"max=40"`
	Address       string          `json:"address" validate:"max=200"`
	Phone         string          `json:"phone" validate:"max=40"`
	ApprovedLimit decimal.Decimal `json:"approved_limit" validate:"required,gt=0"`
	InterestRate  *decimal.Decimal `json:"interest_rate" validate:"omitempty,gte=0,lte=1"`
}

type ConsumptionRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Description string          `json:"description" validate:"max=200"`
	StoreID     string          `json:"store_id"`
}

type PaymentRequest struct {
	Amount  decimal.Decimal `json:"amount" validate:"required,gt=0"`
	StoreID string          `json:"store_id"`
}

// MovementResponse returns the appended event and the line after it.
type MovementResponse struct {
	Event      any               `json:"event"`
	CreditLine ledger.CreditLine `json:"credit_line"`
	Warning    string            `json:"warning,omitempty"`
}

// =============================================================================
// SCENARIOS / AUDIT
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
