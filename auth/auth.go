/*
Package auth checks credentials and issues session tokens.

FLOW:
  1. Authenticate() matches username + bcrypt password against the users
     collection. Store operators must also pick the store they work at.
  2. Issuer.Issue() signs an HS256 JWT carrying the user id, role and store.
  3. Issuer.Parse() validates a bearer token and returns its Claims; the
     API resolves Claims into a ledger.Actor.

IMPERSONATION:
  An administrator can act as a store: Impersonate() picks that store's
  first operator and the issued token records who is impersonating.
*/
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tarjetacolmado/ledger/ledger"
)

var (
	// ErrInvalidCredentials covers unknown users, wrong passwords and a
	// store operator logging in at another store.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrNoStoreOperator    = errors.New("store has no operator to impersonate")
)

// Authenticate returns the user whose credentials match. store is the store
// picked on the login form and is only checked for store operators.
func Authenticate(users []ledger.User, username, password string, store ledger.StoreID) (ledger.User, error) {
	username = strings.TrimSpace(username)
	for _, u := range users {
		if !strings.EqualFold(u.Username, username) {
			continue
		}
		if !ledger.CheckPassword(u.PasswordHash, password) {
			return ledger.User{}, ErrInvalidCredentials
		}
		if u.Role == ledger.RoleStore && store != "" && u.StoreID != store {
			return ledger.User{}, ErrInvalidCredentials
		}
		return u, nil
	}
	return ledger.User{}, ErrInvalidCredentials
}

// Impersonate returns the first operator of store.
func Impersonate(users []ledger.User, store ledger.StoreID) (ledger.User, error) {
	for _, u := range users {
		if u.Role == ledger.RoleStore && u.StoreID == store {
			return u, nil
		}
	}
	return ledger.User{}, fmt.Errorf("%w: %s", ErrNoStoreOperator, store)
}

// =============================================================================
// TOKENS
// =============================================================================

type Claims struct {
	UserID         ledger.UserID  `json:"uid"`
	Username       string         `json:"username"`
	Role           ledger.Role    `json:"role"`
	StoreID        ledger.StoreID `json:"store,omitempty"`
	ImpersonatedBy ledger.UserID  `json:"imp,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the ledger's closed actor variant.
func (c *Claims) Actor() (ledger.Actor, error) {
	u := ledger.User{ID: c.UserID, Username: c.Username, Role: c.Role, StoreID: c.StoreID}
	return u.Actor()
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the issuer using now as its time source.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

// Issue signs a token for u. impersonator is empty for a normal login.
func (i *Issuer) Issue(u ledger.User, impersonator ledger.UserID) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		UserID:         u.ID,
		Username:       u.Username,
		Role:           u.Role,
		StoreID:        u.StoreID,
		ImpersonatedBy: impersonator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

// Parse validates a signed token and returns its claims.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
