/*
repository.go - In-memory collections backed by a whole-collection store

PURPOSE:
  Holds the six collections (users, stores, customers, credit lines,
  consumption events, payment events) in memory and writes whole
  collections to a DurableStore after every mutation.

PERSISTENCE CONTRACT:
  - Load(name) returns the full JSON array for a collection, or absent
  - Save(name, payload) replaces the full collection
  - No transactions across collections

COMMIT PROTOCOL:
  Update() runs the mutation on a copy of the state, saves each changed
  collection, and only then swaps the copy in. A failed save returns
  ErrPersistence and memory stays as it was. Stores implementing BatchStore
  write all changed collections atomically. For plain stores saves are not
  atomic across collections: if the credit lines save but the events do
  not, the store holds the new balance without its event until the next
  successful flush.

CONCURRENCY:
  One writer at a time. The write lock covers the whole
  read -> validate -> write -> append -> persist sequence, so concurrent
  consumptions and payments against one line cannot lose updates.

STARTUP:
  Absent collections are seeded. Legacy credit lines that stored
  availableBalance instead of principalUtilized are migrated, as are users
  that stored a plaintext password.

SEE ALSO:
  - store/sqlite, store/redis, store/memory: DurableStore backends
  - engine.go: mutations built on Update()
*/
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// DURABLE STORE
// =============================================================================

// Collection names one persisted collection.
type Collection string

const (
	CollUsers        Collection = "users"
	CollStores       Collection = "stores"
	CollCustomers    Collection = "customers"
	CollCreditLines  Collection = "creditLines"
	CollConsumptions Collection = "consumptionEvents"
	CollPayments     Collection = "paymentEvents"
)

// Collections lists every collection in persistence order. Credit lines are
// written before the events that fed them.
var Collections = []Collection{
	CollUsers, CollStores, CollCustomers, CollCreditLines, CollConsumptions, CollPayments,
}

// DurableStore persists whole collections as JSON arrays.
type DurableStore interface {
	// Load returns the stored payload, or found=false when the collection
	// has never been saved.
	Load(ctx context.Context, name Collection) (payload json.RawMessage, found bool, err error)

	// Save replaces the whole collection.
	Save(ctx context.Context, name Collection, payload json.RawMessage) error
}

// BatchStore is implemented by stores that can replace several collections
// in one atomic write. When available, Update uses it and the cross-collection
// durability gap disappears.
type BatchStore interface {
	SaveBatch(ctx context.Context, batch []CollectionPayload) error
}

// CollectionPayload pairs a collection with its encoded contents.
type CollectionPayload struct {
	Name    Collection
	Payload json.RawMessage
}

// =============================================================================
// STATE
// =============================================================================

// State is one consistent view of every collection.
type State struct {
	Users        []User
	Stores       []Store
	Customers    []Customer
	CreditLines  []CreditLine
	Consumptions []ConsumptionEvent
	Payments     []PaymentEvent
}

// Clone copies every slice so the result can be mutated freely.
func (s *State) Clone() *State {
	return &State{
		Users:        append([]User(nil), s.Users...),
		Stores:       append([]Store(nil), s.Stores...),
		Customers:    append([]Customer(nil), s.Customers...),
		CreditLines:  append([]CreditLine(nil), s.CreditLines...),
		Consumptions: append([]ConsumptionEvent(nil), s.Consumptions...),
		Payments:     append([]PaymentEvent(nil), s.Payments...),
	}
}

func (s *State) encode(c Collection) (json.RawMessage, error) {
	var v any
	switch c {
	case CollUsers:
		v = nonNil(s.Users)
	case CollStores:
		v = nonNil(s.Stores)
	case CollCustomers:
		v = nonNil(s.Customers)
	case CollCreditLines:
		v = nonNil(s.CreditLines)
	case CollConsumptions:
		v = nonNil(s.Consumptions)
	case CollPayments:
		v = nonNil(s.Payments)
	default:
		return nil, fmt.Errorf("unknown collection %q", c)
	}
	return json.Marshal(v)
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}

// Lookups return the index of the record, or -1.

func (s *State) UserIndex(id UserID) int {
	for i := range s.Users {
		if s.Users[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) StoreIndex(id StoreID) int {
	for i := range s.Stores {
		if s.Stores[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) CustomerIndex(id CustomerID) int {
	for i := range s.Customers {
		if s.Customers[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) CreditLineIndex(id CreditLineID) int {
	for i := range s.CreditLines {
		if s.CreditLines[i].ID == id {
			return i
		}
	}
	return -1
}

// CreditLineFor returns the first credit line owned by the customer.
func (s *State) CreditLineFor(id CustomerID) (CreditLine, bool) {
	for _, l := range s.CreditLines {
		if l.CustomerID == id {
			return l, true
		}
	}
	return CreditLine{}, false
}

// =============================================================================
// REPOSITORY
// =============================================================================

// SeedOptions controls first-run bootstrap.
type SeedOptions struct {
	AdminPassword string
	Demo          bool
}

// Options configures a Repository.
type Options struct {
	Seed         SeedOptions
	DefaultRate  decimal.Decimal
	PasswordCost int
	Now          func() time.Time
	Logger       zerolog.Logger
}

// Repository owns the in-memory collections.
type Repository struct {
	store DurableStore
	opts  Options

	mu    sync.RWMutex
	state *State
}

// NewRepository creates an empty repository. Call Load before use.
func NewRepository(store DurableStore, opts Options) *Repository {
	if opts.DefaultRate.IsZero() {
		opts.DefaultRate = DefaultInterestRate
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Repository{store: store, opts: opts, state: &State{}}
}

// Load reads every collection, seeding absent ones and migrating legacy
// records. Seeded and migrated collections are written back immediately.
func (r *Repository) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var seed *State
	next := &State{}
	var dirty []Collection
	for _, c := range Collections {
		payload, found, err := r.store.Load(ctx, c)
		if err != nil {
			return fmt.Errorf("load %s: %w", c, err)
		}
		if !found {
			if seed == nil {
				if seed, err = buildSeed(r.opts); err != nil {
					return fmt.Errorf("build seed: %w", err)
				}
			}
			copySeed(next, seed, c)
			dirty = append(dirty, c)
			r.opts.Logger.Info().Str("collection", string(c)).Msg("seeded collection")
			continue
		}
		migrated, err := r.decode(next, c, payload)
		if err != nil {
			return fmt.Errorf("decode %s: %w", c, err)
		}
		if migrated > 0 {
			dirty = append(dirty, c)
			r.opts.Logger.Info().Str("collection", string(c)).Int("records", migrated).Msg("migrated legacy records")
		}
	}

	if err := r.persist(ctx, next, dirty...); err != nil {
		return err
	}
	r.state = next
	return nil
}

// Flush rewrites every collection. Called on shutdown.
func (r *Repository) Flush(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.persist(ctx, r.state, Collections...)
}

// Snapshot returns a copy of the current state for read-only use.
func (r *Repository) Snapshot() *State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Clone()
}

// Update applies fn to a copy of the state and commits it once every
// collection fn reports as changed has been saved.
func (r *Repository) Update(ctx context.Context, fn func(s *State) ([]Collection, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.state.Clone()
	changed, err := fn(next)
	if err != nil {
		return err
	}
	if err := r.persist(ctx, next, changed...); err != nil {
		return err
	}
	r.state = next
	return nil
}

func (r *Repository) persist(ctx context.Context, s *State, changed ...Collection) error {
	ordered := orderCollections(changed)
	if len(ordered) == 0 {
		return nil
	}
	batch := make([]CollectionPayload, 0, len(ordered))
	for _, c := range ordered {
		payload, err := s.encode(c)
		if err != nil {
			return fmt.Errorf("%w: encode %s: %v", ErrPersistence, c, err)
		}
		batch = append(batch, CollectionPayload{Name: c, Payload: payload})
	}

	if bs, ok := r.store.(BatchStore); ok {
		if err := bs.SaveBatch(ctx, batch); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return nil
	}
	for _, b := range batch {
		if err := r.store.Save(ctx, b.Name, b.Payload); err != nil {
			return fmt.Errorf("%w: save %s: %v", ErrPersistence, b.Name, err)
		}
	}
	return nil
}

// Replace swaps in a whole new state and persists every collection. Used by
// demo scenarios.
func (r *Repository) Replace(ctx context.Context, s *State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := s.Clone()
	if err := r.persist(ctx, next, Collections...); err != nil {
		return err
	}
	r.state = next
	return nil
}

// Bootstrap returns the first-run state (bootstrap administrator plus demo
// data when requested), without touching the repository.
func (r *Repository) Bootstrap(demo bool) (*State, error) {
	opts := r.opts
	opts.Seed.Demo = demo
	return buildSeed(opts)
}

// orderCollections de-duplicates and sorts into persistence order.
func orderCollections(changed []Collection) []Collection {
	want := make(map[Collection]bool, len(changed))
	for _, c := range changed {
		want[c] = true
	}
	out := make([]Collection, 0, len(want))
	for _, c := range Collections {
		if want[c] {
			out = append(out, c)
		}
	}
	return out
}

// =============================================================================
// DECODING AND LEGACY MIGRATION
// =============================================================================

// creditLineRecord accepts both the current shape and the legacy one that
// stored availableBalance instead of principalUtilized.
type creditLineRecord struct {
	CreditLine
	PrincipalUtilized *decimal.Decimal `json:"principalUtilized"`
	InterestOwed      *decimal.Decimal `json:"interestOwed"`
	InterestRate      *decimal.Decimal `json:"interestRate"`
	AvailableBalance  *decimal.Decimal `json:"availableBalance"`
}

// userRecord accepts users that still carry a plaintext password.
type userRecord struct {
	User
	Password string `json:"password"`
}

func (r *Repository) decode(s *State, c Collection, payload json.RawMessage) (migrated int, err error) {
	switch c {
	case CollUsers:
		var recs []userRecord
		if err := unmarshal(payload, &recs); err != nil {
			return 0, err
		}
		for _, rec := range recs {
			u, changed, err := migrateUser(rec, r.opts.PasswordCost)
			if err != nil {
				return 0, err
			}
			if changed {
				migrated++
			}
			s.Users = append(s.Users, u)
		}
	case CollStores:
		err = unmarshal(payload, &s.Stores)
	case CollCustomers:
		err = unmarshal(payload, &s.Customers)
	case CollCreditLines:
		var recs []creditLineRecord
		if err := unmarshal(payload, &recs); err != nil {
			return 0, err
		}
		for _, rec := range recs {
			line, changed := migrateCreditLine(rec, r.opts.DefaultRate)
			if changed {
				migrated++
			}
			s.CreditLines = append(s.CreditLines, line)
		}
	case CollConsumptions:
		err = unmarshal(payload, &s.Consumptions)
	case CollPayments:
		err = unmarshal(payload, &s.Payments)
	}
	return migrated, err
}

func unmarshal(payload json.RawMessage, v any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	return json.Unmarshal(payload, v)
}

// migrateCreditLine normalizes a stored record. A legacy record with
// availableBalance and no principalUtilized gets
// principalUtilized = approvedLimit - availableBalance.
func migrateCreditLine(rec creditLineRecord, defaultRate decimal.Decimal) (CreditLine, bool) {
	line := rec.CreditLine
	changed := false

	switch {
	case rec.PrincipalUtilized != nil:
		line.PrincipalUtilized = *rec.PrincipalUtilized
		changed = rec.AvailableBalance != nil
	case rec.AvailableBalance != nil:
		line.PrincipalUtilized = line.ApprovedLimit.Sub(*rec.AvailableBalance)
		changed = true
	default:
		line.PrincipalUtilized = decimal.Zero
		changed = true
	}

	if rec.InterestOwed != nil {
		line.InterestOwed = *rec.InterestOwed
	} else {
		line.InterestOwed = decimal.Zero
		changed = true
	}

	if rec.InterestRate != nil {
		line.InterestRate = *rec.InterestRate
	} else {
		line.InterestRate = defaultRate
		changed = true
	}

	// Legacy balances have no events behind them; record them as the
	// opening balance the audit rebuilds from.
	if rec.AvailableBalance != nil && rec.PrincipalUtilized == nil && line.Opening == nil {
		line.Opening = &OpeningBalance{Principal: line.PrincipalUtilized, Interest: line.InterestOwed}
	}
	return line, changed
}

func migrateUser(rec userRecord, cost int) (User, bool, error) {
	u := rec.User
	if u.PasswordHash != "" || rec.Password == "" {
		return u, false, nil
	}
	hash, err := HashPassword(rec.Password, cost)
	if err != nil {
		return u, false, fmt.Errorf("hash password for %s: %w", u.Username, err)
	}
	u.PasswordHash = hash
	return u, true, nil
}
